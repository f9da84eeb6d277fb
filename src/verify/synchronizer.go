package verify

import (
	"context"
	"errors"
	"strconv"

	"gerrit-verifier/src/build"
	"gerrit-verifier/src/logger"
	"gerrit-verifier/src/review"
)

// RunFlagKey is the custom configuration key that enables verification for a plan.
const RunFlagKey = "custom.gerrit.run"

// Options configures a Synchronizer.
type Options struct {
	// BaseURL is the build server's base URL, used to link the result page in votes.
	BaseURL string

	// Text resolves log message keys. Defaults to DefaultText.
	Text TextProvider

	// DryRun decides votes without submitting them.
	DryRun bool
}

// Synchronizer reports build outcomes to the review system as verification votes.
// It holds no per-build state and may be shared between goroutines.
type Synchronizer struct {
	baseURL string
	text    TextProvider
	dryRun  bool
	logger  logger.Logger
}

// NewSynchronizer creates a Synchronizer.
func NewSynchronizer(opts Options, log logger.Logger) *Synchronizer {
	text := opts.Text
	if text == nil {
		text = DefaultText
	}
	return &Synchronizer{
		baseURL: opts.BaseURL,
		text:    text,
		dryRun:  opts.DryRun,
		logger:  log,
	}
}

// RunRequested reports whether the build's configuration asks for verification.
func RunRequested(config map[string]string) bool {
	v, ok := config[RunFlagKey]
	if !ok {
		return false
	}
	run, err := strconv.ParseBool(v)
	return err == nil && run
}

// Process verifies every review-backed repository of a finished build.
// Failures are recorded per binding and never abort the remaining bindings.
func (s *Synchronizer) Process(ctx context.Context, bc *build.Context) *Result {
	result := &Result{PlanResultKey: bc.PlanResultKey}

	run := RunRequested(bc.CustomConfig)
	s.logger.Info("[Synchronizer] %s", s.text.Text(KeyRunVerification, run))
	if !run {
		return result
	}
	result.Ran = true

	outcome := OutcomeFrom(bc, s.baseURL)

	for _, binding := range bc.Bindings() {
		if binding.Repository == nil {
			continue
		}
		service, ok := binding.Repository.Review()
		if !ok {
			continue
		}

		s.logger.Info("[Synchronizer] %s", s.text.Text(KeyUpdating, binding.Definition.Name))
		result.Bindings = append(result.Bindings, s.processBinding(ctx, service, binding, outcome))
	}

	if len(result.Bindings) == 0 {
		s.logger.Debug("[Synchronizer] No review-backed repositories on %s", bc.PlanResultKey)
	}

	return result
}

func (s *Synchronizer) processBinding(ctx context.Context, service review.Service, binding build.Binding, outcome Outcome) BindingResult {
	res := BindingResult{
		RepositoryID:   binding.Definition.ID,
		RepositoryName: binding.Definition.Name,
		Revision:       binding.Revision,
	}

	if binding.Revision == "" {
		s.logger.Error("[Synchronizer] %s", s.text.Text(KeyNoRevision, binding.Definition.Name))
		res.Status = StatusNoRevision
		return res
	}

	change, err := service.ChangeByRevision(ctx, binding.Revision)
	if err == nil && change == nil {
		err = review.ErrChangeNotFound
	}
	if err != nil {
		s.logger.Error("[Synchronizer] %s: %v", s.text.Text(KeyRetrieveError, binding.Revision), err)
		res.Err = err
		res.Status = StatusLookupFailed
		if errors.Is(err, review.ErrChangeNotFound) {
			res.Status = StatusNotFound
		}
		return res
	}

	res.ChangeID = change.ID
	res.ChangeNumber = change.Number
	res.PatchSet = change.CurrentPatchSet.Number

	vote := Decide(outcome, *change)
	res.Action = vote.Action
	res.Message = vote.Message

	if vote.Action == ActionSkip {
		s.logger.Info("[Synchronizer] %s", s.text.Text(KeyMerged, change.ID))
		res.Status = StatusSkippedMerged
		return res
	}

	if s.dryRun {
		s.logger.Info("[Synchronizer] Dry run: would %s change %d/%d: %s",
			vote.Action, change.Number, change.CurrentPatchSet.Number, vote.Message)
		res.Status = StatusDecided
		return res
	}

	if err := service.VerifyChange(ctx, vote.Positive(), change.Number, change.CurrentPatchSet.Number, vote.Message); err != nil {
		s.logger.Error("[Synchronizer] %s: %v", s.text.Text(KeyVerifyFailed, change.ID), err)
		res.Err = err
		res.Status = StatusSubmitFailed
		return res
	}

	key := KeyVerifiedNeg
	if vote.Positive() {
		key = KeyVerifiedPos
	}
	s.logger.Info("[Synchronizer] %s", s.text.Text(key, change.Number, change.CurrentPatchSet.Number))
	res.Status = StatusSubmitted
	return res
}
