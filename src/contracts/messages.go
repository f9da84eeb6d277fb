// Package contracts defines the messages exchanged between the verifier's agents.
package contracts

import (
	"time"

	"gerrit-verifier/src/build"
	"gerrit-verifier/src/verify"
)

// Topic names used on the broker.
const (
	// TopicBuildsCompleted carries BuildCompleted events.
	// Key: {plan_result_key}
	TopicBuildsCompleted = "gerrit-verifier.builds.completed"

	// TopicVerifications carries VerificationReport events.
	// Key: {plan_result_key}
	TopicVerifications = "gerrit-verifier.verifications"
)

// ConsumerGroup is the consumer group used by the verify agent.
const ConsumerGroup = "gerrit-verifier"

// RepositoryRef is one repository of a finished build and the revision it was built at.
type RepositoryRef struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	PluginKey string `json:"plugin_key"`
	Revision  string `json:"revision,omitempty"`
}

// BuildCompleted is published when a build finishes.
// Published to: gerrit-verifier.builds.completed
type BuildCompleted struct {
	EventID       string            `json:"event_id"`
	PlanKey       string            `json:"plan_key"`
	PlanResultKey string            `json:"plan_result_key"`
	BuildNumber   int               `json:"build_number"`
	ReturnCode    int               `json:"return_code"`
	State         string            `json:"state"`
	Repositories  []RepositoryRef   `json:"repositories"`
	CustomConfig  map[string]string `json:"custom_config,omitempty"`
	Timestamp     string            `json:"timestamp"`
}

// Result returns the build result carried by the event.
func (e *BuildCompleted) Result() build.Result {
	return build.Result{ReturnCode: e.ReturnCode, State: build.ParseState(e.State)}
}

// Summary returns the results-page view of the event.
func (e *BuildCompleted) Summary() build.ResultsSummary {
	summary := build.ResultsSummary{
		PlanKey:       e.PlanKey,
		PlanResultKey: e.PlanResultKey,
	}
	for _, r := range e.Repositories {
		if r.Revision == "" {
			continue
		}
		summary.Changesets = append(summary.Changesets, build.Changeset{
			RepositoryID: r.ID,
			PluginKey:    r.PluginKey,
			ChangesetID:  r.Revision,
		})
	}
	return summary
}

// Definitions returns the event's repositories as plan repository definitions, in plan order.
func (e *BuildCompleted) Definitions() []build.RepositoryDefinition {
	defs := make([]build.RepositoryDefinition, 0, len(e.Repositories))
	for _, r := range e.Repositories {
		defs = append(defs, build.RepositoryDefinition{ID: r.ID, Name: r.Name, PluginKey: r.PluginKey})
	}
	return defs
}

// Context turns the event into a build context, resolving each repository
// through newRepository.
func (e *BuildCompleted) Context(newRepository func(build.RepositoryDefinition) build.Repository) *build.Context {
	bc := &build.Context{
		PlanKey:       e.PlanKey,
		PlanResultKey: e.PlanResultKey,
		BuildNumber:   e.BuildNumber,
		Result:        e.Result(),
		Revisions:     make(map[int64]string, len(e.Repositories)),
		CustomConfig:  e.CustomConfig,
	}
	for i, def := range e.Definitions() {
		r := e.Repositories[i]
		bc.Repositories = append(bc.Repositories, build.BoundRepository{
			Definition: def,
			Repository: newRepository(def),
		})
		if r.Revision != "" {
			bc.Revisions[r.ID] = r.Revision
		}
	}
	return bc
}

// BindingReport is the outcome for one review-backed repository.
type BindingReport struct {
	RepositoryID   int64  `json:"repository_id"`
	RepositoryName string `json:"repository_name"`
	Revision       string `json:"revision,omitempty"`
	ChangeID       string `json:"change_id,omitempty"`
	ChangeNumber   int    `json:"change_number,omitempty"`
	PatchSet       int    `json:"patch_set,omitempty"`
	Action         string `json:"action"`
	Message        string `json:"message,omitempty"`
	Status         string `json:"status"`
	Error          string `json:"error,omitempty"`
}

// VerificationReport is published after the synchronizer has processed a build.
// Published to: gerrit-verifier.verifications
type VerificationReport struct {
	EventID       string          `json:"event_id"`
	PlanResultKey string          `json:"plan_result_key"`
	Ran           bool            `json:"ran"`
	Bindings      []BindingReport `json:"bindings"`
	Timestamp     string          `json:"timestamp"`
}

// NewVerificationReport converts a synchronizer result into a report.
func NewVerificationReport(eventID string, res *verify.Result, at time.Time) *VerificationReport {
	report := &VerificationReport{
		EventID:       eventID,
		PlanResultKey: res.PlanResultKey,
		Ran:           res.Ran,
		Bindings:      make([]BindingReport, 0, len(res.Bindings)),
		Timestamp:     at.UTC().Format(time.RFC3339),
	}
	for _, b := range res.Bindings {
		br := BindingReport{
			RepositoryID:   b.RepositoryID,
			RepositoryName: b.RepositoryName,
			Revision:       b.Revision,
			ChangeID:       b.ChangeID,
			ChangeNumber:   b.ChangeNumber,
			PatchSet:       b.PatchSet,
			Action:         b.Action.String(),
			Message:        b.Message,
			Status:         string(b.Status),
		}
		if b.Err != nil {
			br.Error = b.Err.Error()
		}
		report.Bindings = append(report.Bindings, br)
	}
	return report
}
