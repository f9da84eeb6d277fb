package verify

// Status is the outcome of processing one repository binding.
type Status string

const (
	StatusSubmitted     Status = "submitted"
	StatusSkippedMerged Status = "skipped_merged"
	StatusLookupFailed  Status = "lookup_failed"
	StatusNotFound      Status = "not_found"
	StatusSubmitFailed  Status = "submit_failed"
	StatusNoRevision    Status = "no_revision"

	// StatusDecided marks a vote that was decided but not submitted (dry run).
	StatusDecided Status = "decided"
)

// Failed reports whether the status is a failure.
func (s Status) Failed() bool {
	switch s {
	case StatusLookupFailed, StatusNotFound, StatusSubmitFailed, StatusNoRevision:
		return true
	}
	return false
}

// BindingResult records what happened for one review-backed repository.
type BindingResult struct {
	RepositoryID   int64
	RepositoryName string
	Revision       string
	ChangeID       string
	ChangeNumber   int
	PatchSet       int
	Action         Action
	Message        string
	Status         Status
	Err            error
}

// Result aggregates the per-binding outcomes of one Process call.
type Result struct {
	PlanResultKey string
	// Ran is false when verification was not requested for the build.
	Ran      bool
	Bindings []BindingResult
}

// Verified returns the bindings whose vote was accepted.
func (r *Result) Verified() []BindingResult {
	var out []BindingResult
	for _, b := range r.Bindings {
		if b.Status == StatusSubmitted {
			out = append(out, b)
		}
	}
	return out
}

// Failures returns the bindings that failed.
func (r *Result) Failures() []BindingResult {
	var out []BindingResult
	for _, b := range r.Bindings {
		if b.Status.Failed() {
			out = append(out, b)
		}
	}
	return out
}
