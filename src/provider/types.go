package provider

import "time"

// BuildRef identifies a build in a CI system
type BuildRef struct {
	Provider string            // "buildkite" or "github"
	BuildID  string            // Unique build identifier
	Metadata map[string]string // Provider-specific metadata
}

// Build represents a CI build with jobs
type Build struct {
	ID        string
	Number    string
	URL       string
	State     string
	Commit    string
	Branch    string
	Timestamp time.Time
	Jobs      []Job
}

// Job represents a single job within a build
type Job struct {
	ID        string
	Name      string
	Type      string
	State     string
	ExitCode  int
	BuildID   string
	Timestamp time.Time
}

// finishedStates are the terminal build states. Buildkite reports them directly;
// GitHub Actions runs report their conclusion once completed.
var finishedStates = map[string]bool{
	"passed":          true,
	"success":         true,
	"failed":          true,
	"failure":         true,
	"canceled":        true,
	"cancelled":       true,
	"skipped":         true,
	"not_run":         true,
	"timed_out":       true,
	"neutral":         true,
	"stale":           true,
	"startup_failure": true,
	"action_required": true,
}

// Finished reports whether the build has reached a terminal state.
func (b *Build) Finished() bool {
	return finishedStates[b.State]
}

// ReturnCode returns the first non-zero job exit code.
// A failed build whose jobs all exited cleanly returns 1.
func (b *Build) ReturnCode() int {
	for _, job := range b.Jobs {
		if job.ExitCode != 0 {
			return job.ExitCode
		}
	}
	switch b.State {
	case "passed", "success":
		return 0
	}
	return 1
}
