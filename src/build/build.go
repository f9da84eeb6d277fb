// Package build models the parts of a finished build the verifier reads from
// the hosting build system.
package build

import (
	"gerrit-verifier/src/review"
)

// State is the coarse outcome of a build.
type State string

const (
	StateSuccess State = "success"
	StateFailed  State = "failed"
	StateUnknown State = "unknown"
)

// ParseState maps a build state string onto a State.
// Buildkite and GitHub Actions spell success as "passed".
func ParseState(s string) State {
	switch s {
	case "success", "successful", "passed":
		return StateSuccess
	case "failed", "failure", "canceled", "cancelled", "error":
		return StateFailed
	default:
		return StateUnknown
	}
}

// Result is the result of a finished build.
type Result struct {
	ReturnCode int
	State      State
}

// Repository is a VCS repository attached to a build plan.
type Repository interface {
	// Name returns the repository's display name.
	Name() string

	// Review returns the review-system client if the repository is backed by the
	// review-system adapter.
	Review() (review.Service, bool)
}

// RepositoryDefinition is the configured identity of a plan repository.
type RepositoryDefinition struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	PluginKey string `json:"plugin_key"`
}

// BoundRepository pairs a definition with its live repository object.
type BoundRepository struct {
	Definition RepositoryDefinition
	Repository Repository
}

// Binding is one repository of a build together with the revision it was built at.
type Binding struct {
	Definition RepositoryDefinition
	Repository Repository
	Revision   string
}

// Context is the hosting build system's view of one finished build.
type Context struct {
	PlanKey       string
	PlanResultKey string
	BuildNumber   int
	Result        Result

	// Repositories are the VCS repositories bound to the build, in plan order.
	Repositories []BoundRepository

	// Revisions holds the revision each repository was built at, keyed by repository ID.
	Revisions map[int64]string

	// CustomConfig is the plan's custom build configuration.
	CustomConfig map[string]string
}

// RevisionFor returns the recorded revision for a repository.
func (c *Context) RevisionFor(repositoryID int64) (string, bool) {
	rev, ok := c.Revisions[repositoryID]
	if !ok || rev == "" {
		return "", false
	}
	return rev, true
}

// Bindings returns one binding per bound repository.
func (c *Context) Bindings() []Binding {
	bindings := make([]Binding, 0, len(c.Repositories))
	for _, r := range c.Repositories {
		rev, _ := c.RevisionFor(r.Definition.ID)
		bindings = append(bindings, Binding{
			Definition: r.Definition,
			Repository: r.Repository,
			Revision:   rev,
		})
	}
	return bindings
}

// PlainRepository is a repository with no review-system adapter.
type PlainRepository struct {
	name string
}

// NewPlainRepository creates a repository that is not review-backed.
func NewPlainRepository(name string) *PlainRepository {
	return &PlainRepository{name: name}
}

func (r *PlainRepository) Name() string { return r.name }

func (r *PlainRepository) Review() (review.Service, bool) { return nil, false }
