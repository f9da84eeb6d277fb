// Package plan answers questions about build plans and their repositories.
package plan

import (
	"context"
	"errors"
	"strings"
	"sync"

	"gerrit-verifier/src/build"
)

// ErrPlanNotFound is returned when a plan, or its repositories, are unknown.
var ErrPlanNotFound = errors.New("plan not found")

// Directory looks up plan repository definitions.
type Directory interface {
	// DefaultRepository returns the first effective repository of a plan.
	// Jobs inherit the repositories of their parent chain.
	DefaultRepository(ctx context.Context, planKey string) (*build.RepositoryDefinition, error)
}

// Recorder records the repositories a plan builds from.
type Recorder interface {
	// RecordRepositories replaces a plan's repositories, in plan order.
	RecordRepositories(ctx context.Context, planKey string, repos []build.RepositoryDefinition) error
}

// Registry is a Directory that learns plans as they are recorded.
type Registry interface {
	Directory
	Recorder
}

// ParentKey returns the chain key of a job key ("PROJ-PLAN-JOB1" -> "PROJ-PLAN").
// The second result is false for keys that are not job keys.
func ParentKey(planKey string) (string, bool) {
	parts := strings.Split(planKey, "-")
	if len(parts) != 3 {
		return "", false
	}
	return parts[0] + "-" + parts[1], true
}

// MemoryDirectory is an in-memory Directory.
type MemoryDirectory struct {
	mu    sync.RWMutex
	plans map[string][]build.RepositoryDefinition
}

// NewMemoryDirectory creates an empty directory.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{plans: make(map[string][]build.RepositoryDefinition)}
}

// SetRepositories replaces a plan's repositories, in plan order.
func (d *MemoryDirectory) SetRepositories(planKey string, repos []build.RepositoryDefinition) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cp := make([]build.RepositoryDefinition, len(repos))
	copy(cp, repos)
	d.plans[planKey] = cp
}

// RecordRepositories implements Recorder.
func (d *MemoryDirectory) RecordRepositories(ctx context.Context, planKey string, repos []build.RepositoryDefinition) error {
	d.SetRepositories(planKey, repos)
	return nil
}

func (d *MemoryDirectory) DefaultRepository(ctx context.Context, planKey string) (*build.RepositoryDefinition, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	repos := d.plans[planKey]
	if len(repos) == 0 {
		if parent, ok := ParentKey(planKey); ok {
			repos = d.plans[parent]
		}
	}
	if len(repos) == 0 {
		return nil, ErrPlanNotFound
	}

	def := repos[0]
	return &def, nil
}
