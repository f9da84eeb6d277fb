package store

import (
	"context"
	"fmt"
	"sync"

	"gerrit-verifier/src/contracts"
)

// MemoryStore is an in-memory implementation of Store.
// Useful for testing and single-process mode.
type MemoryStore struct {
	mu      sync.RWMutex
	builds  map[string]contracts.BuildCompleted
	reports map[string]contracts.VerificationReport
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		builds:  make(map[string]contracts.BuildCompleted),
		reports: make(map[string]contracts.VerificationReport),
	}
}

// SaveBuild records a completed build.
func (s *MemoryStore) SaveBuild(ctx context.Context, build *contracts.BuildCompleted) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *build
	cp.Repositories = append([]contracts.RepositoryRef(nil), build.Repositories...)
	if build.CustomConfig != nil {
		cp.CustomConfig = make(map[string]string, len(build.CustomConfig))
		for k, v := range build.CustomConfig {
			cp.CustomConfig[k] = v
		}
	}
	s.builds[build.PlanResultKey] = cp
	return nil
}

// GetBuild returns the build recorded for a plan result key.
func (s *MemoryStore) GetBuild(ctx context.Context, planResultKey string) (*contracts.BuildCompleted, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	build, exists := s.builds[planResultKey]
	if !exists {
		return nil, fmt.Errorf("build %s: %w", planResultKey, ErrNotFound)
	}

	// Return a copy
	build.Repositories = append([]contracts.RepositoryRef(nil), build.Repositories...)
	return &build, nil
}

// SaveReport records a verification report.
func (s *MemoryStore) SaveReport(ctx context.Context, report *contracts.VerificationReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *report
	cp.Bindings = append([]contracts.BindingReport(nil), report.Bindings...)
	s.reports[report.PlanResultKey] = cp
	return nil
}

// GetReport returns the latest verification report for a plan result key.
func (s *MemoryStore) GetReport(ctx context.Context, planResultKey string) (*contracts.VerificationReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report, exists := s.reports[planResultKey]
	if !exists {
		return nil, fmt.Errorf("report %s: %w", planResultKey, ErrNotFound)
	}

	report.Bindings = append([]contracts.BindingReport(nil), report.Bindings...)
	return &report, nil
}

// Close closes the store (no-op for memory store).
func (s *MemoryStore) Close() error {
	return nil
}
