// Package store defines the interface for persistent data storage.
package store

import (
	"context"
	"errors"

	"gerrit-verifier/src/contracts"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// Store persists completed builds and their verification reports.
// Both are keyed by plan result key; saving again replaces the record.
type Store interface {
	// SaveBuild records a completed build.
	SaveBuild(ctx context.Context, build *contracts.BuildCompleted) error

	// GetBuild returns the build recorded for a plan result key.
	GetBuild(ctx context.Context, planResultKey string) (*contracts.BuildCompleted, error)

	// SaveReport records a verification report.
	SaveReport(ctx context.Context, report *contracts.VerificationReport) error

	// GetReport returns the latest verification report for a plan result key.
	GetReport(ctx context.Context, planResultKey string) (*contracts.VerificationReport, error)

	// Close closes the store connection
	Close() error
}
