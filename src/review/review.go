// Package review defines the review-system (Gerrit) types and the client
// contracts the verifier relies on.
package review

import (
	"context"
	"errors"
)

// GerritPluginKey identifies repositories backed by the Gerrit repository adapter.
const GerritPluginKey = "com.houghtonassociates.bamboo.plugins.gReview:gerrit"

// ErrChangeNotFound is returned by a ChangeLookup when no change matches a revision.
var ErrChangeNotFound = errors.New("change not found")

// PatchSet is a single revision of a change.
type PatchSet struct {
	Number   int    `json:"number"`
	Revision string `json:"revision"`
	Ref      string `json:"ref,omitempty"`
}

// Change is a review-system change as seen at lookup time.
// Values are never mutated after a lookup; look the change up again to observe updates.
type Change struct {
	ID              string   `json:"id"`
	Number          int      `json:"number"`
	Project         string   `json:"project"`
	Branch          string   `json:"branch"`
	Subject         string   `json:"subject,omitempty"`
	Status          string   `json:"status,omitempty"`
	Merged          bool     `json:"merged"`
	URL             string   `json:"url,omitempty"`
	CurrentPatchSet PatchSet `json:"current_patch_set"`
}

// IsEmpty reports whether c is the placeholder change used when nothing was resolved.
func (c Change) IsEmpty() bool {
	return c.Number == 0 && c.ID == ""
}

// ChangeLookup resolves a VCS revision to the most recent change containing it.
// Implementations return ErrChangeNotFound (possibly wrapped) when nothing matches.
type ChangeLookup interface {
	ChangeByRevision(ctx context.Context, revision string) (*Change, error)
}

// VoteSubmitter casts a verification vote on a change's patch set.
// A nil error means the review system accepted the vote.
type VoteSubmitter interface {
	VerifyChange(ctx context.Context, positive bool, changeNumber, patchSet int, message string) error
}

// Service is the full review-system client exposed by a review-backed repository.
type Service interface {
	ChangeLookup
	VoteSubmitter
}
