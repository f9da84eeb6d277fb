// Package display resolves Gerrit changes for build results pages.
// Everything here is read-only; nothing in this package casts votes.
package display

import (
	"context"

	"gerrit-verifier/src/build"
	"gerrit-verifier/src/logger"
	"gerrit-verifier/src/plan"
	"gerrit-verifier/src/review"
)

// Resolver finds the Gerrit change a build result was built from.
type Resolver struct {
	lookup review.ChangeLookup
	logger logger.Logger
}

// NewResolver creates a Resolver over a change lookup client.
func NewResolver(lookup review.ChangeLookup, log logger.Logger) *Resolver {
	return &Resolver{lookup: lookup, logger: log}
}

// Revision returns the changeset id of the first Gerrit-backed changeset in the summary.
func Revision(summary build.ResultsSummary) (string, bool) {
	cs, ok := summary.FirstChangeset(review.GerritPluginKey)
	if !ok || cs.ChangesetID == "" {
		return "", false
	}
	return cs.ChangesetID, true
}

// ResolveForDisplay returns the change for the summary's Gerrit revision.
// It returns the empty placeholder change when there is nothing to show.
func (r *Resolver) ResolveForDisplay(ctx context.Context, summary build.ResultsSummary) review.Change {
	revision, ok := Revision(summary)
	if !ok {
		return review.Change{}
	}

	change, err := r.lookup.ChangeByRevision(ctx, revision)
	if err != nil {
		r.logger.Error("[Display] Unable to retrieve change for revision %s: %v", revision, err)
		return review.Change{}
	}
	if change == nil {
		r.logger.Error("[Display] Unable to retrieve change for revision %s", revision)
		return review.Change{}
	}
	return *change
}

// Eligibility decides whether a plan's results pages should show Gerrit changes.
type Eligibility struct {
	plans plan.Directory
}

// NewEligibility creates an Eligibility check over a plan directory.
func NewEligibility(plans plan.Directory) *Eligibility {
	return &Eligibility{plans: plans}
}

// IsEligible reports whether the plan's default repository uses the Gerrit adapter.
// Unknown plans are not eligible.
func (e *Eligibility) IsEligible(ctx context.Context, planKey string) bool {
	def, err := e.plans.DefaultRepository(ctx, planKey)
	if err != nil || def == nil {
		return false
	}
	return def.PluginKey == review.GerritPluginKey
}
