// Package verify decides and submits Gerrit verification votes for finished builds.
package verify

import (
	"fmt"
	"strings"

	"gerrit-verifier/src/build"
	"gerrit-verifier/src/review"
)

// Action is what the verifier does with a resolved change.
type Action int

const (
	ActionSkip Action = iota
	ActionVotePositive
	ActionVoteNegative
)

func (a Action) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionVotePositive:
		return "vote_positive"
	case ActionVoteNegative:
		return "vote_negative"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Vote is the decision for one change.
type Vote struct {
	Action  Action
	Message string
}

// Positive reports whether the vote is a positive verification.
func (v Vote) Positive() bool {
	return v.Action == ActionVotePositive
}

// Outcome is the read-only view of a finished build used for voting.
type Outcome struct {
	ReturnCode int
	State      build.State
	ResultURL  string
}

// OutcomeFrom derives the outcome of a build context.
func OutcomeFrom(bc *build.Context, baseURL string) Outcome {
	return Outcome{
		ReturnCode: bc.Result.ReturnCode,
		State:      bc.Result.State,
		ResultURL:  ResultURL(baseURL, bc.PlanResultKey),
	}
}

// ResultURL returns the results page of a plan result.
func ResultURL(baseURL, planResultKey string) string {
	return strings.TrimRight(baseURL, "/") + "/browse/" + planResultKey
}

// Decide computes the vote for a change given the outcome of the build that tested it.
// The vote messages are displayed as review comments and must keep their format.
func Decide(outcome Outcome, change review.Change) Vote {
	if change.Merged {
		return Vote{
			Action:  ActionSkip,
			Message: fmt.Sprintf("change %s is already merged", change.ID),
		}
	}

	if outcome.ReturnCode == 0 && outcome.State == build.StateSuccess {
		return Vote{
			Action:  ActionVotePositive,
			Message: fmt.Sprintf("Build Successful: %s", outcome.ResultURL),
		}
	}

	return Vote{
		Action:  ActionVoteNegative,
		Message: fmt.Sprintf("Build Failed: %s", outcome.ResultURL),
	}
}
