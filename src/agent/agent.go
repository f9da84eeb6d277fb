// Package agent provides the Verify Agent.
// It consumes build completion events, runs the synchronizer and publishes the
// resulting verification reports.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gerrit-verifier/src/broker"
	"gerrit-verifier/src/build"
	"gerrit-verifier/src/contracts"
	"gerrit-verifier/src/logger"
	"gerrit-verifier/src/plan"
	"gerrit-verifier/src/store"
	"gerrit-verifier/src/verify"
)

// RepositoryFactory turns a repository definition into a live repository.
type RepositoryFactory interface {
	Repository(def build.RepositoryDefinition) build.Repository
}

// Agent consumes build completion events and publishes verification reports.
type Agent struct {
	broker       broker.Broker
	store        store.Store
	plans        plan.Recorder
	synchronizer *verify.Synchronizer
	repositories RepositoryFactory
	logger       logger.Logger
	now          func() time.Time
}

// NewAgent creates a new verify agent.
// Each build's repositories are recorded as its plan's repositories in plans.
func NewAgent(brk broker.Broker, st store.Store, plans plan.Recorder, syncer *verify.Synchronizer, repos RepositoryFactory, log logger.Logger) *Agent {
	return &Agent{
		broker:       brk,
		store:        st,
		plans:        plans,
		synchronizer: syncer,
		repositories: repos,
		logger:       log,
		now:          time.Now,
	}
}

// Run starts the agent's main loop.
// It subscribes to the build completion topic and processes incoming events
// until ctx is cancelled or the broker closes the subscription.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("[VerifyAgent] Starting...")

	msgChan, err := a.broker.Subscribe(ctx, contracts.TopicBuildsCompleted, contracts.ConsumerGroup)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", contracts.TopicBuildsCompleted, err)
	}

	a.logger.Info("[VerifyAgent] Listening for builds on '%s' topic...", contracts.TopicBuildsCompleted)

	for {
		select {
		case msg, ok := <-msgChan:
			if !ok {
				a.logger.Info("[VerifyAgent] Message channel closed, shutting down")
				return nil
			}

			if err := a.processMessage(ctx, msg); err != nil {
				a.logger.Error("[VerifyAgent] Error processing build: %v", err)
			}

		case <-ctx.Done():
			a.logger.Info("[VerifyAgent] Context cancelled, shutting down")
			return ctx.Err()
		}
	}
}

func (a *Agent) processMessage(ctx context.Context, msg broker.Message) error {
	var event contracts.BuildCompleted
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal build event at offset %d: %w", msg.Offset, err)
	}
	if event.PlanResultKey == "" {
		return fmt.Errorf("build event at offset %d has no plan result key", msg.Offset)
	}

	_, err := a.Handle(ctx, &event)
	return err
}

// Handle verifies one completed build, then stores and publishes its report.
// The report is returned even when storing or publishing it fails.
func (a *Agent) Handle(ctx context.Context, event *contracts.BuildCompleted) (*contracts.VerificationReport, error) {
	a.logger.Info("[VerifyAgent] Processing build %s (state: %s, rc: %d)",
		event.PlanResultKey, event.State, event.ReturnCode)

	if err := a.store.SaveBuild(ctx, event); err != nil {
		a.logger.Error("[VerifyAgent] Failed to store build %s: %v", event.PlanResultKey, err)
	}

	if event.PlanKey != "" && len(event.Repositories) > 0 {
		if err := a.plans.RecordRepositories(ctx, event.PlanKey, event.Definitions()); err != nil {
			a.logger.Error("[VerifyAgent] Failed to record repositories of plan %s: %v", event.PlanKey, err)
		}
	}

	result := a.synchronizer.Process(ctx, event.Context(a.repositories.Repository))
	report := contracts.NewVerificationReport(uuid.NewString(), result, a.now())

	a.logger.Info("[VerifyAgent] Completed build %s (%d verified, %d failed)",
		event.PlanResultKey, len(result.Verified()), len(result.Failures()))

	if err := a.store.SaveReport(ctx, report); err != nil {
		return report, fmt.Errorf("failed to store report: %w", err)
	}

	data, err := json.Marshal(report)
	if err != nil {
		return report, fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := a.broker.Publish(ctx, contracts.TopicVerifications, report.PlanResultKey, data); err != nil {
		return report, fmt.Errorf("failed to publish report: %w", err)
	}

	return report, nil
}
