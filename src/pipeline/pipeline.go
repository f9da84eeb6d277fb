// Package pipeline wires the broker, storage and Gerrit client the verifier runs against.
// Local mode keeps everything in memory; distributed mode uses Redpanda and Postgres.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"gerrit-verifier/src/agent"
	"gerrit-verifier/src/broker"
	"gerrit-verifier/src/config"
	"gerrit-verifier/src/contracts"
	"gerrit-verifier/src/database"
	"gerrit-verifier/src/display"
	"gerrit-verifier/src/gerrit"
	"gerrit-verifier/src/logger"
	"gerrit-verifier/src/plan"
	"gerrit-verifier/src/store"
	"gerrit-verifier/src/verify"
)

// Mode selects where events and records live.
type Mode int

const (
	// LocalMode uses the in-memory broker.
	LocalMode Mode = iota
	// DistributedMode uses Redpanda.
	DistributedMode
)

func (m Mode) String() string {
	if m == DistributedMode {
		return "distributed"
	}
	return "local"
}

// DetectMode picks the mode from the configured brokers.
func DetectMode(cfg *config.Config) Mode {
	if len(cfg.RedpandaBrokers) > 0 {
		return DistributedMode
	}
	return LocalMode
}

// Pipeline holds the shared services a command runs against.
type Pipeline struct {
	Mode   Mode
	Broker broker.Broker
	Store  store.Store
	Plans  plan.Registry
	Gerrit *gerrit.Client

	cfg    *config.Config
	logger logger.Logger
}

// Open connects the broker and storage named by cfg.
// Storage is Postgres when a DSN is configured and in memory otherwise.
func Open(ctx context.Context, cfg *config.Config, log logger.Logger) (*Pipeline, error) {
	p := &Pipeline{
		Mode:   DetectMode(cfg),
		Gerrit: NewGerritClient(cfg),
		cfg:    cfg,
		logger: log,
	}

	switch p.Mode {
	case DistributedMode:
		log.Info("[Pipeline] Redpanda brokers: %v", cfg.RedpandaBrokers)
		brk, err := broker.NewRedpandaBroker(cfg.RedpandaBrokers, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redpanda broker: %w", err)
		}
		p.Broker = brk
	default:
		log.Info("[Pipeline] REDPANDA_BROKERS not set, using in-memory broker")
		p.Broker = broker.NewInMemoryBroker()
	}

	if cfg.PostgresDSN == "" {
		log.Info("[Pipeline] POSTGRES_DSN not set, using in-memory storage")
		p.Store = store.NewMemoryStore()
		p.Plans = plan.NewMemoryDirectory()
		return p, nil
	}

	db, err := database.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		p.Broker.Close()
		return nil, err
	}
	p.Store = store.NewPostgresStore(db)
	p.Plans = plan.NewPostgresDirectory(db)
	return p, nil
}

// NewGerritClient creates the Gerrit client described by cfg.
func NewGerritClient(cfg *config.Config) *gerrit.Client {
	opts := []gerrit.Option{gerrit.WithLabel(cfg.GerritLabel)}
	if cfg.GerritUsername != "" {
		opts = append(opts, gerrit.WithCredentials(cfg.GerritUsername, cfg.GerritPassword))
	}
	return gerrit.NewClient(cfg.GerritURL, opts...)
}

// NewSynchronizer creates a synchronizer linking votes to the configured build server.
func NewSynchronizer(cfg *config.Config, dryRun bool, log logger.Logger) *verify.Synchronizer {
	return verify.NewSynchronizer(verify.Options{
		BaseURL: cfg.BambooBaseURL,
		DryRun:  dryRun,
	}, log)
}

// Agent creates a verify agent over the pipeline's services.
func (p *Pipeline) Agent(dryRun bool) *agent.Agent {
	return agent.NewAgent(
		p.Broker,
		p.Store,
		p.Plans,
		NewSynchronizer(p.cfg, dryRun, p.logger),
		gerrit.NewRepositoryFactory(p.Gerrit),
		p.logger,
	)
}

// Resolver creates the change display resolver.
func (p *Pipeline) Resolver() *display.Resolver {
	return display.NewResolver(p.Gerrit, p.logger)
}

// Eligibility creates the display eligibility check.
func (p *Pipeline) Eligibility() *display.Eligibility {
	return display.NewEligibility(p.Plans)
}

// Submit publishes a build completion event for the verify agent.
func (p *Pipeline) Submit(ctx context.Context, event *contracts.BuildCompleted) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.Broker.Publish(ctx, contracts.TopicBuildsCompleted, event.PlanResultKey, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close shuts down the broker and the store. The Postgres store owns the database connection.
func (p *Pipeline) Close() error {
	if err := p.Broker.Close(); err != nil {
		return err
	}
	return p.Store.Close()
}
