package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"gerrit-verifier/src/contracts"
)

// PostgresStore is a Postgres implementation of Store.
// The schema is created by database.Migrate.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a store over an open database (see database.Open).
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// SaveBuild records a completed build.
func (s *PostgresStore) SaveBuild(ctx context.Context, build *contracts.BuildCompleted) error {
	reposJSON, err := json.Marshal(build.Repositories)
	if err != nil {
		return fmt.Errorf("failed to marshal repositories: %w", err)
	}

	configJSON, err := json.Marshal(build.CustomConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal custom_config: %w", err)
	}

	query := `
		INSERT INTO builds (
			plan_result_key, event_id, plan_key, build_number, return_code, state,
			repositories, custom_config, completed_at, received_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (plan_result_key) DO UPDATE SET
			event_id = EXCLUDED.event_id,
			plan_key = EXCLUDED.plan_key,
			build_number = EXCLUDED.build_number,
			return_code = EXCLUDED.return_code,
			state = EXCLUDED.state,
			repositories = EXCLUDED.repositories,
			custom_config = EXCLUDED.custom_config,
			completed_at = EXCLUDED.completed_at,
			received_at = EXCLUDED.received_at
	`

	_, err = s.db.ExecContext(ctx, query,
		build.PlanResultKey,
		build.EventID,
		build.PlanKey,
		build.BuildNumber,
		build.ReturnCode,
		build.State,
		reposJSON,
		configJSON,
		build.Timestamp,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save build: %w", err)
	}

	return nil
}

// GetBuild returns the build recorded for a plan result key.
func (s *PostgresStore) GetBuild(ctx context.Context, planResultKey string) (*contracts.BuildCompleted, error) {
	query := `
		SELECT plan_result_key, event_id, plan_key, build_number, return_code, state,
		       repositories, custom_config, completed_at
		FROM builds
		WHERE plan_result_key = $1
	`

	var build contracts.BuildCompleted
	var reposJSON, configJSON []byte
	err := s.db.QueryRowContext(ctx, query, planResultKey).Scan(
		&build.PlanResultKey,
		&build.EventID,
		&build.PlanKey,
		&build.BuildNumber,
		&build.ReturnCode,
		&build.State,
		&reposJSON,
		&configJSON,
		&build.Timestamp,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("build %s: %w", planResultKey, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get build: %w", err)
	}

	if err := json.Unmarshal(reposJSON, &build.Repositories); err != nil {
		return nil, fmt.Errorf("failed to unmarshal repositories: %w", err)
	}
	if err := json.Unmarshal(configJSON, &build.CustomConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal custom_config: %w", err)
	}

	return &build, nil
}

// SaveReport records a verification report.
func (s *PostgresStore) SaveReport(ctx context.Context, report *contracts.VerificationReport) error {
	bindingsJSON, err := json.Marshal(report.Bindings)
	if err != nil {
		return fmt.Errorf("failed to marshal bindings: %w", err)
	}

	query := `
		INSERT INTO verification_reports (plan_result_key, event_id, ran, bindings, reported_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (plan_result_key) DO UPDATE SET
			event_id = EXCLUDED.event_id,
			ran = EXCLUDED.ran,
			bindings = EXCLUDED.bindings,
			reported_at = EXCLUDED.reported_at
	`

	_, err = s.db.ExecContext(ctx, query,
		report.PlanResultKey,
		report.EventID,
		report.Ran,
		bindingsJSON,
		report.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	return nil
}

// GetReport returns the latest verification report for a plan result key.
func (s *PostgresStore) GetReport(ctx context.Context, planResultKey string) (*contracts.VerificationReport, error) {
	query := `
		SELECT plan_result_key, event_id, ran, bindings, reported_at
		FROM verification_reports
		WHERE plan_result_key = $1
	`

	var report contracts.VerificationReport
	var bindingsJSON []byte
	err := s.db.QueryRowContext(ctx, query, planResultKey).Scan(
		&report.PlanResultKey,
		&report.EventID,
		&report.Ran,
		&bindingsJSON,
		&report.Timestamp,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("report %s: %w", planResultKey, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	if err := json.Unmarshal(bindingsJSON, &report.Bindings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bindings: %w", err)
	}

	return &report, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
