package plan

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gerrit-verifier/src/build"
)

// PostgresDirectory reads plan repositories from the plan_repositories table.
type PostgresDirectory struct {
	db *sql.DB
}

// NewPostgresDirectory creates a directory over an open database.
func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) DefaultRepository(ctx context.Context, planKey string) (*build.RepositoryDefinition, error) {
	def, err := d.first(ctx, planKey)
	if errors.Is(err, ErrPlanNotFound) {
		if parent, ok := ParentKey(planKey); ok {
			return d.first(ctx, parent)
		}
	}
	return def, err
}

func (d *PostgresDirectory) first(ctx context.Context, planKey string) (*build.RepositoryDefinition, error) {
	query := `
		SELECT repository_id, name, plugin_key
		FROM plan_repositories
		WHERE plan_key = $1
		ORDER BY position ASC
		LIMIT 1
	`

	var def build.RepositoryDefinition
	err := d.db.QueryRowContext(ctx, query, planKey).Scan(&def.ID, &def.Name, &def.PluginKey)
	if err == sql.ErrNoRows {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query plan repositories: %w", err)
	}
	return &def, nil
}

// SetRepositories replaces a plan's repositories, in plan order.
func (d *PostgresDirectory) SetRepositories(ctx context.Context, planKey string, repos []build.RepositoryDefinition) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM plan_repositories WHERE plan_key = $1`, planKey); err != nil {
		return fmt.Errorf("failed to clear plan repositories: %w", err)
	}

	for i, repo := range repos {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO plan_repositories (plan_key, position, repository_id, name, plugin_key)
			VALUES ($1, $2, $3, $4, $5)
		`, planKey, i, repo.ID, repo.Name, repo.PluginKey)
		if err != nil {
			return fmt.Errorf("failed to insert plan repository: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit plan repositories: %w", err)
	}
	return nil
}

// RecordRepositories implements Recorder.
func (d *PostgresDirectory) RecordRepositories(ctx context.Context, planKey string, repos []build.RepositoryDefinition) error {
	return d.SetRepositories(ctx, planKey, repos)
}
