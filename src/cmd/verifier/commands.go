package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gerrit-verifier/src/build"
	"gerrit-verifier/src/database"
	"gerrit-verifier/src/mcp"
	"gerrit-verifier/src/pipeline"
	"gerrit-verifier/src/plan"
	"gerrit-verifier/src/server"
)

const shutdownTimeout = 10 * time.Second

// agentCmd runs the verify agent
var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the verify agent.",
	Long: `Consumes build completion events, casts Verified votes on the matching
Gerrit changes and publishes a verification report per build.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		p, err := openPipeline(ctx)
		if err != nil {
			return err
		}
		defer p.Close()

		verifyAgent := p.Agent(false)

		log.Info("Verify agent started, waiting for builds...")
		if err := verifyAgent.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("agent error: %w", err)
		}

		log.Info("Verify agent stopped")
		return nil
	},
}

// serveCmd runs the HTTP API with an in-process agent
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the verify agent.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext()
		defer cancel()

		p, err := openPipeline(ctx)
		if err != nil {
			return err
		}
		defer p.Close()

		verifyAgent := p.Agent(false)
		go func() {
			if err := verifyAgent.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("[Pipeline] Verify agent error: %v", err)
				cancel()
			}
		}()

		srv := server.New(p.Broker, p.Store, p.Resolver(), p.Eligibility(), log.Logrus())
		errChan := make(chan error, 1)
		go func() {
			errChan <- srv.Start(appConfig.ListenAddr)
		}()

		select {
		case err := <-errChan:
			if err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}

		log.Info("Server stopped")
		return nil
	},
}

// mcpCmd runs the MCP server on stdio
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server over stdin/stdout.",
	Long: `Serves read-only tools for build results: the Gerrit change a build was
built from, whether a plan is Gerrit-backed, and the recorded verification votes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := openPipeline(cmd.Context())
		if err != nil {
			return err
		}
		defer p.Close()

		return mcp.NewServer(p.Store, p.Resolver(), p.Eligibility(), log).Run()
	},
}

// migrateCmd applies database migrations
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if appConfig.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required to run migrations")
		}

		db, err := database.Open(cmd.Context(), appConfig.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := database.Migrate(db); err != nil {
			return err
		}

		log.Info("Migrations applied")
		return nil
	},
}

// planCmd records a plan's repositories
var planCmd = &cobra.Command{
	Use:   "plan [plan-key]",
	Short: "Record the repositories of a plan.",
	Long: `Replaces the repositories recorded for a plan, in plan order. The first
repository is the plan's default repository.

Each --repo takes id:name[:plugin-key]. The plugin key defaults to the Gerrit key.

Example:
  gerrit-verifier plan PROJ-PLAN --repo 1:main --repo 2:docs:git`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if appConfig.PostgresDSN == "" {
			return errors.New("POSTGRES_DSN is required to record plans")
		}

		specs, _ := cmd.Flags().GetStringArray("repo")
		defs := make([]build.RepositoryDefinition, 0, len(specs))
		for _, s := range specs {
			ref, err := parseRepository(s)
			if err != nil {
				return err
			}
			defs = append(defs, build.RepositoryDefinition{ID: ref.ID, Name: ref.Name, PluginKey: ref.PluginKey})
		}

		db, err := database.Open(cmd.Context(), appConfig.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := plan.NewPostgresDirectory(db).SetRepositories(cmd.Context(), args[0], defs); err != nil {
			return err
		}

		fmt.Printf("Recorded %d repositories for %s\n", len(defs), args[0])
		return nil
	},
}

// openPipeline checks the Gerrit settings and connects the configured services.
func openPipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	if err := appConfig.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	log.Info("Starting in %s mode", pipeline.DetectMode(appConfig))
	return pipeline.Open(ctx, appConfig, log)
}

func init() {
	planCmd.Flags().StringArray("repo", nil, "Repository as id:name[:plugin-key], in plan order")
}
