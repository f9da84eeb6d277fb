// Package main provides the gerrit-verifier CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "gerrit-verifier/src/buildkite" // Import for provider registration
	"gerrit-verifier/src/config"
	_ "gerrit-verifier/src/githubactions" // Import for provider registration
	"gerrit-verifier/src/logger"
)

var (
	appConfig *config.Config
	log       *logger.LogrusLogger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gerrit-verifier",
	Short: "Reports finished builds to Gerrit as Verified votes.",
	Long: `gerrit-verifier listens for finished builds and casts a Verified vote on the
Gerrit change each build was triggered by.

Broker and storage are picked from the environment:
- REDPANDA_BROKERS set: Redpanda, otherwise an in-memory broker
- POSTGRES_DSN set: Postgres, otherwise in-memory storage`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		appConfig = config.Load()

		var err error
		log, err = logger.New(os.Stderr, appConfig.LogLevel, appConfig.LogFormat)
		if err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		return nil
	},
}

// signalContext returns a context that is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			log.Info("Shutdown signal received, stopping...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

func init() {
	rootCmd.AddCommand(agentCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(planCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
