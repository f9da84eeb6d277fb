package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"gerrit-verifier/src/build"
	"gerrit-verifier/src/contracts"
	"gerrit-verifier/src/gerrit"
	"gerrit-verifier/src/pipeline"
	"gerrit-verifier/src/provider"
	"gerrit-verifier/src/review"
	"gerrit-verifier/src/verify"
)

// parseRepository parses id:name[:plugin-key][@revision].
// The plugin key may itself contain colons and defaults to the Gerrit key.
func parseRepository(s string) (contracts.RepositoryRef, error) {
	var ref contracts.RepositoryRef

	if i := strings.LastIndex(s, "@"); i >= 0 {
		ref.Revision = s[i+1:]
		s = s[:i]
	}

	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 || parts[1] == "" {
		return ref, fmt.Errorf("invalid repository %q: want id:name[:plugin-key][@revision]", s)
	}

	id, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ref, fmt.Errorf("invalid repository id %q: %w", parts[0], err)
	}
	ref.ID = id
	ref.Name = parts[1]
	ref.PluginKey = review.GerritPluginKey
	if len(parts) == 3 && parts[2] != "" {
		ref.PluginKey = parts[2]
	}
	return ref, nil
}

// stateForReturnCode is the build state implied by a return code.
func stateForReturnCode(rc int) string {
	if rc == 0 {
		return string(build.StateSuccess)
	}
	return string(build.StateFailed)
}

// eventFromBuild describes a finished CI provider build as a completed build of one
// repository at the build's commit. Builds that are still queued or running are rejected.
func eventFromBuild(b *provider.Build, planKey string, repo contracts.RepositoryRef, now time.Time) (*contracts.BuildCompleted, error) {
	if !b.Finished() {
		return nil, fmt.Errorf("%w: build #%s is %s", provider.ErrNotFinished, b.Number, b.State)
	}
	repo.Revision = b.Commit

	number, _ := strconv.Atoi(b.Number)
	rc := b.ReturnCode()
	state := build.ParseState(b.State)
	if state == build.StateUnknown {
		// Terminal states such as skipped or timed_out carry no success/failure of their own.
		state = build.State(stateForReturnCode(rc))
	}

	return &contracts.BuildCompleted{
		EventID:       uuid.NewString(),
		PlanKey:       planKey,
		PlanResultKey: fmt.Sprintf("%s-%s", planKey, b.Number),
		BuildNumber:   number,
		ReturnCode:    rc,
		State:         string(state),
		Repositories:  []contracts.RepositoryRef{repo},
		CustomConfig:  map[string]string{verify.RunFlagKey: "true"},
		Timestamp:     now.UTC().Format(time.RFC3339),
	}, nil
}

// submitCmd publishes a build completion event
var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Publish a build completion event.",
	Long: `Publishes a finished build to the verify agent. Requires a persistent
broker (REDPANDA_BROKERS) so a running agent can pick the event up.

Example:
  gerrit-verifier submit --plan-key PROJ-PLAN --build-number 42 --rc 0 \
    --repo 1:main@4f1c2a9`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if pipeline.DetectMode(appConfig) != pipeline.DistributedMode {
			return errors.New("REDPANDA_BROKERS is required to submit builds (example: export REDPANDA_BROKERS=localhost:19092)")
		}

		event, err := eventFromFlags(cmd)
		if err != nil {
			return err
		}

		p, err := pipeline.Open(cmd.Context(), appConfig, log)
		if err != nil {
			return err
		}
		defer p.Close()

		if err := p.Submit(cmd.Context(), event); err != nil {
			return err
		}

		fmt.Printf("Submitted build %s (event %s)\n", event.PlanResultKey, event.EventID)
		return nil
	},
}

func eventFromFlags(cmd *cobra.Command) (*contracts.BuildCompleted, error) {
	flags := cmd.Flags()
	planKey, _ := flags.GetString("plan-key")
	resultKey, _ := flags.GetString("result-key")
	number, _ := flags.GetInt("build-number")
	rc, _ := flags.GetInt("rc")
	state, _ := flags.GetString("state")
	specs, _ := flags.GetStringArray("repo")
	run, _ := flags.GetBool("run")

	if planKey == "" {
		return nil, errors.New("--plan-key is required")
	}
	if resultKey == "" {
		if number <= 0 {
			return nil, errors.New("--result-key or --build-number is required")
		}
		resultKey = fmt.Sprintf("%s-%d", planKey, number)
	}
	if state == "" {
		state = stateForReturnCode(rc)
	}

	event := &contracts.BuildCompleted{
		EventID:       uuid.NewString(),
		PlanKey:       planKey,
		PlanResultKey: resultKey,
		BuildNumber:   number,
		ReturnCode:    rc,
		State:         state,
		CustomConfig:  map[string]string{verify.RunFlagKey: strconv.FormatBool(run)},
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
	for _, s := range specs {
		ref, err := parseRepository(s)
		if err != nil {
			return nil, err
		}
		event.Repositories = append(event.Repositories, ref)
	}
	return event, nil
}

// verifyCmd votes on the change behind a CI provider build
var verifyCmd = &cobra.Command{
	Use:   "verify [build-url]",
	Short: "Vote on the Gerrit change a Buildkite or GitHub Actions build was built from.",
	Long: `Fetches a finished build, takes its commit as the Gerrit revision and casts
the Verified vote directly, without a broker. Prints the verification report.

With --dry-run the vote is decided but not submitted.

Example:
  gerrit-verifier verify https://buildkite.com/org/pipeline/builds/4091 --dry-run
  gerrit-verifier verify https://github.com/owner/repo/actions/runs/456 --plan-key PROJ-PLAN`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := appConfig.Validate(); err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		planKey, _ := cmd.Flags().GetString("plan-key")
		repoSpec, _ := cmd.Flags().GetString("repo")

		repo, err := parseRepository(repoSpec)
		if err != nil {
			return err
		}

		ref, err := provider.ParseURL(args[0])
		if err != nil {
			return provider.WrapError(err)
		}
		prov, err := provider.GetProvider(ref, appConfig.ProviderToken(ref.Provider))
		if err != nil {
			return provider.WrapError(err)
		}

		b, err := prov.FetchBuild(cmd.Context(), ref)
		if err != nil {
			return provider.WrapError(err)
		}
		if b.Commit == "" {
			return fmt.Errorf("build %s has no commit", b.URL)
		}
		log.Info("Fetched %s build #%s (state: %s, commit: %s)", prov.Name(), b.Number, b.State, b.Commit)

		event, err := eventFromBuild(b, planKey, repo, time.Now())
		if err != nil {
			return provider.WrapError(err)
		}
		factory := gerrit.NewRepositoryFactory(pipeline.NewGerritClient(appConfig))
		result := pipeline.NewSynchronizer(appConfig, dryRun, log).Process(cmd.Context(), event.Context(factory.Repository))
		report := contracts.NewVerificationReport(event.EventID, result, time.Now())

		out, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		fmt.Fprintln(os.Stdout, string(out))

		for _, failure := range result.Failures() {
			if errors.Is(failure.Err, gerrit.ErrAuthFailed) || errors.Is(failure.Err, review.ErrChangeNotFound) {
				return provider.WrapError(failure.Err)
			}
		}
		if n := len(result.Failures()); n > 0 {
			return fmt.Errorf("%d repositories could not be verified", n)
		}
		return nil
	},
}

func addEventFlags(cmd *cobra.Command) {
	cmd.Flags().String("plan-key", "", "Plan key, e.g. PROJ-PLAN")
	cmd.Flags().String("result-key", "", "Build result key (default {plan-key}-{build-number})")
	cmd.Flags().Int("build-number", 0, "Build number")
	cmd.Flags().Int("rc", 0, "Build return code")
	cmd.Flags().String("state", "", "Build state: success or failed (default from --rc)")
	cmd.Flags().StringArray("repo", nil, "Repository as id:name[:plugin-key][@revision]")
	cmd.Flags().Bool("run", true, "Request Gerrit verification for this build")
}

func init() {
	addEventFlags(submitCmd)

	verifyCmd.Flags().Bool("dry-run", false, "Decide the vote without submitting it")
	verifyCmd.Flags().String("plan-key", "CI-BUILD", "Plan key used to name the build result")
	verifyCmd.Flags().String("repo", "1:main", "Repository as id:name[:plugin-key]")
}
