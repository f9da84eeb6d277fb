package githubactions

import (
	"context"
	"fmt"

	"gerrit-verifier/src/provider"
)

func init() {
	// Register the GitHub Actions provider factory
	provider.RegisterProvider("github", func(token string) provider.Provider {
		return NewProvider(token)
	})
}

// Provider implements provider.Provider for GitHub Actions
type Provider struct {
	client *Client
}

// NewProvider creates a GitHub Actions provider with API token
func NewProvider(token string) *Provider {
	return &Provider{
		client: NewClient(token),
	}
}

// Name returns "github"
func (p *Provider) Name() string {
	return "github"
}

// ParseURL delegates to provider.ParseURL
func (p *Provider) ParseURL(url string) (*provider.BuildRef, error) {
	return provider.ParseURL(url)
}

// FetchBuild retrieves workflow run metadata using GitHub API
func (p *Provider) FetchBuild(ctx context.Context, ref *provider.BuildRef) (*provider.Build, error) {
	owner := ref.Metadata["owner"]
	repo := ref.Metadata["repo"]
	runID := ref.BuildID

	run, err := p.client.GetWorkflowRun(ctx, owner, repo, runID)
	if err != nil {
		return nil, err
	}

	jobs, err := p.client.GetWorkflowJobs(ctx, owner, repo, runID)
	if err != nil {
		return nil, err
	}

	build := &provider.Build{
		ID:        fmt.Sprintf("%d", run.ID),
		Number:    fmt.Sprintf("%d", run.RunNumber),
		URL:       run.HTMLURL,
		State:     mapGitHubStatus(run.Status, run.Conclusion),
		Commit:    run.HeadSHA,
		Branch:    run.HeadBranch,
		Timestamp: run.CreatedAt,
		Jobs:      make([]provider.Job, 0, len(jobs)),
	}

	for _, ghJob := range jobs {
		exitCode := 0
		if ghJob.Conclusion == "failure" {
			exitCode = 1
		}

		build.Jobs = append(build.Jobs, provider.Job{
			ID:        fmt.Sprintf("%s/%s/%d", owner, repo, ghJob.ID),
			Name:      ghJob.Name,
			Type:      "script", // GitHub Actions doesn't distinguish types
			State:     mapGitHubStatus(ghJob.Status, ghJob.Conclusion),
			ExitCode:  exitCode,
			BuildID:   fmt.Sprintf("%d", run.ID),
			Timestamp: ghJob.StartedAt,
		})
	}

	return build, nil
}

// mapGitHubStatus maps GitHub status/conclusion to Buildkite-like state
func mapGitHubStatus(status, conclusion string) string {
	if status == "completed" {
		switch conclusion {
		case "success":
			return "passed"
		case "failure":
			return "failed"
		case "cancelled":
			return "canceled"
		default:
			return conclusion
		}
	}
	return status
}
