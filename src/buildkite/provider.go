package buildkite

import (
	"context"
	"fmt"

	"gerrit-verifier/src/provider"
)

func init() {
	// Register the Buildkite provider factory
	provider.RegisterProvider("buildkite", func(token string) provider.Provider {
		return NewProvider(token)
	})
}

// Provider implements provider.Provider for Buildkite
type Provider struct {
	client *Client
}

// NewProvider creates a Buildkite provider with API token
func NewProvider(token string) *Provider {
	return &Provider{
		client: NewClient(token),
	}
}

// Name returns "buildkite"
func (p *Provider) Name() string {
	return "buildkite"
}

// ParseURL delegates to provider.ParseURL
func (p *Provider) ParseURL(url string) (*provider.BuildRef, error) {
	return provider.ParseURL(url)
}

// FetchBuild retrieves build metadata using Buildkite API
func (p *Provider) FetchBuild(ctx context.Context, ref *provider.BuildRef) (*provider.Build, error) {
	org := ref.Metadata["org"]
	pipeline := ref.Metadata["pipeline"]
	buildNum := ref.BuildID

	bkBuild, err := p.client.GetBuild(ctx, org, pipeline, buildNum)
	if err != nil {
		return nil, err
	}

	build := &provider.Build{
		ID:        bkBuild.ID,
		Number:    fmt.Sprintf("%d", bkBuild.Number),
		URL:       bkBuild.WebURL,
		State:     bkBuild.State,
		Commit:    bkBuild.Commit,
		Branch:    bkBuild.Branch,
		Timestamp: bkBuild.CreatedAt,
		Jobs:      make([]provider.Job, 0, len(bkBuild.Jobs)),
	}

	for _, bkJob := range bkBuild.Jobs {
		// Wait steps and block steps carry no exit status
		if bkJob.Type != "script" {
			continue
		}

		exitCode := 0
		if bkJob.ExitStatus != nil {
			exitCode = *bkJob.ExitStatus
		}

		build.Jobs = append(build.Jobs, provider.Job{
			ID:        bkJob.ID,
			Name:      bkJob.Name,
			Type:      bkJob.Type,
			State:     bkJob.State,
			ExitCode:  exitCode,
			BuildID:   bkBuild.ID,
			Timestamp: bkJob.CreatedAt,
		})
	}

	return build, nil
}
