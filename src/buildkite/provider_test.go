package buildkite

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"gerrit-verifier/src/provider"
)

func TestBuildkiteProvider_Name(t *testing.T) {
	p := NewProvider("fake-token")
	if p.Name() != "buildkite" {
		t.Errorf("Name() = %v, want buildkite", p.Name())
	}
}

func TestBuildkiteProvider_ParseURL(t *testing.T) {
	p := NewProvider("fake-token")

	ref, err := p.ParseURL("https://buildkite.com/myorg/mypipeline/builds/123")
	if err != nil {
		t.Fatalf("ParseURL() error = %v", err)
	}

	if ref.Provider != "buildkite" {
		t.Errorf("Provider = %v, want buildkite", ref.Provider)
	}
	if ref.BuildID != "123" {
		t.Errorf("BuildID = %v, want 123", ref.BuildID)
	}
	if ref.Metadata["org"] != "myorg" {
		t.Errorf("org = %v, want myorg", ref.Metadata["org"])
	}
	if ref.Metadata["pipeline"] != "mypipeline" {
		t.Errorf("pipeline = %v, want mypipeline", ref.Metadata["pipeline"])
	}
}

func TestBuildkiteProvider_FetchBuild(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "b-1",
			"number": 12,
			"state": "passed",
			"commit": "def456",
			"branch": "feature",
			"jobs": [
				{"id": "j-1", "name": "build", "type": "script", "state": "passed", "exit_status": 0},
				{"id": "j-2", "type": "waiter"}
			]
		}`))
	}))
	defer server.Close()

	p := NewProvider("fake-token")
	p.client.baseURL = server.URL

	ref, err := p.ParseURL("https://buildkite.com/org/pipe/builds/12")
	if err != nil {
		t.Fatalf("ParseURL() error = %v", err)
	}

	build, err := p.FetchBuild(context.Background(), ref)
	if err != nil {
		t.Fatalf("FetchBuild() error = %v", err)
	}
	if build.Commit != "def456" || build.Number != "12" {
		t.Errorf("unexpected build: %+v", build)
	}
	if len(build.Jobs) != 1 {
		t.Errorf("expected waiter to be skipped, got %d jobs", len(build.Jobs))
	}
	if build.ReturnCode() != 0 {
		t.Errorf("ReturnCode() = %d, want 0", build.ReturnCode())
	}
}

func TestBuildkiteProvider_Registered(t *testing.T) {
	p, err := provider.GetProvider(&provider.BuildRef{Provider: "buildkite"}, "token")
	if err != nil {
		t.Fatalf("GetProvider() error = %v", err)
	}
	if p.Name() != "buildkite" {
		t.Errorf("Name() = %s, want buildkite", p.Name())
	}
}
