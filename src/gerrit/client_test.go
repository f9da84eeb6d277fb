package gerrit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"gerrit-verifier/src/build"
	"gerrit-verifier/src/review"
)

func TestClient_ChangeByRevision_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/a/changes/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "commit:abc123" {
			t.Errorf("q = %q, want commit:abc123", got)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "bamboo" || pass != "secret" {
			t.Errorf("unexpected basic auth: %q %q %v", user, pass, ok)
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `)]}'
[
  {
    "id": "example%2Frepo~master~I42",
    "change_id": "I42",
    "_number": 42,
    "project": "example/repo",
    "branch": "master",
    "subject": "Fix the frobnicator",
    "status": "NEW",
    "updated": "2014-05-05 07:15:44.639000000",
    "current_revision": "def456",
    "revisions": {
      "abc123": {"_number": 2, "ref": "refs/changes/42/42/2"},
      "def456": {"_number": 3, "ref": "refs/changes/42/42/3"}
    }
  }
]`)
	}))
	defer server.Close()

	client := NewClient(server.URL, WithCredentials("bamboo", "secret"))
	change, err := client.ChangeByRevision(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("ChangeByRevision() error = %v", err)
	}

	if change.Number != 42 {
		t.Errorf("Number = %d, want 42", change.Number)
	}
	if change.ID != "I42" {
		t.Errorf("ID = %q, want I42", change.ID)
	}
	if change.CurrentPatchSet.Number != 3 {
		t.Errorf("CurrentPatchSet.Number = %d, want 3", change.CurrentPatchSet.Number)
	}
	if change.Merged {
		t.Error("Merged = true, want false")
	}
	if change.Project != "example/repo" || change.Branch != "master" {
		t.Errorf("project/branch = %s/%s", change.Project, change.Branch)
	}
}

func TestClient_ChangeByRevision_PicksMostRecent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `)]}'
[
  {"change_id": "Iold", "_number": 1, "status": "ABANDONED", "updated": "2020-01-01 00:00:00.000000000",
   "current_revision": "abc", "revisions": {"abc": {"_number": 1}}},
  {"change_id": "Inew", "_number": 2, "status": "MERGED", "updated": "2021-01-01 00:00:00.000000000",
   "current_revision": "abc", "revisions": {"abc": {"_number": 4}}},
  {"change_id": "Iprefix", "_number": 3, "status": "NEW", "updated": "2022-01-01 00:00:00.000000000",
   "current_revision": "abcdef", "revisions": {"abcdef": {"_number": 1}}}
]`)
	}))
	defer server.Close()

	change, err := NewClient(server.URL).ChangeByRevision(context.Background(), "abc")
	if err != nil {
		t.Fatalf("ChangeByRevision() error = %v", err)
	}
	if change.ID != "Inew" {
		t.Errorf("ID = %q, want Inew", change.ID)
	}
	if !change.Merged {
		t.Error("Merged = false, want true")
	}
}

func TestClient_ChangeByRevision_NotFound(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "empty result", status: http.StatusOK, body: ")]}'\n[]", wantErr: review.ErrChangeNotFound},
		{name: "http 404", status: http.StatusNotFound, body: "Not found", wantErr: review.ErrChangeNotFound},
		{name: "http 401", status: http.StatusUnauthorized, body: "Unauthorized", wantErr: ErrAuthFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			_, err := NewClient(server.URL).ChangeByRevision(context.Background(), "zzz")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestClient_ChangeByRevision_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).ChangeByRevision(context.Background(), "abc")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if errors.Is(err, review.ErrChangeNotFound) {
		t.Error("server error must not be reported as not found")
	}
}

func TestClient_ChangeByRevision_NoCurrentPatchSet(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "current revision not listed",
			body: `)]}'
[{"change_id": "I7", "_number": 7, "status": "NEW", "current_revision": "fff",
  "revisions": {"abc": {"_number": 1}}}]`,
		},
		{
			name: "no current revision",
			body: `)]}'
[{"change_id": "I7", "_number": 7, "status": "NEW", "revisions": {"abc": {"_number": 1}}}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
				}
				fmt.Fprint(w, tt.body)
			}))
			defer server.Close()

			change, err := NewClient(server.URL).ChangeByRevision(context.Background(), "abc")
			if !errors.Is(err, ErrNoCurrentPatchSet) {
				t.Fatalf("error = %v, want ErrNoCurrentPatchSet", err)
			}
			if change != nil {
				t.Errorf("change = %+v, want nil", change)
			}
			if errors.Is(err, review.ErrChangeNotFound) {
				t.Error("missing patch set must not be reported as not found")
			}
		})
	}
}

func TestClient_VerifyChange(t *testing.T) {
	tests := []struct {
		name      string
		positive  bool
		wantValue int
	}{
		{name: "positive", positive: true, wantValue: 1},
		{name: "negative", positive: false, wantValue: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if r.URL.Path != "/changes/42/revisions/3/review" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}

				var input reviewInput
				if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
					t.Fatalf("failed to decode body: %v", err)
				}
				if input.Labels["Verified"] != tt.wantValue {
					t.Errorf("Verified = %d, want %d", input.Labels["Verified"], tt.wantValue)
				}
				if input.Message != "Build Successful: https://bamboo/browse/P-1" {
					t.Errorf("Message = %q", input.Message)
				}

				fmt.Fprint(w, ")]}'\n{\"labels\": {\"Verified\": 1}}")
			}))
			defer server.Close()

			err := NewClient(server.URL).VerifyChange(context.Background(), tt.positive, 42, 3, "Build Successful: https://bamboo/browse/P-1")
			if err != nil {
				t.Errorf("VerifyChange() error = %v", err)
			}
		})
	}
}

func TestClient_VerifyChange_CustomLabel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var input reviewInput
		json.NewDecoder(r.Body).Decode(&input)
		if _, ok := input.Labels["CI-Verified"]; !ok {
			t.Errorf("labels = %v, want CI-Verified", input.Labels)
		}
	}))
	defer server.Close()

	if err := NewClient(server.URL, WithLabel("CI-Verified")).VerifyChange(context.Background(), true, 1, 1, "ok"); err != nil {
		t.Errorf("VerifyChange() error = %v", err)
	}
}

func TestClient_VerifyChange_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, "change is closed")
	}))
	defer server.Close()

	err := NewClient(server.URL).VerifyChange(context.Background(), true, 42, 3, "msg")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestRepositoryFactory(t *testing.T) {
	client := NewClient("https://gerrit.example.com")
	factory := NewRepositoryFactory(client)

	repo := factory.Repository(build.RepositoryDefinition{ID: 1, Name: "core", PluginKey: review.GerritPluginKey})
	svc, ok := repo.Review()
	if !ok {
		t.Fatal("Review() ok = false for Gerrit repository")
	}
	if svc != client {
		t.Error("Review() returned a different service")
	}

	plain := factory.Repository(build.RepositoryDefinition{ID: 2, Name: "docs", PluginKey: "git"})
	if _, ok := plain.Review(); ok {
		t.Error("Review() ok = true for plain repository")
	}
}
