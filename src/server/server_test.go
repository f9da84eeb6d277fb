package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"gerrit-verifier/src/broker"
	"gerrit-verifier/src/build"
	"gerrit-verifier/src/contracts"
	"gerrit-verifier/src/display"
	"gerrit-verifier/src/logger"
	"gerrit-verifier/src/plan"
	"gerrit-verifier/src/review"
	"gerrit-verifier/src/store"
)

type stubLookup map[string]review.Change

func (s stubLookup) ChangeByRevision(ctx context.Context, revision string) (*review.Change, error) {
	c, ok := s[revision]
	if !ok {
		return nil, review.ErrChangeNotFound
	}
	return &c, nil
}

type fixture struct {
	server *Server
	broker *broker.InMemoryBroker
	store  *store.MemoryStore
	hook   *test.Hook
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	brk := broker.NewInMemoryBroker()
	t.Cleanup(func() { brk.Close() })
	st := store.NewMemoryStore()

	plans := plan.NewMemoryDirectory()
	plans.SetRepositories("PROJ-PLAN", []build.RepositoryDefinition{
		{ID: 1, Name: "main", PluginKey: review.GerritPluginKey},
	})

	lookup := stubLookup{"abc123": {ID: "I42", Number: 42, CurrentPatchSet: review.PatchSet{Number: 2}}}
	resolver := display.NewResolver(lookup, logger.NewSilentLogger())

	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	return &fixture{
		server: New(brk, st, resolver, display.NewEligibility(plans), log),
		broker: brk,
		store:  st,
		hook:   hook,
	}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestPostBuild(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	msgs, err := f.broker.Subscribe(ctx, contracts.TopicBuildsCompleted, "test")
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	rec := f.do(http.MethodPost, "/api/builds", `{
		"plan_key": "PROJ-PLAN",
		"plan_result_key": "PROJ-PLAN-3",
		"return_code": 0,
		"state": "success",
		"repositories": [{"id": 1, "name": "main", "plugin_key": "gerrit", "revision": "abc123"}]
	}`)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}

	var resp acceptedResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if resp.EventID == "" || resp.PlanResultKey != "PROJ-PLAN-3" {
		t.Errorf("unexpected response: %+v", resp)
	}

	select {
	case msg := <-msgs:
		var event contracts.BuildCompleted
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			t.Fatalf("Unmarshal event failed: %v", err)
		}
		if msg.Key != "PROJ-PLAN-3" || event.EventID != resp.EventID || event.Timestamp == "" {
			t.Errorf("unexpected event: key=%s %+v", msg.Key, event)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for published build")
	}
}

func TestPostBuild_Invalid(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{not json`},
		{"missing keys", `{"state": "success"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/api/builds", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}

	var warned bool
	for _, e := range f.hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "Client error" {
			warned = true
		}
	}
	if !warned {
		t.Error("expected client errors to be logged at warn level")
	}
}

func TestGetPlanEligible(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		key  string
		want bool
	}{
		{"PROJ-PLAN", true},
		{"PROJ-PLAN-JOB1", true},
		{"OTHER-PLAN", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			rec := f.do(http.MethodGet, "/api/plans/"+tt.key+"/eligible", "")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}
			var resp eligibilityResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if resp.Eligible != tt.want || resp.PlanKey != tt.key {
				t.Errorf("response = %+v, want eligible=%v", resp, tt.want)
			}
		})
	}
}

func TestGetResultChange(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.SaveBuild(ctx, &contracts.BuildCompleted{
		PlanKey:       "PROJ-PLAN",
		PlanResultKey: "PROJ-PLAN-3",
		Repositories:  []contracts.RepositoryRef{{ID: 1, PluginKey: review.GerritPluginKey, Revision: "abc123"}},
	})
	f.store.SaveBuild(ctx, &contracts.BuildCompleted{
		PlanKey:       "PROJ-PLAN",
		PlanResultKey: "PROJ-PLAN-4",
		Repositories:  []contracts.RepositoryRef{{ID: 1, PluginKey: review.GerritPluginKey, Revision: "unknown"}},
	})

	tests := []struct {
		name       string
		key        string
		wantStatus int
		wantFound  bool
		wantNumber int
	}{
		{name: "resolved", key: "PROJ-PLAN-3", wantStatus: http.StatusOK, wantFound: true, wantNumber: 42},
		{name: "placeholder", key: "PROJ-PLAN-4", wantStatus: http.StatusOK},
		{name: "unknown build", key: "PROJ-PLAN-99", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodGet, "/api/results/"+tt.key+"/change", "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp changeResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if resp.Found != tt.wantFound || resp.Change.Number != tt.wantNumber {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestGetResultVerification(t *testing.T) {
	f := newFixture(t)

	f.store.SaveReport(context.Background(), &contracts.VerificationReport{
		PlanResultKey: "PROJ-PLAN-3",
		Ran:           true,
		Bindings:      []contracts.BindingReport{{ChangeNumber: 42, Status: "submitted"}},
	})

	rec := f.do(http.MethodGet, "/api/results/PROJ-PLAN-3/verification", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var report contracts.VerificationReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if !report.Ran || len(report.Bindings) != 1 {
		t.Errorf("unexpected report: %+v", report)
	}

	rec = f.do(http.MethodGet, "/api/results/PROJ-PLAN-9/verification", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}
