package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/waabox/ontoloci/internal/api"
	"github.com/waabox/ontoloci/internal/domain"
	"github.com/waabox/ontoloci/internal/metrics"
)

type stubStore struct {
	results []domain.BuildResult
	err     error
}

func (s stubStore) Save(context.Context, domain.BuildResult) error { return nil }

func (s stubStore) FindAll(context.Context) ([]domain.BuildResult, error) {
	return s.results, s.err
}

func (s stubStore) FindByID(_ context.Context, id string) (domain.BuildResult, bool, error) {
	if s.err != nil {
		return domain.BuildResult{}, false, s.err
	}
	for _, r := range s.results {
		if r.ID == id {
			return r, true, nil
		}
	}
	return domain.BuildResult{}, false, nil
}

func fixtures() stubStore {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return stubStore{results: []domain.BuildResult{
		{
			ID:       "b1",
			Metadata: domain.Metadata{Owner: "weso", Repo: "ontolo-ci-test", Commit: "c1", CheckRunID: "7"},
			Status:   domain.BuildSuccess,
			TestCaseResults: []domain.TestCaseResult{
				{Name: "users", Status: domain.TestCaseSuccess, Computed: ":a@:User", Expected: ":a@:User"},
			},
			StartedAt:  start,
			FinishedAt: start.Add(time.Second),
		},
		{
			ID:       "b2",
			Metadata: domain.Metadata{Owner: "weso", Repo: "other", Commit: "c2", Exceptions: true, CheckTitle: domain.TitleFileNotFound},
			Status:   domain.BuildCancelled,
		},
	}}
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestList(t *testing.T) {
	h := api.NewHandler(fixtures(), nil, nil).Routes()

	rec := get(t, h, api.Prefix)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("want application/json, got %q", ct)
	}
	var got []domain.BuildResult
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b1" || got[0].TestCaseResults[0].Computed != ":a@:User" {
		t.Errorf("unexpected body: %+v", got)
	}
}

func TestList_Filters(t *testing.T) {
	h := api.NewHandler(fixtures(), nil, nil).Routes()
	tests := []struct {
		query string
		want  []string
	}{
		{"?repo=other", []string{"b2"}},
		{"?status=success", []string{"b1"}},
		{"?owner=WESO", []string{"b1", "b2"}},
		{"?owner=nobody", []string{}},
	}
	for _, tt := range tests {
		rec := get(t, h, api.Prefix+tt.query)
		var got []domain.BuildResult
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("%s: decode: %v", tt.query, err)
		}
		ids := []string{}
		for _, r := range got {
			ids = append(ids, r.ID)
		}
		if strings.Join(ids, ",") != strings.Join(tt.want, ",") {
			t.Errorf("%s: want %v, got %v", tt.query, tt.want, ids)
		}
	}
}

func TestGet(t *testing.T) {
	h := api.NewHandler(fixtures(), nil, nil).Routes()

	rec := get(t, h, api.Prefix+"/b2")
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var got domain.BuildResult
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != domain.BuildCancelled || got.Metadata.CheckTitle != domain.TitleFileNotFound || !got.Metadata.Exceptions {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestGet_NotFound(t *testing.T) {
	h := api.NewHandler(fixtures(), nil, nil).Routes()

	rec := get(t, h, api.Prefix+"/missing")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("want 404, got %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "build result not found" {
		t.Errorf("unexpected error body: %v", body)
	}
}

func TestStoreFailure(t *testing.T) {
	h := api.NewHandler(stubStore{err: errors.New("disk full")}, nil, nil).Routes()
	for _, target := range []string{api.Prefix, api.Prefix + "/b1"} {
		if rec := get(t, h, target); rec.Code != http.StatusInternalServerError {
			t.Errorf("%s: want 500, got %d", target, rec.Code)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := api.NewHandler(fixtures(), nil, nil).Routes()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, api.Prefix, strings.NewReader("{}")))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("want 405, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewRecorder(reg)
	rec.BuildStarted()
	rec.BuildFinished(domain.BuildResult{Status: domain.BuildSuccess})

	h := api.NewHandler(fixtures(), reg, nil).Routes()
	resp := get(t, h, "/metrics")
	if resp.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `ontoloci_builds_total{check_title="",status="SUCCESS"} 1`) {
		t.Errorf("metrics missing build counter:\n%s", resp.Body.String())
	}
}

func TestMetrics_DisabledWithoutGatherer(t *testing.T) {
	h := api.NewHandler(fixtures(), nil, nil).Routes()
	if rec := get(t, h, "/metrics"); rec.Code != http.StatusNotFound {
		t.Errorf("want 404, got %d", rec.Code)
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- api.Serve(ctx, "127.0.0.1:0", api.NewHandler(fixtures(), nil, nil).Routes(), zap.NewNop())
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
