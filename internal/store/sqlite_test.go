package store_test

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/waabox/ontoloci/internal/domain"
	"github.com/waabox/ontoloci/internal/store"
)

func openTestStore(t *testing.T) *store.SQLite {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "nested", "builds.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResult(id string, started time.Time) domain.BuildResult {
	return domain.BuildResult{
		ID: id,
		Metadata: domain.Metadata{
			Owner:      "weso",
			Repo:       "ontolo-ci-test",
			Commit:     "1ad23547",
			CheckRunID: "42",
			Extra:      map[string]string{"trigger": "push"},
		},
		Status: domain.BuildFailure,
		TestCaseResults: []domain.TestCaseResult{
			{Name: "second", Status: domain.TestCaseFailure, Computed: ":b@:S", Expected: ":b@!:S", Duration: 3 * time.Millisecond},
			{Name: "first", Status: domain.TestCaseSuccess, Computed: ":a@:S", Expected: ":a@:S", Duration: time.Millisecond},
		},
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
	}
}

func TestOpen_CreatesDatabaseFile(t *testing.T) {
	s := openTestStore(t)
	if _, err := os.Stat(s.Path()); err != nil {
		t.Errorf("database file missing: %v", err)
	}
}

func TestSaveAndFindByID_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	want := sampleResult("b1", time.Date(2024, 3, 1, 12, 0, 0, 250, time.UTC))

	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, ok, err := s.FindByID(ctx, "b1")
	if err != nil || !ok {
		t.Fatalf("find: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\nwant %+v\ngot  %+v", want, got)
	}
}

func TestFindByID_Missing(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.FindByID(context.Background(), "nope")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("want not found")
	}
}

func TestSave_CancelledBuild(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	cancelled := domain.BuildResult{
		ID:         "b2",
		Metadata:   domain.Metadata{Owner: "weso", Repo: "x", Commit: "c", Exceptions: true, CheckTitle: domain.TitleFileNotFound},
		Status:     domain.BuildCancelled,
		StartedAt:  start,
		FinishedAt: start,
	}
	if err := s.Save(ctx, cancelled); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _, err := s.FindByID(ctx, "b2")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	m := got.Metadata.Map()
	if m["exceptions"] != "true" || m["checkTitle"] != "FileNotFound" || got.Status != domain.BuildCancelled {
		t.Errorf("unexpected result: %+v", got)
	}
	if len(got.TestCaseResults) != 0 {
		t.Errorf("want no test case results, got %+v", got.TestCaseResults)
	}
}

func TestSave_ReplacesSameID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	r := sampleResult("b1", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	if err := s.Save(ctx, r); err != nil {
		t.Fatalf("save: %v", err)
	}
	r.Status = domain.BuildSuccess
	r.TestCaseResults = r.TestCaseResults[1:]
	if err := s.Save(ctx, r); err != nil {
		t.Fatalf("second save: %v", err)
	}

	all, err := s.FindAll(ctx)
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(all) != 1 || all[0].Status != domain.BuildSuccess || len(all[0].TestCaseResults) != 1 {
		t.Errorf("unexpected results after replace: %+v", all)
	}
}

func TestFindAll_MostRecentFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"old", "newest", "middle"} {
		offsets := []time.Duration{0, 2 * time.Second, 500 * time.Millisecond}
		if err := s.Save(ctx, sampleResult(id, base.Add(offsets[i]))); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	all, err := s.FindAll(ctx)
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	var ids []string
	for _, r := range all {
		ids = append(ids, r.ID)
		if len(r.TestCaseResults) != 2 || r.TestCaseResults[0].Name != "second" {
			t.Errorf("%s: test case order not preserved: %+v", r.ID, r.TestCaseResults)
		}
	}
	if want := []string{"newest", "middle", "old"}; !reflect.DeepEqual(ids, want) {
		t.Errorf("want %v, got %v", want, ids)
	}
}

func TestFindAll_Empty(t *testing.T) {
	s := openTestStore(t)
	all, err := s.FindAll(context.Background())
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("want no results, got %d", len(all))
	}
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "builds.db")
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.Save(context.Background(), sampleResult("b1", time.Now().UTC())); err != nil {
		t.Fatalf("save: %v", err)
	}
	s.Close()

	s, err = store.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if _, ok, err := s.FindByID(context.Background(), "b1"); err != nil || !ok {
		t.Errorf("want b1 after reopen, ok=%v err=%v", ok, err)
	}
}
