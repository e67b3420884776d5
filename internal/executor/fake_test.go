package executor_test

import (
	"context"
	"sync"

	"github.com/waabox/ontoloci/internal/domain"
)

type checkUpdate struct {
	id     string
	status domain.BuildStatus
	output domain.CheckOutput
}

// fakeProvider serves a fixed list of test cases and records check run calls.
type fakeProvider struct {
	mu        sync.Mutex
	cases     []domain.TestCase
	listErr   error
	createErr error
	panicMsg  string
	creates   int
	updates   []checkUpdate
}

func (f *fakeProvider) ListTestCases(_ context.Context, _ domain.Repository, _ string) ([]domain.TestCase, error) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.cases, nil
}

func (f *fakeProvider) CreateCheck(_ context.Context, _ domain.Repository, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return "", f.createErr
	}
	return "42", nil
}

func (f *fakeProvider) UpdateCheck(_ context.Context, _ domain.Repository, id string, status domain.BuildStatus, output domain.CheckOutput) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, checkUpdate{id: id, status: status, output: output})
	return nil
}

// stagedProvider exposes resolution and materialization separately.
type stagedProvider struct {
	fakeProvider
	resolved     bool
	materialized bool
}

func (s *stagedProvider) Resolve(_ context.Context, _ domain.Repository, _ string) (domain.RepositoryConfiguration, domain.Manifest, error) {
	s.resolved = true
	entries := make([]domain.ManifestEntry, len(s.cases))
	for i, tc := range s.cases {
		entries[i] = domain.ManifestEntry{Name: tc.Name}
	}
	return domain.RepositoryConfiguration{ManifestPath: "manifest.json"}, domain.Manifest{Entries: entries}, nil
}

func (s *stagedProvider) Materialize(_ context.Context, _ domain.Repository, _ string, _ domain.RepositoryConfiguration, m domain.Manifest) ([]domain.TestCase, error) {
	s.materialized = true
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.cases[:len(m.Entries)], nil
}

type memoryStore struct {
	mu      sync.Mutex
	results []domain.BuildResult
}

func (m *memoryStore) Save(_ context.Context, r domain.BuildResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
	return nil
}

func (m *memoryStore) FindAll(context.Context) ([]domain.BuildResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.BuildResult(nil), m.results...), nil
}

func (m *memoryStore) FindByID(_ context.Context, id string) (domain.BuildResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.results {
		if r.ID == id {
			return r, true, nil
		}
	}
	return domain.BuildResult{}, false, nil
}
