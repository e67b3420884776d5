package provider_test

import (
	"context"

	"github.com/waabox/ontoloci/internal/domain"
)

// fakeProvider is a scriptable RepositoryProvider for the wrapper and registry tests.
type fakeProvider struct {
	name        string
	createErrs  []error
	updateErrs  []error
	createCalls int
	updateCalls int
}

func (f *fakeProvider) ListTestCases(_ context.Context, _ domain.Repository, _ string) ([]domain.TestCase, error) {
	return []domain.TestCase{{Name: f.name}}, nil
}

func (f *fakeProvider) CreateCheck(_ context.Context, _ domain.Repository, _ string) (string, error) {
	f.createCalls++
	if f.createCalls <= len(f.createErrs) && f.createErrs[f.createCalls-1] != nil {
		return "", f.createErrs[f.createCalls-1]
	}
	return "check-1", nil
}

func (f *fakeProvider) UpdateCheck(_ context.Context, _ domain.Repository, _ string, _ domain.BuildStatus, _ domain.CheckOutput) error {
	f.updateCalls++
	if f.updateCalls <= len(f.updateErrs) {
		return f.updateErrs[f.updateCalls-1]
	}
	return nil
}
