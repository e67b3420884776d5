// internal/provider/refreshing_test.go
package provider_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/waabox/ontoloci/internal/domain"
	"github.com/waabox/ontoloci/internal/provider"
)

var repo = domain.Repository{Owner: "weso", Name: "ontolo-ci-test"}

func unauthorized() error {
	return fmt.Errorf("github API error: 401 Unauthorized: %w", domain.ErrUnauthorized)
}

func TestRefreshingProvider_PassesThroughOnSuccess(t *testing.T) {
	inner := &fakeProvider{}
	invalidated := 0
	rp := provider.NewRefreshingProvider(inner, "github", func(string) { invalidated++ })

	id, err := rp.CreateCheck(context.Background(), repo, "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "check-1" {
		t.Errorf("expected 'check-1', got '%s'", id)
	}
	if invalidated != 0 {
		t.Errorf("expected no invalidation, got %d", invalidated)
	}
}

func TestRefreshingProvider_PassesThroughNon401Errors(t *testing.T) {
	inner := &fakeProvider{createErrs: []error{fmt.Errorf("network timeout")}}
	rp := provider.NewRefreshingProvider(inner, "github", func(string) {})

	_, err := rp.CreateCheck(context.Background(), repo, "abc")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if err.Error() != "network timeout" {
		t.Errorf("expected 'network timeout', got: %v", err)
	}
	if inner.createCalls != 1 {
		t.Errorf("expected no retry, got %d calls", inner.createCalls)
	}
}

func TestRefreshingProvider_InvalidatesAndRetriesOn401(t *testing.T) {
	inner := &fakeProvider{createErrs: []error{unauthorized()}}
	invalidatedOwner := ""
	rp := provider.NewRefreshingProvider(inner, "github", func(owner string) { invalidatedOwner = owner })

	id, err := rp.CreateCheck(context.Background(), repo, "abc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if invalidatedOwner != "weso" {
		t.Errorf("expected token for 'weso' to be invalidated, got '%s'", invalidatedOwner)
	}
	if id != "check-1" || inner.createCalls != 2 {
		t.Errorf("expected retried create, got id=%s calls=%d", id, inner.createCalls)
	}
}

func TestRefreshingProvider_ReturnsAuthExpiredWhenRetryRejected(t *testing.T) {
	inner := &fakeProvider{updateErrs: []error{unauthorized(), unauthorized()}}
	rp := provider.NewRefreshingProvider(inner, "github", func(string) {})

	err := rp.UpdateCheck(context.Background(), repo, "1", domain.BuildSuccess, domain.CheckOutput{})
	var authErr *provider.AuthExpiredError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthExpiredError, got: %T %v", err, err)
	}
	if authErr.Provider != "github" {
		t.Errorf("expected provider 'github', got '%s'", authErr.Provider)
	}
	if !errors.Is(err, domain.ErrAuthentication) {
		t.Error("expected AuthExpiredError to classify as ErrAuthentication")
	}
}

func TestRefreshingProvider_UpdateCheck_RetriesOn401(t *testing.T) {
	inner := &fakeProvider{updateErrs: []error{unauthorized()}}
	rp := provider.NewRefreshingProvider(inner, "github", func(string) {})

	if err := rp.UpdateCheck(context.Background(), repo, "1", domain.BuildFailure, domain.CheckOutput{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.updateCalls != 2 {
		t.Errorf("expected 2 update calls, got %d", inner.updateCalls)
	}
}

func TestRefreshingProvider_ListTestCasesPassesThrough(t *testing.T) {
	rp := provider.NewRefreshingProvider(&fakeProvider{name: "tc"}, "github", func(string) {})
	cases, err := rp.ListTestCases(context.Background(), repo, "abc")
	if err != nil || len(cases) != 1 || cases[0].Name != "tc" {
		t.Fatalf("unexpected result: %v %v", cases, err)
	}
}

func TestRefreshingProvider_Unwrap(t *testing.T) {
	inner := &fakeProvider{}
	rp := provider.NewRefreshingProvider(inner, "github", func(string) {})
	if rp.Unwrap() != inner {
		t.Error("expected Unwrap to return the decorated provider")
	}
}
