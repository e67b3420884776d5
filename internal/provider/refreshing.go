// internal/provider/refreshing.go
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/waabox/ontoloci/internal/domain"
)

// AuthExpiredError is returned when a freshly exchanged installation token is
// still rejected by the forge.
type AuthExpiredError struct {
	Provider string
	Owner    string
}

func (e *AuthExpiredError) Error() string {
	return fmt.Sprintf("%s installation token for %s rejected after refresh", e.Provider, e.Owner)
}

// Unwrap classifies the error as an authentication failure.
func (e *AuthExpiredError) Unwrap() error {
	return domain.ErrAuthentication
}

// RefreshingProvider wraps a RepositoryProvider and transparently handles 401
// errors on check-run calls by invalidating the cached installation token and
// retrying once. If the retry is rejected too, it returns AuthExpiredError.
type RefreshingProvider struct {
	inner      domain.RepositoryProvider
	provider   string
	invalidate func(owner string)
}

// Ensure RefreshingProvider implements RepositoryProvider.
var _ domain.RepositoryProvider = (*RefreshingProvider)(nil)

// NewRefreshingProvider creates a RefreshingProvider.
// invalidate is called on 401 to drop the cached token for the repository owner.
func NewRefreshingProvider(inner domain.RepositoryProvider, providerName string, invalidate func(owner string)) *RefreshingProvider {
	return &RefreshingProvider{
		inner:      inner,
		provider:   providerName,
		invalidate: invalidate,
	}
}

// Unwrap returns the decorated provider.
func (rp *RefreshingProvider) Unwrap() domain.RepositoryProvider {
	return rp.inner
}

func (rp *RefreshingProvider) handleUnauthorized(owner string, retry func() error) error {
	rp.invalidate(owner)
	err := retry()
	if err != nil && errors.Is(err, domain.ErrUnauthorized) {
		return &AuthExpiredError{Provider: rp.provider, Owner: owner}
	}
	return err
}

func (rp *RefreshingProvider) ListTestCases(ctx context.Context, repo domain.Repository, commit string) ([]domain.TestCase, error) {
	return rp.inner.ListTestCases(ctx, repo, commit)
}

func (rp *RefreshingProvider) CreateCheck(ctx context.Context, repo domain.Repository, commit string) (string, error) {
	result, err := rp.inner.CreateCheck(ctx, repo, commit)
	if err != nil && errors.Is(err, domain.ErrUnauthorized) {
		var retryResult string
		retryErr := rp.handleUnauthorized(repo.Owner, func() error {
			var e error
			retryResult, e = rp.inner.CreateCheck(ctx, repo, commit)
			return e
		})
		if retryErr != nil {
			return "", retryErr
		}
		return retryResult, nil
	}
	return result, err
}

func (rp *RefreshingProvider) UpdateCheck(ctx context.Context, repo domain.Repository, checkRunID string, status domain.BuildStatus, output domain.CheckOutput) error {
	err := rp.inner.UpdateCheck(ctx, repo, checkRunID, status, output)
	if err != nil && errors.Is(err, domain.ErrUnauthorized) {
		return rp.handleUnauthorized(repo.Owner, func() error {
			return rp.inner.UpdateCheck(ctx, repo, checkRunID, status, output)
		})
	}
	return err
}
