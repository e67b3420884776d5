package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/waabox/ontoloci/internal/domain"
	"github.com/waabox/ontoloci/internal/retry"
)

var fast = retry.Policy{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

func TestDo_RetriesTemporaryErrors(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fast, func(context.Context) error {
		calls++
		if calls < 3 {
			return &domain.NetworkError{Op: "GET", StatusCode: 502, Temporary: true}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	err := retry.Do(context.Background(), fast, func(context.Context) error {
		calls++
		return domain.NewError(domain.ErrFileNotFound, "a.ttl", nil)
	})
	if !errors.Is(err, domain.ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDo_GivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	retried := 0
	p := fast
	p.OnRetry = func(error, time.Duration) { retried++ }
	err := retry.Do(context.Background(), p, func(context.Context) error {
		calls++
		return &domain.NetworkError{Op: "GET", StatusCode: 503, Temporary: true}
	})
	if !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if calls != 4 {
		t.Errorf("expected 1 call plus 3 retries, got %d", calls)
	}
	if retried != 3 {
		t.Errorf("expected 3 retry notifications, got %d", retried)
	}
}

func TestDo_NonePolicyCallsOnce(t *testing.T) {
	calls := 0
	_ = retry.Do(context.Background(), retry.None, func(context.Context) error {
		calls++
		return &domain.NetworkError{Op: "GET", StatusCode: 503, Temporary: true}
	})
	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
}
