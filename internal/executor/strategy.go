package executor

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/waabox/ontoloci/internal/domain"
	"github.com/waabox/ontoloci/internal/validation"
)

// Strategy runs the test cases of one build. Results come back in the order
// of cases. A returned error is an infrastructure failure and discards every
// result.
type Strategy interface {
	Run(ctx context.Context, v domain.Validator, cases []domain.TestCase) ([]domain.TestCaseResult, error)
}

// Sequential runs test cases one after the other.
type Sequential struct{}

// Run implements Strategy.
func (Sequential) Run(ctx context.Context, v domain.Validator, cases []domain.TestCase) ([]domain.TestCaseResult, error) {
	results := make([]domain.TestCaseResult, 0, len(cases))
	for _, tc := range cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := runCase(ctx, v, tc)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// Concurrent runs up to Workers test cases at a time. The first
// infrastructure failure cancels the cases still in flight.
type Concurrent struct {
	Workers int
}

// Run implements Strategy.
func (c Concurrent) Run(ctx context.Context, v domain.Validator, cases []domain.TestCase) ([]domain.TestCaseResult, error) {
	results := make([]domain.TestCaseResult, len(cases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.Workers, 1))
	for i, tc := range cases {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := runCase(gctx, v, tc)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// StrategyFor picks Sequential for a single worker and Concurrent otherwise.
func StrategyFor(workers int) Strategy {
	if workers <= 1 {
		return Sequential{}
	}
	return Concurrent{Workers: workers}
}

func runCase(ctx context.Context, v domain.Validator, tc domain.TestCase) (result domain.TestCaseResult, err error) {
	// Worker goroutines are out of reach of the executor's recover.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("validating %q: panic: %v", tc.Name, r)
		}
	}()
	start := time.Now()
	cmp, err := validation.Expect(ctx, v, tc)
	if err != nil {
		return domain.TestCaseResult{}, err
	}
	status := domain.TestCaseFailure
	if cmp.Match {
		status = domain.TestCaseSuccess
	}
	return domain.TestCaseResult{
		Name:     tc.Name,
		Status:   status,
		Computed: cmp.Computed.String(),
		Expected: cmp.Expected.String(),
		Duration: time.Since(start),
	}, nil
}
