package validation

import (
	"context"

	"github.com/waabox/ontoloci/internal/domain"
)

// Comparison carries both shape maps of a validated test case.
type Comparison struct {
	Computed domain.ShapeMap
	Expected domain.ShapeMap
	Match    bool
}

// Func adapts a function to domain.Validator.
type Func func(ctx context.Context, tc domain.TestCase) (domain.ShapeMap, error)

// Validate implements domain.Validator.
func (f Func) Validate(ctx context.Context, tc domain.TestCase) (domain.ShapeMap, error) {
	return f(ctx, tc)
}

// Expect validates tc and compares the computed shape map with the expected one.
// A mismatch is not an error; an unreadable expected map or a validator
// failure is.
func Expect(ctx context.Context, v domain.Validator, tc domain.TestCase) (Comparison, error) {
	expected, err := ParseShapeMap(tc.ExpectedShapeMap)
	if err != nil {
		return Comparison{}, domain.NewError(domain.ErrManifestParse, "expected shape map of "+tc.Name, err)
	}
	computed, err := v.Validate(ctx, tc)
	if err != nil {
		return Comparison{}, err
	}
	return Comparison{
		Computed: computed,
		Expected: expected,
		Match:    computed.Equal(expected),
	}, nil
}
