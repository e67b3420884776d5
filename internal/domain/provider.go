package domain

import "context"

// CheckOutput is the human-readable summary attached to a completed check run.
type CheckOutput struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Text    string `json:"text,omitempty"`
}

// RepositoryProvider is the port interface a forge adapter must implement.
// The executor does not know about GitHub or any specific forge.
type RepositoryProvider interface {
	ListTestCases(ctx context.Context, repo Repository, commit string) ([]TestCase, error)
	CreateCheck(ctx context.Context, repo Repository, commit string) (string, error)
	UpdateCheck(ctx context.Context, repo Repository, checkRunID string, status BuildStatus, output CheckOutput) error
}

// Validator computes the result shape map for a test case.
// Implementations must be safe for concurrent use.
type Validator interface {
	Validate(ctx context.Context, tc TestCase) (ShapeMap, error)
}

// BuildExecutor runs one build to a terminal result.
type BuildExecutor interface {
	ExecuteBuild(ctx context.Context, build Build) BuildResult
}

// BuildResultStore persists terminal build results.
type BuildResultStore interface {
	Save(ctx context.Context, result BuildResult) error
	FindAll(ctx context.Context) ([]BuildResult, error)
	FindByID(ctx context.Context, id string) (BuildResult, bool, error)
}
