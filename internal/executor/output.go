package executor

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/waabox/ontoloci/internal/domain"
)

// Aggregate derives the build status from its test case results.
// An infrastructure failure wins over everything, then any failed case.
func Aggregate(results []domain.TestCaseResult, infrastructureFailure bool) domain.BuildStatus {
	if infrastructureFailure {
		return domain.BuildCancelled
	}
	for _, r := range results {
		if r.Status == domain.TestCaseFailure {
			return domain.BuildFailure
		}
	}
	return domain.BuildSuccess
}

// Output renders the check run summary for a terminal result. cause is the
// infrastructure failure of a cancelled build and may be nil.
func Output(result domain.BuildResult, cause error) domain.CheckOutput {
	total := len(result.TestCaseResults)
	failed := total - result.Passed()

	var out domain.CheckOutput
	switch result.Status {
	case domain.BuildSuccess:
		out.Title = fmt.Sprintf("%d of %d test cases passed", total, total)
	case domain.BuildFailure:
		out.Title = fmt.Sprintf("%d of %d test cases failed", failed, total)
	default:
		out.Title = "Build cancelled: " + string(result.Metadata.CheckTitle)
	}

	var sb strings.Builder
	if result.Status == domain.BuildCancelled {
		if cause != nil {
			fmt.Fprintf(&sb, "The build stopped before running its test cases.\n\n```\n%v\n```\n", cause)
		} else {
			sb.WriteString("The build stopped before running its test cases.\n")
		}
	} else {
		sb.WriteString("| Test case | Status | Duration |\n|---|---|---|\n")
		for _, r := range result.TestCaseResults {
			fmt.Fprintf(&sb, "| %s | %s | %s |\n", r.Name, r.Status, r.Duration.Round(1e6))
		}
	}
	out.Summary = sb.String()

	if raw, err := json.MarshalIndent(result, "", "  "); err == nil {
		out.Text = "```json\n" + string(raw) + "\n```"
	}
	return out
}
