package domain

import "time"

// TestCase holds the materialized content of one manifest entry.
type TestCase struct {
	Name             string
	Ontology         string
	Instances        string
	Schema           string
	ProducedShapeMap string
	ExpectedShapeMap string
}

// TestCaseStatus is the outcome of a single test case.
type TestCaseStatus string

const (
	TestCaseSuccess TestCaseStatus = "SUCCESS"
	TestCaseFailure TestCaseStatus = "FAILURE"
)

// TestCaseResult is created exactly once per executed TestCase.
// Computed and Expected carry the rendered shape maps for diagnostics.
type TestCaseResult struct {
	Name     string         `json:"name"`
	Status   TestCaseStatus `json:"status"`
	Computed string         `json:"computedShapeMap,omitempty"`
	Expected string         `json:"expectedShapeMap,omitempty"`
	Duration time.Duration  `json:"durationNanos"`
}
