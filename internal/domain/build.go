package domain

import (
	"strconv"
	"time"
)

// BuildStatus is the aggregated outcome of a build.
type BuildStatus string

const (
	BuildSuccess   BuildStatus = "SUCCESS"
	BuildFailure   BuildStatus = "FAILURE"
	BuildCancelled BuildStatus = "CANCELLED"
)

// Conclusion returns the check-run conclusion for the status.
func (s BuildStatus) Conclusion() string {
	switch s {
	case BuildSuccess:
		return "success"
	case BuildFailure:
		return "failure"
	default:
		return "cancelled"
	}
}

// Metadata is the typed replacement for the legacy string-keyed build map.
// Extra carries forward-compatible keys that have no named field.
type Metadata struct {
	Owner      string            `json:"owner"`
	Repo       string            `json:"repo"`
	Commit     string            `json:"commit"`
	CheckRunID string            `json:"checkRunId,omitempty"`
	Exceptions bool              `json:"exceptions"`
	CheckTitle CheckTitle        `json:"checkTitle,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Repository returns the repository the metadata refers to.
func (m Metadata) Repository() Repository {
	return Repository{Owner: m.Owner, Name: m.Repo}
}

// Clone returns a deep copy so results never share the Extra map with
// the build they came from.
func (m Metadata) Clone() Metadata {
	if m.Extra != nil {
		extra := make(map[string]string, len(m.Extra))
		for k, v := range m.Extra {
			extra[k] = v
		}
		m.Extra = extra
	}
	return m
}

// Map renders the legacy string-keyed view of the metadata.
func (m Metadata) Map() map[string]string {
	out := make(map[string]string, len(m.Extra)+6)
	for k, v := range m.Extra {
		out[k] = v
	}
	out["owner"] = m.Owner
	out["repo"] = m.Repo
	out["commit"] = m.Commit
	if m.CheckRunID != "" {
		out["checkRunId"] = m.CheckRunID
	}
	out["exceptions"] = strconv.FormatBool(m.Exceptions)
	if m.CheckTitle != "" {
		out["checkTitle"] = string(m.CheckTitle)
	}
	return out
}

// Build is one orchestration run for a commit.
// TestCases is filled by the executor during materialization.
type Build struct {
	ID        string
	Metadata  Metadata
	TestCases []TestCase
}

// BuildResult is the terminal, never mutated outcome of a build.
type BuildResult struct {
	ID              string           `json:"id"`
	Metadata        Metadata         `json:"metadata"`
	Status          BuildStatus      `json:"status"`
	TestCaseResults []TestCaseResult `json:"testCaseResults"`
	StartedAt       time.Time        `json:"startedAt"`
	FinishedAt      time.Time        `json:"finishedAt"`
}

// Passed returns the number of successful test cases.
func (r BuildResult) Passed() int {
	n := 0
	for _, tc := range r.TestCaseResults {
		if tc.Status == TestCaseSuccess {
			n++
		}
	}
	return n
}

// Duration returns the wall-clock time of the build.
func (r BuildResult) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// InstallationCredential is a scoped installation token for one owner.
type InstallationCredential struct {
	InstallationID int64
	Token          string
	ExpiresAt      time.Time
}

// Valid reports whether the credential can still be used at now, keeping
// skew as a safety margin before expiry.
func (c InstallationCredential) Valid(now time.Time, skew time.Duration) bool {
	if c.Token == "" {
		return false
	}
	return now.Add(skew).Before(c.ExpiresAt)
}
