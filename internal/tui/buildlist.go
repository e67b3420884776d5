package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/waabox/ontoloci/internal/domain"
)

// BuildListModel is an immutable model for the build results panel.
type BuildListModel struct {
	builds []domain.BuildResult
	cursor int
}

// NewBuildListModel creates a build list model with the given results.
func NewBuildListModel(builds []domain.BuildResult) BuildListModel {
	return BuildListModel{builds: builds, cursor: 0}
}

// MoveDown returns a new model with the cursor moved down by one.
func (m BuildListModel) MoveDown() BuildListModel {
	if m.cursor < len(m.builds)-1 {
		m.cursor++
	}
	return m
}

// MoveUp returns a new model with the cursor moved up by one.
func (m BuildListModel) MoveUp() BuildListModel {
	if m.cursor > 0 {
		m.cursor--
	}
	return m
}

// SelectedIndex returns the current cursor position.
func (m BuildListModel) SelectedIndex() int {
	return m.cursor
}

// Builds returns the full list.
func (m BuildListModel) Builds() []domain.BuildResult {
	return m.builds
}

// SelectedBuild returns the highlighted build, or the zero value if the list is empty.
func (m BuildListModel) SelectedBuild() domain.BuildResult {
	if len(m.builds) == 0 {
		return domain.BuildResult{}
	}
	return m.builds[m.cursor]
}

// UpdateBuilds replaces the list and keeps the cursor on the same build id
// when it is still present.
func (m BuildListModel) UpdateBuilds(builds []domain.BuildResult) BuildListModel {
	selected := m.SelectedBuild().ID
	m.builds = builds
	m.cursor = 0
	for i, b := range builds {
		if b.ID == selected {
			m.cursor = i
			break
		}
	}
	return m
}

// View renders the build list as a string.
func (m BuildListModel) View() string {
	if len(m.builds) == 0 {
		return "No builds found."
	}
	var sb strings.Builder
	for i, b := range m.builds {
		prefix := "  "
		if i == m.cursor {
			prefix = "> "
		}
		outcome := fmt.Sprintf("%d/%d", b.Passed(), len(b.TestCaseResults))
		if b.Status == domain.BuildCancelled {
			outcome = string(b.Metadata.CheckTitle)
		}
		sb.WriteString(fmt.Sprintf("%s%s %s %-30s %-16s %s\n",
			prefix,
			buildIcon(b.Status),
			shortSHA(b.Metadata.Commit),
			truncate(b.Metadata.Owner+"/"+b.Metadata.Repo, 30),
			outcome,
			formatAge(b.StartedAt),
		))
	}
	return sb.String()
}

func buildIcon(s domain.BuildStatus) string {
	switch s {
	case domain.BuildSuccess:
		return "✓"
	case domain.BuildFailure:
		return "✗"
	case domain.BuildCancelled:
		return "○"
	default:
		return "?"
	}
}

func caseIcon(s domain.TestCaseStatus) string {
	if s == domain.TestCaseSuccess {
		return "✓"
	}
	return "✗"
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "--"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "--"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
