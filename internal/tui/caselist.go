package tui

import (
	"fmt"
	"strings"

	"github.com/waabox/ontoloci/internal/domain"
)

// CaseListModel is an immutable model for the test cases of one build.
type CaseListModel struct {
	cases  []domain.TestCaseResult
	cursor int
}

// NewCaseListModel creates a test case list model.
func NewCaseListModel(cases []domain.TestCaseResult) CaseListModel {
	return CaseListModel{cases: cases, cursor: 0}
}

// MoveDown returns a new model with the cursor moved down by one.
func (m CaseListModel) MoveDown() CaseListModel {
	if m.cursor < len(m.cases)-1 {
		m.cursor++
	}
	return m
}

// MoveUp returns a new model with the cursor moved up by one.
func (m CaseListModel) MoveUp() CaseListModel {
	if m.cursor > 0 {
		m.cursor--
	}
	return m
}

// Cursor returns the current cursor position.
func (m CaseListModel) Cursor() int {
	return m.cursor
}

// Cases returns the full list.
func (m CaseListModel) Cases() []domain.TestCaseResult {
	return m.cases
}

// View renders the test cases with the cursor indicator.
func (m CaseListModel) View() string {
	if len(m.cases) == 0 {
		return "No test cases ran for this build."
	}
	var sb strings.Builder
	for i, c := range m.cases {
		prefix := "  "
		if i == m.cursor {
			prefix = "> "
		}
		sb.WriteString(fmt.Sprintf("%s%s %-30s %s\n",
			prefix,
			caseIcon(c.Status),
			truncate(c.Name, 30),
			formatDuration(c.Duration),
		))
	}
	return sb.String()
}
