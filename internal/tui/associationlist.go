package tui

import (
	"sort"
	"strings"

	"github.com/waabox/ontoloci/internal/domain"
	"github.com/waabox/ontoloci/internal/validation"
)

// AssociationDiff places one association of either shape map against the other.
type AssociationDiff struct {
	Association domain.Association
	InComputed  bool
	InExpected  bool
}

// Matches reports whether both maps hold the association.
func (d AssociationDiff) Matches() bool {
	return d.InComputed && d.InExpected
}

// DiffShapeMaps compares the rendered computed and expected shape maps of a
// test case result. Unreadable input yields no rows.
func DiffShapeMaps(computed, expected string) []AssociationDiff {
	c, err := validation.ParseShapeMap(computed)
	if err != nil {
		return nil
	}
	e, err := validation.ParseShapeMap(expected)
	if err != nil {
		return nil
	}
	rows := map[string]*AssociationDiff{}
	for _, a := range c {
		rows[a.String()] = &AssociationDiff{Association: a, InComputed: true}
	}
	for _, a := range e {
		if d, ok := rows[a.String()]; ok {
			d.InExpected = true
			continue
		}
		rows[a.String()] = &AssociationDiff{Association: a, InExpected: true}
	}

	out := make([]AssociationDiff, 0, len(rows))
	for _, d := range rows {
		out = append(out, *d)
	}
	// Mismatches first, then by rendered association.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Matches() != out[j].Matches() {
			return !out[i].Matches()
		}
		return out[i].Association.String() < out[j].Association.String()
	})
	return out
}

// AssociationListModel is an immutable model for the association diff panel.
type AssociationListModel struct {
	rows   []AssociationDiff
	cursor int
}

// NewAssociationListModel creates an association list model.
func NewAssociationListModel(rows []AssociationDiff) AssociationListModel {
	return AssociationListModel{rows: rows, cursor: 0}
}

// MoveDown returns a new model with the cursor moved down by one.
func (m AssociationListModel) MoveDown() AssociationListModel {
	if m.cursor < len(m.rows)-1 {
		m.cursor++
	}
	return m
}

// MoveUp returns a new model with the cursor moved up by one.
func (m AssociationListModel) MoveUp() AssociationListModel {
	if m.cursor > 0 {
		m.cursor--
	}
	return m
}

// Cursor returns the current cursor position.
func (m AssociationListModel) Cursor() int {
	return m.cursor
}

// Rows returns the full diff.
func (m AssociationListModel) Rows() []AssociationDiff {
	return m.rows
}

// View renders the diff. "=" marks associations both maps agree on,
// "+" ones only computed and "-" ones only expected.
func (m AssociationListModel) View() string {
	if len(m.rows) == 0 {
		return "No associations found."
	}
	var sb strings.Builder
	for i, r := range m.rows {
		prefix := "  "
		if i == m.cursor {
			prefix = "> "
		}
		marker := "="
		switch {
		case !r.InExpected:
			marker = "+"
		case !r.InComputed:
			marker = "-"
		}
		sb.WriteString(prefix + marker + " " + r.Association.String() + "\n")
	}
	return sb.String()
}
