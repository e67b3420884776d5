// Package tui is the terminal browser over persisted build results.
package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/waabox/ontoloci/internal/domain"
)

// BuildsLoadedMsg is sent when build results have been read from the store.
// It is exported so that tests can inject it directly into AppModel.Update.
type BuildsLoadedMsg struct {
	Builds []domain.BuildResult
	Err    error
}

// BuildRerunMsg is sent when a re-run triggered from the browser finishes.
type BuildRerunMsg struct {
	Result domain.BuildResult
}

// ShapeMapsLoadedMsg opens the shape map viewer for a test case.
type ShapeMapsLoadedMsg struct {
	CaseName string
	Content  string
}

// tickMsg is sent by the auto-refresh ticker.
type tickMsg struct{}

// RerunFunc executes a build again. Executor.ExecuteBuild satisfies it.
type RerunFunc func(ctx context.Context, build domain.Build) domain.BuildResult

// viewState indicates the current navigation level.
type viewState int

const (
	viewBuilds viewState = iota
	viewCases
	viewAssociations
	viewShapeMaps
)

const separator = "────────────────────────────────────────────────────────────\n"

// AppModel is the root Bubbletea model for the build browser.
type AppModel struct {
	store domain.BuildResultStore
	rerun RerunFunc
	// Navigation
	view viewState
	// Build level
	list          BuildListModel
	selectedBuild domain.BuildResult
	// Test case level
	cases        CaseListModel
	selectedCase domain.TestCaseResult
	// Association level
	associations AssociationListModel
	// General state
	loading      bool
	rerunning    bool
	confirmRerun bool
	err          error
	notice       string
	width        int
	height       int
	// Shape map viewer state
	mapContent    string
	mapCaseName   string
	mapOffset     int
	mapReturnView viewState
}

// NewAppModel creates the root model. rerun may be nil, which disables re-runs.
func NewAppModel(store domain.BuildResultStore, rerun RerunFunc) AppModel {
	return AppModel{
		store:   store,
		rerun:   rerun,
		list:    NewBuildListModel(nil),
		cases:   NewCaseListModel(nil),
		loading: true,
	}
}

// Init triggers the initial load.
func (m AppModel) Init() tea.Cmd {
	return tea.Batch(m.loadBuilds(), tickEvery(5*time.Second))
}

func (m AppModel) loadBuilds() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		builds, err := m.store.FindAll(ctx)
		return BuildsLoadedMsg{Builds: builds, Err: err}
	}
}

func (m AppModel) rerunBuild(b domain.BuildResult) tea.Cmd {
	return func() tea.Msg {
		meta := b.Metadata.Clone()
		meta.CheckRunID = ""
		meta.Exceptions = false
		meta.CheckTitle = ""
		return BuildRerunMsg{Result: m.rerun(context.Background(), domain.Build{Metadata: meta})}
	}
}

func openShapeMaps(c domain.TestCaseResult) tea.Cmd {
	return func() tea.Msg {
		content := "Computed:\n" + orNone(c.Computed) + "\n\nExpected:\n" + orNone(c.Expected)
		return ShapeMapsLoadedMsg{CaseName: c.Name, Content: content}
	}
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}

func tickEvery(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(_ time.Time) tea.Msg {
		return tickMsg{}
	})
}

// Update handles all incoming messages and key events.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case BuildsLoadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.err = nil
		m.list = m.list.UpdateBuilds(msg.Builds)
		m.selectedBuild = m.list.SelectedBuild()

	case BuildRerunMsg:
		m.rerunning = false
		m.notice = fmt.Sprintf("Build %s finished: %s", shortSHA(msg.Result.Metadata.Commit), msg.Result.Status)
		return m, m.loadBuilds()

	case ShapeMapsLoadedMsg:
		m.mapReturnView = m.view
		m.view = viewShapeMaps
		m.mapContent = msg.Content
		m.mapCaseName = msg.CaseName
		m.mapOffset = 0
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.loadBuilds(), tickEvery(5*time.Second))

	case tea.KeyMsg:
		if m.confirmRerun {
			m.confirmRerun = false
			switch msg.String() {
			case "y":
				if m.selectedBuild.ID == "" || m.rerun == nil {
					return m, nil
				}
				m.rerunning = true
				m.notice = ""
				return m, m.rerunBuild(m.selectedBuild)
			case "q", "ctrl+c":
				return m, tea.Quit
			default:
				return m, nil
			}
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "ctrl+r":
			m.loading = true
			return m, m.loadBuilds()
		}
		switch m.view {
		case viewBuilds:
			return m.updateBuilds(msg)
		case viewCases:
			return m.updateCases(msg)
		case viewAssociations:
			return m.updateAssociations(msg)
		case viewShapeMaps:
			return m.updateShapeMaps(msg)
		}
	}
	return m, nil
}

func (m AppModel) updateBuilds(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "down":
		m.list = m.list.MoveDown()
		m.selectedBuild = m.list.SelectedBuild()
	case "up":
		m.list = m.list.MoveUp()
		m.selectedBuild = m.list.SelectedBuild()
	case "enter":
		if len(m.list.Builds()) > 0 {
			m.selectedBuild = m.list.SelectedBuild()
			m.cases = NewCaseListModel(m.selectedBuild.TestCaseResults)
			m.view = viewCases
		}
	case "r":
		if m.rerun != nil && !m.rerunning && m.selectedBuild.ID != "" {
			m.confirmRerun = true
		}
	}
	return m, nil
}

func (m AppModel) updateCases(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	cases := m.cases.Cases()
	switch msg.String() {
	case "down":
		m.cases = m.cases.MoveDown()
	case "up":
		m.cases = m.cases.MoveUp()
	case "enter":
		if len(cases) > 0 {
			m.selectedCase = cases[m.cases.Cursor()]
			m.associations = NewAssociationListModel(DiffShapeMaps(m.selectedCase.Computed, m.selectedCase.Expected))
			m.view = viewAssociations
		}
	case "l":
		if len(cases) > 0 {
			return m, openShapeMaps(cases[m.cases.Cursor()])
		}
	case "esc":
		m.view = viewBuilds
	case "r":
		if m.rerun != nil && !m.rerunning {
			m.confirmRerun = true
		}
	}
	return m, nil
}

func (m AppModel) updateAssociations(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "down":
		m.associations = m.associations.MoveDown()
	case "up":
		m.associations = m.associations.MoveUp()
	case "l":
		return m, openShapeMaps(m.selectedCase)
	case "esc":
		m.view = viewCases
	}
	return m, nil
}

func (m AppModel) updateShapeMaps(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	maxOffset := strings.Count(m.mapContent, "\n")
	switch msg.String() {
	case "down":
		if m.mapOffset < maxOffset {
			m.mapOffset++
		}
	case "up":
		if m.mapOffset > 0 {
			m.mapOffset--
		}
	case "pgup":
		m.mapOffset = max(m.mapOffset-m.visibleLines(), 0)
	case "pgdown":
		m.mapOffset = min(m.mapOffset+m.visibleLines(), maxOffset)
	case "g":
		m.mapOffset = 0
	case "G":
		m.mapOffset = maxOffset
	case "esc":
		m.view = m.mapReturnView
		m.mapContent = ""
		m.mapOffset = 0
	}
	return m, nil
}

// View renders the full TUI.
func (m AppModel) View() string {
	if m.view == viewShapeMaps {
		return m.renderShapeMapView()
	}
	if m.loading && !m.confirmRerun {
		return "Loading builds...\n"
	}
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress 'ctrl+r' to retry or 'q' to quit.\n", m.err)
	}

	b := m.selectedBuild
	header := fmt.Sprintf(" ontoloci | %s/%s @ %s  %s\n",
		b.Metadata.Owner, b.Metadata.Repo, shortSHA(b.Metadata.Commit), b.Status)

	switch m.view {
	case viewCases:
		return m.renderCasesView(header)
	case viewAssociations:
		return m.renderAssociationsView(header)
	default:
		return m.renderBuildsView(header)
	}
}

func (m AppModel) footer(keys string) string {
	switch {
	case m.confirmRerun:
		return fmt.Sprintf(" Rerun build of %s/%s @ %s? [y/N] \n",
			m.selectedBuild.Metadata.Owner, m.selectedBuild.Metadata.Repo, shortSHA(m.selectedBuild.Metadata.Commit))
	case m.rerunning:
		return " Running build...\n"
	case m.notice != "":
		return " " + m.notice + "\n" + keys
	default:
		return keys
	}
}

func (m AppModel) renderBuildsView(header string) string {
	title := " Builds\n"
	b := m.selectedBuild
	statusBar := fmt.Sprintf(" %s  %s\n", b.ID, b.Duration().Round(time.Millisecond))
	if b.Metadata.Exceptions {
		statusBar = fmt.Sprintf(" %s  cancelled: %s\n", b.ID, b.Metadata.CheckTitle)
	}
	keys := " ↑/↓: navigate   enter: open   ctrl+r: refresh   r: rerun   q: quit\n"
	return header + separator + title + m.list.View() + "\n" + separator + statusBar + separator + m.footer(keys)
}

func (m AppModel) renderCasesView(header string) string {
	title := fmt.Sprintf(" Test cases of build %s\n", m.selectedBuild.ID)
	keys := " ↑/↓: navigate   enter: associations   l: shape maps   esc: back   r: rerun   q: quit\n"
	return header + separator + title + m.cases.View() + "\n" + separator + m.footer(keys)
}

func (m AppModel) renderAssociationsView(header string) string {
	title := fmt.Sprintf(" Associations of %s  (= both, + computed only, - expected only)\n", m.selectedCase.Name)
	keys := " ↑/↓: navigate   l: shape maps   esc: back   q: quit\n"
	return header + separator + title + m.associations.View() + "\n" + separator + m.footer(keys)
}

// visibleLines returns the number of viewer lines that fit the terminal.
func (m AppModel) visibleLines() int {
	lines := m.height - 4 // header, separators and footer
	if lines < 10 {
		return 10
	}
	return lines
}

func (m AppModel) renderShapeMapView() string {
	header := fmt.Sprintf(" ontoloci  %s/%s  [shape maps] %s\n",
		m.selectedBuild.Metadata.Owner, m.selectedBuild.Metadata.Repo, m.mapCaseName)
	footer := " ↑/↓: scroll   PgUp/PgDn: page   g/G: top/bottom   esc: back\n"

	lines := strings.Split(m.mapContent, "\n")
	start := min(max(m.mapOffset, 0), len(lines)-1)
	end := min(start+m.visibleLines(), len(lines))

	body := strings.Join(lines[start:end], "\n")
	return header + separator + body + "\n" + separator + footer
}

// Run starts the Bubbletea program.
func Run(store domain.BuildResultStore, rerun RerunFunc) error {
	p := tea.NewProgram(NewAppModel(store, rerun), tea.WithAltScreen(), tea.WithOutput(os.Stdout))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("browser: %w", err)
	}
	return nil
}
