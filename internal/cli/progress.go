package cli

import (
	"context"
	"fmt"
	"log/slog"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"

	"podbase/internal/catalog"
	"podbase/internal/pipeline"
)

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

// Style functions for dynamic theming
func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// runEventMsg wraps one orchestrator progress event.
type runEventMsg pipeline.Event

// runDoneMsg carries the completed run summary.
type runDoneMsg struct {
	summary *pipeline.RunSummary
	err     error
}

// runModel is the bubbletea model for a pipeline run.
type runModel struct {
	total    int
	skipped  int
	finished int
	failed   int
	inFlight int
	progress progress.Model
	theme    Theme
	cancel   context.CancelFunc
	stopping bool
	done     bool
	summary  *pipeline.RunSummary
	err      error
}

// newRunModel creates a progress model for a run over total episodes.
// cancel stops the orchestrator when the user interrupts the run.
func newRunModel(total int, cancel context.CancelFunc) runModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return runModel{
		total:    total,
		progress: prog,
		theme:    defaultTheme,
		cancel:   cancel,
	}
}

// Init returns the initial command.
func (m runModel) Init() tea.Cmd {
	return m.progress.Init()
}

// Update handles messages and returns the updated model.
func (m runModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// Stop dispatching new episodes. In-flight episodes finish
			// and the final summary still arrives.
			if !m.stopping {
				m.stopping = true
				m.cancel()
			}
			return m, nil
		}

	case runEventMsg:
		switch msg.Type {
		case pipeline.EventSkipped:
			m.skipped++
		case pipeline.EventStarted:
			m.inFlight++
		case pipeline.EventFinished:
			m.finished++
			m.inFlight--
		case pipeline.EventFailed:
			m.failed++
			m.inFlight--
		}
		return m, nil

	case runDoneMsg:
		m.done = true
		m.summary = msg.summary
		m.err = msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		// Update progress bar animation
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m runModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m runModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	completed := m.skipped + m.finished + m.failed
	var pct float64
	if m.total > 0 {
		pct = float64(completed) / float64(m.total)
	}

	label := "[processing]"
	if m.stopping {
		label = "[stopping]"
	}
	status := m.theme.statusStyle().Render(label)

	progressBar := m.progress.ViewAs(pct)
	counts := fmt.Sprintf("%d/%d episodes", completed, m.total)
	if m.inFlight > 0 {
		counts += fmt.Sprintf(" (%d in flight)", m.inFlight)
	}

	hint := m.theme.hintStyle().Render("Press Ctrl+C to stop after in-flight episodes")
	if m.stopping {
		hint = m.theme.hintStyle().Render("Stopping, waiting for in-flight episodes...")
	}

	return fmt.Sprintf("%s %s %s\n%s\n", status, progressBar, counts, hint)
}

// finalView renders the completion line. The run summary tables print
// after the program exits, so this stays short.
func (m runModel) finalView() string {
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("✗ Run failed: %s\n", m.err))
	}
	if m.summary == nil {
		return m.theme.completedStyle().Render("✓ Completed\n")
	}
	if m.summary.Fatal != nil || len(m.summary.Failed) > 0 {
		return m.theme.errorStyle().Render(fmt.Sprintf("✗ %d processed, %d failed\n",
			len(m.summary.Succeeded), len(m.summary.Failed)))
	}
	return m.theme.completedStyle().Render(fmt.Sprintf("✓ %d processed, %d skipped\n",
		len(m.summary.Succeeded), len(m.summary.Skipped)))
}

// runWithProgress drives the interactive progress display while the
// orchestrator runs. Ctrl+C cancels the run context; the display stays
// up until in-flight episodes drain and the summary arrives.
func runWithProgress(ctx context.Context, orch *pipeline.Orchestrator, entries []catalog.EpisodeEntry, events <-chan pipeline.Event) (*pipeline.RunSummary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newRunModel(len(entries), cancel))

	type runResult struct {
		summary *pipeline.RunSummary
		err     error
	}
	results := make(chan runResult, 1)
	go func() {
		summary, err := orch.Run(ctx, entries)
		results <- runResult{summary, err}
		p.Send(runDoneMsg{summary: summary, err: err})
	}()
	go func() {
		for ev := range events {
			p.Send(runEventMsg(ev))
		}
	}()

	if _, err := p.Run(); err != nil {
		// The display died; stop the run rather than continue blind.
		cancel()
		slog.Warn("progress display failed", "error", err)
	}
	res := <-results
	return res.summary, res.err
}
