package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/plagscan/internal/models"
)

// Theme holds the color scheme for progress and report output.
type Theme struct {
	Status     lipgloss.Color
	Success    lipgloss.Color
	Error      lipgloss.Color
	Warning    lipgloss.Color
	Hint       lipgloss.Color
	ProgressBg lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:     lipgloss.Color("#5FAFD7"), // light blue
	Success:    lipgloss.Color("#00D787"), // green
	Error:      lipgloss.Color("#FF005F"), // red
	Warning:    lipgloss.Color("#FFAF00"), // orange
	Hint:       lipgloss.Color("#6C6C6C"), // dim gray
	ProgressBg: lipgloss.Color("#3A3A3A"), // dark gray
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

// pairStyle colors a similarity status by severity.
func (t Theme) pairStyle(s models.Status) lipgloss.Style {
	switch s {
	case models.StatusIdentical:
		return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
	case models.StatusFlagged:
		return lipgloss.NewStyle().Foreground(t.Warning)
	default:
		return lipgloss.NewStyle().Foreground(t.Status)
	}
}

// pairProgressMsg reports scored pairs.
type pairProgressMsg struct {
	done, total int
}

// batchDoneMsg carries the finished batch.
type batchDoneMsg struct {
	report *models.BatchReport
	err    error
}

// progressModel is the bubbletea model for a running batch.
type progressModel struct {
	progress progress.Model
	theme    Theme
	done     int
	total    int
	report   *models.BatchReport
	finished bool
	quitting bool
	err      error
}

// newProgressModel creates a new progress model.
func newProgressModel() progressModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return progressModel{
		progress: prog,
		theme:    defaultTheme,
	}
}

// Init returns the initial command.
func (m progressModel) Init() tea.Cmd {
	return m.progress.Init()
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case pairProgressMsg:
		m.done, m.total = msg.done, msg.total
		return m, nil

	case batchDoneMsg:
		m.finished = true
		m.report, m.err = msg.report, msg.err
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.quitting {
		return m.theme.hintStyle().Render("Canceled.") + "\n"
	}
	if m.finished {
		return m.finalView()
	}
	if m.total == 0 {
		return m.theme.statusStyle().Render("[extracting]") + " reading submissions...\n"
	}

	pct := float64(m.done) / float64(m.total)
	status := m.theme.statusStyle().Render("[comparing]")
	counts := fmt.Sprintf("%d/%d pairs", m.done, m.total)
	hint := m.theme.hintStyle().Render("Press Ctrl+C to cancel")

	return fmt.Sprintf("%s %s %s\n%s\n", status, m.progress.ViewAs(pct), counts, hint)
}

func (m progressModel) finalView() string {
	if m.err != nil {
		return m.theme.errorStyle().Render(fmt.Sprintf("✗ Check failed: %s", m.err)) + "\n"
	}
	if m.report == nil {
		return ""
	}
	return m.theme.completedStyle().Render("✓ Completed") +
		fmt.Sprintf(" %d submissions, %d pairs reported\n", m.report.TotalSubmissions, len(m.report.Pairs))
}

// errCanceled is returned when the user leaves the progress UI.
var errCanceled = errors.New("canceled")

// batchRunner runs a batch, reporting progress through the callback.
type batchRunner func(ctx context.Context, progress func(done, total int)) (*models.BatchReport, error)

// runWithProgress runs the batch in the background while rendering a
// progress bar to stderr. Ctrl+C cancels the batch.
func runWithProgress(ctx context.Context, run batchRunner) (*models.BatchReport, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel(), tea.WithOutput(os.Stderr), tea.WithContext(ctx))

	type outcome struct {
		report *models.BatchReport
		err    error
	}
	results := make(chan outcome, 1)
	go func() {
		rep, err := run(ctx, func(done, total int) {
			p.Send(pairProgressMsg{done: done, total: total})
		})
		results <- outcome{rep, err}
		p.Send(batchDoneMsg{report: rep, err: err})
	}()

	finalModel, uiErr := p.Run()

	if m, ok := finalModel.(progressModel); ok && m.quitting {
		cancel()
		<-results
		return nil, errCanceled
	}

	// The UI may stop early on context cancellation; the batch result wins.
	res := <-results
	if res.err != nil {
		return nil, res.err
	}
	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		logger.Warn("progress UI error", "error", uiErr)
	}
	return res.report, nil
}
