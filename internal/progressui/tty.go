package progressui

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	stageStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	doneStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
)

// model is the bubbletea model backing ttyReporter. It only ever renders
// what the last Event/Warn/Finish call fed it; there is no input handling
// beyond quitting on ctrl-c.
type model struct {
	spinner  spinner.Model
	bar      progress.Model
	event    Event
	warnings []string
	summary  *Summary
}

type eventMsg Event
type warnMsg string
type finishMsg Summary
type tickMsg time.Time

func newModel() model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	b := progress.New(progress.WithDefaultGradient())
	return model{spinner: s, bar: b}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tickMsg:
		return m, tickCmd()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case eventMsg:
		m.event = Event(msg)
		return m, nil
	case warnMsg:
		m.warnings = append(m.warnings, string(msg))
		return m, nil
	case finishMsg:
		s := Summary(msg)
		m.summary = &s
		return m, tea.Quit
	}
	return m, nil
}

func (m model) View() string {
	if m.summary != nil {
		s := m.summary
		line := fmt.Sprintf("built %d archive(s), %d files, %d chunks in %s",
			s.Archives, s.Files, s.Chunks, s.Duration.Round(10*time.Millisecond))
		if s.Warnings > 0 {
			line += fmt.Sprintf(" (%d warnings)", s.Warnings)
		}
		return doneStyle.Render(line) + "\n"
	}

	pct := 0.0
	if m.event.Total > 0 {
		pct = float64(m.event.Current) / float64(m.event.Total)
	}
	out := fmt.Sprintf("%s %s  %s\n%s\n",
		m.spinner.View(),
		stageStyle.Render(m.event.Stage.String()),
		m.event.Detail,
		m.bar.ViewAs(pct),
	)
	for _, w := range m.warnings {
		out += warnStyle.Render("warn: "+w) + "\n"
	}
	return out
}

// ttyReporter drives a bubbletea program from the build goroutine by
// sending it messages; the program itself owns the render loop.
type ttyReporter struct {
	mu   sync.Mutex
	prog *tea.Program
	done chan struct{}
}

func newTTYReporter(out *os.File) *ttyReporter {
	p := tea.NewProgram(newModel(), tea.WithOutput(out))
	r := &ttyReporter{prog: p, done: make(chan struct{})}
	go func() {
		_, _ = p.Run()
		close(r.done)
	}()
	return r
}

func (r *ttyReporter) Update(e Event) {
	r.prog.Send(eventMsg(e))
}

func (r *ttyReporter) Warn(msg string) {
	r.prog.Send(warnMsg(msg))
}

func (r *ttyReporter) Finish(s Summary) {
	r.prog.Send(finishMsg(s))
	<-r.done
}
