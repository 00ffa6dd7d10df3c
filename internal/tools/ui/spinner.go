// Package ui renders progress and results for the portal command line.
package ui

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	frames     = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	spinStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
	titleStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const tickInterval = 90 * time.Millisecond

type tickMsg time.Time

type resultMsg[T any] struct {
	value T
	err   error
}

type model[T any] struct {
	title  string
	start  time.Time
	frame  int
	done   bool
	result resultMsg[T]
	cancel context.CancelFunc
	run    tea.Cmd
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model[T]) Init() tea.Cmd {
	return tea.Batch(tick(), m.run)
}

func (m model[T]) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(frames)
		return m, tick()
	case resultMsg[T]:
		m.done = true
		m.result = msg
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			// fn observes the cancellation and reports back through resultMsg.
			m.cancel()
		}
	}
	return m, nil
}

func (m model[T]) View() string {
	if m.done {
		return ""
	}
	elapsed := time.Since(m.start).Truncate(100 * time.Millisecond)
	return fmt.Sprintf("%s %s %s\n", spinStyle.Render(frames[m.frame]), titleStyle.Render(m.title), dimStyle.Render(elapsed.String()))
}

// Run shows a spinner on stderr while fn runs. Ctrl+C cancels fn's context.
func Run[T any](title string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := model[T]{
		title:  title,
		start:  time.Now(),
		cancel: cancel,
		run: func() tea.Msg {
			v, err := fn(ctx)
			return resultMsg[T]{value: v, err: err}
		},
	}
	final, err := tea.NewProgram(m, tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		var zero T
		return zero, fmt.Errorf("run progress ui: %w", err)
	}
	out := final.(model[T])
	return out.result.value, out.result.err
}
