package ui

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/sandeepkv93/learning-portal-client/internal/gateway"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
)

// Summary prints a titled result with one indented line per detail.
func Summary(w io.Writer, title string, details []string, err error) {
	mark := okStyle.Render("✓")
	if err != nil {
		mark = failStyle.Render("✗")
	}
	_, _ = fmt.Fprintf(w, "%s %s\n", mark, titleStyle.Render(title))
	for _, d := range details {
		_, _ = fmt.Fprintf(w, "  %s\n", d)
	}
	if err != nil {
		_, _ = fmt.Fprintf(w, "  %s\n", failStyle.Render(err.Error()))
	}
}

// Notifier prints gateway notifications for the user.
type Notifier struct {
	W io.Writer
}

func (n Notifier) Notify(_ context.Context, note gateway.Notification) {
	style := failStyle
	if note.Kind == gateway.KindAuthenticationExpired || note.Kind == gateway.KindValidation {
		style = warnStyle
	}
	_, _ = fmt.Fprintf(n.W, "%s %s\n", style.Render("!"), note.Message)
}
