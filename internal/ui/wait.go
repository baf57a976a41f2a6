package ui

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// WaitFunc is long-running work shown behind a spinner. status updates the
// note displayed next to the label.
type WaitFunc func(ctx context.Context, status func(string)) error

type statusMsg string

type doneMsg struct{ err error }

// waitModel is a Bubble Tea model that spins until the work reports done
type waitModel struct {
	spinner spinner.Model
	label   string
	status  string
	cancel  context.CancelFunc
	done    bool
}

func newWaitModel(label string, cancel context.CancelFunc) waitModel {
	return waitModel{
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(PrimaryColor)),
		),
		label:  label,
		cancel: cancel,
	}
}

// Init implements tea.Model
func (m waitModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model
func (m waitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancel()
			m.done = true
			return m, tea.Quit
		}
	case statusMsg:
		m.status = string(msg)
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m waitModel) View() string {
	if m.done {
		return ""
	}
	line := "  " + m.spinner.View() + " " + m.label
	if m.status != "" {
		line += "  " + StepNoteStyle.Render("("+m.status+")")
	}
	return line + "\n"
}

// Wait runs fn behind a spinner on out. Without a terminal fn runs
// directly. Ctrl+C cancels the context passed to fn.
func Wait(ctx context.Context, out io.Writer, label string, fn WaitFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	f, ok := out.(*os.File)
	if !ok || !IsTerminal(f) {
		return fn(ctx, func(string) {})
	}

	p := tea.NewProgram(newWaitModel(label, cancel), tea.WithOutput(out))

	errc := make(chan error, 1)
	go func() {
		err := fn(ctx, func(s string) { p.Send(statusMsg(s)) })
		errc <- err
		p.Send(doneMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-errc
		return err
	}
	return <-errc
}
