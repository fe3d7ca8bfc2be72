package ui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/usefulness/keeper/internal/logger"
)

// ErrCanceled is returned when the user interrupts the spinner.
var ErrCanceled = errors.New("operation canceled")

// RunSpinner runs a Bubble Tea spinner while executing the given action.
// Progress messages from the action replace the spinner status line. The UI
// exits when the action completes and returns the action's error; a key
// interrupt cancels the action's context and waits for it to return.
func RunSpinner(ctx context.Context, title string, action func(ctx context.Context, progress logger.Logger) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := newSpinnerModel(title)
	p := tea.NewProgram(m, tea.WithContext(ctx))

	done := make(chan error, 1)
	go func() {
		progress := logger.Funcf(func(msg string) { p.Send(statusMsg(msg)) })
		err := action(ctx, progress)
		done <- err
		p.Send(actionDoneMsg{err: err})
	}()

	_, runErr := p.Run()
	if m.canceled {
		cancel()
	}
	err := <-done
	switch {
	case m.canceled:
		return ErrCanceled
	case err != nil:
		return err
	case runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled):
		return runErr
	}
	return nil
}

type actionDoneMsg struct{ err error }

type statusMsg string

type spinnerModel struct {
	title    string
	status   string
	spin     spinner.Model
	done     bool
	canceled bool
	err      error
	style    lipgloss.Style
	dim      lipgloss.Style
}

func newSpinnerModel(title string) *spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &spinnerModel{
		title: title,
		spin:  s,
		style: lipgloss.NewStyle().Padding(0, 1),
		dim:   lipgloss.NewStyle().Faint(true),
	}
}

func (m *spinnerModel) Init() tea.Cmd {
	return m.spin.Tick
}

func (m *spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.canceled = true
			m.err = ErrCanceled
			return m, tea.Quit
		}
	case statusMsg:
		m.status = string(msg)
	case actionDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *spinnerModel) View() string {
	if m.done || m.canceled {
		if m.err != nil {
			return m.style.Render("✗ " + m.title + " (" + m.err.Error() + ")\n")
		}
		return m.style.Render("✓ " + m.title + "\n")
	}
	line := m.spin.View() + " " + m.title
	if m.status != "" {
		line += " " + m.dim.Render(m.status)
	}
	return m.style.Render(line)
}
