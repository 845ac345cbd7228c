package ui

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// ErrInterrupted is returned when the user quits a spinner with Ctrl+C
var ErrInterrupted = errors.New("interrupted")

// SpinnerModel shows a spinner until the work it waits for reports back
type SpinnerModel struct {
	spinner  spinner.Model
	message  string
	quitting bool
	done     bool
	result   string
	err      error
}

// NewSpinner creates a new spinner with a message
func NewSpinner(message string) SpinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(PrimaryColor)
	return SpinnerModel{
		spinner: s,
		message: message,
	}
}

func (m SpinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m SpinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.quitting = true
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case spinnerDoneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		return m, tea.Quit
	}
	return m, nil
}

func (m SpinnerModel) View() string {
	if m.done {
		if m.err != nil {
			return RenderStatus("error", m.err.Error()) + "\n"
		}
		return RenderStatus("success", m.result) + "\n"
	}
	if m.quitting {
		return RenderStatus("warning", m.message+" - interrupted") + "\n"
	}
	return "  " + m.spinner.View() + " " + WhiteStyle.Render(m.message) + "\n"
}

type spinnerDoneMsg struct {
	result string
	err    error
}

// WithSpinner runs fn while showing a spinner. Without a terminal it just
// runs fn and prints the outcome.
func WithSpinner(message string, fn func() (string, error)) (string, error) {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		result, err := fn()
		if err != nil {
			PrintStatus("error", err.Error())
			return "", err
		}
		PrintStatus("success", result)
		return result, nil
	}

	p := tea.NewProgram(NewSpinner(message), tea.WithOutput(Out))
	go func() {
		result, err := fn()
		p.Send(spinnerDoneMsg{result: result, err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return "", fmt.Errorf("spinner failed: %w", err)
	}
	m := final.(SpinnerModel)
	if !m.done {
		return "", ErrInterrupted
	}
	return m.result, m.err
}
