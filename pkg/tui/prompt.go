// Package tui holds the interactive prompt used when the CLI needs an
// answer it cannot find in flags or the project config.
package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

var ErrCancelled = errors.New("prompt cancelled")

type promptModel struct {
	question  string
	input     textinput.Model
	validate  func(string) error
	err       error
	done      bool
	cancelled bool
}

func newPromptModel(question, placeholder string, validate func(string) error) promptModel {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "> "
	ti.TextStyle = answerStyle
	ti.Focus()
	return promptModel{question: question, input: ti, validate: validate}
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		case tea.KeyEnter:
			if m.validate != nil {
				if err := m.validate(m.Answer()); err != nil {
					m.err = err
					return m, nil
				}
			}
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.err = nil
	return m, cmd
}

func (m promptModel) View() string {
	if m.done || m.cancelled {
		return ""
	}
	var s strings.Builder
	s.WriteString(questionStyle.Render("? " + m.question))
	s.WriteString("\n")
	s.WriteString(m.input.View())
	s.WriteString("\n")
	if m.err != nil {
		s.WriteString(danger.Render(m.err.Error()))
		s.WriteString("\n")
	}
	s.WriteString(subtle.Render("(enter to confirm, esc to cancel)"))
	s.WriteString("\n")
	return s.String()
}

// Answer is the trimmed input.
func (m promptModel) Answer() string {
	return strings.TrimSpace(m.input.Value())
}

// Prompter asks one question at a time on the terminal.
type Prompter struct {
	// Options are passed to every program, e.g. tea.WithOutput(os.Stderr).
	Options []tea.ProgramOption
}

// Ask shows question and returns the answer. An empty answer is returned
// as is; validate, when set, must accept the answer before it is taken.
func (p *Prompter) Ask(question, placeholder string, validate func(string) error) (string, error) {
	final, err := tea.NewProgram(newPromptModel(question, placeholder, validate), p.Options...).Run()
	if err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	m, ok := final.(promptModel)
	if !ok || m.cancelled {
		return "", ErrCancelled
	}
	return m.Answer(), nil
}
