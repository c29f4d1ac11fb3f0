package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrCancelled is returned when the user leaves the prompt without a PIN.
var ErrCancelled = errors.New("authorization cancelled")

// PINModel asks for the verifier shown after authorizing on Twitter.
type PINModel struct {
	authURL   string
	input     textinput.Model
	width     int
	err       string
	submitted bool
	cancelled bool
}

// NewPINModel creates the prompt for authURL.
func NewPINModel(authURL string) PINModel {
	in := textinput.New()
	in.Placeholder = "1234567"
	in.Focus()
	in.CharLimit = 16
	in.Width = 16
	in.Validate = func(s string) error {
		for _, r := range s {
			if r < '0' || r > '9' {
				return errors.New("the PIN is numeric")
			}
		}
		return nil
	}
	return PINModel{authURL: authURL, input: in}
}

// Init initializes the model
func (m PINModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages
func (m PINModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit
		case "enter":
			if strings.TrimSpace(m.input.Value()) == "" {
				m.err = "enter the PIN shown by Twitter"
				return m, nil
			}
			if m.input.Err != nil {
				m.err = m.input.Err.Error()
				return m, nil
			}
			m.submitted = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.err = ""
	return m, cmd
}

// View renders the prompt
func (m PINModel) View() string {
	if m.submitted || m.cancelled {
		return ""
	}

	var b strings.Builder
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Center, MiniLogo(), "  ", TitleStyle.Render(" Authorize ")))
	b.WriteString("\n\n")
	b.WriteString(LabelStyle.Render("Open this page and authorize the application:"))
	b.WriteString("\n")
	b.WriteString(HighlightStyle.Render(m.authURL))
	b.WriteString("\n\n")
	b.WriteString(LabelStyle.Render("PIN"))
	b.WriteString("\n")
	b.WriteString(ActiveBorderStyle.Render(m.input.View()))
	b.WriteString("\n")
	if m.err != "" {
		b.WriteString(ErrorStyle.Render(CrossMark + " " + m.err))
		b.WriteString("\n")
	}
	b.WriteString(HelpStyle.Render("ENTER: submit • ESC: cancel"))
	b.WriteString("\n")
	return b.String()
}

// PIN returns the entered verifier, or ErrCancelled.
func (m PINModel) PIN() (string, error) {
	if !m.submitted {
		return "", ErrCancelled
	}
	return strings.TrimSpace(m.input.Value()), nil
}

// RunPINPrompt shows the prompt full screen and returns the verifier.
func RunPINPrompt(authURL string, opts ...tea.ProgramOption) (string, error) {
	final, err := tea.NewProgram(NewPINModel(authURL), opts...).Run()
	if err != nil {
		return "", err
	}
	return final.(PINModel).PIN()
}
