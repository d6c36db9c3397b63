// ABOUTME: Interactive TUI wizard for adding a feedsync account.
// ABOUTME: Bubbletea model collecting the account kind and, for sync services, credentials.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/harper/feedsync/internal/backend"
	"github.com/samber/lo"
)

// Step represents the current wizard step.
type Step int

const (
	StepKind Step = iota
	StepUsername
	StepSecret
	StepEndpoint
	StepDone
)

const inputCount = 4

// DuplicateFunc reports whether an account of kind already uses username.
type DuplicateFunc func(kind backend.Kind, username string) bool

// AccountSetup is what the wizard collected.
type AccountSetup struct {
	Kind     backend.Kind
	Username string
	Secret   string
	Endpoint string
}

// SetupModel is the bubbletea model for the account wizard.
type SetupModel struct {
	step      Step
	inputs    [inputCount]textinput.Model
	kind      backend.Kind
	duplicate DuplicateFunc
	errMsg    string
	quitting  bool
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	brandStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	stepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	promptStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// kindNames lists the accepted kind names for the prompt.
func kindNames() string {
	return strings.Join(lo.Map(backend.Kinds(), func(k backend.Kind, _ int) string { return k.String() }), ", ")
}

// NewSetupModel creates a new wizard. kind pre-fills the first step;
// duplicate may be nil.
func NewSetupModel(kind string, duplicate DuplicateFunc) SetupModel {
	kindInput := textinput.New()
	kindInput.Placeholder = backend.KindLocal.String()
	kindInput.Focus()
	kindInput.Width = 50
	if kind != "" {
		kindInput.SetValue(kind)
	}

	usernameInput := textinput.New()
	usernameInput.Placeholder = "you@example.com"
	usernameInput.Width = 50

	secretInput := textinput.New()
	secretInput.Placeholder = "password or API token"
	secretInput.EchoMode = textinput.EchoPassword
	secretInput.Width = 50

	endpointInput := textinput.New()
	endpointInput.Placeholder = "https://rss.example.com/api/greader.php"
	endpointInput.Width = 50

	return SetupModel{
		step:      StepKind,
		inputs:    [inputCount]textinput.Model{kindInput, usernameInput, secretInput, endpointInput},
		duplicate: duplicate,
	}
}

// Init implements tea.Model.
func (m SetupModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m SetupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEscape:
			m.quitting = true
			return m, tea.Quit
		}

		if m.step < StepDone {
			return m.updateInput(msg)
		}
	default:
		// Forward other messages (e.g. cursor blink) to the active input
		if m.step < StepDone {
			idx := int(m.step)
			var cmd tea.Cmd
			m.inputs[idx], cmd = m.inputs[idx].Update(msg)
			return m, cmd
		}
	}

	return m, nil
}

func (m SetupModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEnter {
		return m.handleEnter()
	}

	idx := int(m.step)
	var cmd tea.Cmd
	m.inputs[idx], cmd = m.inputs[idx].Update(msg)
	return m, cmd
}

func (m SetupModel) handleEnter() (tea.Model, tea.Cmd) {
	m.errMsg = ""
	val := strings.TrimSpace(m.inputs[m.step].Value())

	switch m.step {
	case StepKind:
		if val == "" {
			val = backend.KindLocal.String()
		}
		kind, err := backend.ParseKind(val)
		if err != nil {
			m.errMsg = err.Error()
			return m, nil
		}
		m.kind = kind
		m.inputs[StepKind].SetValue(kind.String())
		if !kind.IsRemote() {
			return m.advance(StepDone)
		}
		return m.advance(StepUsername)

	case StepUsername:
		if val == "" {
			m.errMsg = "username is required"
			return m, nil
		}
		if m.duplicate != nil && m.duplicate(m.kind, val) {
			m.errMsg = fmt.Sprintf("a %s account for %s already exists", m.kind.DefaultName(), val)
			return m, nil
		}
		return m.advance(StepSecret)

	case StepSecret:
		if val == "" {
			m.errMsg = "a password or token is required"
			return m, nil
		}
		return m.advance(StepEndpoint)

	case StepEndpoint:
		if val != "" && !strings.HasPrefix(val, "http://") && !strings.HasPrefix(val, "https://") {
			m.errMsg = "endpoint must be an http or https URL"
			return m, nil
		}
		return m.advance(StepDone)
	}

	return m, nil
}

func (m SetupModel) advance(next Step) (tea.Model, tea.Cmd) {
	m.inputs[m.step].Blur()
	m.step = next
	if next == StepDone {
		return m, tea.Quit
	}
	m.inputs[next].Focus()
	return m, textinput.Blink
}

// View implements tea.Model.
func (m SetupModel) View() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(brandStyle.Render("   FEEDSYNC"))
	b.WriteString(titleStyle.Render(" - Add Account"))
	b.WriteString("\n\n")

	switch m.step {
	case StepKind:
		b.WriteString(stepStyle.Render("Step 1 of 4: Account Kind"))
		b.WriteString("\n")
		b.WriteString(promptStyle.Render(fmt.Sprintf("(%s; press Enter for local)", kindNames())))
		b.WriteString("\n")
		b.WriteString(m.inputs[StepKind].View())
		b.WriteString("\n")

	case StepUsername:
		fmt.Fprintf(&b, "  Kind: %s\n\n", m.kind.DefaultName())
		b.WriteString(stepStyle.Render("Step 2 of 4: Username"))
		b.WriteString("\n")
		b.WriteString(m.inputs[StepUsername].View())
		b.WriteString("\n")

	case StepSecret:
		fmt.Fprintf(&b, "  Kind: %s\n  Username: %s\n\n", m.kind.DefaultName(), m.inputs[StepUsername].Value())
		b.WriteString(stepStyle.Render("Step 3 of 4: Password or Token"))
		b.WriteString("\n")
		b.WriteString(m.inputs[StepSecret].View())
		b.WriteString("\n")

	case StepEndpoint:
		fmt.Fprintf(&b, "  Kind: %s\n  Username: %s\n\n", m.kind.DefaultName(), m.inputs[StepUsername].Value())
		b.WriteString(stepStyle.Render("Step 4 of 4: API Endpoint"))
		b.WriteString("\n")
		b.WriteString(promptStyle.Render("(self-hosted services only; press Enter to skip)"))
		b.WriteString("\n")
		b.WriteString(m.inputs[StepEndpoint].View())
		b.WriteString("\n")

	case StepDone:
		b.WriteString(successStyle.Render("Setup complete!"))
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "  Kind:      %s\n", m.kind.DefaultName())
		if m.kind.IsRemote() {
			fmt.Fprintf(&b, "  Username:  %s\n", m.inputs[StepUsername].Value())
			if endpoint := m.inputs[StepEndpoint].Value(); endpoint != "" {
				fmt.Fprintf(&b, "  Endpoint:  %s\n", endpoint)
			}
		}
		b.WriteString("\n")
	}

	if m.errMsg != "" {
		b.WriteString(errorStyle.Render(m.errMsg))
		b.WriteString("\n")
	}

	return b.String()
}

// Result returns the entered values.
func (m SetupModel) Result() AccountSetup {
	setup := AccountSetup{Kind: m.kind}
	if m.kind.IsRemote() {
		setup.Username = strings.TrimSpace(m.inputs[StepUsername].Value())
		setup.Secret = strings.TrimSpace(m.inputs[StepSecret].Value())
		setup.Endpoint = strings.TrimSpace(m.inputs[StepEndpoint].Value())
	}
	return setup
}

// ShouldSave returns true if the wizard completed and the user did not cancel.
func (m SetupModel) ShouldSave() bool {
	return m.step == StepDone && !m.quitting
}
