// ABOUTME: Unit tests for the feedsync account wizard bubbletea model.
// ABOUTME: Uses synthetic tea.Msg values to test state machine transitions.
package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/harper/feedsync/internal/backend"
)

func enter(t *testing.T, m SetupModel) SetupModel {
	t.Helper()
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return updated.(SetupModel)
}

func TestNewSetupModel_DefaultValues(t *testing.T) {
	m := NewSetupModel("", nil)
	if m.step != StepKind {
		t.Errorf("expected initial step StepKind, got %d", m.step)
	}
	if m.inputs[StepKind].Value() != "" {
		t.Error("expected empty kind input")
	}
	if m.inputs[StepSecret].EchoMode != textinput.EchoPassword {
		t.Error("expected secret input to hide what is typed")
	}
}

func TestSetupModel_LocalFinishesAfterKind(t *testing.T) {
	m := enter(t, NewSetupModel("", nil))
	if m.step != StepDone {
		t.Errorf("expected StepDone for the default local kind, got %d", m.step)
	}
	if got := m.Result(); got.Kind != backend.KindLocal || got.Username != "" {
		t.Errorf("unexpected result %+v", got)
	}
}

func TestSetupModel_InvalidKind(t *testing.T) {
	m := NewSetupModel("carrier-pigeon", nil)
	m = enter(t, m)
	if m.step != StepKind {
		t.Errorf("expected to stay on StepKind, got %d", m.step)
	}
	if !strings.Contains(m.View(), "unknown backend kind") {
		t.Error("expected the error to be shown")
	}
}

func TestSetupModel_KindCaseInsensitive(t *testing.T) {
	m := enter(t, NewSetupModel("FeedBin", nil))
	if m.step != StepUsername {
		t.Fatalf("expected StepUsername, got %d", m.step)
	}
	if m.inputs[StepKind].Value() != "feedbin" {
		t.Errorf("expected normalized kind, got %q", m.inputs[StepKind].Value())
	}
}

func TestSetupModel_RemoteFlow(t *testing.T) {
	m := enter(t, NewSetupModel("freshrss", nil))

	m = enter(t, m)
	if m.step != StepUsername {
		t.Fatalf("expected empty username to be rejected, got step %d", m.step)
	}
	m.inputs[StepUsername].SetValue("me")
	m = enter(t, m)

	m = enter(t, m)
	if m.step != StepSecret {
		t.Fatalf("expected empty secret to be rejected, got step %d", m.step)
	}
	m.inputs[StepSecret].SetValue("hunter2")
	m = enter(t, m)

	m.inputs[StepEndpoint].SetValue("rss.example.com")
	m = enter(t, m)
	if m.step != StepEndpoint {
		t.Fatalf("expected bare host endpoint to be rejected, got step %d", m.step)
	}
	m.inputs[StepEndpoint].SetValue("https://rss.example.com/api/greader.php")
	m = enter(t, m)

	if !m.ShouldSave() {
		t.Fatal("expected ShouldSave true after completing flow")
	}
	want := AccountSetup{Kind: backend.KindFreshRSS, Username: "me", Secret: "hunter2", Endpoint: "https://rss.example.com/api/greader.php"}
	if got := m.Result(); got != want {
		t.Errorf("Result() = %+v, want %+v", got, want)
	}
	if strings.Contains(m.View(), "hunter2") {
		t.Error("the secret must never be rendered")
	}
}

func TestSetupModel_DuplicateAccount(t *testing.T) {
	dup := func(kind backend.Kind, username string) bool {
		return kind == backend.KindFeedbin && username == "taken"
	}
	m := enter(t, NewSetupModel("feedbin", dup))
	m.inputs[StepUsername].SetValue("taken")
	m = enter(t, m)
	if m.step != StepUsername {
		t.Fatalf("expected duplicate username to be rejected, got step %d", m.step)
	}
	if !strings.Contains(m.View(), "already exists") {
		t.Error("expected duplicate message in view")
	}

	m.inputs[StepUsername].SetValue("fresh")
	m = enter(t, m)
	if m.step != StepSecret {
		t.Errorf("expected StepSecret, got %d", m.step)
	}
}

func TestSetupModel_QuitOnCtrlC(t *testing.T) {
	m := NewSetupModel("", nil)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = updated.(SetupModel)
	if cmd == nil {
		t.Error("expected quit cmd on ctrl+c")
	}
	if !m.quitting {
		t.Error("expected quitting to be true")
	}
	if m.ShouldSave() {
		t.Error("expected ShouldSave false after ctrl+c")
	}
}

func TestSetupModel_QuitOnEsc(t *testing.T) {
	m := NewSetupModel("", nil)
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEscape})
	m = updated.(SetupModel)
	if cmd == nil {
		t.Error("expected quit cmd on escape")
	}
	if !m.quitting {
		t.Error("expected quitting to be true")
	}
}

func TestSetupModel_ViewContainsBranding(t *testing.T) {
	view := NewSetupModel("", nil).View()
	if !strings.Contains(view, "FEEDSYNC") {
		t.Error("expected view to contain FEEDSYNC branding")
	}
	if !strings.Contains(view, "theoldreader") {
		t.Error("expected view to list the supported kinds")
	}
}

func TestSetupModel_ViewShowsCurrentStep(t *testing.T) {
	m := enter(t, NewSetupModel("inoreader", nil))
	if !strings.Contains(m.View(), "Username") {
		t.Error("expected StepUsername view to mention Username")
	}
	m.inputs[StepUsername].SetValue("me")
	m = enter(t, m)
	if !strings.Contains(m.View(), "Password or Token") {
		t.Error("expected StepSecret view to mention the secret")
	}
}

func TestSetupModel_ViewDone(t *testing.T) {
	m := enter(t, NewSetupModel("cloud", nil))
	view := m.View()
	if !strings.Contains(view, "Setup complete!") || !strings.Contains(view, "Charm Cloud") {
		t.Errorf("unexpected done view: %q", view)
	}
}
