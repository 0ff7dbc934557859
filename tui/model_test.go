package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yllada/wiresock-manager/common"
	"github.com/yllada/wiresock-manager/vpn"
)

type fakeExecutor struct {
	mu   sync.Mutex
	cmds []vpn.Command
	err  error
}

func (f *fakeExecutor) Execute(_ context.Context, cmd vpn.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cmds = append(f.cmds, cmd)
	return f.err
}

func (f *fakeExecutor) executed() []vpn.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]vpn.Command(nil), f.cmds...)
}

type staticProfiles []string

func (s staticProfiles) List() []vpn.Profile {
	var list []vpn.Profile
	for _, name := range s {
		list = append(list, vpn.Profile{Name: name})
	}
	return list
}

func newTestModel(exec Executor, names ...string) Model {
	events := make(chan vpn.Event)
	return New(context.Background(), exec, staticProfiles(names), events, vpn.Status{Phase: common.PhaseDisconnected})
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return nm, cmd
}

func TestModel_ConnectSelected(t *testing.T) {
	exec := &fakeExecutor{}
	m := newTestModel(exec, "Home", "Office")

	m, _ = update(t, m, keyRunes("j"))
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter produced no command")
	}

	msg := cmd()
	got := exec.executed()
	if len(got) != 1 || got[0] != vpn.ConnectCommand("Office") {
		t.Fatalf("executed = %v, want connect Office", got)
	}

	m, _ = update(t, m, msg)
	if m.err != "" {
		t.Errorf("err = %q after successful connect", m.err)
	}
}

func TestModel_CursorBounds(t *testing.T) {
	m := newTestModel(&fakeExecutor{}, "A", "B")

	m, _ = update(t, m, keyRunes("k"))
	if m.cursor != 0 {
		t.Errorf("cursor = %d after up at top, want 0", m.cursor)
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	if m.cursor != 1 {
		t.Errorf("cursor = %d after down past end, want 1", m.cursor)
	}
}

func TestModel_ConnectWithoutProfiles(t *testing.T) {
	exec := &fakeExecutor{}
	m := newTestModel(exec)

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("enter with no profiles should not run a command")
	}
	if m.err == "" {
		t.Error("expected an error message")
	}
	if !strings.Contains(m.View(), "no profiles imported") {
		t.Error("View() should mention that no profiles exist")
	}
}

func TestModel_Disconnect(t *testing.T) {
	exec := &fakeExecutor{err: common.ErrNotConnected}
	m := newTestModel(exec, "Office")

	m, cmd := update(t, m, keyRunes("d"))
	if cmd == nil {
		t.Fatal("d produced no command")
	}
	m, _ = update(t, m, cmd())

	if got := exec.executed(); len(got) != 1 || got[0].Kind != vpn.CommandDisconnect {
		t.Errorf("executed = %v, want disconnect", got)
	}
	if m.err != "not connected" {
		t.Errorf("err = %q, want not connected", m.err)
	}
}

func TestModel_LaunchErrorShown(t *testing.T) {
	exec := &fakeExecutor{err: &common.LaunchError{Profile: "Office", ExitCode: 1, Output: []string{"bad key"}}}
	m := newTestModel(exec, "Office")

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = update(t, m, cmd())

	if m.err != "client exited with code 1: bad key" {
		t.Errorf("err = %q", m.err)
	}
	if !strings.Contains(m.View(), "bad key") {
		t.Error("View() should show the launch error")
	}
}

func TestModel_CancelledConnectIsQuiet(t *testing.T) {
	exec := &fakeExecutor{err: fmt.Errorf("connect: %w", common.ErrCancelled)}
	m := newTestModel(exec, "Office")

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = update(t, m, cmd())
	if m.err != "" {
		t.Errorf("err = %q, want none for a cancelled connect", m.err)
	}
}

func TestModel_Quit(t *testing.T) {
	exec := &fakeExecutor{}
	m := newTestModel(exec, "Office")

	m, cmd := update(t, m, keyRunes("q"))
	if !m.quitting {
		t.Error("quitting not set")
	}

	// Keys are ignored while quitting.
	if _, extra := update(t, m, tea.KeyMsg{Type: tea.KeyEnter}); extra != nil {
		t.Error("key handled while quitting")
	}

	_, final := update(t, m, cmd())
	if final == nil {
		t.Fatal("quit result produced no command")
	}
	if _, ok := final().(tea.QuitMsg); !ok {
		t.Error("quit result should end the program")
	}
	if got := exec.executed(); len(got) != 1 || got[0].Kind != vpn.CommandQuit {
		t.Errorf("executed = %v, want quit", got)
	}
}

func TestModel_Events(t *testing.T) {
	m := newTestModel(&fakeExecutor{}, "Office")
	now := time.Now()

	m, _ = update(t, m, eventMsg{Kind: vpn.EventState, Phase: common.PhaseConnecting, Profile: "Office", Time: now})
	if m.phase != common.PhaseConnecting || m.active != "Office" {
		t.Errorf("phase/active = %v/%q", m.phase, m.active)
	}

	m, _ = update(t, m, eventMsg{Kind: vpn.EventOutput, Profile: "Office", Line: "handshake complete"})
	m, _ = update(t, m, eventMsg{Kind: vpn.EventState, Phase: common.PhaseConnected, Profile: "Office", Time: now})

	view := m.View()
	for _, want := range []string{"Connected", "Office", "handshake complete"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q", want)
		}
	}

	m, _ = update(t, m, eventMsg{Kind: vpn.EventState, Phase: common.PhaseDisconnected, Profile: "Office", Time: now})
	if m.active != "" || m.phase != common.PhaseDisconnected {
		t.Errorf("after disconnect phase/active = %v/%q", m.phase, m.active)
	}
}

func TestModel_OutputBounded(t *testing.T) {
	m := newTestModel(&fakeExecutor{}, "Office")
	for i := 0; i < maxOutputLines+50; i++ {
		m, _ = update(t, m, eventMsg{Kind: vpn.EventOutput, Line: fmt.Sprintf("line %d", i)})
	}
	if len(m.output) != maxOutputLines {
		t.Errorf("kept %d lines, want %d", len(m.output), maxOutputLines)
	}
	if m.output[0] != "line 50" {
		t.Errorf("oldest line = %q, want line 50", m.output[0])
	}
}

func TestModel_InitialState(t *testing.T) {
	events := make(chan vpn.Event)
	m := New(context.Background(), &fakeExecutor{}, staticProfiles{"Home", "Office"}, events,
		vpn.Status{Phase: common.PhaseConnected, Profile: "Office"})

	if m.cursor != 1 {
		t.Errorf("cursor = %d, want it on the active profile", m.cursor)
	}
	if m.Init() == nil {
		t.Error("Init() should start the spinner and event pump")
	}
}

func TestWaitForEvent_Closed(t *testing.T) {
	events := make(chan vpn.Event)
	close(events)
	if _, ok := waitForEvent(events)().(eventsClosedMsg); !ok {
		t.Error("closed channel should yield eventsClosedMsg")
	}
}
