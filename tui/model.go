// Package tui is the interactive terminal front-end. It lists profiles,
// shows the connection state and client output, and turns key presses
// into commands for the controller. It never touches the supervisor
// directly.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/yllada/wiresock-manager/common"
	"github.com/yllada/wiresock-manager/vpn"
)

// maxOutputLines is how many client lines the model keeps.
const maxOutputLines = 200

// Executor runs commands. *vpn.Controller satisfies it.
type Executor interface {
	Execute(ctx context.Context, cmd vpn.Command) error
}

// ProfileLister lists the available profiles. *vpn.ProfileStore satisfies it.
type ProfileLister interface {
	List() []vpn.Profile
}

type (
	eventMsg        vpn.Event
	eventsClosedMsg struct{}
	resultMsg       vpn.Result
)

// Model is the bubbletea model for the TUI.
type Model struct {
	ctx      context.Context
	exec     Executor
	profiles ProfileLister
	events   <-chan vpn.Event

	names    []string
	cursor   int
	phase    common.Phase
	active   string
	since    time.Time
	output   []string
	err      string
	quitting bool

	spinner spinner.Model
	help    help.Model
	keys    keyMap
	width   int
	height  int
}

// New creates a Model. initial is the supervisor state at startup; later
// changes arrive on events.
func New(ctx context.Context, exec Executor, profiles ProfileLister, events <-chan vpn.Event, initial vpn.Status) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = phaseStyle(common.PhaseConnecting)

	m := Model{
		ctx:      ctx,
		exec:     exec,
		profiles: profiles,
		events:   events,
		phase:    initial.Phase,
		active:   initial.Profile,
		since:    initial.StartedAt,
		spinner:  sp,
		help:     help.New(),
		keys:     defaultKeyMap(),
		width:    80,
		height:   24,
	}
	m.reload()
	if i := m.indexOf(m.active); i >= 0 {
		m.cursor = i
	}
	return m
}

func (m *Model) reload() {
	list := m.profiles.List()
	names := make([]string, 0, len(list))
	for _, p := range list {
		names = append(names, p.Name)
	}
	m.names = names
	if m.cursor >= len(m.names) {
		m.cursor = max(0, len(m.names)-1)
	}
}

func (m Model) indexOf(name string) int {
	for i, n := range m.names {
		if n == name {
			return i
		}
	}
	return -1
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}

func waitForEvent(events <-chan vpn.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(ev)
	}
}

// run executes cmd off the UI goroutine.
func (m Model) run(cmd vpn.Command) tea.Cmd {
	ctx, exec := m.ctx, m.exec
	return func() tea.Msg {
		return resultMsg{Command: cmd, Err: exec.Execute(ctx, cmd)}
	}
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		m.applyEvent(vpn.Event(msg))
		return m, waitForEvent(m.events)

	case eventsClosedMsg:
		if m.quitting {
			return m, tea.Quit
		}
		return m, nil

	case resultMsg:
		return m.handleResult(vpn.Result(msg))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.quitting {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, m.run(vpn.QuitCommand())

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.names)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.Connect):
		if len(m.names) == 0 {
			m.err = "no profiles; import one with 'profiles import'"
			return m, nil
		}
		m.err = ""
		return m, m.run(vpn.ConnectCommand(m.names[m.cursor]))

	case key.Matches(msg, m.keys.Disconnect):
		m.err = ""
		return m, m.run(vpn.DisconnectCommand())

	case key.Matches(msg, m.keys.Reload):
		m.reload()

	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}

	return m, nil
}

func (m Model) handleResult(r vpn.Result) (tea.Model, tea.Cmd) {
	if r.Command.Kind == vpn.CommandQuit {
		return m, tea.Quit
	}
	switch {
	case r.Err == nil:
		if r.Command.Kind == vpn.CommandConnect {
			// The profile may have gained a LastUsed stamp.
			m.reload()
		}
	case errors.Is(r.Err, common.ErrNotConnected):
		m.err = "not connected"
	case errors.Is(r.Err, common.ErrCancelled):
		// Superseded by a disconnect; the state events tell the story.
	default:
		m.err = describeError(r.Err)
	}
	return m, nil
}

func describeError(err error) string {
	var launchErr *common.LaunchError
	if errors.As(err, &launchErr) {
		msg := fmt.Sprintf("client exited with code %d", launchErr.ExitCode)
		if n := len(launchErr.Output); n > 0 {
			msg += ": " + launchErr.Output[n-1]
		}
		return msg
	}
	return err.Error()
}

func (m *Model) applyEvent(ev vpn.Event) {
	switch ev.Kind {
	case vpn.EventOutput:
		m.output = append(m.output, ev.Line)
		if over := len(m.output) - maxOutputLines; over > 0 {
			m.output = m.output[over:]
		}
	case vpn.EventState:
		m.phase = ev.Phase
		m.active = ev.ActiveProfile()
		m.since = ev.Time
		if ev.Phase == common.PhaseConnecting {
			m.output = nil
		}
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(common.AppName))
	b.WriteString("\n\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")

	b.WriteString(sectionStyle.Render("Profiles"))
	b.WriteString("\n")
	if len(m.names) == 0 {
		b.WriteString(mutedStyle.Render("  no profiles imported"))
		b.WriteString("\n")
	}
	for i, name := range m.names {
		cursor := "  "
		style := normalStyle
		if i == m.cursor {
			cursor = "> "
			style = selectedStyle
		}
		marker := "  "
		if name == m.active {
			marker = phaseStyle(m.phase).Render("● ")
		}
		b.WriteString(cursor + marker + style.Render(name) + "\n")
	}

	if lines := m.visibleOutput(); len(lines) > 0 {
		b.WriteString(sectionStyle.Render("Client output"))
		b.WriteString("\n")
		width := max(20, m.width-4)
		b.WriteString(outputStyle.Width(width).Render(strings.Join(lines, "\n")))
		b.WriteString("\n")
	}

	if m.err != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("Error: " + m.err))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) statusLine() string {
	status := phaseStyle(m.phase).Render(m.phase.String())
	if m.phase == common.PhaseConnecting {
		status = m.spinner.View() + " " + status
	}
	if m.active != "" {
		status += " " + lipgloss.NewStyle().Bold(true).Render(m.active)
	}
	if m.phase == common.PhaseConnected && !m.since.IsZero() {
		status += mutedStyle.Render(fmt.Sprintf("  since %s", m.since.Format("15:04:05")))
	}
	if m.quitting {
		status += mutedStyle.Render("  (quitting)")
	}
	return status
}

// visibleOutput returns as many trailing lines as fit below the profile list.
func (m Model) visibleOutput() []string {
	room := m.height - len(m.names) - 12
	if room < 3 {
		room = 3
	}
	if len(m.output) <= room {
		return m.output
	}
	return m.output[len(m.output)-room:]
}

// Run starts the TUI on the terminal and blocks until the user quits.
func Run(ctx context.Context, exec Executor, profiles ProfileLister, events <-chan vpn.Event, initial vpn.Status) error {
	p := tea.NewProgram(
		New(ctx, exec, profiles, events, initial),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
