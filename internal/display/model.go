package display

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"voicedesk/internal/domain"
	"voicedesk/internal/infra/presentation"
)

// Sender delivers commands to the host.
type Sender interface {
	Send(cmd presentation.Command) error
}

// Model renders host events. It holds no session logic of its own: the
// start/stop key and every indicator follow the last state the host reported.
type Model struct {
	sender Sender
	events <-chan presentation.Event

	connected bool
	state     domain.State
	sessionID string

	transcript string
	response   string

	variants []domain.PromptVariant
	active   string

	errorMessage string
	notice       string

	width  int
	height int
}

func New(sender Sender, events <-chan presentation.Event) Model {
	return Model{
		sender: sender,
		events: events,
		state:  domain.StateIdle,
	}
}

func (m Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func waitForEvent(events <-chan presentation.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return HostClosedMsg{}
		}
		return HostEventMsg{Event: ev}
	}
}

func sendCmd(sender Sender, cmd presentation.Command) tea.Cmd {
	return func() tea.Msg {
		if err := sender.Send(cmd); err != nil {
			return SendErrorMsg{Err: err}
		}
		return nil
	}
}

func clearErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return clearErrorMsg{}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case HostEventMsg:
		cmd := m.handleEvent(msg.Event)
		return m, tea.Batch(cmd, waitForEvent(m.events))

	case HostClosedMsg:
		m.connected = false
		return m, tea.Quit

	case SendErrorMsg:
		m.errorMessage = msg.Err.Error()
		return m, clearErrorCmd()

	case clearErrorMsg:
		m.errorMessage = ""
		return m, nil
	}

	return m, nil
}

func (m *Model) handleEvent(ev presentation.Event) tea.Cmd {
	switch ev.Type {
	case presentation.EventConnection:
		m.connected = ev.Text == "connected"
		if m.connected {
			return sendCmd(m.sender, presentation.Command{Type: presentation.CommandRequestConfig})
		}

	case presentation.EventState:
		switch ev.Reason {
		case domain.ReasonStarted:
			m.transcript = ""
			m.response = ""
			m.errorMessage = ""
			m.notice = ""
		case domain.ReasonNoSpeech:
			m.notice = "Recording stopped (no speech detected)"
		case domain.ReasonNothingToSpeak:
			m.notice = "Response had nothing to speak"
		}
		m.state = ev.State
		m.sessionID = ev.Session

	case presentation.EventTranscript:
		if ev.Session == m.sessionID {
			m.transcript = ev.Text
		}

	case presentation.EventResponse:
		if ev.Session == m.sessionID && ev.Response != nil {
			m.response = ev.Response.SpokenPortion
		}

	case presentation.EventError:
		if ev.Error != nil {
			m.errorMessage = ev.Error.Message
			if ev.Session == "" {
				return clearErrorCmd()
			}
		}

	case presentation.EventConfig:
		if ev.Config != nil {
			m.variants = ev.Config.Variants
			m.active = ev.Config.Active
		}
	}
	return nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case KeyQuit, KeyQuitUpper, KeyCtrlC:
		return m, tea.Quit

	case KeySpace:
		if !m.connected {
			return m, nil
		}
		switch {
		case m.state.CanStart():
			return m, sendCmd(m.sender, presentation.Command{Type: presentation.CommandStart})
		case m.state.CanStop():
			return m, sendCmd(m.sender, presentation.Command{Type: presentation.CommandStop})
		}
		return m, nil

	case KeyRefresh:
		if !m.connected {
			return m, nil
		}
		return m, sendCmd(m.sender, presentation.Command{Type: presentation.CommandRequestConfig})
	}

	if len(key) == 1 && key[0] >= '1' && key[0] <= '9' {
		idx := int(key[0] - '1')
		if !m.connected || idx >= len(m.variants) {
			return m, nil
		}
		return m, sendCmd(m.sender, presentation.Command{
			Type:    presentation.CommandSelectVariant,
			Variant: m.variants[idx].ID,
		})
	}

	return m, nil
}

// statusLine derives the indicator from the host state alone.
func (m Model) statusLine() string {
	if !m.connected {
		return offlineStyle.Render("○ OFFLINE  waiting for host...")
	}
	switch m.state {
	case domain.StateRecording:
		return recordingStyle.Render("● REC  listening")
	case domain.StateAwaitingFinal:
		return busyStyle.Render("⟳ finishing transcript")
	case domain.StateGenerating:
		return busyStyle.Render("⟳ thinking")
	case domain.StateSynthesizing:
		return busyStyle.Render("⟳ preparing speech")
	case domain.StatePlaying:
		return busyStyle.Render("♪ speaking")
	case domain.StateError:
		return errorStyle.Render("✗ error")
	}
	return idleStyle.Render("○ IDLE  press space to talk")
}

func (m Model) actionLabel() string {
	switch {
	case m.state.CanStart():
		return "start"
	case m.state.CanStop():
		return "stop"
	}
	return "busy"
}

func (m Model) View() string {
	width := m.width
	if width == 0 {
		width = 60
	}
	divider := dividerStyle.Render(strings.Repeat("─", width))

	var sections []string
	sections = append(sections, titleStyle.Render("VOICEDESK"))
	sections = append(sections, m.statusLine())
	if m.notice != "" {
		sections = append(sections, noticeStyle.Render(m.notice))
	}
	sections = append(sections, divider)
	sections = append(sections, m.renderVariants())
	sections = append(sections, divider)

	sections = append(sections, speakerStyle.Render("You"))
	if m.transcript != "" {
		sections = append(sections, m.transcript)
	} else {
		sections = append(sections, dimStyle.Render("..."))
	}
	sections = append(sections, "")
	sections = append(sections, assistantStyle.Render("Assistant"))
	if m.response != "" {
		sections = append(sections, m.response)
	} else {
		sections = append(sections, dimStyle.Render("..."))
	}

	sections = append(sections, divider)
	if m.errorMessage != "" {
		sections = append(sections, errorStyle.Render("Error: "+m.errorMessage))
	}
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderVariants() string {
	if len(m.variants) == 0 {
		return dimStyle.Render("no prompt variants")
	}
	var parts []string
	for i, v := range m.variants {
		label := v.Label
		if label == "" {
			label = v.Name
		}
		entry := fmt.Sprintf("%d %s", i+1, label)
		if v.ID == m.active {
			parts = append(parts, activeVariantStyle.Render("["+entry+"]"))
		} else {
			parts = append(parts, dimStyle.Render(" "+entry+" "))
		}
	}
	return strings.Join(parts, " ")
}

func (m Model) renderFooter() string {
	keys := []struct{ key, desc string }{
		{"space", m.actionLabel()},
		{"1-9", "prompt"},
		{"r", "refresh"},
		{"q", "quit"},
	}
	var parts []string
	for _, k := range keys {
		parts = append(parts, footerKeyStyle.Render(k.key)+" "+dimStyle.Render(k.desc))
	}
	return strings.Join(parts, "  ")
}
