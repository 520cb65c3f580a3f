package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/agentmesh/a2a-client/internal/model"
	"github.com/agentmesh/a2a-client/internal/session"
	"github.com/agentmesh/a2a-client/internal/transcript"
)

const requestTimeout = 15 * time.Second

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	userStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	agentStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("84"))
	toolStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	artifactStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("141"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
)

type appView int

const (
	viewList appView = iota
	viewChat
)

type conversationsMsg []model.Conversation

type selectedConversationMsg struct{}

type transcriptChangedMsg struct{}

type errMsg struct{ err error }

type appModel struct {
	dir *session.Directory

	view          appView
	conversations []model.Conversation
	cursor        int

	input    textinput.Model
	vp       viewport.Model
	spin     spinner.Model
	ready    bool
	width    int
	height   int
	lastErr  error
	quitting bool
}

func newAppModel(dir *session.Directory) appModel {
	input := textinput.New()
	input.Placeholder = "Type a message and press enter"
	input.CharLimit = 2000

	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = agentStyle

	return appModel{
		dir:   dir,
		view:  viewList,
		input: input,
		spin:  spin,
	}
}

// runTUI starts the bubbletea program and wires the directory's change
// notifications into it.
func runTUI(dir *session.Directory) error {
	m := newAppModel(dir)
	p := tea.NewProgram(m, tea.WithAltScreen())

	dir.SetOnChange(func() {
		p.Send(transcriptChangedMsg{})
	})

	_, err := p.Run()
	return err
}

func (m appModel) Init() tea.Cmd {
	return tea.Batch(m.loadConversations(), m.spin.Tick)
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp = viewport.New(msg.Width-2, msg.Height-6)
		m.ready = true
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case conversationsMsg:
		m.conversations = msg
		if m.cursor >= len(m.conversations) {
			m.cursor = max(0, len(m.conversations)-1)
		}
		return m, nil

	case selectedConversationMsg:
		m.view = viewChat
		m.input.Focus()
		m.refreshViewport()
		return m, textinput.Blink

	case transcriptChangedMsg:
		m.refreshViewport()
		return m, nil

	case errMsg:
		m.lastErr = msg.err
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m appModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.view == viewList {
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.conversations)-1 {
				m.cursor++
			}
		case "enter":
			if m.cursor < len(m.conversations) {
				return m, m.selectConversation(m.conversations[m.cursor].ContextID)
			}
		case "n":
			return m, m.newConversation()
		case "d":
			if m.cursor < len(m.conversations) {
				return m, m.deleteConversation(m.conversations[m.cursor].ContextID)
			}
		case "r":
			return m, m.loadConversations()
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "esc":
		m.view = viewList
		m.input.Blur()
		return m, m.loadConversations()
	case "enter":
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.SetValue("")
		return m, m.sendMessage(text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m appModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "loading..."
	}
	if m.view == viewList {
		return m.listView()
	}
	return m.chatView()
}

func (m appModel) listView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Conversations"))
	b.WriteString("\n\n")

	if len(m.conversations) == 0 {
		b.WriteString(dimStyle.Render("no conversations yet"))
		b.WriteString("\n")
	}
	for i, conv := range m.conversations {
		line := fmt.Sprintf("%s (%d tasks)", conv.Title, conv.TaskCount)
		if conv.IsStreaming {
			line += " " + agentStyle.Render("● streaming")
		}
		if i == m.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("enter open · n new · d delete · r refresh · q quit"))
	if m.lastErr != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("error: " + m.lastErr.Error()))
	}
	return b.String()
}

func (m appModel) chatView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Conversation " + m.dir.Selected()))
	b.WriteString("\n")
	b.WriteString(m.vp.View())
	b.WriteString("\n")

	if store := m.dir.Store(); store != nil && store.Thinking() {
		b.WriteString(m.spin.View() + dimStyle.Render(" agent is thinking"))
	} else if m.dir.Streaming() {
		b.WriteString(m.spin.View() + dimStyle.Render(" streaming"))
	}
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("enter send · esc back · ctrl+c quit"))
	if m.lastErr != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("error: " + m.lastErr.Error()))
	}
	return b.String()
}

func (m *appModel) refreshViewport() {
	if !m.ready {
		return
	}
	store := m.dir.Store()
	if store == nil {
		m.vp.SetContent(dimStyle.Render("no conversation selected"))
		return
	}
	m.vp.SetContent(renderTranscript(store.Turns()))
	m.vp.GotoBottom()
}

func renderTranscript(turns []transcript.Turn) string {
	var b strings.Builder
	for _, turn := range turns {
		switch turn.Role {
		case model.RoleUser:
			b.WriteString(userStyle.Render("you"))
		default:
			b.WriteString(agentStyle.Render("agent"))
		}
		b.WriteString("\n")

		for _, call := range turn.Tools {
			line := fmt.Sprintf("⚙ %s(%s)", call.Name, string(call.Input))
			if call.Resolved {
				line += " → " + string(call.Result)
			} else {
				line += " …"
			}
			b.WriteString(toolStyle.Render(line))
			b.WriteString("\n")
		}

		if text := turn.Text(); text != "" {
			b.WriteString(text)
			b.WriteString("\n")
		}

		for _, artifact := range turn.Artifacts {
			b.WriteString(artifactStyle.Render("📎 " + artifact.Name))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m appModel) loadConversations() tea.Cmd {
	dir := m.dir
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		convs, err := dir.ListConversations(ctx)
		if err != nil {
			return errMsg{err}
		}
		return conversationsMsg(convs)
	}
}

func (m appModel) selectConversation(id string) tea.Cmd {
	dir := m.dir
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := dir.Select(ctx, id); err != nil {
			return errMsg{err}
		}
		return selectedConversationMsg{}
	}
}

func (m appModel) newConversation() tea.Cmd {
	dir := m.dir
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if _, err := dir.NewConversation(ctx); err != nil {
			return errMsg{err}
		}
		return selectedConversationMsg{}
	}
}

func (m appModel) deleteConversation(id string) tea.Cmd {
	dir := m.dir
	loadCmd := m.loadConversations()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := dir.Delete(ctx, id); err != nil {
			return errMsg{err}
		}
		return loadCmd()
	}
}

func (m appModel) sendMessage(text string) tea.Cmd {
	dir := m.dir
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := dir.Send(ctx, text); err != nil {
			return errMsg{err}
		}
		return transcriptChangedMsg{}
	}
}
