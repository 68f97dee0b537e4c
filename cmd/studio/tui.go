package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tbourn/animai-studio/internal/domain"
	"github.com/tbourn/animai-studio/internal/studio"
)

const (
	defaultWidth        = 100
	defaultViewHeight   = 20
	inputCharLimit      = 4000
	headerHeightReserve = 4
	footerHeightReserve = 4
	minViewHeight       = 5
	eventBuffer         = 64
)

// Messages delivered to the model.
type (
	// eventMsg carries one studio.Session event: a state change or a
	// progress tick while a reply is pending.
	eventMsg struct{ ev studio.Event }

	galleryMsg struct {
		videos []domain.PromptCache
		err    error
	}

	newChatMsg struct {
		id  string
		err error
	}
)

// chatModel is the Bubble Tea model of the studio terminal.
type chatModel struct {
	ctx    context.Context
	cancel context.CancelFunc
	client *studio.Client
	opts   options

	chatID string
	sess   *studio.Session
	events chan studio.Event

	input   textinput.Model
	view    viewport.Model
	content *strings.Builder

	busy   bool
	status string

	width  int
	height int
}

func newModel(ctx context.Context, client *studio.Client, opts options, chatID string) chatModel {
	ctx, cancel := context.WithCancel(ctx)

	in := textinput.New()
	in.Placeholder = "Describe an animation"
	in.Focus()
	in.CharLimit = inputCharLimit
	in.Width = defaultWidth - 3
	in.Prompt = ""

	m := chatModel{
		ctx:     ctx,
		cancel:  cancel,
		client:  client,
		opts:    opts,
		chatID:  chatID,
		events:  make(chan studio.Event, eventBuffer),
		input:   in,
		view:    viewport.New(defaultWidth, defaultViewHeight),
		content: &strings.Builder{},
		width:   defaultWidth,
	}
	m.sess = m.newSession(chatID)
	return m
}

// newSession binds a Session to chatID and forwards its events to the
// model's channel until the model's context ends.
func (m chatModel) newSession(chatID string) *studio.Session {
	s := studio.NewSession(m.client, chatID)
	events, ctx := m.events, m.ctx
	s.OnEvent = func(ev studio.Event) {
		select {
		case events <- ev:
		case <-ctx.Done():
		}
	}
	return s
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForEvent(m.events))
}

func waitForEvent(events <-chan studio.Event) tea.Cmd {
	return func() tea.Msg {
		return eventMsg{ev: <-events}
	}
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		cmds = append(cmds, m.handleKey(msg)...)

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case eventMsg:
		m.handleEvent(msg.ev)
		cmds = append(cmds, waitForEvent(m.events))

	case galleryMsg:
		m.showGallery(msg.videos, msg.err)

	case newChatMsg:
		if msg.err != nil {
			m.appendLine(errorStyle.Render("✗ create chat: " + msg.err.Error()))
			break
		}
		m.chatID = msg.id
		m.sess = m.newSession(msg.id)
		m.appendLine(infoStyle.Render("ℹ started chat " + msg.id))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *chatModel) handleKey(msg tea.KeyMsg) []tea.Cmd {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.cancel()
		return []tea.Cmd{tea.Quit}
	case tea.KeyUp:
		m.view.LineUp(1)
	case tea.KeyDown:
		m.view.LineDown(1)
	case tea.KeyPgUp:
		m.view.ViewUp()
	case tea.KeyPgDown:
		m.view.ViewDown()
	case tea.KeyEnter:
		if m.busy {
			return nil
		}
		line := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		return m.handleLine(line)
	}
	return nil
}

// handleLine runs a slash command or submits line as a prompt.
func (m *chatModel) handleLine(line string) []tea.Cmd {
	switch line {
	case "":
		return nil
	case "/quit", "/exit":
		m.cancel()
		return []tea.Cmd{tea.Quit}
	case "/gallery":
		return []tea.Cmd{fetchGallery(m.ctx, m.client)}
	case "/new":
		if m.opts.noHistory {
			m.sess = m.newSession("")
			m.appendLine(infoStyle.Render("ℹ started a new conversation"))
			return nil
		}
		return []tea.Cmd{createChat(m.ctx, m.client)}
	}

	m.busy = true
	sess, ctx := m.sess, m.ctx
	return []tea.Cmd{func() tea.Msg {
		// The outcome reaches the model as session events.
		_, _ = sess.Submit(ctx, line)
		return nil
	}}
}

func (m *chatModel) handleEvent(ev studio.Event) {
	switch ev.State {
	case studio.StateSending:
		m.appendLine(promptStyle.Render("> ") + ev.Record.Text)
	case studio.StateAwaiting:
		m.status = ev.Progress.String()
	case studio.StateDisplayed:
		m.busy, m.status = false, ""
		m.appendLine(renderReply(ev.Record.Text, ev.Record.VideoURL))
	case studio.StateErrored:
		m.busy, m.status = false, ""
		m.appendLine(errorStyle.Render("✗ " + ev.Record.Text))
	}
	m.refresh()
}

func fetchGallery(ctx context.Context, client *studio.Client) tea.Cmd {
	return func() tea.Msg {
		vids, err := client.Gallery(ctx)
		return galleryMsg{videos: vids, err: err}
	}
}

func createChat(ctx context.Context, client *studio.Client) tea.Cmd {
	return func() tea.Msg {
		chat, err := client.CreateChat(ctx, "")
		return newChatMsg{id: chat.ID, err: err}
	}
}

func (m *chatModel) showGallery(vids []domain.PromptCache, err error) {
	switch {
	case err != nil:
		m.appendLine(errorStyle.Render("✗ " + err.Error()))
	case len(vids) == 0:
		m.appendLine(infoStyle.Render("ℹ the gallery is empty"))
	default:
		for _, v := range vids {
			m.appendLine(fmt.Sprintf("  %s  %s\n    %s",
				dimStyle.Render(v.CreatedAt.Local().Format(time.DateTime)), v.Prompt, linkStyle.Render(v.VideoURL)))
		}
	}
}

// replay renders saved chat messages ahead of the live conversation.
func (m *chatModel) replay(msgs []domain.Message) {
	for _, msg := range msgs {
		switch {
		case !msg.IsResponse:
			m.appendLine(promptStyle.Render("> ") + msg.Text)
		case msg.IsError:
			m.appendLine(errorStyle.Render("✗ " + msg.Text))
		default:
			m.appendLine(renderReply(msg.Text, msg.VideoURL))
		}
	}
}

func (m *chatModel) appendLine(s string) {
	m.content.WriteString(s)
	m.content.WriteString("\n")
	m.refresh()
}

func (m *chatModel) resize(width, height int) {
	m.width, m.height = width, height
	m.view.Width = width
	m.view.Height = max(height-headerHeightReserve-footerHeightReserve, minViewHeight)
	m.input.Width = max(width-3, 1)
	m.refresh()
}

func (m *chatModel) refresh() {
	m.view.SetContent(lipgloss.NewStyle().Width(m.width).Render(m.content.String()))
	m.view.GotoBottom()
}

// transcript is everything shown in the scroll area, unstyled by width.
func (m chatModel) transcript() string {
	return m.content.String()
}

func (m chatModel) View() string {
	header := renderBanner(m.opts.server, m.chatID)

	var input, help string
	if m.busy {
		input = dimStyle.Render("> waiting for the animation...")
	} else {
		input = promptStyle.Render("> ") + m.input.View()
		help = dimStyle.Render("Enter send • /gallery • /new • /quit • ↑↓ scroll • Esc exit")
	}

	parts := []string{header, m.view.View(), dimStyle.Render(m.status), input}
	if help != "" {
		parts = append(parts, help)
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// runProgram drives m until the user quits or ctx ends.
func runProgram(ctx context.Context, m chatModel, opts ...tea.ProgramOption) error {
	defer m.cancel()
	p := tea.NewProgram(m, append([]tea.ProgramOption{tea.WithContext(ctx)}, opts...)...)
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
