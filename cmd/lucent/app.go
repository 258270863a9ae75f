package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lucentai/lucent-client/internal/chatcache"
	"github.com/lucentai/lucent-client/internal/config"
	"github.com/lucentai/lucent-client/internal/deepsearch"
	"github.com/lucentai/lucent-client/internal/logger"
	"github.com/lucentai/lucent-client/internal/message"
	"github.com/lucentai/lucent-client/internal/replay"
	"github.com/lucentai/lucent-client/internal/transport"
)

const chatID = "default"

var (
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	reasoningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	progressStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

type appDeps struct {
	cfg      *config.Config
	log      *logger.Logger
	store    *message.Store
	client   *transport.Client
	manager  *deepsearch.Manager
	cache    *chatcache.Store
	settings *settingsCell
}

type app struct {
	appDeps

	input    textinput.Model
	view     viewport.Model
	ready    bool
	errText  string
	quitting bool

	// animator drives the catch-up reveal for one resumed or streaming
	// assistant message. animatorResumed marks animators attached by the
	// resume flow; only those show the resuming indicator.
	animator        *replay.Animator
	animatedID      string
	animatorResumed bool

	// chatStream is the in-flight plain completion, kept so Esc can stop it.
	chatStream *transport.ChatStream
	chatMsgID  string
}

func newApp(deps appDeps) *app {
	input := textinput.New()
	input.Placeholder = "Ask anything, /research <query> for deep research"
	input.Focus()
	input.CharLimit = 4000

	return &app{
		appDeps: deps,
		input:   input,
	}
}

type (
	storeChangedMsg struct{}
	tickMsg         time.Time
	cacheLoadedMsg  struct{ chat *chatcache.CachedChat }
	serverChatMsg   struct {
		rows []transport.ChatMessage
		err  error
	}
	sessionStartedMsg struct {
		session *deepsearch.Session
		err     error
	}
	chatStreamMsg struct {
		stream *transport.ChatStream
		err    error
	}
	chatStreamDoneMsg struct{ err error }
	errMsg            struct{ err error }
)

func (a *app) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		a.loadCache(),
		a.waitForStoreChange(),
		a.tick(),
	)
}

func (a *app) tick() tea.Cmd {
	return tea.Tick(a.cfg.TickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a *app) waitForStoreChange() tea.Cmd {
	return func() tea.Msg {
		<-a.store.Changed()
		return storeChangedMsg{}
	}
}

func (a *app) loadCache() tea.Cmd {
	return func() tea.Msg {
		cached, err := a.cache.GetCachedChat(context.Background(), chatID)
		if err != nil {
			return errMsg{err}
		}
		return cacheLoadedMsg{cached}
	}
}

func (a *app) refreshFromServer() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.RequestTimeout)
		defer cancel()
		rows, err := a.client.FetchChat(ctx, chatID)
		return serverChatMsg{rows: rows, err: err}
	}
}

func (a *app) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		headerHeight := 1
		footerHeight := 3
		if !a.ready {
			a.view = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			a.ready = true
		} else {
			a.view.Width = msg.Width
			a.view.Height = msg.Height - headerHeight - footerHeight
		}
		a.input.Width = msg.Width - 4
		a.renderTranscript()
		return a, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			a.quitting = true
			return a, tea.Quit
		case tea.KeyEsc:
			a.stopChatStream()
			return a, nil
		case tea.KeyEnter:
			return a, a.submit()
		}

	case cacheLoadedMsg:
		if msg.chat != nil {
			a.store.ReplaceAll(msg.chat.Messages)
			if msg.chat.Streaming {
				a.attachAnimatorToTail(true)
			}
		}
		// The server is authoritative for whatever happened while the app
		// was closed.
		return a, a.refreshFromServer()

	case serverChatMsg:
		if msg.err != nil {
			// Offline or backend down: the cached transcript stays up.
			a.log.Warn("chat refresh failed", "error", msg.err)
			return a, nil
		}
		streaming := len(msg.rows) > 0 && msg.rows[len(msg.rows)-1].Streaming
		a.store.ReplaceAll(transport.ToUIMessages(msg.rows))
		if streaming || a.animator != nil {
			a.attachAnimatorToTail(streaming)
		}
		return a, nil

	case storeChangedMsg:
		a.renderTranscript()
		return a, tea.Batch(a.waitForStoreChange(), a.persistCache())

	case tickMsg:
		a.stepAnimator()
		return a, a.tick()

	case sessionStartedMsg:
		if msg.err != nil {
			a.errText = msg.err.Error()
		}
		return a, nil

	case chatStreamMsg:
		if msg.err != nil {
			a.errText = msg.err.Error()
			a.store.Remove(a.chatMsgID)
			a.chatMsgID = ""
			return a, nil
		}
		a.chatStream = msg.stream
		return a, a.readChatStream(msg.stream)

	case chatStreamDoneMsg:
		a.chatStream = nil
		a.chatMsgID = ""
		if msg.err != nil {
			a.errText = msg.err.Error()
		}
		return a, nil

	case errMsg:
		a.errText = msg.err.Error()
		return a, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)
	a.view, cmd = a.view.Update(msg)
	cmds = append(cmds, cmd)
	return a, tea.Batch(cmds...)
}

// submit routes the input line: clarify answers when a session is
// waiting, slash commands, or a plain chat send.
func (a *app) submit() tea.Cmd {
	text := strings.TrimSpace(a.input.Value())
	if text == "" {
		return nil
	}
	a.input.Reset()
	a.errText = ""

	if session, ok := a.manager.Get(chatID); ok && session.State() == deepsearch.StateAwaitingClarification {
		return a.submitClarifyAnswers(session, text)
	}

	switch {
	case strings.HasPrefix(text, "/research "):
		return a.startResearch(strings.TrimPrefix(text, "/research "))
	case strings.HasPrefix(text, "/edit "):
		return a.editLastMessage(strings.TrimPrefix(text, "/edit "))
	case text == "/model" || strings.HasPrefix(text, "/model "):
		a.setModel(strings.TrimSpace(strings.TrimPrefix(text, "/model")))
		return nil
	default:
		return a.sendChat(text)
	}
}

// setModel updates the mutable settings cell. An in-flight send picks
// the new model up because the transport reads settings at send time.
func (a *app) setModel(name string) {
	if name == "" {
		a.errText = "usage: /model <name>"
		return
	}
	settings := a.settings.get()
	settings.Model = name
	a.settings.set(settings)
}

func (a *app) startResearch(query string) tea.Cmd {
	return func() tea.Msg {
		session, err := a.manager.Start(context.Background(), a.store, chatID, query)
		return sessionStartedMsg{session: session, err: err}
	}
}

// submitClarifyAnswers maps one free-text reply onto the pending
// questions: semicolon-separated answers line up with questions in order.
func (a *app) submitClarifyAnswers(session *deepsearch.Session, text string) tea.Cmd {
	questions := session.ClarifyQuestions()
	parts := strings.Split(text, ";")
	answers := make([]transport.ClarifyAnswer, len(questions))
	for i, q := range questions {
		answer := ""
		if i < len(parts) {
			answer = strings.TrimSpace(parts[i])
		}
		answers[i] = transport.ClarifyAnswer{Question: q, Answer: answer}
	}

	return func() tea.Msg {
		_, err := a.manager.SubmitClarifyAnswers(context.Background(), chatID, answers)
		if err != nil {
			return errMsg{err}
		}
		return storeChangedMsg{}
	}
}

func (a *app) sendChat(text string) tea.Cmd {
	a.store.Append(message.Message{
		ID:        message.NewID(),
		Role:      message.RoleUser,
		CreatedAt: time.Now(),
		Parts:     []message.Part{message.TextPart(text)},
	})

	a.chatMsgID = message.NewID()
	a.store.Append(message.Message{
		ID:        a.chatMsgID,
		Role:      message.RoleAssistant,
		CreatedAt: time.Now(),
		Parts:     []message.Part{message.TextPart("")},
	})
	a.attachAnimator(a.chatMsgID, true, false)

	history := []transport.ChatMessage{{ChatID: chatID, Role: "user", Content: text}}
	return func() tea.Msg {
		stream, err := a.client.StreamChat(context.Background(), chatID, history)
		return chatStreamMsg{stream: stream, err: err}
	}
}

// readChatStream pumps completion chunks into the assistant message. The
// store's change channel wakes the UI; no per-chunk Bubble Tea messages.
func (a *app) readChatStream(stream *transport.ChatStream) tea.Cmd {
	msgID := a.chatMsgID
	return func() tea.Msg {
		defer stream.Body.Close()

		buf := make([]byte, 4096)
		for {
			n, err := stream.Body.Read(buf)
			if n > 0 {
				chunk := string(buf[:n])
				a.store.Patch(msgID, func(m *message.Message) {
					for i := range m.Parts {
						if m.Parts[i].Type == message.PartText {
							m.Parts[i].Text += chunk
							return
						}
					}
					m.Parts = append(m.Parts, message.TextPart(chunk))
				})
			}
			if err == io.EOF {
				return chatStreamDoneMsg{}
			}
			if err != nil {
				return chatStreamDoneMsg{err: err}
			}
		}
	}
}

func (a *app) stopChatStream() {
	if a.chatStream == nil {
		return
	}
	a.chatStream.Stop()
	a.store.Patch(a.chatMsgID, func(m *message.Message) {
		m.Parts = append(m.Parts, message.StoppedPart())
	})
}

// editLastMessage rewinds the last user/assistant pair server-side and
// resends the edited text.
func (a *app) editLastMessage(text string) tea.Cmd {
	snap := a.store.Snapshot()
	idx := -1
	for i := len(snap) - 1; i >= 0; i-- {
		if snap[i].Role == message.RoleUser {
			idx = i
			break
		}
	}
	if idx == -1 {
		a.errText = "nothing to edit"
		return nil
	}
	count := len(snap) - idx
	a.store.TruncateFrom(idx)

	truncate := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.RequestTimeout)
		defer cancel()
		if err := a.client.TruncateChat(ctx, chatID, count); err != nil {
			return errMsg{err}
		}
		if err := a.client.CreateMessage(ctx, chatID, "user", text); err != nil {
			return errMsg{err}
		}
		return storeChangedMsg{}
	}
	return tea.Batch(truncate, a.sendChat(text))
}

func (a *app) persistCache() tea.Cmd {
	snapshot := a.store.Snapshot()
	streaming := a.chatStream != nil
	if session, ok := a.manager.Get(chatID); ok && session.State() == deepsearch.StateActive {
		streaming = true
	}
	return func() tea.Msg {
		err := a.cache.UpsertCachedChat(context.Background(), chatcache.CachedChat{
			ChatID:    chatID,
			Messages:  snapshot,
			Streaming: streaming,
			UpdatedAt: time.Now(),
		})
		if err != nil {
			a.log.Warn("cache write failed", "error", err)
		}
		return nil
	}
}

// attachAnimatorToTail puts the reveal animator on the last assistant
// message, as after a resume.
func (a *app) attachAnimatorToTail(streaming bool) {
	snap := a.store.Snapshot()
	for i := len(snap) - 1; i >= 0; i-- {
		if snap[i].Role == message.RoleAssistant {
			a.attachAnimator(snap[i].ID, streaming, true)
			return
		}
	}
}

func (a *app) attachAnimator(msgID string, streaming, resumed bool) {
	msg, ok := a.store.Get(msgID)
	if !ok {
		return
	}
	a.animatedID = msgID
	a.animatorResumed = resumed
	a.animator = replay.New(msg.Reasoning(), msg.Text(), streaming, replay.Config{
		CatchUpCharsPerTick: a.cfg.CatchUpCharsTick,
		SteadyCharsPerTick:  a.cfg.SteadyCharsTick,
		TickInterval:        a.cfg.TickInterval,
	})
}

func (a *app) stepAnimator() {
	if a.animator == nil {
		return
	}

	if msg, ok := a.store.Get(a.animatedID); ok {
		streaming := a.chatMsgID == a.animatedID && a.chatStream != nil
		if session, ok := a.manager.Get(chatID); ok && session.State() == deepsearch.StateActive {
			streaming = true
		}
		a.animator.SetContent(msg.Reasoning(), msg.Text(), streaming)
	}

	a.animator.Step()
	if a.animator.State() == replay.StateSettled {
		a.animator = nil
		a.animatedID = ""
		a.animatorResumed = false
	}
	a.renderTranscript()
}

func (a *app) renderTranscript() {
	if !a.ready {
		return
	}

	var b strings.Builder
	for _, msg := range a.store.Snapshot() {
		b.WriteString(a.renderMessage(msg))
		b.WriteString("\n")
	}
	atBottom := a.view.AtBottom()
	a.view.SetContent(b.String())
	if atBottom {
		a.view.GotoBottom()
	}
}

func (a *app) renderMessage(msg message.Message) string {
	var b strings.Builder

	switch msg.Role {
	case message.RoleUser:
		b.WriteString(userStyle.Render("you") + "\n")
	default:
		b.WriteString(assistantStyle.Render("lucent") + "\n")
	}

	reasoning, text := msg.Reasoning(), msg.Text()
	if a.animator != nil && msg.ID == a.animatedID {
		if a.animatorResumed && a.animator.Resuming() {
			b.WriteString(statusStyle.Render(
				fmt.Sprintf("resuming… (%s)", a.animator.Elapsed().Round(time.Second))) + "\n")
		}
		reasoning, text = a.animator.Visible()
	}

	for _, part := range msg.Parts {
		switch part.Type {
		case message.PartResearchProgress:
			b.WriteString(renderProgress(part) + "\n")
		case message.PartClarifyQuestions:
			b.WriteString(progressStyle.Render("Before diving in, a couple of questions:") + "\n")
			for i, q := range part.Questions {
				b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, q))
			}
			b.WriteString(statusStyle.Render("Answer with semicolon-separated replies.") + "\n")
		case message.PartStopped:
			b.WriteString(statusStyle.Render("[stopped]") + "\n")
		case message.PartSource:
			b.WriteString(statusStyle.Render("  • "+part.Title+" · "+part.URL) + "\n")
		}
	}

	if reasoning != "" {
		b.WriteString(reasoningStyle.Render(reasoning) + "\n")
	}
	if text != "" {
		b.WriteString(text + "\n")
	}

	return b.String()
}

func renderProgress(part message.Part) string {
	p := part.Progress
	if p == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(progressStyle.Render(fmt.Sprintf("[%s] %s", p.Phase, p.PhaseDescription)))
	if p.Percent > 0 {
		b.WriteString(progressStyle.Render(fmt.Sprintf(" %d%%", p.Percent)))
	}
	if p.Message != "" {
		b.WriteString(" " + statusStyle.Render(p.Message))
	}
	for _, s := range p.Searches {
		b.WriteString("\n" + statusStyle.Render(fmt.Sprintf("  search %d/%d: %s", s.Index, s.Total, s.Query)))
	}
	if p.IsComplete {
		b.WriteString("\n" + statusStyle.Render(fmt.Sprintf("  done in %.0fs, %d sources", p.Elapsed, len(p.Sources))))
	}
	return b.String()
}

func (a *app) View() string {
	if a.quitting {
		return ""
	}
	if !a.ready {
		return "loading…"
	}

	status := statusStyle.Render(a.settings.get().Model + " · enter to send · esc to stop · ctrl+c to quit")
	if session, ok := a.manager.Get(chatID); ok {
		switch session.State() {
		case deepsearch.StateActive:
			status = progressStyle.Render("deep research running…")
		case deepsearch.StateAwaitingClarification:
			status = progressStyle.Render("waiting for your answers")
		}
	}
	if a.errText != "" {
		status = errorStyle.Render(a.errText)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		userStyle.Render(" lucent "),
		a.view.View(),
		a.input.View(),
		status,
	)
}
