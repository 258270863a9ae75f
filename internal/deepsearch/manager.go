package deepsearch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lucentai/lucent-client/internal/logger"
	"github.com/lucentai/lucent-client/internal/message"
	"github.com/lucentai/lucent-client/internal/metrics"
	"github.com/lucentai/lucent-client/internal/research"
	"github.com/lucentai/lucent-client/internal/transport"
)

var (
	// ErrSessionActive is returned when a research session is already
	// running for the chat. Concurrent sessions per chat are rejected
	// rather than racing two writers over one transcript.
	ErrSessionActive = errors.New("research session already active for chat")

	// ErrNoClarifyPending is returned when answers are submitted but no
	// session is awaiting clarification.
	ErrNoClarifyPending = errors.New("no clarification pending for chat")
)

// defaultSettleDelay is how long to wait after stream end before the
// authoritative reload, letting the backend finish persisting.
const defaultSettleDelay = 300 * time.Millisecond

// Manager tracks at most one research session per chat.
type Manager struct {
	client      *transport.Client
	log         *logger.Logger
	settleDelay time.Duration

	mu       sync.Mutex
	sessions map[string]*Session // key: chatID
}

// NewManager creates a session manager.
func NewManager(client *transport.Client, log *logger.Logger) *Manager {
	return &Manager{
		client:      client,
		log:         log.WithComponent("deepsearch"),
		settleDelay: defaultSettleDelay,
		sessions:    make(map[string]*Session),
	}
}

// SetSettleDelay overrides the post-stream settle delay. Zero is allowed
// and used by tests.
func (m *Manager) SetSettleDelay(d time.Duration) {
	m.settleDelay = d
}

// Get returns the session for a chat, if any.
func (m *Manager) Get(chatID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[chatID]
	return s, ok
}

// Start begins a research run: appends the user message and an assistant
// placeholder to the store synchronously, then opens the event stream.
//
// A pre-stream failure (request error or non-2xx status) removes the
// placeholder outright and returns the error; there is nothing worth
// keeping in the transcript for a run that never started.
func (m *Manager) Start(ctx context.Context, store *message.Store, chatID, query string) (*Session, error) {
	m.mu.Lock()
	if existing, ok := m.sessions[chatID]; ok {
		// Any registered non-terminal session blocks a new start. Idle
		// covers the reservation window while the stream request is still
		// in flight.
		switch existing.State() {
		case StateComplete, StateFailed:
		default:
			m.mu.Unlock()
			return nil, ErrSessionActive
		}
	}
	// Reserve the slot before releasing the lock so a rapid double-submit
	// cannot start two streams.
	placeholder := m.reserve(store, chatID, query, true)
	m.mu.Unlock()

	return m.openReserved(ctx, placeholder, transport.DeepSearchRequest{
		Query:  query,
		ChatID: chatID,
	})
}

// SubmitClarifyAnswers restarts a paused run with the collected answers.
// The new stream reuses the same placeholder; the paused session is
// discarded.
func (m *Manager) SubmitClarifyAnswers(ctx context.Context, chatID string, answers []transport.ClarifyAnswer) (*Session, error) {
	m.mu.Lock()
	paused, ok := m.sessions[chatID]
	if !ok || paused.State() != StateAwaitingClarification {
		m.mu.Unlock()
		return nil, ErrNoClarifyPending
	}
	delete(m.sessions, paused.chatID)
	paused.setState(StateIdle)
	store := paused.store
	reserved := &Session{
		chatID:        paused.chatID,
		placeholderID: paused.placeholderID,
		query:         paused.query,
		store:         store,
		client:        m.client,
		log:           m.log,
		settleDelay:   m.settleDelay,
		state:         StateIdle,
		progress:      research.Initial(),
		done:          make(chan struct{}),
	}
	m.sessions[paused.chatID] = reserved
	m.mu.Unlock()

	// Reset the placeholder to a fresh progress part; the restarted run
	// replays its phases from the top.
	store.SetParts(reserved.placeholderID, []message.Part{
		message.ProgressPart(research.Initial()),
	})

	return m.openReserved(ctx, reserved, transport.DeepSearchRequest{
		Query:          reserved.query,
		ChatID:         reserved.chatID,
		SkipClarify:    true,
		ClarifyAnswers: answers,
	})
}

// reserve creates the session slot and, when withUserMessage is set, the
// optimistic user message plus assistant placeholder. Caller holds m.mu.
func (m *Manager) reserve(store *message.Store, chatID, query string, withUserMessage bool) *Session {
	if withUserMessage {
		store.Append(message.Message{
			ID:        message.NewID(),
			Role:      message.RoleUser,
			CreatedAt: time.Now(),
			Parts:     []message.Part{message.TextPart(query)},
		})
	}

	placeholderID := message.NewID()
	store.Append(message.Message{
		ID:        placeholderID,
		Role:      message.RoleAssistant,
		CreatedAt: time.Now(),
		Parts:     []message.Part{message.ProgressPart(research.Initial())},
	})

	session := &Session{
		chatID:        chatID,
		placeholderID: placeholderID,
		query:         query,
		store:         store,
		client:        m.client,
		log:           m.log,
		settleDelay:   m.settleDelay,
		state:         StateIdle,
		progress:      research.Initial(),
		done:          make(chan struct{}),
	}
	m.sessions[chatID] = session
	return session
}

// openReserved opens the stream for an already-reserved session.
func (m *Manager) openReserved(ctx context.Context, session *Session, req transport.DeepSearchRequest) (*Session, error) {
	ctx = logger.WithChatID(ctx, session.chatID)
	ctx = logger.WithSessionID(ctx, logger.GenerateSessionID())

	body, err := m.client.OpenDeepSearch(ctx, req)
	if err != nil {
		m.log.WithContext(ctx).Error("failed to open research stream",
			slog.String("error", err.Error()))

		session.store.Remove(session.placeholderID)
		m.mu.Lock()
		if current, ok := m.sessions[session.chatID]; ok && current == session {
			delete(m.sessions, session.chatID)
		}
		m.mu.Unlock()
		metrics.SessionsFailed.Inc()
		return nil, err
	}

	session.setState(StateActive)
	session.onTerminal = m.release
	metrics.SessionsStarted.Inc()
	metrics.ActiveSessions.Inc()

	go func() {
		defer metrics.ActiveSessions.Dec()
		session.run(ctx, body)
	}()

	return session, nil
}

// release drops a terminal session from the table. Sessions paused on
// clarify stay registered so their answers can find them.
func (m *Manager) release(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.sessions[s.chatID]; ok && current == s {
		delete(m.sessions, s.chatID)
	}
}
