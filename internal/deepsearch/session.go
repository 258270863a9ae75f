// Package deepsearch owns the client side of a deep-research run: it
// opens the event stream, folds events into the placeholder message, and
// reconciles optimistic state against the database when the run ends.
package deepsearch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/lucentai/lucent-client/internal/logger"
	"github.com/lucentai/lucent-client/internal/message"
	"github.com/lucentai/lucent-client/internal/metrics"
	"github.com/lucentai/lucent-client/internal/research"
	"github.com/lucentai/lucent-client/internal/stream"
	"github.com/lucentai/lucent-client/internal/transport"
)

// State is the session's lifecycle position.
type State string

const (
	StateIdle                  State = "idle"
	StateActive                State = "active"
	StateAwaitingClarification State = "awaiting_clarification"
	StateComplete              State = "complete"
	StateFailed                State = "failed"
)

// Session drives one research run against one placeholder message.
//
// While the session is active it has exclusive write access to the
// placeholder's parts. Frames are applied strictly in arrival order by a
// single read loop; there is no reordering. On stream end the local
// optimistic parts are discarded in favor of the server's persisted
// transcript, because only the server knows the final source list, IDs
// and ordering.
type Session struct {
	chatID        string
	placeholderID string
	query         string

	store  *message.Store
	client *transport.Client
	log    *logger.Logger

	settleDelay time.Duration

	mu               sync.RWMutex
	state            State
	progress         research.Progress
	streamedText     strings.Builder
	clarifyQuestions []string

	done       chan struct{}
	doneOnce   sync.Once
	onTerminal func(*Session)
}

// ChatID returns the chat this session belongs to.
func (s *Session) ChatID() string { return s.chatID }

// PlaceholderID returns the id of the assistant message this session
// writes into.
func (s *Session) PlaceholderID() string { return s.placeholderID }

// Query returns the research query.
func (s *Session) Query() string { return s.query }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// ClarifyQuestions returns the pending clarifying questions, or nil when
// the session is not awaiting clarification.
func (s *Session) ClarifyQuestions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.clarifyQuestions
}

// Progress returns the latest folded snapshot.
func (s *Session) Progress() research.Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

// Wait blocks until the session reaches a terminal or paused state:
// complete, failed, or awaiting clarification.
func (s *Session) Wait() {
	<-s.done
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// signalDone releases Wait callers. Reused across the clarify pause: a
// session resumed with answers gets a fresh done channel.
func (s *Session) signalDone() {
	s.doneOnce.Do(func() {
		close(s.done)
	})
}

// run consumes the event stream until it ends, pauses on clarify, or
// fails. It is the only goroutine touching the placeholder while active.
func (s *Session) run(ctx context.Context, body io.ReadCloser) {
	defer body.Close()

	log := s.log.WithContext(ctx)
	dec := stream.NewFrameDecoder(body, s.log)

	for {
		ev, err := dec.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.complete(ctx)
				return
			}
			log.Error("research stream read failed", slog.String("error", err.Error()))
			s.fail(err)
			return
		}

		if s.apply(ev) {
			// Clarify: stop consuming; the deferred close releases the
			// connection. Frames already in flight are never applied.
			log.Info("research paused for clarification",
				slog.String("chat_id", s.chatID),
				slog.Int("questions", len(s.clarifyQuestions)))
			s.signalDone()
			return
		}
	}
}

// apply folds one event into the session. Returns true when the session
// must pause for user input.
func (s *Session) apply(ev stream.Event) (pause bool) {
	s.mu.Lock()
	outcome := research.Apply(s.progress, ev)
	s.progress = outcome.Progress

	if outcome.TextDelta != "" {
		s.streamedText.WriteString(outcome.TextDelta)
	}

	if outcome.AwaitUser {
		s.clarifyQuestions = outcome.Questions
		s.state = StateAwaitingClarification
		questions := outcome.Questions
		progress := s.progress
		s.mu.Unlock()

		s.store.SetParts(s.placeholderID, []message.Part{
			message.ProgressPart(progress),
			message.ClarifyPart(questions),
		})
		return true
	}

	progress := s.progress
	text := s.streamedText.String()
	s.mu.Unlock()

	// Text events update only the text part; everything else rebuilds
	// the progress part too.
	if !outcome.ProgressChanged && outcome.TextDelta != "" {
		s.store.Patch(s.placeholderID, func(m *message.Message) {
			for i := range m.Parts {
				if m.Parts[i].Type == message.PartText {
					m.Parts[i].Text = text
					return
				}
			}
			m.Parts = append(m.Parts, message.TextPart(text))
		})
		return false
	}

	parts := []message.Part{message.ProgressPart(progress)}
	if text != "" {
		parts = append(parts, message.TextPart(text))
	}
	s.store.SetParts(s.placeholderID, parts)
	return false
}

// complete runs the reconciliation point: wait out the settle delay so
// the backend finishes persisting, then replace the whole local list with
// the server's version in one step.
func (s *Session) complete(ctx context.Context) {
	log := s.log.WithContext(logger.WithOperation(ctx, "reload"))

	select {
	case <-time.After(s.settleDelay):
	case <-ctx.Done():
	}

	rows, err := s.client.FetchChat(ctx, s.chatID)
	if err != nil {
		// Graceful degradation: the user keeps the optimistic content.
		metrics.ReloadFailures.Inc()
		log.Error("post-completion reload failed, keeping local state",
			slog.String("chat_id", s.chatID),
			slog.String("error", err.Error()))
	} else {
		s.store.ReplaceAll(transport.ToUIMessages(rows))
	}

	s.setState(StateComplete)
	metrics.SessionsCompleted.Inc()
	log.Info("research session completed",
		slog.String("chat_id", s.chatID),
		slog.Int("streamed_bytes", s.streamedText.Len()))

	s.finish()
}

// fail converts the error into in-message content so the transcript
// remains the record of what happened. No automatic retry.
func (s *Session) fail(err error) {
	s.store.SetParts(s.placeholderID, []message.Part{
		message.TextPart("Deep research failed: " + err.Error()),
	})

	s.setState(StateFailed)
	metrics.SessionsFailed.Inc()
	s.finish()
}

func (s *Session) finish() {
	s.signalDone()
	if s.onTerminal != nil {
		s.onTerminal(s)
	}
}
