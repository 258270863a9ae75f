package message

import (
	"sync"
)

// Store is the ordered, in-memory message list backing a chat view.
//
// Mutations are optimistic: messages are appended/patched locally as the
// user acts and streams arrive, then the whole list may be replaced in
// one step by the server's canonical version when a research session
// reconciles. ReplaceAll is atomic so observers never see a partially
// merged transcript.
//
// Thread-safety: all methods are safe for concurrent use, but the design
// assumes a single writer per chat (the session reconciler while one is
// active).
type Store struct {
	mu       sync.RWMutex
	messages []Message

	// changed coalesces change notifications for pollers such as a TUI
	// event loop. Buffered to one; extra notifications are dropped.
	changed chan struct{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		changed: make(chan struct{}, 1),
	}
}

// Changed returns a channel that receives a signal after mutations.
// Notifications are coalesced; receivers should re-read Snapshot.
func (s *Store) Changed() <-chan struct{} {
	return s.changed
}

func (s *Store) notify() {
	select {
	case s.changed <- struct{}{}:
	default:
	}
}

// Append adds a message at the end of the list.
func (s *Store) Append(msg Message) {
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.notify()
}

// Get returns a copy of the message with the given id.
func (s *Store) Get(id string) (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.messages {
		if m.ID == id {
			return cloneMessage(m), true
		}
	}
	return Message{}, false
}

// Patch applies fn to the message with the given id, in place.
// Returns false if no such message exists.
func (s *Store) Patch(id string, fn func(*Message)) bool {
	s.mu.Lock()
	var patched bool
	for i := range s.messages {
		if s.messages[i].ID == id {
			fn(&s.messages[i])
			patched = true
			break
		}
	}
	s.mu.Unlock()

	if patched {
		s.notify()
	}
	return patched
}

// SetParts replaces the parts of the message with the given id.
func (s *Store) SetParts(id string, parts []Part) bool {
	return s.Patch(id, func(m *Message) {
		m.Parts = parts
	})
}

// Remove deletes the message with the given id. Returns false if absent.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	var removed bool
	for i := range s.messages {
		if s.messages[i].ID == id {
			s.messages = append(s.messages[:i], s.messages[i+1:]...)
			removed = true
			break
		}
	}
	s.mu.Unlock()

	if removed {
		s.notify()
	}
	return removed
}

// TruncateFrom discards the message at index and everything after it.
// Used when the user edits a prior message before resubmitting.
func (s *Store) TruncateFrom(index int) {
	s.mu.Lock()
	if index >= 0 && index < len(s.messages) {
		s.messages = s.messages[:index]
	}
	s.mu.Unlock()
	s.notify()
}

// ReplaceAll swaps the entire list for the server's canonical version in
// one step.
func (s *Store) ReplaceAll(messages []Message) {
	next := make([]Message, len(messages))
	for i, m := range messages {
		next[i] = cloneMessage(m)
	}

	s.mu.Lock()
	s.messages = next
	s.mu.Unlock()
	s.notify()
}

// Snapshot returns a copy of the current list.
func (s *Store) Snapshot() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = cloneMessage(m)
	}
	return out
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// IndexOf returns the position of the message with the given id, or -1.
func (s *Store) IndexOf(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, m := range s.messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func cloneMessage(m Message) Message {
	out := m
	out.Parts = append([]Part(nil), m.Parts...)
	return out
}
