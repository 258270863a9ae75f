package stream

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType is the discriminator tag carried in every research frame.
type EventType string

const (
	EventClarify     EventType = "clarify"
	EventPhase       EventType = "phase"
	EventProgress    EventType = "progress"
	EventSearch      EventType = "search"
	EventSource      EventType = "source"
	EventReportStart EventType = "report_start"
	EventText        EventType = "text"
	EventComplete    EventType = "complete"
)

var (
	// ErrMalformedFrame indicates a frame whose JSON payload failed to parse.
	// Callers skip these; one bad frame must not abort a research session.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrUnknownEventType indicates a frame with a type tag outside the
	// supported event set. These are quarantined, never applied.
	ErrUnknownEventType = errors.New("unknown event type")
)

// Event is one decoded research stream event. The concrete type is
// determined by the frame's type tag.
type Event interface {
	Type() EventType
}

// ClarifyEvent asks the user clarifying questions before research proceeds.
type ClarifyEvent struct {
	Questions []string `json:"questions"`
}

func (ClarifyEvent) Type() EventType { return EventClarify }

// PhaseEvent announces a phase transition.
type PhaseEvent struct {
	Phase       string `json:"phase"`
	Description string `json:"description"`
}

func (PhaseEvent) Type() EventType { return EventPhase }

// ProgressEvent reports percent completion and a status line.
// Percent is server-reported and not guaranteed monotonic.
type ProgressEvent struct {
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

func (ProgressEvent) Type() EventType { return EventProgress }

// SearchEvent announces one query of a concurrently-executing search batch.
type SearchEvent struct {
	Query string `json:"query"`
	Index int    `json:"index"`
	Total int    `json:"total"`
}

func (SearchEvent) Type() EventType { return EventSearch }

// Source is a discovered reference. The server is the source of truth for
// deduplication; the client never filters.
type Source struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// SourceEvent announces a discovered source.
type SourceEvent struct {
	Source
}

func (SourceEvent) Type() EventType { return EventSource }

// ReportStartEvent marks the transition into report writing. It carries no
// state; the UI may use it to switch views.
type ReportStartEvent struct{}

func (ReportStartEvent) Type() EventType { return EventReportStart }

// TextEvent carries an incremental chunk of the final report text.
type TextEvent struct {
	Text string `json:"text"`
}

func (TextEvent) Type() EventType { return EventText }

// CompleteEvent ends the stream. Sources, when present, is the server's
// final authoritative list and replaces everything accumulated so far.
type CompleteEvent struct {
	Elapsed float64  `json:"elapsed"`
	Sources []Source `json:"sources"`
}

func (CompleteEvent) Type() EventType { return EventComplete }

// ParseEvent decodes one frame payload into a typed event.
//
// The tag is probed first, then the payload is unmarshalled into the
// matching concrete type. Unknown tags return ErrUnknownEventType rather
// than falling through silently.
func ParseEvent(data []byte) (Event, error) {
	var probe struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	switch probe.Type {
	case EventClarify:
		var ev ClarifyEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return ev, nil
	case EventPhase:
		var ev PhaseEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return ev, nil
	case EventProgress:
		var ev ProgressEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return ev, nil
	case EventSearch:
		var ev SearchEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return ev, nil
	case EventSource:
		var ev SourceEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return ev, nil
	case EventReportStart:
		return ReportStartEvent{}, nil
	case EventText:
		var ev TextEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return ev, nil
	case EventComplete:
		var ev CompleteEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, probe.Type)
	}
}
