// Package research models the evolving state of a deep-research run as
// seen by the client: a single snapshot folded from the event stream.
package research

import (
	"github.com/lucentai/lucent-client/internal/stream"
)

// Phase is the research phase reported by the backend. Phases are
// monotonic in practice but the client does not enforce ordering.
type Phase string

const (
	PhasePlanning  Phase = "planning"
	PhaseSearching Phase = "searching"
	PhaseAnalyzing Phase = "analyzing"
	PhaseDeepDive  Phase = "deep-dive"
	PhaseWriting   Phase = "writing"
	PhaseComplete  Phase = "complete"

	// PhaseClarify is client-only: the run is paused on clarifying
	// questions. The backend never sends it as a phase event.
	PhaseClarify Phase = "clarify"
)

// Search is one query of a server-side search batch.
type Search struct {
	Query string `json:"query"`
	Index int    `json:"index"`
	Total int    `json:"total"`
}

// Progress is the snapshot the UI renders while research runs.
//
// Snapshots are replaced wholesale: Apply builds a new value from the
// previous one plus a single event, and never drops accumulated searches
// or sources on an unrelated event.
type Progress struct {
	Phase            Phase           `json:"phase"`
	PhaseDescription string          `json:"phaseDescription"`
	Percent          int             `json:"percent"`
	Message          string          `json:"message"`
	Searches         []Search        `json:"searches"`
	Sources          []stream.Source `json:"sources"`
	IsComplete       bool            `json:"isComplete"`
	Elapsed          float64         `json:"elapsed,omitempty"`
}

// Initial returns the zeroed snapshot a placeholder message starts with.
func Initial() Progress {
	return Progress{
		Phase:            PhasePlanning,
		PhaseDescription: "Starting research",
	}
}

// Outcome carries the next snapshot plus the side-channel signals an
// event may produce alongside it.
type Outcome struct {
	Progress Progress

	// TextDelta is the incremental report text from a text event. It is
	// accumulated outside the snapshot.
	TextDelta string

	// Questions is non-nil exactly when the event was a clarify, which
	// also requires the caller to pause and await user input.
	Questions []string
	AwaitUser bool

	// ProgressChanged reports whether the snapshot itself changed. Text
	// events update only the accumulator, so the UI can skip rebuilding
	// the progress part for them.
	ProgressChanged bool
}

// Apply folds one event into the snapshot. Pure: the input snapshot is
// never mutated.
func Apply(p Progress, ev stream.Event) Outcome {
	switch e := ev.(type) {
	case stream.ClarifyEvent:
		next := p
		next.Phase = PhaseClarify
		return Outcome{Progress: next, Questions: e.Questions, AwaitUser: true, ProgressChanged: true}

	case stream.PhaseEvent:
		next := p
		next.Phase = Phase(e.Phase)
		next.PhaseDescription = e.Description
		return Outcome{Progress: next, ProgressChanged: true}

	case stream.ProgressEvent:
		next := p
		next.Percent = e.Percent
		next.Message = e.Message
		return Outcome{Progress: next, ProgressChanged: true}

	case stream.SearchEvent:
		next := p
		next.Searches = appendSearch(p.Searches, Search{Query: e.Query, Index: e.Index, Total: e.Total})
		return Outcome{Progress: next, ProgressChanged: true}

	case stream.SourceEvent:
		next := p
		next.Sources = appendSource(p.Sources, e.Source)
		return Outcome{Progress: next, ProgressChanged: true}

	case stream.ReportStartEvent:
		// Historical marker only.
		return Outcome{Progress: p, ProgressChanged: true}

	case stream.TextEvent:
		return Outcome{Progress: p, TextDelta: e.Text}

	case stream.CompleteEvent:
		next := p
		next.IsComplete = true
		next.Elapsed = e.Elapsed
		if e.Sources != nil {
			// The server's final list is authoritative, not merged.
			next.Sources = append([]stream.Source(nil), e.Sources...)
		}
		return Outcome{Progress: next, ProgressChanged: true}

	default:
		return Outcome{Progress: p}
	}
}

// appendSearch copies on append so older snapshots never observe later
// writes through a shared backing array.
func appendSearch(prev []Search, s Search) []Search {
	next := make([]Search, len(prev), len(prev)+1)
	copy(next, prev)
	return append(next, s)
}

func appendSource(prev []stream.Source, s stream.Source) []stream.Source {
	next := make([]stream.Source, len(prev), len(prev)+1)
	copy(next, prev)
	return append(next, s)
}
