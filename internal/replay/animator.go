// Package replay reveals a previously-buffered partial response with a
// typing animation after a reload or reconnect.
//
// The server may hand back thousands of already-generated characters
// while generation is still running remotely. Flashing the backlog at
// once breaks the live feel; revealing it at true token speed would lag
// for minutes. The animator fast-forwards through the backlog at a
// catch-up rate, then settles into a steady per-tick rate for content
// arriving live.
package replay

import (
	"context"
	"sync"
	"time"
)

// State is the animator's phase.
type State int

const (
	// StateCatchingUp reveals backlog at the accelerated rate.
	StateCatchingUp State = iota
	// StateSteady reveals live growth at the steady rate.
	StateSteady
	// StateSettled means everything is revealed and generation is done;
	// the message belongs to normal rendering now.
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateCatchingUp:
		return "catching-up"
	case StateSteady:
		return "steady"
	case StateSettled:
		return "settled"
	}
	return "unknown"
}

// Config sets the reveal rates. Zero values fall back to defaults.
type Config struct {
	// CatchUpCharsPerTick is the reveal rate while clearing backlog.
	CatchUpCharsPerTick int
	// SteadyCharsPerTick is the reveal rate once caught up.
	SteadyCharsPerTick int
	// TickInterval is the spacing of animation ticks in Run.
	TickInterval time.Duration
}

const (
	defaultCatchUpCharsPerTick = 120
	defaultSteadyCharsPerTick  = 3
	defaultTickInterval        = 16 * time.Millisecond
)

// Animator owns the reveal counters for one resumed message.
//
// Invariants, held at every tick:
//   - both revealed lengths are monotonically non-decreasing and never
//     exceed their source lengths;
//   - text only starts revealing once reasoning has fully revealed the
//     length known at the start of the catch-up episode (reasoning gates
//     text), unless reasoning is empty.
type Animator struct {
	mu sync.Mutex

	state State

	reasoning string
	text      string
	streaming bool

	revealedReasoning int
	revealedText      int

	// Lengths recorded the last time the sources grew. Catch-up exits
	// once both revealed counters have met them.
	lastKnownReasoning int
	lastKnownText      int

	// Reasoning length at the start of this catch-up episode; the gate
	// text reveal waits behind.
	episodeReasoning int

	catchUpRate int
	steadyRate  int
	interval    time.Duration

	startedAt time.Time
	changed   chan struct{}
}

// New creates an animator for a resumed message. reasoning and text are
// the buffered partial response; streaming reports whether the server
// says generation is still in progress.
func New(reasoning, text string, streaming bool, cfg Config) *Animator {
	if cfg.CatchUpCharsPerTick <= 0 {
		cfg.CatchUpCharsPerTick = defaultCatchUpCharsPerTick
	}
	if cfg.SteadyCharsPerTick <= 0 {
		cfg.SteadyCharsPerTick = defaultSteadyCharsPerTick
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}

	return &Animator{
		state:              StateCatchingUp,
		reasoning:          reasoning,
		text:               text,
		streaming:          streaming,
		lastKnownReasoning: len(reasoning),
		lastKnownText:      len(text),
		episodeReasoning:   len(reasoning),
		catchUpRate:        cfg.CatchUpCharsPerTick,
		steadyRate:         cfg.SteadyCharsPerTick,
		interval:           cfg.TickInterval,
		startedAt:          time.Now(),
		changed:            make(chan struct{}, 1),
	}
}

// SetContent updates the source strings as more content arrives from the
// server. Sources only grow; a shorter update is ignored to keep the
// revealed counters bounded.
func (a *Animator) SetContent(reasoning, text string, streaming bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(reasoning) > len(a.reasoning) {
		a.reasoning = reasoning
		a.lastKnownReasoning = len(reasoning)
	}
	if len(text) > len(a.text) {
		a.text = text
		a.lastKnownText = len(text)
	}
	a.streaming = streaming
}

// Step advances the animation by one tick.
func (a *Animator) Step() {
	a.mu.Lock()

	if a.state == StateSettled {
		a.mu.Unlock()
		return
	}

	rate := a.steadyRate
	if a.state == StateCatchingUp {
		rate = a.catchUpRate
	}

	a.revealedReasoning = clamp(a.revealedReasoning+rate, len(a.reasoning))

	// Reasoning gates text: the final report only starts typing once the
	// reasoning known at episode start is fully shown.
	if a.revealedReasoning >= a.episodeReasoning {
		a.revealedText = clamp(a.revealedText+rate, len(a.text))
	}

	if a.state == StateCatchingUp &&
		a.revealedReasoning >= a.lastKnownReasoning &&
		a.revealedText >= a.lastKnownText {
		a.state = StateSteady
	}

	if a.revealedReasoning == len(a.reasoning) &&
		a.revealedText == len(a.text) &&
		!a.streaming {
		a.state = StateSettled
	}

	a.mu.Unlock()
	a.notify()
}

func clamp(v, max int) int {
	if v > max {
		return max
	}
	return v
}

// State returns the current phase.
func (a *Animator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Visible returns the currently revealed reasoning and text.
func (a *Animator) Visible() (reasoning, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reasoning[:a.revealedReasoning], a.text[:a.revealedText]
}

// Revealed returns the raw counters. Exposed for observability and tests.
func (a *Animator) Revealed() (reasoning, text int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.revealedReasoning, a.revealedText
}

// Resuming reports whether no content has arrived at all yet; the UI
// shows a distinct resuming indicator instead of an empty bubble.
func (a *Animator) Resuming() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.reasoning) == 0 && len(a.text) == 0 && a.streaming
}

// Elapsed returns how long the resume has been running, for the
// resuming indicator's readout.
func (a *Animator) Elapsed() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return time.Since(a.startedAt)
}

// Changed returns a coalesced notification channel signalled after each
// tick that changed visible state.
func (a *Animator) Changed() <-chan struct{} {
	return a.changed
}

func (a *Animator) notify() {
	select {
	case a.changed <- struct{}{}:
	default:
	}
}

// Run drives the animation on a ticker until the animator settles or the
// context is cancelled. The loop keeps ticking while anything remains
// unrevealed or the server still reports live generation, so the
// animation never stalls ahead of real content.
func (a *Animator) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Step()
			if a.State() == StateSettled {
				return
			}
		}
	}
}
