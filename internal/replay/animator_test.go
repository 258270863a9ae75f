package replay

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{CatchUpCharsPerTick: 50, SteadyCharsPerTick: 2}
}

func stepUntil(t *testing.T, a *Animator, pred func() bool) int {
	t.Helper()
	for i := 0; i < 10000; i++ {
		if pred() {
			return i
		}
		a.Step()
	}
	t.Fatal("condition never reached")
	return 0
}

// Reveal counters never exceed their sources, at any tick count.
func TestRevealBoundedness(t *testing.T) {
	reasoning := strings.Repeat("r", 137)
	text := strings.Repeat("t", 89)
	a := New(reasoning, text, false, testConfig())

	for i := 0; i < 500; i++ {
		a.Step()
		r, x := a.Revealed()
		require.LessOrEqual(t, r, len(reasoning))
		require.LessOrEqual(t, x, len(text))
	}

	r, x := a.Revealed()
	assert.Equal(t, len(reasoning), r)
	assert.Equal(t, len(text), x)
}

// Text must not start revealing until reasoning has fully revealed the
// length known at episode start.
func TestReasoningGatesText(t *testing.T) {
	reasoning := strings.Repeat("r", 300)
	text := strings.Repeat("t", 100)
	a := New(reasoning, text, false, testConfig())

	for i := 0; i < 200; i++ {
		a.Step()
		r, x := a.Revealed()
		if x > 0 {
			require.GreaterOrEqual(t, r, len(reasoning),
				"text advanced before reasoning finished")
		}
	}
}

// Reloading mid-generation with 500 chars of reasoning and no text:
// reasoning must fully reveal strictly before text leaves zero, even as
// text arrives later.
func TestResumeScenarioReasoningFirst(t *testing.T) {
	reasoning := strings.Repeat("r", 500)
	a := New(reasoning, "", true, testConfig())

	sawFullReasoningBeforeText := false
	for i := 0; i < 50; i++ {
		a.Step()
		r, x := a.Revealed()
		require.Zero(t, x)
		if r == 500 {
			sawFullReasoningBeforeText = true
			break
		}
	}
	require.True(t, sawFullReasoningBeforeText)

	// Live text starts arriving; it may now reveal.
	a.SetContent(reasoning, "the report begins", true)
	a.Step()
	_, x := a.Revealed()
	assert.Greater(t, x, 0)
}

func TestCatchUpTransitionsToSteady(t *testing.T) {
	a := New(strings.Repeat("r", 200), strings.Repeat("t", 100), true, testConfig())

	require.Equal(t, StateCatchingUp, a.State())
	stepUntil(t, a, func() bool { return a.State() == StateSteady })

	r, x := a.Revealed()
	assert.Equal(t, 200, r)
	assert.Equal(t, 100, x)

	// Still streaming: the loop must not settle.
	for i := 0; i < 20; i++ {
		a.Step()
	}
	assert.Equal(t, StateSteady, a.State())
}

func TestSettlesWhenStreamEndsAndAllRevealed(t *testing.T) {
	a := New("reason", "text", true, testConfig())

	stepUntil(t, a, func() bool { return a.State() == StateSteady })
	a.SetContent("reason", "text", false)
	a.Step()

	assert.Equal(t, StateSettled, a.State())

	// Settled is terminal; further ticks are no-ops.
	a.Step()
	assert.Equal(t, StateSettled, a.State())
}

func TestSteadyRateIsSlower(t *testing.T) {
	a := New(strings.Repeat("r", 100), "", true, testConfig())

	stepUntil(t, a, func() bool { return a.State() == StateSteady })

	// New live content reveals at the steady rate, not the catch-up rate.
	a.SetContent(strings.Repeat("r", 150), "", true)
	before, _ := a.Revealed()
	a.Step()
	after, _ := a.Revealed()
	assert.Equal(t, 2, after-before)
}

func TestSetContentIgnoresShrinkingSources(t *testing.T) {
	a := New("abcdef", "", true, testConfig())
	stepUntil(t, a, func() bool { r, _ := a.Revealed(); return r == 6 })

	a.SetContent("abc", "", true)
	r, _ := a.Revealed()
	reasoning, _ := a.Visible()
	assert.Equal(t, 6, r)
	assert.Equal(t, "abcdef", reasoning)
}

func TestResumingIndicator(t *testing.T) {
	a := New("", "", true, testConfig())
	assert.True(t, a.Resuming())
	assert.GreaterOrEqual(t, a.Elapsed(), time.Duration(0))

	a.SetContent("thinking", "", true)
	assert.False(t, a.Resuming())

	// Fully delivered but empty: not resuming, settles immediately.
	b := New("", "", false, testConfig())
	assert.False(t, b.Resuming())
	b.Step()
	assert.Equal(t, StateSettled, b.State())
}

func TestVisiblePrefixes(t *testing.T) {
	a := New("abcdefgh", "12345678", false, Config{CatchUpCharsPerTick: 3, SteadyCharsPerTick: 1})

	a.Step()
	reasoning, text := a.Visible()
	assert.Equal(t, "abc", reasoning)
	assert.Equal(t, "", text)

	stepUntil(t, a, func() bool { return a.State() == StateSettled })
	reasoning, text = a.Visible()
	assert.Equal(t, "abcdefgh", reasoning)
	assert.Equal(t, "12345678", text)
}
