package research

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucentai/lucent-client/internal/stream"
)

func TestApplyPhase(t *testing.T) {
	out := Apply(Initial(), stream.PhaseEvent{Phase: "searching", Description: "Searching the web"})

	assert.Equal(t, PhaseSearching, out.Progress.Phase)
	assert.Equal(t, "Searching the web", out.Progress.PhaseDescription)
	assert.True(t, out.ProgressChanged)
}

func TestApplyProgress(t *testing.T) {
	out := Apply(Initial(), stream.ProgressEvent{Percent: 40, Message: "reading sources"})

	assert.Equal(t, 40, out.Progress.Percent)
	assert.Equal(t, "reading sources", out.Progress.Message)
}

func TestApplyTextLeavesSnapshotAlone(t *testing.T) {
	p := Initial()
	out := Apply(p, stream.TextEvent{Text: "chunk"})

	assert.Equal(t, "chunk", out.TextDelta)
	assert.False(t, out.ProgressChanged)
	assert.Equal(t, p, out.Progress)
}

func TestApplyClarify(t *testing.T) {
	out := Apply(Initial(), stream.ClarifyEvent{Questions: []string{"scope?"}})

	assert.True(t, out.AwaitUser)
	assert.Equal(t, []string{"scope?"}, out.Questions)
	assert.Equal(t, PhaseClarify, out.Progress.Phase)
}

// Searches and sources accumulate in arrival order with no drops until a
// complete event, which may replace sources wholesale.
func TestAccumulationOrder(t *testing.T) {
	events := []stream.Event{
		stream.SearchEvent{Query: "a", Index: 1, Total: 2},
		stream.SourceEvent{Source: stream.Source{URL: "https://1", Title: "one"}},
		stream.SearchEvent{Query: "b", Index: 2, Total: 2},
		stream.ProgressEvent{Percent: 50, Message: "mid"},
		stream.SourceEvent{Source: stream.Source{URL: "https://2", Title: "two"}},
	}

	p := Initial()
	for _, ev := range events {
		p = Apply(p, ev).Progress
	}

	require.Equal(t, []Search{
		{Query: "a", Index: 1, Total: 2},
		{Query: "b", Index: 2, Total: 2},
	}, p.Searches)
	require.Equal(t, []stream.Source{
		{URL: "https://1", Title: "one"},
		{URL: "https://2", Title: "two"},
	}, p.Sources)
}

func TestCompleteReplacesSourcesWholesale(t *testing.T) {
	p := Initial()
	p = Apply(p, stream.SourceEvent{Source: stream.Source{URL: "https://stale", Title: "stale"}}).Progress

	final := []stream.Source{{URL: "https://a", Title: "A"}}
	p = Apply(p, stream.CompleteEvent{Elapsed: 12, Sources: final}).Progress

	assert.True(t, p.IsComplete)
	assert.Equal(t, 12.0, p.Elapsed)
	assert.Equal(t, final, p.Sources)
}

func TestCompleteWithoutSourcesKeepsAccumulated(t *testing.T) {
	p := Initial()
	p = Apply(p, stream.SourceEvent{Source: stream.Source{URL: "https://a", Title: "A"}}).Progress
	p = Apply(p, stream.CompleteEvent{Elapsed: 3}).Progress

	assert.True(t, p.IsComplete)
	assert.Equal(t, []stream.Source{{URL: "https://a", Title: "A"}}, p.Sources)
}

// Snapshots are copy-on-write: applying an event to a snapshot must not
// mutate it or any earlier snapshot sharing its slices.
func TestApplyDoesNotMutateInput(t *testing.T) {
	base := Apply(Initial(), stream.SearchEvent{Query: "a", Index: 1, Total: 1}).Progress

	left := Apply(base, stream.SearchEvent{Query: "left", Index: 1, Total: 1}).Progress
	right := Apply(base, stream.SearchEvent{Query: "right", Index: 1, Total: 1}).Progress

	require.Len(t, base.Searches, 1)
	assert.Equal(t, "left", left.Searches[1].Query)
	assert.Equal(t, "right", right.Searches[1].Query)
}
