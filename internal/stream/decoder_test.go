package stream

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucentai/lucent-client/internal/logger"
)

// chunkedReader returns the wire bytes in fixed-size chunks to exercise
// frames split at arbitrary boundaries.
type chunkedReader struct {
	data  string
	pos   int
	chunk int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	end := r.pos + r.chunk
	if end > len(r.data) {
		end = len(r.data)
	}
	n := copy(p, r.data[r.pos:end])
	r.pos += n
	return n, nil
}

func wire(frames ...string) string {
	var b strings.Builder
	for _, f := range frames {
		b.WriteString("data: ")
		b.WriteString(f)
		b.WriteString("\n\n")
	}
	return b.String()
}

func drain(t *testing.T, r io.Reader) []Event {
	t.Helper()
	dec := NewFrameDecoder(r, logger.Discard())

	var events []Event
	for {
		ev, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return events
		}
		require.NoError(t, err)
		events = append(events, ev)
	}
}

func TestDecoderChunkBoundaryIndependence(t *testing.T) {
	data := wire(
		`{"type":"phase","phase":"planning","description":"Starting"}`,
		`{"type":"search","query":"solar output","index":1,"total":3}`,
		`{"type":"text","text":"Hello "}`,
		`{"type":"text","text":"world"}`,
		`{"type":"complete","elapsed":12,"sources":[{"url":"https://a","title":"A"}]}`,
	)

	whole := drain(t, strings.NewReader(data))
	require.Len(t, whole, 5)

	for _, chunk := range []int{1, 2, 3, 5, 7, 16, 64, len(data)} {
		got := drain(t, &chunkedReader{data: data, chunk: chunk})
		assert.Equal(t, whole, got, "chunk size %d", chunk)
	}
}

func TestDecoderMalformedFrameSkipped(t *testing.T) {
	data := wire(
		`{"type":"phase","phase":"planning","description":"Starting"}`,
		`{"type":"progress","percent":`, // truncated JSON
		`{"type":"progress","percent":40,"message":"reading"}`,
	)

	events := drain(t, strings.NewReader(data))
	require.Len(t, events, 2)
	assert.Equal(t, EventPhase, events[0].Type())
	assert.Equal(t, EventProgress, events[1].Type())
}

func TestDecoderUnknownTypeQuarantined(t *testing.T) {
	data := wire(
		`{"type":"telemetry","cpu":97}`,
		`{"type":"text","text":"ok"}`,
	)

	events := drain(t, strings.NewReader(data))
	require.Len(t, events, 1)
	assert.Equal(t, TextEvent{Text: "ok"}, events[0])
}

func TestDecoderIgnoresNonDataLines(t *testing.T) {
	data := ": keepalive\n\n" +
		"event: progress\ndata: " + `{"type":"progress","percent":10,"message":"m"}` + "\n\n" +
		"id: 42\n\n"

	events := drain(t, strings.NewReader(data))
	require.Len(t, events, 1)
	assert.Equal(t, ProgressEvent{Percent: 10, Message: "m"}, events[0])
}

func TestDecoderDropsTrailingIncompleteFrame(t *testing.T) {
	data := wire(`{"type":"text","text":"a"}`) +
		`data: {"type":"text","text":"never terminated"}` // no blank line

	events := drain(t, strings.NewReader(data))
	require.Len(t, events, 1)
	assert.Equal(t, TextEvent{Text: "a"}, events[0])
}

func TestDecoderDrainsBufferedFramesAfterEOF(t *testing.T) {
	// A reader may return data and io.EOF from the same Read call.
	data := wire(
		`{"type":"text","text":"a"}`,
		`{"type":"text","text":"b"}`,
	)
	events := drain(t, &eofReader{data: data})
	require.Len(t, events, 2)
}

type eofReader struct {
	data string
	done bool
}

func (r *eofReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, io.EOF
	}
	r.done = true
	return copy(p, r.data), io.EOF
}

func TestParseEventAllTags(t *testing.T) {
	cases := []struct {
		payload string
		want    Event
	}{
		{`{"type":"clarify","questions":["scope?","timeframe?"]}`, ClarifyEvent{Questions: []string{"scope?", "timeframe?"}}},
		{`{"type":"phase","phase":"searching","description":"Searching the web"}`, PhaseEvent{Phase: "searching", Description: "Searching the web"}},
		{`{"type":"progress","percent":55,"message":"halfway"}`, ProgressEvent{Percent: 55, Message: "halfway"}},
		{`{"type":"search","query":"x","index":1,"total":3}`, SearchEvent{Query: "x", Index: 1, Total: 3}},
		{`{"type":"source","url":"https://a","title":"A"}`, SourceEvent{Source: Source{URL: "https://a", Title: "A"}}},
		{`{"type":"report_start"}`, ReportStartEvent{}},
		{`{"type":"text","text":"chunk"}`, TextEvent{Text: "chunk"}},
		{`{"type":"complete","elapsed":9.5,"sources":[]}`, CompleteEvent{Elapsed: 9.5, Sources: []Source{}}},
	}

	for _, tc := range cases {
		ev, err := ParseEvent([]byte(tc.payload))
		require.NoError(t, err, tc.payload)
		assert.Equal(t, tc.want, ev)
	}
}

func TestParseEventErrors(t *testing.T) {
	_, err := ParseEvent([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformedFrame)

	_, err = ParseEvent([]byte(`{"type":"mystery"}`))
	assert.ErrorIs(t, err, ErrUnknownEventType)
}
