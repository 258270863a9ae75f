// Package stream decodes the research backend's SSE-style event stream
// into typed events.
//
// The wire format is frames of the form "data: {json}\n\n" delivered over
// a chunked HTTP response body. Chunk boundaries are arbitrary: a chunk
// may end mid-frame, so the decoder carries incomplete trailing data
// across reads.
package stream

import (
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/lucentai/lucent-client/internal/logger"
	"github.com/lucentai/lucent-client/internal/metrics"
)

const (
	// dataPrefix marks the lines forwarded for parsing. Everything else
	// (comments, event names, blank lines) is discarded.
	dataPrefix = "data: "

	// frameDelimiter separates complete frames.
	frameDelimiter = "\n\n"

	// readChunkSize is the size of the buffer handed to each Read call.
	readChunkSize = 16 * 1024
)

// FrameDecoder turns a raw byte stream into typed research events.
//
// Robustness policy: a frame with malformed JSON or an unknown type tag
// is counted, logged at debug, and skipped. Decoding continues with the
// next frame. Only transport-level read errors terminate the stream.
type FrameDecoder struct {
	r       io.Reader
	buf     []byte
	carry   string
	pending []string
	err     error
	log     *logger.Logger
}

// NewFrameDecoder creates a decoder reading from r. The reader is
// typically an HTTP response body; the decoder does not close it.
func NewFrameDecoder(r io.Reader, log *logger.Logger) *FrameDecoder {
	return &FrameDecoder{
		r:   r,
		buf: make([]byte, readChunkSize),
		log: log.WithComponent("frame-decoder"),
	}
}

// Next returns the next well-formed event in the stream.
//
// Returns io.EOF when the underlying stream is exhausted. A trailing
// incomplete frame at end of stream is dropped, matching the wire
// contract that every complete frame ends with a blank line.
func (d *FrameDecoder) Next() (Event, error) {
	for {
		// Drain frames decoded from earlier chunks first.
		for len(d.pending) > 0 {
			payload := d.pending[0]
			d.pending = d.pending[1:]

			ev, err := ParseEvent([]byte(payload))
			if err != nil {
				d.skip(payload, err)
				continue
			}

			metrics.FramesDecoded.Inc()
			return ev, nil
		}

		if d.err != nil {
			return nil, d.err
		}

		n, err := d.r.Read(d.buf)
		if n > 0 {
			d.ingest(string(d.buf[:n]))
		}
		if err != nil {
			// Defer the error until buffered frames are drained.
			d.err = err
		}
	}
}

// ingest appends a chunk to the carry buffer and extracts every complete
// frame. The last segment may be mid-frame and is retained for the next
// chunk rather than emitted.
func (d *FrameDecoder) ingest(chunk string) {
	d.carry += chunk

	segments := strings.Split(d.carry, frameDelimiter)
	d.carry = segments[len(segments)-1]

	for _, segment := range segments[:len(segments)-1] {
		for _, line := range strings.Split(segment, "\n") {
			if !strings.HasPrefix(line, dataPrefix) {
				continue
			}
			d.pending = append(d.pending, strings.TrimPrefix(line, dataPrefix))
		}
	}
}

// skip records a quarantined frame without surfacing it to the caller.
func (d *FrameDecoder) skip(payload string, err error) {
	if errors.Is(err, ErrUnknownEventType) {
		metrics.FramesUnknownType.Inc()
	} else {
		metrics.FramesMalformed.Inc()
	}

	d.log.Debug("skipping undecodable frame",
		slog.String("error", err.Error()),
		slog.Int("payload_bytes", len(payload)))
}
