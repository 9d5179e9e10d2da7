package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"unicode"
)

// streamWidth is the maximum rune length of one streamed content piece.
const streamWidth = 80

// sseWriter encodes a sequence of values as Server-Sent Events, flushing
// after every event so the transport drains between chunks.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// newSSEWriter prepares the response for streaming. The ResponseWriter must
// implement http.Flusher; the chi stack and net/http both do.
func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	return &sseWriter{w: w, flusher: flusher}, nil
}

// Send writes one `data: <json>` event and flushes.
func (s *sseWriter) Send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// Done writes the literal [DONE] terminator.
func (s *sseWriter) Done() error {
	if _, err := fmt.Fprint(s.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// streamCompletion emits the full event sequence for one reply: the
// assistant-role preface, the word-wrapped content pieces, the terminating
// chunk, and [DONE]. It stops promptly when the request context is
// canceled.
func streamCompletion(ctx context.Context, w http.ResponseWriter, id, model, reply string) error {
	sse, err := newSSEWriter(w)
	if err != nil {
		return err
	}

	created := unixNow()

	chunk := func(delta ChunkDelta, finish *string) ChatCompletionChunk {
		return ChatCompletionChunk{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   model,
			Choices: []ChunkChoice{{Index: 0, Delta: delta, FinishReason: finish}},
		}
	}

	if err := sse.Send(chunk(ChunkDelta{Role: "assistant"}, nil)); err != nil {
		return err
	}

	for _, piece := range wrapContent(reply, streamWidth) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := sse.Send(chunk(ChunkDelta{Content: piece}, nil)); err != nil {
			return err
		}
	}

	finish := "stop"
	if err := sse.Send(chunk(ChunkDelta{}, &finish)); err != nil {
		return err
	}
	return sse.Done()
}

// wrapContent splits text into pieces of at most width runes, breaking at
// whitespace boundaries where possible and hard-splitting runs longer than
// the width. No character is added or dropped: concatenating the pieces
// reproduces the input exactly.
func wrapContent(text string, width int) []string {
	if text == "" {
		return nil
	}
	if width <= 0 {
		return []string{text}
	}

	var pieces []string
	var current []rune

	flush := func() {
		if len(current) > 0 {
			pieces = append(pieces, string(current))
			current = nil
		}
	}

	for _, segment := range splitSegments(text) {
		// Hard-split segments that can never fit on one piece.
		for len(segment) > width {
			flush()
			pieces = append(pieces, string(segment[:width]))
			segment = segment[width:]
		}

		if len(current)+len(segment) > width {
			flush()
		}
		current = append(current, segment...)
	}
	flush()

	return pieces
}

// splitSegments cuts text into wrap-atomic segments: each word together
// with the whitespace run that follows it, plus a leading whitespace run
// when the text starts with one.
func splitSegments(text string) [][]rune {
	runes := []rune(text)

	var segments [][]rune
	start := 0
	for start < len(runes) {
		end := start

		// Word part: consume up to the next whitespace.
		for end < len(runes) && !unicode.IsSpace(runes[end]) {
			end++
		}
		// Trailing whitespace run stays attached to the word.
		for end < len(runes) && unicode.IsSpace(runes[end]) {
			end++
		}

		segments = append(segments, runes[start:end])
		start = end
	}
	return segments
}
