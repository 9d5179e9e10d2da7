package transport

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapContent_Empty(t *testing.T) {
	assert.Nil(t, wrapContent("", 80))
}

func TestWrapContent_ShortTextSinglePiece(t *testing.T) {
	pieces := wrapContent("hello world", 80)
	assert.Equal(t, []string{"hello world"}, pieces)
}

func TestWrapContent_ConcatenationExact(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"plain sentence", "The quick brown fox jumps over the lazy dog"},
		{"long prose", strings.Repeat("word another thing ", 40)},
		{"leading whitespace", "   indented start then quite a lot of text following it here"},
		{"newlines preserved", "line one\nline two\n\nline four with more text than the others"},
		{"tabs and runs", "col1\t\tcol2   col3\n" + strings.Repeat("x ", 100)},
		{"long word hard split", strings.Repeat("a", 200) + " tail"},
		{"multibyte runes", strings.Repeat("héllo wörld ", 30) + "✅ done"},
		{"only whitespace", "    \n\t  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pieces := wrapContent(tt.text, 80)
			assert.Equal(t, tt.text, strings.Join(pieces, ""), "concatenation must reproduce the input")
			for _, piece := range pieces {
				assert.LessOrEqual(t, len([]rune(piece)), 80, "piece %q exceeds width", piece)
			}
		})
	}
}

func TestWrapContent_BreaksAtWordBoundaries(t *testing.T) {
	// 3 segments of 30 runes each ("x"*29 + space): two fit in one piece,
	// the third starts the next.
	text := strings.Repeat(strings.Repeat("x", 29)+" ", 3)
	pieces := wrapContent(text, 80)

	require.Len(t, pieces, 2)
	assert.Equal(t, 60, len(pieces[0]))
	assert.Equal(t, 30, len(pieces[1]))
}

func TestWrapContent_HardSplitsLongWords(t *testing.T) {
	word := strings.Repeat("z", 170)
	pieces := wrapContent(word, 80)

	require.Len(t, pieces, 3)
	assert.Equal(t, 80, len(pieces[0]))
	assert.Equal(t, 80, len(pieces[1]))
	assert.Equal(t, 10, len(pieces[2]))
	assert.Equal(t, word, strings.Join(pieces, ""))
}

// decodeSSE parses a recorded SSE body into chunk payloads plus a flag for
// the trailing [DONE] marker.
func decodeSSE(t *testing.T, body string) ([]ChatCompletionChunk, bool) {
	t.Helper()

	var chunks []ChatCompletionChunk
	done := false

	for _, event := range strings.Split(body, "\n\n") {
		event = strings.TrimSpace(event)
		if event == "" {
			continue
		}
		require.True(t, strings.HasPrefix(event, "data: "), "malformed event %q", event)
		payload := strings.TrimPrefix(event, "data: ")

		if payload == "[DONE]" {
			done = true
			continue
		}
		require.False(t, done, "events after [DONE]")

		var chunk ChatCompletionChunk
		require.NoError(t, json.Unmarshal([]byte(payload), &chunk))
		chunks = append(chunks, chunk)
	}

	return chunks, done
}

func TestStreamCompletion_EventSequence(t *testing.T) {
	reply := "I found 2 project(s) in the 'test' namespace:\n- alpha\n- beta"

	rec := httptest.NewRecorder()
	require.NoError(t, streamCompletion(context.Background(), rec, "chatcmpl-test", "test-model", reply))

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	chunks, done := decodeSSE(t, rec.Body.String())
	assert.True(t, done, "stream must end with [DONE]")
	require.GreaterOrEqual(t, len(chunks), 3)

	// Preface chunk: assistant role, no finish reason.
	first := chunks[0]
	assert.Equal(t, "chat.completion.chunk", first.Object)
	assert.Equal(t, "test-model", first.Model)
	require.Len(t, first.Choices, 1)
	assert.Equal(t, "assistant", first.Choices[0].Delta.Role)
	assert.Nil(t, first.Choices[0].FinishReason)

	// Terminating chunk: empty delta, finish_reason stop.
	last := chunks[len(chunks)-1]
	require.Len(t, last.Choices, 1)
	assert.Equal(t, ChunkDelta{}, last.Choices[0].Delta)
	require.NotNil(t, last.Choices[0].FinishReason)
	assert.Equal(t, "stop", *last.Choices[0].FinishReason)

	// Content chunks concatenate to the reply exactly.
	var content strings.Builder
	for _, chunk := range chunks[1 : len(chunks)-1] {
		require.Len(t, chunk.Choices, 1)
		assert.Nil(t, chunk.Choices[0].FinishReason)
		content.WriteString(chunk.Choices[0].Delta.Content)
	}
	assert.Equal(t, reply, content.String())

	// All chunks share the completion id.
	for _, chunk := range chunks {
		assert.Equal(t, "chatcmpl-test", chunk.ID)
	}
}

func TestStreamCompletion_TerminatingDeltaIsEmptyObject(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, streamCompletion(context.Background(), rec, "id", "m", "hi"))

	// The wire form of the terminating delta must be {}, not null.
	assert.Contains(t, rec.Body.String(), `"delta":{},"finish_reason":"stop"`)
}

func TestStreamCompletion_CanceledContextStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := httptest.NewRecorder()
	err := streamCompletion(ctx, rec, "id", "m", strings.Repeat("text ", 100))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, rec.Body.String(), "[DONE]")
}
