package streaming

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vertice-labs/agentcore/provider"
)

func parseEvents(t *testing.T, raw string) []Event {
	t.Helper()
	var events []Event
	frames := strings.Split(strings.TrimRight(raw, "\n"), "\n\n")
	for _, frame := range frames {
		if frame == "" || frame == "data: [DONE]" {
			continue
		}
		lines := strings.SplitN(frame, "\n", 2)
		require.Len(t, lines, 2, "frame: %q", frame)
		dataLine := strings.TrimPrefix(lines[1], "data: ")
		if dataLine == "[DONE]" {
			continue
		}
		var evt Event
		require.NoError(t, json.Unmarshal([]byte(dataLine), &evt))
		events = append(events, evt)
	}
	return events
}

func TestTranslator_SuccessfulStreamEndsWithCompleted(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTranslator(&buf, nil)

	chunks := make(chan provider.Chunk, 4)
	chunks <- provider.Chunk{Type: provider.ChunkText, Text: "hello "}
	chunks <- provider.Chunk{Type: provider.ChunkText, Text: "world"}
	close(chunks)

	require.NoError(t, tr.Run("resp_1", chunks))

	raw := buf.String()
	assert.True(t, strings.HasSuffix(raw, "data: [DONE]\n\n"))

	events := parseEvents(t, raw)
	require.NotEmpty(t, events)
	assert.Equal(t, EventResponseCreated, events[0].Type)
	assert.Equal(t, EventResponseInProgress, events[1].Type)
	assert.Equal(t, EventResponseCompleted, events[len(events)-1].Type)

	for i, evt := range events {
		assert.Equal(t, i+1, evt.SequenceNumber, "sequence numbers must be monotonic starting at 1")
	}

	var deltas string
	for _, evt := range events {
		if evt.Type == EventOutputTextDelta {
			deltas += evt.Delta
		}
	}
	assert.Equal(t, "hello world", deltas)
}

func TestTranslator_ErrorChunkEndsWithFailed(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTranslator(&buf, nil)

	chunks := make(chan provider.Chunk, 2)
	chunks <- provider.Chunk{Type: provider.ChunkText, Text: "partial"}
	chunks <- provider.Chunk{Type: provider.ChunkError, Err: errors.New(strings.Repeat("x", 300))}
	close(chunks)

	require.NoError(t, tr.Run("resp_2", chunks))

	events := parseEvents(t, buf.String())
	last := events[len(events)-1]
	assert.Equal(t, EventResponseFailed, last.Type)
	require.NotNil(t, last.Error)
	assert.LessOrEqual(t, len(last.Error.Message), 200)

	for _, evt := range events {
		assert.NotEqual(t, EventResponseCompleted, evt.Type, "completed and failed are mutually exclusive")
	}
}

func TestTranslator_ToolCallChunkEmitsFunctionCallItem(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTranslator(&buf, nil)

	chunks := make(chan provider.Chunk, 1)
	chunks <- provider.Chunk{Type: provider.ChunkToolCall, ToolCall: &provider.ToolCall{
		ID: "call_1", Name: "search", Input: map[string]interface{}{"q": "go"},
	}}
	close(chunks)

	require.NoError(t, tr.Run("resp_3", chunks))
	events := parseEvents(t, buf.String())

	var sawArgsDelta bool
	for _, evt := range events {
		if evt.Type == EventFunctionCallArgsDelta {
			sawArgsDelta = true
			assert.Contains(t, evt.Delta, `"q":"go"`)
		}
	}
	assert.True(t, sawArgsDelta)
}

func TestTranslator_ItemIDsAreStableAcrossAddedAndDone(t *testing.T) {
	var buf bytes.Buffer
	tr := NewTranslator(&buf, nil)

	chunks := make(chan provider.Chunk, 1)
	chunks <- provider.Chunk{Type: provider.ChunkText, Text: "x"}
	close(chunks)
	require.NoError(t, tr.Run("resp_4", chunks))

	events := parseEvents(t, buf.String())
	var addedID, doneID string
	for _, evt := range events {
		if evt.Type == EventOutputItemAdded {
			addedID = evt.ItemID
		}
		if evt.Type == EventOutputItemDone {
			doneID = evt.ItemID
		}
	}
	require.NotEmpty(t, addedID)
	assert.Equal(t, addedID, doneID)
}
