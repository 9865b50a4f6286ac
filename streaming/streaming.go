// Package streaming translates a provider.Chunk stream into the Open
// Responses SSE wire protocol (spec §4.5): a monotonically sequenced event
// stream ending in exactly one of response.completed/response.failed
// followed by the [DONE] terminal marker. SSE wire encoding is grounded on
// the teacher's ui/transports/sse/sse.go (event: <type>\ndata: <json>\n\n,
// http.Flusher.Flush after every write).
package streaming

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/vertice-labs/agentcore/core"
	"github.com/vertice-labs/agentcore/provider"
)

// EventType enumerates the event sequence of spec §4.5.
type EventType string

const (
	EventResponseCreated        EventType = "response.created"
	EventResponseInProgress     EventType = "response.in_progress"
	EventOutputItemAdded        EventType = "response.output_item.added"
	EventContentPartAdded       EventType = "response.content_part.added"
	EventOutputTextDelta        EventType = "response.output_text.delta"
	EventReasoningContentDelta  EventType = "response.reasoning_content.delta"
	EventFunctionCallArgsDelta  EventType = "response.function_call_arguments.delta"
	EventOutputTextDone         EventType = "response.output_text.done"
	EventOutputItemDone         EventType = "response.output_item.done"
	EventResponseCompleted      EventType = "response.completed"
	EventResponseFailed         EventType = "response.failed"
)

// ItemType enumerates the output-item kinds of spec §4.5.
type ItemType string

const (
	ItemMessage             ItemType = "message"
	ItemReasoning           ItemType = "reasoning"
	ItemFunctionCall        ItemType = "function_call"
	ItemFunctionCallOutput  ItemType = "function_call_output"
	ItemVerticeTelemetry    ItemType = "vertice:telemetry"
	ItemVerticeGovernance   ItemType = "vertice:governance"
)

const maxErrorMessageLen = 200

// ErrorObject is the {code, message} payload of response.failed, with
// message capped at 200 chars per spec §4.5.
type ErrorObject struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newErrorObject(code string, err error) ErrorObject {
	msg := err.Error()
	if len(msg) > maxErrorMessageLen {
		msg = msg[:maxErrorMessageLen]
	}
	return ErrorObject{Code: code, Message: msg}
}

// Event is one emitted SSE event, json-marshaled as the `data:` payload.
type Event struct {
	Type           EventType   `json:"type"`
	SequenceNumber int         `json:"sequence_number"`
	ResponseID     string      `json:"response_id,omitempty"`
	ItemID         string      `json:"item_id,omitempty"`
	Item           interface{} `json:"item,omitempty"`
	Delta          string      `json:"delta,omitempty"`
	Text           string      `json:"text,omitempty"`
	Error          *ErrorObject `json:"error,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// outputItem describes one item in the response, per spec §4.5's content
// item kinds.
type outputItem struct {
	ID        string `json:"id"`
	Type       ItemType `json:"type"`
	Status     string `json:"status"`
	Text       string `json:"text,omitempty"`
	CallID     string `json:"call_id,omitempty"`
	Name       string `json:"name,omitempty"`
	Arguments  string `json:"arguments,omitempty"`
	Output     string `json:"output,omitempty"`
}

// Writer emits SSE-framed events to an underlying http.ResponseWriter (or
// any io.Writer for tests), maintaining the monotonically increasing
// sequence_number across the whole stream. A Writer serves exactly one
// stream and is not safe for concurrent use by multiple goroutines, per
// spec §4.5's "single-threaded cooperative within a stream" rule.
type Writer struct {
	mu      sync.Mutex
	w       io.Writer
	flusher http.Flusher
	seq     int
}

// NewWriter wraps w. If w also implements http.Flusher (the normal case for
// an http.ResponseWriter), every event flushes immediately.
func NewWriter(w io.Writer) *Writer {
	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher}
}

// emit writes one SSE frame, stamping the next sequence number.
func (sw *Writer) emit(evt Event) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.seq++
	evt.SequenceNumber = sw.seq

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal sse event: %w", err)
	}
	if _, err := fmt.Fprintf(sw.w, "event: %s\ndata: %s\n\n", evt.Type, data); err != nil {
		return err
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}

// done writes the literal [DONE] terminal marker.
func (sw *Writer) done() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if _, err := fmt.Fprint(sw.w, "data: [DONE]\n\n"); err != nil {
		return err
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}

// Translator drives a provider.Chunk stream through a Writer, producing the
// full Open Responses event sequence.
type Translator struct {
	writer *Writer
	logger core.Logger
}

// NewTranslator constructs a Translator writing to w.
func NewTranslator(w io.Writer, logger core.Logger) *Translator {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Translator{writer: NewWriter(w), logger: core.WithComponent(logger, "core/stream")}
}

// newID generates a stable item id. Grounded on google/uuid, already a
// DOMAIN STACK dependency for node/task ids elsewhere in this module.
func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// Run consumes chunks until the channel closes or yields a ChunkError, translating
// each into the Open Responses sequence and finishing with exactly one of
// response.completed/response.failed followed by [DONE]. A ChunkError
// received mid-stream ends the translation with response.failed; a clean
// channel close ends it with response.completed.
func (t *Translator) Run(responseID string, chunks <-chan provider.Chunk) error {
	if err := t.writer.emit(Event{Type: EventResponseCreated, ResponseID: responseID}); err != nil {
		return err
	}
	if err := t.writer.emit(Event{Type: EventResponseInProgress, ResponseID: responseID}); err != nil {
		return err
	}

	messageItemID := newID("msg")
	messageOpened := false
	var messageText string

	openMessageItem := func() error {
		if messageOpened {
			return nil
		}
		messageOpened = true
		if err := t.writer.emit(Event{
			Type:   EventOutputItemAdded,
			ItemID: messageItemID,
			Item:   outputItem{ID: messageItemID, Type: ItemMessage, Status: "in_progress"},
		}); err != nil {
			return err
		}
		return t.writer.emit(Event{Type: EventContentPartAdded, ItemID: messageItemID})
	}

	closeMessageItem := func() error {
		if !messageOpened {
			return nil
		}
		if err := t.writer.emit(Event{Type: EventOutputTextDone, ItemID: messageItemID, Text: messageText}); err != nil {
			return err
		}
		return t.writer.emit(Event{
			Type:   EventOutputItemDone,
			ItemID: messageItemID,
			Item:   outputItem{ID: messageItemID, Type: ItemMessage, Status: "completed", Text: messageText},
		})
	}

	var failure error

loop:
	for chunk := range chunks {
		switch chunk.Type {
		case provider.ChunkText:
			if err := openMessageItem(); err != nil {
				return err
			}
			messageText += chunk.Text
			if err := t.writer.emit(Event{Type: EventOutputTextDelta, ItemID: messageItemID, Delta: chunk.Text}); err != nil {
				return err
			}

		case provider.ChunkToolCall:
			callItemID := newID("fc")
			argsJSON, _ := json.Marshal(chunk.ToolCall.Input)
			if err := t.writer.emit(Event{
				Type:   EventOutputItemAdded,
				ItemID: callItemID,
				Item:   outputItem{ID: callItemID, Type: ItemFunctionCall, Status: "in_progress", Name: chunk.ToolCall.Name},
			}); err != nil {
				return err
			}
			if err := t.writer.emit(Event{Type: EventFunctionCallArgsDelta, ItemID: callItemID, Delta: string(argsJSON)}); err != nil {
				return err
			}
			if err := t.writer.emit(Event{
				Type:   EventOutputItemDone,
				ItemID: callItemID,
				Item:   outputItem{ID: callItemID, Type: ItemFunctionCall, Status: "completed", Name: chunk.ToolCall.Name, Arguments: string(argsJSON)},
			}); err != nil {
				return err
			}

		case provider.ChunkStatus:
			t.logger.Debug("stream status", map[string]interface{}{"status": chunk.Status})

		case provider.ChunkError:
			failure = chunk.Err
			break loop
		}
	}

	if err := closeMessageItem(); err != nil {
		return err
	}

	if failure != nil {
		code := "stream_error"
		if core.Classify(failure) == core.KindCancelled {
			code = "cancelled"
		}
		if err := t.writer.emit(Event{Type: EventResponseFailed, Error: errorObjectPtr(newErrorObject(code, failure))}); err != nil {
			return err
		}
	} else {
		if err := t.writer.emit(Event{Type: EventResponseCompleted}); err != nil {
			return err
		}
	}

	return t.writer.done()
}

func errorObjectPtr(e ErrorObject) *ErrorObject { return &e }

// EmitExtensionItem writes a vertice:telemetry or vertice:governance
// extension item carrying arbitrary key-value metadata. Clients that don't
// recognise the item type are expected to ignore it, per spec §4.5.
func (t *Translator) EmitExtensionItem(itemType ItemType, metadata map[string]interface{}) error {
	id := newID("ext")
	if err := t.writer.emit(Event{Type: EventOutputItemAdded, ItemID: id, Item: outputItem{ID: id, Type: itemType, Status: "completed"}, Metadata: metadata}); err != nil {
		return err
	}
	return t.writer.emit(Event{Type: EventOutputItemDone, ItemID: id, Item: outputItem{ID: id, Type: itemType, Status: "completed"}, Metadata: metadata})
}
