// Package sse writes query events as OpenAI chat-completion chunks.
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/n0madic/go-agentquery/internal/stream"
	"github.com/n0madic/go-agentquery/internal/types"
)

// ErrStreamingUnsupported is returned when the response writer cannot flush.
var ErrStreamingUnsupported = errors.New("streaming unsupported")

// ChatWriter translates stream events into `data: <chunk>` frames.
type ChatWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	id      string
	model   string
	created int64
	started bool
}

// NewChatWriter sets the event-stream headers on w.
func NewChatWriter(w http.ResponseWriter, model string, created int64) (*ChatWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return &ChatWriter{
		w:       w,
		flusher: flusher,
		id:      NewCompletionID(),
		model:   model,
		created: created,
	}, nil
}

// NewCompletionID returns a fresh chat completion id.
func NewCompletionID() string {
	return "chatcmpl-" + uuid.NewString()
}

// ID returns the completion id used in every chunk.
func (cw *ChatWriter) ID() string { return cw.id }

func (cw *ChatWriter) writeChunk(chunk any) {
	data, _ := json.Marshal(chunk)
	fmt.Fprintf(cw.w, "data: %s\n\n", data)
	cw.flusher.Flush()
}

func (cw *ChatWriter) writeDelta(delta types.ChatDelta, finish *string) {
	if !cw.started {
		delta.Role = "assistant"
		cw.started = true
	}
	cw.writeChunk(types.ChatCompletionChunk{
		ID:      cw.id,
		Object:  "chat.completion.chunk",
		Created: cw.created,
		Model:   cw.model,
		Choices: []types.ChatChunkChoice{{Index: 0, Delta: delta, FinishReason: finish}},
	})
}

// WriteEvent writes ev. Text becomes content, thinking becomes
// reasoning_content. A done event writes the stop chunk and the [DONE]
// marker; an error event writes an error frame followed by [DONE].
func (cw *ChatWriter) WriteEvent(ev stream.Event) {
	switch ev.Type {
	case stream.EventText:
		cw.writeDelta(types.ChatDelta{Content: ev.Content}, nil)
	case stream.EventThinking:
		cw.writeDelta(types.ChatDelta{ReasoningContent: ev.Content}, nil)
	case stream.EventDone:
		stop := "stop"
		cw.writeDelta(types.ChatDelta{}, &stop)
		cw.writeDone()
	case stream.EventError:
		cw.writeChunk(types.ErrorResponse{Error: types.ErrorDetail{Message: ev.Error, Type: "upstream_error"}})
		cw.writeDone()
	}
}

func (cw *ChatWriter) writeDone() {
	fmt.Fprint(cw.w, "data: [DONE]\n\n")
	cw.flusher.Flush()
}
