package stream

import (
	"errors"
	"io"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

const (
	dataPrefix = "data:"
	doneMarker = "[DONE]"
)

// chatThinkingRules locate a reasoning delta inside a chat completion chunk.
var chatThinkingRules = []extractRule{
	pathRule("choices.0.delta.thinking"),
	pathRule("choices.0.delta.reasoning_content"),
	pathRule("choices.0.delta.reasoning"),
}

var chatContentRules = []extractRule{
	pathRule("choices.0.delta.content"),
}

// DecodeChatLine maps one line of a chat-completions event stream to events.
// A chunk may carry both a thinking and a content delta, in which case the
// thinking event comes first. "data: [DONE]" yields a done event.
func DecodeChatLine(line string, logger *zap.Logger) []Event {
	if logger == nil {
		logger = zap.NewNop()
	}
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, dataPrefix) {
		return nil
	}
	data := strings.TrimSpace(line[len(dataPrefix):])
	if data == "" {
		return nil
	}
	if data == doneMarker {
		return []Event{Done()}
	}
	if !gjson.Valid(data) {
		logger.Debug("stream.chat.skip_malformed", zap.String("data", preview(data)))
		return nil
	}
	r := gjson.Parse(data)
	if msg := r.Get("error.message"); msg.Exists() && msg.String() != "" {
		return []Event{Error(msg.String())}
	}

	var out []Event
	if s, _ := firstMatch(chatThinkingRules, r); s != "" {
		out = append(out, Thinking(s))
	}
	if s, _ := firstMatch(chatContentRules, r); s != "" {
		out = append(out, Text(s))
	}
	return out
}

// Reader decodes a chat-completions event stream from an io.Reader, reading
// in chunks and parsing only complete lines.
type Reader struct {
	r       io.Reader
	buf     LineBuffer
	chunk   []byte
	queue   []Event
	lines   []string
	done    bool
	logger  *zap.Logger
	sawTerm bool
}

// NewReader creates a new chat stream reader.
func NewReader(r io.Reader, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{r: r, chunk: make([]byte, 32*1024), logger: logger}
}

// Next returns the next event. A done event is synthesized when the body ends
// without a [DONE] marker. After a terminal event Next returns io.EOF.
func (rd *Reader) Next() (Event, error) {
	for {
		if len(rd.queue) > 0 {
			ev := rd.queue[0]
			rd.queue = rd.queue[1:]
			if ev.Terminal() {
				rd.sawTerm = true
				rd.queue = nil
			}
			return ev, nil
		}
		if rd.sawTerm {
			return Event{}, io.EOF
		}
		if len(rd.lines) > 0 {
			line := rd.lines[0]
			rd.lines = rd.lines[1:]
			rd.queue = append(rd.queue, DecodeChatLine(line, rd.logger)...)
			continue
		}
		if rd.done {
			rd.queue = append(rd.queue, Done())
			continue
		}

		n, err := rd.r.Read(rd.chunk)
		if n > 0 {
			rd.lines = append(rd.lines, rd.buf.Push(rd.chunk[:n])...)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return Event{}, err
			}
			if tail, ok := rd.buf.Flush(); ok {
				rd.lines = append(rd.lines, tail)
			}
			rd.done = true
		}
	}
}
