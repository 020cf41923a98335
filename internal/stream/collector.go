package stream

import (
	"bytes"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Aggregate is the non-streaming result of a whole CLI run.
type Aggregate struct {
	Text     string
	Thinking string
}

// ProtocolError is an error reported in-band by the producer.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string { return e.Message }

// Collect parses a complete CLI output with the same per-line rules as
// ParseLines and folds it into one Aggregate. When no line yields text, the
// raw trimmed output becomes the text so a response is never silently empty.
func Collect(output []byte, logger *zap.Logger) (Aggregate, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var text, thinking strings.Builder
	for _, raw := range bytes.Split(output, []byte{'\n'}) {
		line := strings.TrimSpace(string(raw))
		if line == "" {
			continue
		}
		ev, ok := DecodeCLILine(line, logger)
		if ok {
			switch ev.Type {
			case EventError:
				return Aggregate{}, &ProtocolError{Message: ev.Error}
			case EventThinking:
				thinking.WriteString(ev.Content)
			case EventText:
				text.WriteString(ev.Content)
			}
		}
		if !ok && text.Len() == 0 && gjson.Valid(line) {
			if s, rule := firstMatch(aggregateFallbackRules, gjson.Parse(line)); s != "" {
				logger.Debug("stream.collect.fallback_field", zap.String("rule", rule))
				text.WriteString(s)
			}
		}
	}

	agg := Aggregate{Text: text.String(), Thinking: thinking.String()}
	if agg.Text == "" {
		agg.Text = strings.TrimSpace(string(output))
		if agg.Text != "" {
			logger.Warn("stream.collect.raw_output", zap.Int("bytes", len(agg.Text)))
		}
	}
	return agg, nil
}
