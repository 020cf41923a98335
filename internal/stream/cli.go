package stream

import (
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Line types of the CLI's newline-delimited JSON protocol.
const (
	lineError      = "error"
	lineReasoning  = "reasoning"
	lineText       = "text"
	lineStepFinish = "step_finish"
)

// extractRule pulls a string out of a decoded line. Rules are evaluated in
// order until one yields a non-empty value.
type extractRule struct {
	Name    string
	Extract func(gjson.Result) string
}

func pathRule(path string) extractRule {
	return extractRule{Name: path, Extract: func(r gjson.Result) string {
		v := r.Get(path)
		if v.Type != gjson.String {
			return ""
		}
		return v.Str
	}}
}

// TextRules locate the delta of a "text" line: the nested part first, then
// the top-level compatibility field.
var TextRules = []extractRule{
	pathRule("part.text"),
	pathRule("text"),
}

// ReasoningRules locate the delta of a "reasoning" line.
var ReasoningRules = []extractRule{
	pathRule("part.text"),
}

// ErrorRules locate the human-readable message of an "error" line.
var ErrorRules = []extractRule{
	pathRule("error.message"),
	pathRule("error.data.message"),
	pathRule("error"),
	{Name: "error.raw", Extract: func(r gjson.Result) string {
		v := r.Get("error")
		if !v.Exists() || v.Type == gjson.Null {
			return ""
		}
		return strings.TrimSpace(v.Raw)
	}},
}

// aggregateFallbackRules are consulted by Collect when no text line produced
// any content.
var aggregateFallbackRules = []extractRule{
	pathRule("text"),
	pathRule("content"),
	pathRule("message"),
	pathRule("part.text"),
}

const defaultCLIErrorMessage = "CLI error"

func firstMatch(rules []extractRule, r gjson.Result) (string, string) {
	for _, rule := range rules {
		if v := rule.Extract(r); v != "" {
			return v, rule.Name
		}
	}
	return "", ""
}

// DecodeCLILine maps one protocol line to at most one event. ok is false for
// blank, malformed and ignored lines.
func DecodeCLILine(line string, logger *zap.Logger) (Event, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Event{}, false
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if !gjson.Valid(line) {
		logger.Debug("stream.cli.skip_malformed", zap.String("line", preview(line)))
		return Event{}, false
	}
	r := gjson.Parse(line)
	if !r.IsObject() {
		logger.Debug("stream.cli.skip_non_object", zap.String("line", preview(line)))
		return Event{}, false
	}

	switch t := r.Get("type").String(); t {
	case lineError:
		msg, _ := firstMatch(ErrorRules, r)
		if msg == "" {
			msg = defaultCLIErrorMessage
		}
		return Error(msg), true
	case lineReasoning:
		if s, _ := firstMatch(ReasoningRules, r); s != "" {
			return Thinking(s), true
		}
	case lineText:
		if s, _ := firstMatch(TextRules, r); s != "" {
			return Text(s), true
		}
	case lineStepFinish:
	default:
		logger.Debug("stream.cli.skip_unknown", zap.String("type", t))
	}
	return Event{}, false
}

// ParseLines decodes lines as they arrive and hands each event to emit. It
// stops after a terminal event, or as soon as emit returns false. When the
// line source is exhausted without an error line, a done event is
// synthesized.
func ParseLines(lines <-chan string, logger *zap.Logger, emit func(Event) bool) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for line := range lines {
		ev, ok := DecodeCLILine(line, logger)
		if !ok {
			continue
		}
		if !emit(ev) || ev.Terminal() {
			return
		}
	}
	emit(Done())
}

func preview(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
