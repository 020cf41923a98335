package stream

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAll(t *testing.T, r io.Reader) []Event {
	t.Helper()
	rd := NewReader(r, nil)
	var out []Event
	for {
		ev, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, ev)
	}
}

func TestReaderContentThenDone(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"A\"}}]}\ndata: [DONE]\n"
	require.Equal(t, []Event{Text("A"), Done()}, readAll(t, strings.NewReader(body)))
}

func TestReaderThinkingBeforeContent(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"thinking\":\"t\",\"content\":\"c\"}}]}\n\n" +
		"data: {\"choices\":[{\"delta\":{\"reasoning_content\":\"r\"}}]}\n\n" +
		"data: [DONE]\n\n"
	require.Equal(t, []Event{Thinking("t"), Text("c"), Thinking("r"), Done()}, readAll(t, strings.NewReader(body)))
}

func TestReaderBuffersPartialLines(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"split across reads\"}}]}\r\ndata: [DONE]\r\n"
	got := readAll(t, iotest.OneByteReader(strings.NewReader(body)))
	require.Equal(t, []Event{Text("split across reads"), Done()}, got)
}

func TestReaderSynthesizesDoneOnEOF(t *testing.T) {
	body := "data: {\"choices\":[{\"delta\":{\"content\":\"x\"}}]}"
	require.Equal(t, []Event{Text("x"), Done()}, readAll(t, strings.NewReader(body)))
}

func TestReaderSkipsNoiseAndStopsAfterError(t *testing.T) {
	body := ": keep-alive\n" +
		"event: ping\n" +
		"data: {broken\n" +
		"data: {\"choices\":[{\"delta\":{}}]}\n" +
		"data: {\"error\":{\"message\":\"rate limited\"}}\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"late\"}}]}\n"
	require.Equal(t, []Event{Error("rate limited")}, readAll(t, strings.NewReader(body)))
}

func TestReaderPropagatesReadErrors(t *testing.T) {
	rd := NewReader(iotest.ErrReader(errors.New("connection reset")), nil)
	_, err := rd.Next()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestLineBufferHoldsPartialLine(t *testing.T) {
	var b LineBuffer
	assert.Empty(t, b.Push([]byte("data: {\"a\"")))
	assert.Equal(t, []string{`data: {"a":1}`, "next"}, b.Push([]byte(":1}\nnext\r\nrest")))
	tail, ok := b.Flush()
	require.True(t, ok)
	assert.Equal(t, "rest", tail)
	_, ok = b.Flush()
	assert.False(t, ok)
}
