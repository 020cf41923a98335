package stream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectAggregatesTextAndThinking(t *testing.T) {
	out := []byte(`{"type":"reasoning","part":{"text":"let me "}}
{"type":"reasoning","part":{"text":"think"}}
{"type":"text","part":{"text":"Hello"}}
{"type":"step_finish"}
{"type":"text","part":{"text":", world"}}
`)
	agg, err := Collect(out, nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", agg.Text)
	assert.Equal(t, "let me think", agg.Thinking)
}

func TestCollectFallsBackToRawOutput(t *testing.T) {
	agg, err := Collect([]byte("  plain answer from an unexpected protocol \n"), nil)
	require.NoError(t, err)
	assert.Equal(t, "plain answer from an unexpected protocol", agg.Text)
	assert.Empty(t, agg.Thinking)
}

func TestCollectUsesCompatibilityFields(t *testing.T) {
	agg, err := Collect([]byte(`{"type":"message","content":"from content"}`+"\n"), nil)
	require.NoError(t, err)
	assert.Equal(t, "from content", agg.Text)
}

func TestCollectReturnsProtocolError(t *testing.T) {
	_, err := Collect([]byte(`{"type":"text","part":{"text":"a"}}
{"type":"error","error":{"message":"quota exceeded"}}
`), nil)
	var perr *ProtocolError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "quota exceeded", perr.Message)
}

func TestCollectEmptyOutput(t *testing.T) {
	agg, err := Collect(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, Aggregate{}, agg)
}
