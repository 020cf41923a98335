// Package upstream talks to chat-completions HTTP endpoints.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/n0madic/go-agentquery/internal/auth"
	"github.com/n0madic/go-agentquery/internal/backend"
	"github.com/n0madic/go-agentquery/internal/codec"
	"github.com/n0madic/go-agentquery/internal/config"
	"github.com/n0madic/go-agentquery/internal/stream"
	"github.com/n0madic/go-agentquery/internal/types"
)

// errorBodyLimit caps how much of a failed response body is kept.
const errorBodyLimit = 64 * 1024

// Client sends chat-completions requests. Requests are bounded by their
// context only; the HTTP client carries no timeout.
type Client struct {
	HTTP   *http.Client
	Logger *zap.Logger
}

// NewClient creates a client using http.DefaultClient's transport.
func NewClient(logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{HTTP: &http.Client{}, Logger: logger}
}

func (c *Client) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Stream posts req to sel.Endpoint and forwards text and thinking deltas to
// emit in arrival order. An in-band error is emitted too and then returned
// as a *stream.ProtocolError. Otherwise it returns nil once the stream ends,
// a *TransportError for HTTP failures, or the context error when cancelled.
func (c *Client) Stream(ctx context.Context, sel backend.Selection, req *types.ChatCompletionRequest, emit func(stream.Event)) error {
	log := c.logger()
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, sel.Endpoint, bytes.NewReader(body))
	if err != nil {
		return &TransportError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	config.ApplyDefaultHeaders(httpReq.Header)

	log.Debug("upstream.request",
		zap.String("endpoint", sel.Endpoint),
		zap.String("model", req.Model),
		zap.Int("messages", len(req.Messages)),
		zap.Bool("stream", req.Stream),
		zap.Bool("thinking", req.Thinking != nil),
		zap.Bool("authorized", sel.Credentials != ""),
	)

	resp, err := auth.BearerClient(ctx, c.HTTP, sel.Credentials).Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	log.Debug("upstream.response",
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", codec.RequestID(resp.Header)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return &TransportError{StatusCode: resp.StatusCode, Body: errBody, Headers: resp.Header}
	}

	rd := stream.NewReader(resp.Body, log)
	for {
		ev, err := rd.Next()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return &TransportError{Err: err}
		}
		switch ev.Type {
		case stream.EventDone:
			return nil
		case stream.EventError:
			emit(ev)
			return &stream.ProtocolError{Message: ev.Error}
		default:
			emit(ev)
		}
	}
}

// Complete performs a non-streaming completion through the SDK against
// sel.BaseURL and returns the first choice.
func (c *Client) Complete(ctx context.Context, sel backend.Selection, req *types.ChatCompletionRequest) (stream.Aggregate, error) {
	opts := []option.RequestOption{
		option.WithBaseURL(strings.TrimRight(sel.BaseURL, "/") + "/"),
		option.WithHTTPClient(c.HTTP),
		option.WithMaxRetries(0),
		option.WithHeader("User-Agent", config.UserAgent()),
	}
	if sel.Credentials != "" {
		opts = append(opts, option.WithAPIKey(sel.Credentials))
	} else {
		opts = append(opts, option.WithHeaderDel("Authorization"))
	}
	client := openai.NewClient(opts...)

	c.logger().Debug("upstream.request",
		zap.String("base_url", sel.BaseURL),
		zap.String("model", req.Model),
		zap.Int("messages", len(req.Messages)),
		zap.Bool("stream", false),
	)

	out, err := client.Chat.Completions.New(ctx, requestToSDK(req))
	if err != nil {
		if ctx.Err() != nil {
			return stream.Aggregate{}, ctx.Err()
		}
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			te := &TransportError{StatusCode: apiErr.StatusCode, Body: []byte(apiErr.RawJSON())}
			if apiErr.Response != nil {
				te.Headers = apiErr.Response.Header
			}
			return stream.Aggregate{}, te
		}
		return stream.Aggregate{}, &TransportError{Err: err}
	}
	if len(out.Choices) == 0 {
		return stream.Aggregate{}, &TransportError{Err: errors.New("response has no choices")}
	}
	msg := out.Choices[0].Message
	return stream.Aggregate{
		Text:     msg.Content,
		Thinking: gjson.Get(msg.RawJSON(), "reasoning_content").String(),
	}, nil
}
