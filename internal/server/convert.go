package server

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/n0madic/go-agentquery/internal/config"
	"github.com/n0madic/go-agentquery/internal/types"
)

// chatRequest is the inbound body of POST /v1/chat/completions. Sampling
// fields are pointers so unset values fall back to the service settings.
type chatRequest struct {
	Model           string                `json:"model"`
	Messages        []types.ChatMessage   `json:"messages"`
	Stream          bool                  `json:"stream"`
	Temperature     *float64              `json:"temperature,omitempty"`
	MaxTokens       int                   `json:"max_tokens,omitempty"`
	MaxCompletion   int                   `json:"max_completion_tokens,omitempty"`
	ReasoningEffort string                `json:"reasoning_effort,omitempty"`
	Thinking        *types.ThinkingConfig `json:"thinking,omitempty"`
}

var (
	errNoMessages  = errors.New("messages must not be empty")
	errLastNotUser = errors.New("last message must have role user")
)

// toQuery splits a chat request into the current prompt and the options
// carrying system prompt, history and attachments.
func toQuery(req chatRequest) (string, types.QueryOptions, error) {
	var opts types.QueryOptions
	if len(req.Messages) == 0 {
		return "", opts, errNoMessages
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != "user" {
		return "", opts, errLastNotUser
	}

	var system []string
	for _, m := range req.Messages[:len(req.Messages)-1] {
		text, atts := splitContent(m.Content)
		switch m.Role {
		case "system", "developer":
			if strings.TrimSpace(text) != "" {
				system = append(system, text)
			}
		case "user", "assistant":
			opts.History = append(opts.History, types.HistoryMessage{Role: m.Role, Content: text, Attachments: atts})
		}
	}
	opts.SystemPrompt = strings.Join(system, "\n\n")

	prompt, atts := splitContent(last.Content)
	opts.Attachments = atts

	if m := strings.TrimSpace(req.Model); m != config.AutoModel {
		opts.Model = m
	}
	opts.Temperature = req.Temperature
	opts.MaxTokens = req.MaxTokens
	if opts.MaxTokens == 0 {
		opts.MaxTokens = req.MaxCompletion
	}
	opts.Thinking = (req.Thinking != nil && req.Thinking.Type == "enabled") ||
		(req.ReasoningEffort != "" && req.ReasoningEffort != "none")
	opts.NoStream = !req.Stream
	return prompt, opts, nil
}

// splitContent returns the text of a message and the images it carries as
// data URIs. Remote image URLs are dropped.
func splitContent(content any) (string, []types.Attachment) {
	parts, ok := content.([]any)
	if !ok {
		return types.TextOf(content), nil
	}
	var atts []types.Attachment
	for _, item := range parts {
		m, ok := item.(map[string]any)
		if !ok || m["type"] != "image_url" {
			continue
		}
		img, _ := m["image_url"].(map[string]any)
		url, _ := img["url"].(string)
		if att, ok := decodeDataURI(url); ok {
			atts = append(atts, att)
		}
	}
	return types.TextOf(content), atts
}

// decodeDataURI parses "data:<mime>;base64,<payload>".
func decodeDataURI(uri string) (types.Attachment, bool) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return types.Attachment{}, false
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return types.Attachment{}, false
	}
	mime, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return types.Attachment{}, false
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return types.Attachment{}, false
	}
	if mime == "" {
		mime = "application/octet-stream"
	}
	return types.Attachment{MIMEType: mime, Data: data}, true
}
