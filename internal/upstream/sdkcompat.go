package upstream

import (
	openai "github.com/openai/openai-go/v3"

	"github.com/n0madic/go-agentquery/internal/types"
)

// messagesToSDK converts envelope messages to the SDK union type.
func messagesToSDK(msgs []types.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			out = append(out, openai.SystemMessage(types.TextOf(m.Content)))
		case "assistant":
			out = append(out, openai.AssistantMessage(types.TextOf(m.Content)))
		default:
			if parts, ok := m.Content.([]types.ContentPart); ok {
				out = append(out, openai.UserMessage(contentPartsToSDK(parts)))
				continue
			}
			out = append(out, openai.UserMessage(types.TextOf(m.Content)))
		}
	}
	return out
}

func contentPartsToSDK(parts []types.ContentPart) []openai.ChatCompletionContentPartUnionParam {
	out := make([]openai.ChatCompletionContentPartUnionParam, 0, len(parts))
	for _, p := range parts {
		switch {
		case p.Type == "image_url" && p.ImageURL != nil:
			out = append(out, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: p.ImageURL.URL}))
		case p.Type == "text":
			out = append(out, openai.TextContentPart(p.Text))
		}
	}
	return out
}

// requestToSDK converts a request body to SDK parameters.
func requestToSDK(req *types.ChatCompletionRequest) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(req.Model),
		Messages:    messagesToSDK(req.Messages),
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	return params
}
