package codec

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/n0madic/go-agentquery/internal/types"
)

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// WriteOpenAIError writes an OpenAI-format error response.
func WriteOpenAIError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, types.ErrorResponse{Error: types.ErrorDetail{Message: message}})
}

// FormatHTTPError formats a non-2xx response from a chat endpoint.
func FormatHTTPError(statusCode int, rawBody []byte) string {
	status := fmt.Sprintf("%d", statusCode)
	if text := http.StatusText(statusCode); text != "" {
		status = fmt.Sprintf("%d %s", statusCode, text)
	}
	if msg := ExtractErrorMessage(rawBody); msg != "" {
		return fmt.Sprintf("API error: HTTP %s: %s", status, msg)
	}
	if preview := compactBodyPreview(rawBody, 280); preview != "" {
		return fmt.Sprintf("API error: HTTP %s: %s", status, preview)
	}
	return fmt.Sprintf("API error: HTTP %s", status)
}

// FormatHTTPErrorWithHeaders appends the request id when the server sent one.
func FormatHTTPErrorWithHeaders(statusCode int, rawBody []byte, headers http.Header) string {
	msg := FormatHTTPError(statusCode, rawBody)
	if reqID := RequestID(headers); reqID != "" {
		return fmt.Sprintf("%s (request_id: %s)", msg, reqID)
	}
	return msg
}

// messageKeys are tried in order on every object level of an error body.
var messageKeys = []string{"message", "detail", "error_description", "title", "reason"}

// ExtractErrorMessage pulls a human-readable message out of an error body.
func ExtractErrorMessage(rawBody []byte) string {
	if !gjson.ValidBytes(rawBody) {
		return ""
	}
	return messageOf(gjson.ParseBytes(rawBody))
}

func messageOf(r gjson.Result) string {
	if !r.IsObject() {
		return ""
	}
	errField := r.Get("error")
	if errField.IsObject() {
		if msg := messageOf(errField); msg != "" {
			return msg
		}
	}
	for _, key := range messageKeys {
		if msg := stringOf(r.Get(key)); msg != "" {
			return msg
		}
	}
	if msg := stringOf(errField); msg != "" {
		return msg
	}
	var msg string
	r.Get("errors").ForEach(func(_, item gjson.Result) bool {
		if item.IsObject() {
			msg = messageOf(item)
		} else {
			msg = stringOf(item)
		}
		return msg == ""
	})
	return msg
}

func stringOf(r gjson.Result) string {
	if r.Type != gjson.String {
		return ""
	}
	return strings.TrimSpace(r.Str)
}

func compactBodyPreview(rawBody []byte, maxLen int) string {
	trimmed := strings.TrimSpace(string(rawBody))
	if trimmed == "" {
		return ""
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	if len(clean) <= maxLen {
		return clean
	}
	return clean[:maxLen] + "..."
}

// RequestID returns the first request-id style header present.
func RequestID(headers http.Header) string {
	if headers == nil {
		return ""
	}
	for _, key := range []string{"x-request-id", "x-openai-request-id", "openai-request-id", "request-id", "cf-ray"} {
		if v := strings.TrimSpace(headers.Get(key)); v != "" {
			return v
		}
	}
	return ""
}
