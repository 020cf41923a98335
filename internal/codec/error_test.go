package codec

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFormatHTTPError(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"openai shape", 401, `{"error":{"message":"invalid api key","type":"auth"}}`, "API error: HTTP 401 Unauthorized: invalid api key"},
		{"detail key", 422, `{"detail":"bad model"}`, "API error: HTTP 422 Unprocessable Entity: bad model"},
		{"error string", 500, `{"error":"boom"}`, "API error: HTTP 500 Internal Server Error: boom"},
		{"errors list", 400, `{"errors":[{"title":"first"}]}`, "API error: HTTP 400 Bad Request: first"},
		{"plain body", 502, "upstream\n  down", "API error: HTTP 502 Bad Gateway: upstream down"},
		{"empty body", 503, "", "API error: HTTP 503 Service Unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatHTTPError(tt.status, []byte(tt.body)); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatHTTPErrorWithHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("X-Request-Id", "req_123")
	got := FormatHTTPErrorWithHeaders(429, []byte(`{"message":"slow down"}`), h)
	if !strings.HasSuffix(got, "(request_id: req_123)") {
		t.Fatalf("missing request id: %q", got)
	}
	if FormatHTTPErrorWithHeaders(429, nil, nil) != "API error: HTTP 429 Too Many Requests" {
		t.Fatal("nil headers should not add a suffix")
	}
}

func TestCompactBodyPreviewTruncates(t *testing.T) {
	got := compactBodyPreview([]byte(strings.Repeat("x", 300)), 280)
	if len(got) != 283 || !strings.HasSuffix(got, "...") {
		t.Fatalf("unexpected preview length %d", len(got))
	}
}

func TestWriteOpenAIError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteOpenAIError(rec, http.StatusBadRequest, "nope")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), `"message":"nope"`) {
		t.Fatalf("body = %s", rec.Body.String())
	}
}
