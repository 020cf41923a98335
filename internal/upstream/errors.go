package upstream

import (
	"fmt"
	"net/http"

	"github.com/n0madic/go-agentquery/internal/codec"
)

// TransportError is a failed HTTP exchange: a non-2xx response or a
// network failure (Err set, StatusCode zero).
type TransportError struct {
	StatusCode int
	Body       []byte
	Headers    http.Header
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil && e.StatusCode == 0 {
		return fmt.Sprintf("API request failed: %v", e.Err)
	}
	return codec.FormatHTTPErrorWithHeaders(e.StatusCode, e.Body, e.Headers)
}

func (e *TransportError) Unwrap() error { return e.Err }
