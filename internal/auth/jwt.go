package auth

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// tokenClaims is the unverified payload of a JWT.
type tokenClaims map[string]any

// parseTokenClaims decodes the payload segment of a JWT without verifying
// the signature. Opaque tokens yield ErrInvalidJWT.
func parseTokenClaims(token string) (tokenClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrInvalidJWT
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return nil, ErrInvalidJWT
	}
	var c tokenClaims
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, ErrInvalidJWT
	}
	return c, nil
}

// expiry returns the exp claim.
func (c tokenClaims) expiry() (time.Time, bool) {
	exp, ok := c["exp"].(float64)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(int64(exp), 0), true
}
