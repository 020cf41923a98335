package auth

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

// BearerClient wraps base so every request carries "Authorization: Bearer
// <key>". An empty key returns base unchanged, which is how keyless local
// servers are reached.
func BearerClient(ctx context.Context, base *http.Client, key string) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	if key == "" {
		return base
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: key, TokenType: "Bearer"})
	return oauth2.NewClient(ctx, src)
}
