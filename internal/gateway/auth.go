package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stellar/go/support/log"
)

const (
	apiKeyHeader = "X-Api-Key"
)

// UserTokenProvider returns the optional user-level bearer token for an
// outbound request, or empty when the request is unauthenticated.
type UserTokenProvider func(ctx context.Context) string

// applyAuthHeaders sets the always-required application key and, when
// available and not expired, the user bearer token.
func (c *Client) applyAuthHeaders(ctx context.Context, req *http.Request) {
	req.Header.Set(apiKeyHeader, c.apiKey)

	if c.userTokenProvider == nil {
		return
	}
	token := c.userTokenProvider(ctx)
	if token == "" {
		return
	}
	if isExpiredJWT(token) {
		log.Ctx(ctx).Warn("skipping expired user bearer token on gateway request")
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

// isExpiredJWT reports whether token is a JWT with an exp claim in the
// past. Tokens that do not parse as JWTs are treated as opaque and
// forwarded as-is; the gateway is the authority on their validity.
func isExpiredJWT(token string) bool {
	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		return false
	}
	expiresAt, err := claims.GetExpirationTime()
	if err != nil || expiresAt == nil {
		return false
	}
	return expiresAt.Before(time.Now())
}
