package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/stellar/go/support/log"

	"github.com/certiform/credential-gateway/internal/apptracker"
	"github.com/certiform/credential-gateway/internal/serve/httperror"
)

const MaxBodySize int64 = 10_240 // 10kb

type contextKey string

const userTokenContextKey contextKey = "user_bearer_token"

// RecoverHandler converts panics into 500 responses and reports them to the
// app tracker.
func RecoverHandler(appTracker apptracker.AppTracker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}

				err, ok := r.(error)
				if !ok {
					err = fmt.Errorf("panic: %v", r)
				}

				ctx := req.Context()
				log.Ctx(ctx).WithStack(err).Error(err)
				httperror.InternalServerError(ctx, "", err, nil, appTracker).Render(rw)
			}()

			next.ServeHTTP(rw, req)
		})
	}
}

// BearerTokenMiddleware stashes the caller's bearer token in the request
// context so the gateway client can forward it upstream. Requests without a
// token pass through; the upstream decides what is public.
func BearerTokenMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
			authHeader := req.Header.Get("Authorization")
			token, found := strings.CutPrefix(authHeader, "Bearer ")
			if found && token != "" {
				ctx := context.WithValue(req.Context(), userTokenContextKey, token)
				req = req.WithContext(ctx)
			}
			next.ServeHTTP(rw, req)
		})
	}
}

// UserTokenFromContext returns the bearer token stored by
// BearerTokenMiddleware, or "" when the request carried none.
func UserTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(userTokenContextKey).(string)
	return token
}
