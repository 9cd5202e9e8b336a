// Package reqid assigns every HTTP request a correlation ID, propagated
// through the context and the X-Request-ID header so one checkout or
// restore can be traced across the request log, the storage fallback
// warnings and the client.
package reqid

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
)

// Header carries the request ID between client and server.
const Header = "X-Request-ID"

type ctxKey struct{}

// New returns a 24-hex-char random request ID.
func New() string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// WithValue stores id in ctx.
func WithValue(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromCtx returns the request ID in ctx, or "".
func FromCtx(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Middleware reuses a client-supplied X-Request-ID when present (so a
// proxy or the POS terminal can correlate retries), otherwise generates
// one. The ID is echoed on the response and stored in the context.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(Header)
			if id == "" {
				id = New()
			}
			w.Header().Set(Header, id)
			next.ServeHTTP(w, r.WithContext(WithValue(r.Context(), id)))
		})
	}
}
