// Package web carries the thin HTTP surface of the storefront: session
// handling and the pass-through cart forms. All cart logic lives in the
// cart engine; handlers only translate requests and responses.
package web

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"storefront/internal/cart"
)

const (
	cookieSessionID = "shop_session-id"
	cookieAuthToken = "shop_auth-token"

	cookieMaxAge = 60 * 60 * 48
)

type ctxKey int

const ctxKeyIdentity ctxKey = iota

// EnsureSession assigns a session id cookie to first-time visitors and
// attaches the request's identity to the context. The auth token cookie is
// issued by the external auth system; this layer only reads its presence.
func EnsureSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sessionID string
		if c, err := r.Cookie(cookieSessionID); err == nil {
			sessionID = c.Value
		} else {
			sessionID = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:   cookieSessionID,
				Value:  sessionID,
				Path:   "/",
				MaxAge: cookieMaxAge,
			})
		}

		var token string
		if c, err := r.Cookie(cookieAuthToken); err == nil {
			token = c.Value
		}

		id := cart.Identity{SessionID: sessionID, Token: token}
		ctx := context.WithValue(r.Context(), ctxKeyIdentity, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func identityFrom(ctx context.Context) cart.Identity {
	id, _ := ctx.Value(ctxKeyIdentity).(cart.Identity)
	return id
}
