package auth

import (
	"context"
	"net/http"
	"strings"

	authpkg "github.com/NordCoder/Tokengate/internal/auth"
	domainauth "github.com/NordCoder/Tokengate/internal/domain/auth"
)

type ctxKey int

const claimsKey ctxKey = 1

func ClaimsFromCtx(ctx context.Context) (*authpkg.AccessClaims, bool) {
	c, ok := ctx.Value(claimsKey).(*authpkg.AccessClaims)
	return c, ok
}

// BearerAuth rejects requests without a valid access token and stores the
// parsed claims in the request context. Rejections use the same localized
// JSON body as the other auth endpoints.
func BearerAuth(parse func(token string) (*authpkg.AccessClaims, error), msgs domainauth.Messages) func(http.Handler) http.Handler {
	deny := func(w http.ResponseWriter, r *http.Request, challenge string) {
		w.Header().Set("WWW-Authenticate", challenge)
		writeJSON(w, http.StatusUnauthorized, messageResponse{
			Message: msgs.Resolve(domainauth.MsgInvalidCredentials, r.Header.Get("Accept-Language")),
		})
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearer(r)
			if token == "" {
				deny(w, r, `Bearer`)
				return
			}
			claims, err := parse(token)
			if err != nil {
				deny(w, r, `Bearer error="invalid_token"`)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
		})
	}
}

func bearer(r *http.Request) string {
	v := r.Header.Get("Authorization")
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return ""
}
