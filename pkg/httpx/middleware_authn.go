package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/edoras/pkg/cryptox"
	"github.com/aussiebroadwan/edoras/pkg/slogx"
)

// Authenticator resolves the raw Authorization header value to an identity id.
type Authenticator interface {
	Authenticate(ctx context.Context, authorization string) (string, error)
}

// DenyFunc writes the response body for a rejected request.
type DenyFunc func(w http.ResponseWriter, r *http.Request, err error)

// AuthnMiddleware rejects requests whose bearer token does not resolve and
// injects the resolved identity id into the request context otherwise.
func AuthnMiddleware(a Authenticator, deny DenyFunc) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			header := r.Header.Get("Authorization")
			subject, err := a.Authenticate(ctx, header)
			if err != nil {
				if token, ok := ParseBearer(header); ok {
					log = log.With("token_fp", cryptox.FingerprintToken(token))
				}
				log.Warn("bearer authentication failed", "err", err)
				setBearerChallenge(w, err)
				deny(w, r, err)
				return
			}

			ctx = slogx.With(WithSubject(ctx, subject), "subject", subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ParseBearer extracts the token from an "Authorization: Bearer <token>"
// header value. The scheme is matched case-insensitively.
func ParseBearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

// RFC 6750 challenge for bearer auth.
func setBearerChallenge(w http.ResponseWriter, err error) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+challengeText(err)+`"`)
}

func challengeText(err error) string {
	msg := err.Error()
	return strings.NewReplacer(`"`, "'", "\\", "/").Replace(msg)
}
