package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// systemActor attributes unauthenticated writes in audit trails.
const systemActor = "system"

type actorContextKey struct{}

// ActorContext resolves the acting identity from a bearer token and
// stores it in the request context. Identity is issued by an external
// auth service; this middleware only decodes it for audit attribution,
// so a missing or invalid token degrades to the system actor instead
// of rejecting the request.
func (h *Handlers) ActorContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := systemActor
		if token := bearerToken(r); token != "" {
			if subject, ok := h.subjectFromToken(token); ok {
				actor = subject
			} else {
				h.loggerFromContext(r.Context()).Warn("ignoring invalid bearer token")
			}
		}
		ctx := context.WithValue(r.Context(), actorContextKey{}, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ActorFromContext returns the acting identity, or the system actor
// when the request carried none.
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorContextKey{}).(string); ok && actor != "" {
		return actor
	}
	return systemActor
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func (h *Handlers) subjectFromToken(token string) (string, bool) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return []byte(h.config.JWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return "", false
	}
	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", false
	}
	return subject, true
}
