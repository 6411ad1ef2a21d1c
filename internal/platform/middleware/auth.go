package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	id "rumbo/pkg/domain"
	dErrors "rumbo/pkg/domain-errors"
	"rumbo/pkg/platform/httputil"
	"rumbo/pkg/requestcontext"
)

// ActorValidator turns a bearer token into the acting party. The auth
// subsystem is an external collaborator; this interface is all we consume.
type ActorValidator interface {
	ValidateToken(tokenString string) (requestcontext.ActorInfo, error)
}

// JWTValidator validates HS256 tokens carrying sub (actor id) and role claims.
type JWTValidator struct {
	signingKey []byte
}

func NewJWTValidator(signingKey string) *JWTValidator {
	return &JWTValidator{signingKey: []byte(signingKey)}
}

func (v *JWTValidator) ValidateToken(tokenString string) (requestcontext.ActorInfo, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "unexpected signing method")
		}
		return v.signingKey, nil
	})
	if err != nil || !token.Valid {
		return requestcontext.ActorInfo{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	sub, _ := claims["sub"].(string)
	actorID, err := id.ParseActorID(sub)
	if err != nil {
		return requestcontext.ActorInfo{}, dErrors.New(dErrors.CodeUnauthorized, "token missing subject")
	}
	rawRole, _ := claims["role"].(string)
	role, err := id.ParseRole(rawRole)
	if err != nil {
		return requestcontext.ActorInfo{}, dErrors.New(dErrors.CodeUnauthorized, "token missing role")
	}
	return requestcontext.ActorInfo{ID: actorID, Role: role}, nil
}

// RequireActor enforces a bearer token and places the actor in context.
// Downstream services read the actor from context, never from globals.
func RequireActor(validator ActorValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}
			actor, err := validator.ValidateToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				logger.WarnContext(r.Context(), "rejected bearer token",
					"request_id", requestcontext.RequestID(r.Context()),
					"error", err.Error(),
				)
				httputil.WriteError(w, err)
				return
			}
			ctx := requestcontext.WithActor(r.Context(), actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminToken gates rule administration endpoints behind a shared secret
// header. An unset token disables the admin surface entirely.
func AdminToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "admin API disabled"))
				return
			}
			provided := r.Header.Get("X-Admin-Token")
			if subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "invalid admin token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
