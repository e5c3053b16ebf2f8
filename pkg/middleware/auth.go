package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/tustockya/tustockya-backend/internal/modules/user"
	apperrors "github.com/tustockya/tustockya-backend/pkg/errors"
)

type contextKey string

const actorKey contextKey = "actor"

// Claims is the JWT payload issued at login. The location claim is the
// actor's home location; role scoping in handlers is driven off these
// claims, not off a database lookup per request.
type Claims struct {
	UserID     string `json:"user_id"`
	Role       string `json:"role"`
	LocationID string `json:"location_id"`
	jwt.RegisteredClaims
}

// Authenticate validates the bearer token and stores the resolved actor in
// the request context. Requests without a valid token are rejected with 401.
func Authenticate(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				unauthorized(w, "missing bearer token")
				return
			}
			tokenString := strings.TrimPrefix(header, "Bearer ")

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, apperrors.NewValidationError("unexpected signing method", "token")
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				unauthorized(w, "invalid or expired token")
				return
			}

			actor, err := actorFromClaims(claims)
			if err != nil {
				unauthorized(w, "malformed token claims")
				return
			}

			ctx := context.WithValue(r.Context(), actorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ActorFromContext returns the authenticated actor stored by Authenticate.
func ActorFromContext(ctx context.Context) (user.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(user.Actor)
	return actor, ok
}

// WithActor returns a context carrying the given actor. Used by tests and
// internal callers that bypass the HTTP layer.
func WithActor(ctx context.Context, actor user.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// IssueToken signs a token for the given actor. Exposed for the login flow
// and for test fixtures.
func IssueToken(secret string, actor user.Actor, registered jwt.RegisteredClaims) (string, error) {
	claims := Claims{
		UserID:           actor.ID.String(),
		Role:             string(actor.Role),
		LocationID:       actor.LocationID.String(),
		RegisteredClaims: registered,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func actorFromClaims(claims *Claims) (user.Actor, error) {
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return user.Actor{}, err
	}
	locationID, err := uuid.Parse(claims.LocationID)
	if err != nil {
		return user.Actor{}, err
	}
	role := user.Role(claims.Role)
	if !user.ValidRole(role) {
		return user.Actor{}, apperrors.NewValidationError("unknown role", "role")
	}
	return user.Actor{ID: id, Role: role, LocationID: locationID}, nil
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"code": "Unauthorized", "message": message})
}
