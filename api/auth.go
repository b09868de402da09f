package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/warp/leave-ledger/generic"
	"github.com/warp/leave-ledger/timeoff"
)

// Claims identify the caller. Tokens are minted by the session layer (or
// cmd/token in development); the API only verifies them.
type Claims struct {
	UserID string `json:"uid"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for actor valid for ttl.
func IssueToken(secret string, actor timeoff.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: actor.UserID,
		Role:   string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseToken verifies signature and expiry and returns the actor.
func ParseToken(secret, token string) (timeoff.Actor, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return timeoff.Actor{}, err
	}
	if !parsed.Valid || claims.UserID == "" {
		return timeoff.Actor{}, errors.New("invalid token")
	}
	role, err := timeoff.ParseRole(claims.Role)
	if err != nil {
		return timeoff.Actor{}, err
	}
	return timeoff.Actor{UserID: claims.UserID, Role: role}, nil
}

type actorKey struct{}

// WithActor stores the authenticated actor in ctx.
func WithActor(ctx context.Context, a timeoff.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFrom returns the actor set by Authenticate.
func ActorFrom(ctx context.Context) (timeoff.Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(timeoff.Actor)
	return a, ok
}

// Authenticate requires a valid "Authorization: Bearer <token>" header.
func Authenticate(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "missing bearer token", Code: "UNAUTHENTICATED"})
				return
			}
			actor, err := ParseToken(secret, strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid token", Code: "UNAUTHENTICATED"})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

func mustActor(r *http.Request) (timeoff.Actor, error) {
	a, ok := ActorFrom(r.Context())
	if !ok {
		return timeoff.Actor{}, generic.NewValidationError(generic.CodeNotAuthorized, "no authenticated actor")
	}
	return a, nil
}
