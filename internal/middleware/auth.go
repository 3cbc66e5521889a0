// Package middleware holds the Connect interceptors shared by every service:
// bearer authentication, request logging and RPC metrics.
package middleware

import (
	"context"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitcore/internal/auth"
	"github.com/mmynk/splitcore/internal/models"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ParticipantKey holds the authenticated models.ParticipantID.
	ParticipantKey contextKey = "participant"
	// NameKey holds the caller's display name, possibly empty.
	NameKey contextKey = "name"
)

// GetParticipant extracts the authenticated participant from the context.
// The second result is false before authentication.
func GetParticipant(ctx context.Context) (models.ParticipantID, bool) {
	p, ok := ctx.Value(ParticipantKey).(models.ParticipantID)
	return p, ok && !p.IsZero()
}

// GetName extracts the participant's display name from the context.
func GetName(ctx context.Context) string {
	name, _ := ctx.Value(NameKey).(string)
	return name
}

// WithParticipant returns a context carrying an authenticated participant.
func WithParticipant(ctx context.Context, p models.ParticipantID, name string) context.Context {
	ctx = context.WithValue(ctx, ParticipantKey, p)
	return context.WithValue(ctx, NameKey, name)
}

// RequireAuth rejects calls without a valid "Authorization: Bearer <jwt>"
// header and puts the token's participant into the context.
func RequireAuth(jwtManager *auth.JWTManager) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			token, err := bearerToken(req.Header().Get("Authorization"))
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			claims, err := jwtManager.Validate(token)
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			return next(WithParticipant(ctx, claims.Participant(), claims.Name), req)
		}
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", auth.ErrMissingToken
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" || strings.ContainsRune(token, ' ') {
		return "", auth.ErrInvalidToken
	}
	return token, nil
}
