package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/task-manager/internal/apperror"
	"github.com/sakif/task-manager/internal/model"
)

// contextKey is an unexported type used for context keys in this package,
// so no other package can read or shadow these values.
type contextKey string

const (
	userKey  contextKey = "user"
	tokenKey contextKey = "token"
)

// unauthenticatedMessage is the single message every gate failure returns.
// Which check failed is never revealed.
const unauthenticatedMessage = "Please authenticate."

// UserLookup is the one store method the gate needs. The returned user must
// carry its active token list.
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

// RequireAuth is the authentication gate for protected routes.
//
// A request passes only if ALL of these hold:
//  1. an "Authorization: Bearer <token>" header is present
//  2. the token's signature is valid (TokenService.Validate)
//  3. the user named by the token exists
//  4. the token is still in that user's active token list
//
// The first three failures and the fourth all produce the same 401 body. A
// store failure while loading the user is a 500, since nothing is known
// about the caller's credentials at that point.
//
// On success the user and the raw token are stored in the request context;
// nothing is written to the database here.
func RequireAuth(tokens *TokenService, users UserLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				writeUnauthenticated(w)
				return
			}

			userID, err := tokens.Validate(token)
			if err != nil {
				logger.Debug("rejected token", slog.String("error", err.Error()))
				writeUnauthenticated(w)
				return
			}

			user, err := users.GetUserByID(r.Context(), userID)
			if err != nil {
				if errors.Is(err, apperror.ErrNotFound) {
					writeUnauthenticated(w)
					return
				}
				logger.Error("auth: loading user",
					slog.String("userID", userID),
					slog.String("error", err.Error()),
				)
				writeAuthJSON(w, http.StatusInternalServerError, "internal_error", "An internal error occurred")
				return
			}

			if !user.HasToken(token) {
				writeUnauthenticated(w)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			ctx = context.WithValue(ctx, tokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the user attached by RequireAuth.
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userKey).(*model.User)
	return u, ok && u != nil
}

// TokenFromContext returns the raw token the request authenticated with.
func TokenFromContext(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(tokenKey).(string)
	return t, ok && t != ""
}

// WithUser returns a context carrying user and token the same way
// RequireAuth does. Handler tests use it to skip the gate.
func WithUser(ctx context.Context, user *model.User, token string) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	return context.WithValue(ctx, tokenKey, token)
}

// bearerToken extracts <token> from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeUnauthenticated(w http.ResponseWriter) {
	writeAuthJSON(w, http.StatusUnauthorized, "unauthenticated", unauthenticatedMessage)
}

func writeAuthJSON(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   kind,
		"message": message,
	})
}
