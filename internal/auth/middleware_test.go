package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/task-manager/internal/apperror"
	"github.com/sakif/task-manager/internal/model"
)

type fakeUsers struct {
	users map[string]*model.User
	err   error
}

func (f *fakeUsers) GetUserByID(_ context.Context, id string) (*model.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return u, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// gateFixture builds a gate in front of a handler that echoes the
// authenticated user's id and token.
func gateFixture(t *testing.T, users *fakeUsers) (*TokenService, http.Handler) {
	t.Helper()
	tokens := newTestTokenService(t)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		require.True(t, ok, "user missing from context")
		token, ok := TokenFromContext(r.Context())
		require.True(t, ok, "token missing from context")
		_ = json.NewEncoder(w).Encode(map[string]string{"id": user.ID, "token": token})
	})

	return tokens, RequireAuth(tokens, users, discardLogger())(next)
}

func serve(h http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func assertUnauthenticated(t *testing.T, rr *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"unauthenticated","message":"Please authenticate."}`, rr.Body.String())
}

func TestRequireAuth_ValidToken(t *testing.T) {
	users := &fakeUsers{users: map[string]*model.User{}}
	tokens, h := gateFixture(t, users)

	token, err := tokens.Generate("u1")
	require.NoError(t, err)
	users.users["u1"] = &model.User{ID: "u1", Tokens: []string{"older", token}}

	rr := serve(h, "Bearer "+token)

	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "u1", body["id"])
	assert.Equal(t, token, body["token"])
}

func TestRequireAuth_Rejections(t *testing.T) {
	users := &fakeUsers{users: map[string]*model.User{}}
	tokens, h := gateFixture(t, users)

	live, err := tokens.Generate("u1")
	require.NoError(t, err)
	revoked, err := tokens.Generate("u1")
	require.NoError(t, err)
	orphan, err := tokens.Generate("deleted-user")
	require.NoError(t, err)
	users.users["u1"] = &model.User{ID: "u1", Tokens: []string{live}}

	other, err := NewTokenService("another-secret-of-16+ chars", 0)
	require.NoError(t, err)
	forged, err := other.Generate("u1")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"no header", ""},
		{"wrong scheme", "Basic " + live},
		{"empty bearer", "Bearer "},
		{"garbage token", "Bearer not.a.jwt"},
		{"signed with another secret", "Bearer " + forged},
		{"user no longer exists", "Bearer " + orphan},
		{"token logged out", "Bearer " + revoked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertUnauthenticated(t, serve(h, tt.header))
		})
	}
}

func TestRequireAuth_StoreFailure(t *testing.T) {
	users := &fakeUsers{err: errors.New("disk on fire")}
	tokens, h := gateFixture(t, users)

	token, err := tokens.Generate("u1")
	require.NoError(t, err)

	rr := serve(h, "Bearer "+token)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestContextHelpers_Empty(t *testing.T) {
	_, ok := UserFromContext(context.Background())
	assert.False(t, ok)
	_, ok = TokenFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithUser(context.Background(), &model.User{ID: "u9"}, "tok")
	u, ok := UserFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u9", u.ID)
	tok, _ := TokenFromContext(ctx)
	assert.Equal(t, "tok", tok)
}
