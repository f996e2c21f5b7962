package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

type testResolver struct {
	err error
}

func (r *testResolver) ResolveToken(_ context.Context, _ string) (string, error) {
	return "", r.err
}

func TestAuthMiddleware(t *testing.T) {
	resolver := NewStaticTokens(map[string]string{"operator": "token", "disabled": ""})

	handler := AuthMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client, ok := ClientFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, "operator", client)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, resolver, 1)
}

func TestAuthMiddleware_Invalid(t *testing.T) {
	resolver := &testResolver{err: errors.New("invalid")}

	handler := AuthMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStaticTokens(t *testing.T) {
	tokens := NewStaticTokens(map[string]string{"operator": "s3cret"})
	client, err := tokens.ResolveToken(context.Background(), "s3cret")
	require.NoError(t, err)
	require.Equal(t, "operator", client)

	_, err = tokens.ResolveToken(context.Background(), "guess")
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Len(t, HashToken("s3cret"), 64)
}
