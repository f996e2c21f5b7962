package transport

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthorized indicates invalid or missing credentials.
var ErrUnauthorized = errors.New("unauthorized")

type clientKey struct{}

// TokenResolver resolves a client name from a bearer token.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (string, error)
}

// ClientFromContext returns the authenticated client name, if present.
func ClientFromContext(ctx context.Context) (string, bool) {
	client, ok := ctx.Value(clientKey{}).(string)
	return client, ok
}

// StaticTokens resolves tokens against a fixed set, keyed by the hex
// SHA-256 of the token.
type StaticTokens map[string]string

// NewStaticTokens builds a resolver from client name to plaintext token.
// Empty tokens are skipped.
func NewStaticTokens(tokens map[string]string) StaticTokens {
	out := StaticTokens{}
	for client, token := range tokens {
		if token == "" {
			continue
		}
		out[HashToken(token)] = client
	}
	return out
}

// HashToken returns the hex SHA-256 of token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ResolveToken implements TokenResolver.
func (s StaticTokens) ResolveToken(_ context.Context, token string) (string, error) {
	hash := HashToken(token)
	for known, client := range s {
		if subtle.ConstantTimeCompare([]byte(known), []byte(hash)) == 1 {
			return client, nil
		}
	}
	return "", ErrUnauthorized
}

// AuthMiddleware enforces bearer token authentication.
func AuthMiddleware(resolver TokenResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			client, err := resolver.ResolveToken(r.Context(), token)
			if err != nil || client == "" {
				http.Error(w, "invalid bearer token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), clientKey{}, client)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
