package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/testutil"
	"github.com/angelmondragon/storefront-backend/pkg/config"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "storefront"}

func newTokens(t *testing.T, mutate ...func(*config.JWTConfig)) *Tokens {
	t.Helper()
	cfg := testJWT
	for _, m := range mutate {
		m(&cfg)
	}
	tokens, err := NewTokens(cfg)
	require.NoError(t, err)
	return tokens
}

func TestVerifyAcceptsIdentityToken(t *testing.T) {
	userID := uuid.New()
	raw := testutil.IssueToken(t, testJWT, userID, testutil.TokenOptions{JTI: "session-1"})

	claims, err := newTokens(t).Verify(raw)
	require.NoError(t, err)
	require.Equal(t, userID, claims.UserID)
	require.Equal(t, "storefront", claims.Issuer)
	require.Equal(t, "session-1", claims.ID)
	require.Equal(t, userID.String(), claims.Subject)
}

func TestVerifyRejectsTampering(t *testing.T) {
	tokens := newTokens(t)
	raw := testutil.IssueToken(t, testJWT, uuid.New())

	_, err := newTokens(t, func(c *config.JWTConfig) { c.Secret = "different" }).Verify(raw)
	require.ErrorIs(t, err, ErrTokenInvalid)

	_, err = newTokens(t, func(c *config.JWTConfig) { c.Issuer = "elsewhere" }).Verify(raw)
	require.ErrorIs(t, err, ErrTokenInvalid)

	parts := strings.Split(raw, ".")
	parts[1] += "x"
	_, err = tokens.Verify(strings.Join(parts, "."))
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsMissingUser(t *testing.T) {
	raw := testutil.IssueToken(t, testJWT, uuid.Nil)

	_, err := newTokens(t).Verify(raw)
	require.ErrorIs(t, err, ErrTokenInvalid)
}

func TestVerifyRejectsExpired(t *testing.T) {
	raw := testutil.IssueToken(t, testJWT, uuid.New(), testutil.TokenOptions{
		IssuedAt: time.Now().Add(-2 * time.Hour),
		TTL:      30 * time.Minute,
	})

	_, err := newTokens(t).Verify(raw)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyToleratesClockSkew(t *testing.T) {
	raw := testutil.IssueToken(t, testJWT, uuid.New(), testutil.TokenOptions{
		IssuedAt: time.Now().Add(-time.Minute - 10*time.Second),
		TTL:      time.Minute,
	})

	_, err := newTokens(t).Verify(raw)
	require.NoError(t, err)
}

func TestNewTokensValidatesConfig(t *testing.T) {
	_, err := NewTokens(config.JWTConfig{})
	require.Error(t, err)
	_, err = NewTokens(config.JWTConfig{Secret: "s"})
	require.Error(t, err)
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"abc":          "abc",
	}
	for header, want := range cases {
		got, ok := BearerToken(header)
		require.True(t, ok, header)
		require.Equal(t, want, got)
	}

	_, ok := BearerToken("Bearer ")
	require.False(t, ok)
	_, ok = BearerToken("")
	require.False(t, ok)
}
