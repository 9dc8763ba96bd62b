package testutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

// TokenOptions shapes a test access token. Zero values mean: issued now,
// valid for an hour, random jti, signed with the config's secret and issuer.
type TokenOptions struct {
	IssuedAt time.Time
	TTL      time.Duration
	JTI      string
}

type accessClaims struct {
	UserID uuid.UUID `json:"user_id"`
	jwt.RegisteredClaims
}

// IssueToken mints an HS256 access token the way the identity service does.
func IssueToken(t *testing.T, cfg config.JWTConfig, userID uuid.UUID, opts ...TokenOptions) string {
	t.Helper()
	var o TokenOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.IssuedAt.IsZero() {
		o.IssuedAt = time.Now().UTC()
	}
	if o.TTL <= 0 {
		o.TTL = time.Hour
	}
	if o.JTI == "" {
		o.JTI = uuid.NewString()
	}

	claims := accessClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        o.JTI,
			Issuer:    cfg.Issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(o.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(o.IssuedAt.Add(o.TTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
	require.NoError(t, err)
	return signed
}
