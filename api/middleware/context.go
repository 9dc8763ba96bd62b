package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/access"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

type contextKey string

const ctxUserID contextKey = "user_id"

// UserIDFromContext returns the authenticated user id, or uuid.Nil when the
// request carried no verified token.
func UserIDFromContext(ctx context.Context) uuid.UUID {
	if ctx == nil {
		return uuid.Nil
	}
	if v, ok := ctx.Value(ctxUserID).(uuid.UUID); ok {
		return v
	}
	return uuid.Nil
}

// WithUserID injects the user identifier into the context.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxUserID, userID)
}

// Principal returns the capabilities Auth resolved for the caller.
func Principal(ctx context.Context) (access.Capabilities, error) {
	caps, ok := access.FromContext(ctx)
	if !ok || caps.UserID == uuid.Nil {
		return access.Capabilities{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	return caps, nil
}
