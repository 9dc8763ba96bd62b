package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/access"
	"github.com/angelmondragon/storefront-backend/internal/audit"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type roleChangeRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
	Role   string    `json:"role" validate:"required"`
}

// AuditLister reads the audit trail.
type AuditLister interface {
	List(ctx context.Context, filter audit.Filter) ([]audit.LogEntry, error)
}

// RolesList returns every role with its permissions, plus the caller's own roles.
func RolesList(svc access.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		caps, err := middleware.Principal(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"roles":    svc.ListRoles(),
			"my_roles": caps.Roles(),
		})
	}
}

// RoleAssign grants a role to a user.
func RoleAssign(svc access.Service, logg *logger.Logger) http.HandlerFunc {
	return roleChange(logg, func(ctx context.Context, actor access.Capabilities, userID uuid.UUID, role enums.Role) error {
		return svc.AssignRole(ctx, actor, userID, role)
	})
}

// RoleRemove revokes a role from a user.
func RoleRemove(svc access.Service, logg *logger.Logger) http.HandlerFunc {
	return roleChange(logg, func(ctx context.Context, actor access.Capabilities, userID uuid.UUID, role enums.Role) error {
		return svc.RemoveRole(ctx, actor, userID, role)
	})
}

func roleChange(logg *logger.Logger, apply func(context.Context, access.Capabilities, uuid.UUID, enums.Role) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		caps, err := middleware.Principal(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload roleChangeRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		role, err := enums.ParseRole(payload.Role)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role"))
			return
		}

		if err := apply(ctx, caps, payload.UserID, role); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"user_id": payload.UserID, "role": role})
	}
}

// AuditLogs lists audit entries filtered by user, entity and date range.
func AuditLogs(svc AuditLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "audit service unavailable"))
			return
		}

		userID, err := validators.ParseQueryUUID(r, "user_id")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		from, err := validators.ParseQueryTime(r, "from")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		to, err := validators.ParseQueryTime(r, "to")
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", audit.DefaultListLimit, 1, audit.MaxListLimit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		entries, err := svc.List(ctx, audit.Filter{
			UserID:   userID,
			Entity:   r.URL.Query().Get("entity"),
			EntityID: r.URL.Query().Get("entity_id"),
			From:     from,
			To:       to,
			Limit:    limit,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}
