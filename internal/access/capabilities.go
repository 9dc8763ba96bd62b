package access

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

var rolePermissions = map[enums.Role][]enums.Permission{
	enums.RoleAdmin: enums.Permissions(),
	enums.RoleMerchant: {
		enums.PermProductsRead, enums.PermProductsCreate, enums.PermProductsUpdate, enums.PermProductsDelete,
		enums.PermOrdersRead, enums.PermOrdersUpdate,
		enums.PermVendorsRead, enums.PermVendorsCreate, enums.PermVendorsUpdate,
	},
	enums.RoleCustomer: {
		enums.PermProductsRead,
		enums.PermOrdersRead, enums.PermOrdersCreate,
		enums.PermRefundsCreate,
	},
	enums.RoleFinance: {
		enums.PermRefundsRead, enums.PermRefundsApprove,
		enums.PermOrdersRead,
	},
	enums.RoleSupport: {},
}

// PermissionsFor returns the static grant list for role.
func PermissionsFor(role enums.Role) []enums.Permission {
	perms := rolePermissions[role]
	out := make([]enums.Permission, len(perms))
	copy(out, perms)
	return out
}

// Capabilities is the principal's resolved roles and permissions for one request.
type Capabilities struct {
	UserID uuid.UUID
	roles  map[enums.Role]struct{}
	perms  map[enums.Permission]struct{}
	order  []enums.Role
}

// NewCapabilities expands roles into their permission set. Unknown roles are dropped.
func NewCapabilities(userID uuid.UUID, roles ...enums.Role) Capabilities {
	caps := Capabilities{
		UserID: userID,
		roles:  make(map[enums.Role]struct{}, len(roles)),
		perms:  make(map[enums.Permission]struct{}),
	}
	for _, role := range roles {
		if !role.IsValid() {
			continue
		}
		if _, seen := caps.roles[role]; seen {
			continue
		}
		caps.roles[role] = struct{}{}
		caps.order = append(caps.order, role)
		for _, perm := range rolePermissions[role] {
			caps.perms[perm] = struct{}{}
		}
	}
	return caps
}

// HasRole reports whether the principal holds role.
func (c Capabilities) HasRole(role enums.Role) bool {
	_, ok := c.roles[role]
	return ok
}

// HasAnyRole reports whether the principal holds at least one of roles.
func (c Capabilities) HasAnyRole(roles ...enums.Role) bool {
	for _, role := range roles {
		if c.HasRole(role) {
			return true
		}
	}
	return false
}

// Can reports whether any held role grants perm.
func (c Capabilities) Can(perm enums.Permission) bool {
	_, ok := c.perms[perm]
	return ok
}

// IsAdmin is shorthand for HasRole(RoleAdmin).
func (c Capabilities) IsAdmin() bool {
	return c.HasRole(enums.RoleAdmin)
}

// Roles returns the held roles in resolution order.
func (c Capabilities) Roles() []enums.Role {
	out := make([]enums.Role, len(c.order))
	copy(out, c.order)
	return out
}

// RoleNames returns the held roles as strings for logs and event actors.
func (c Capabilities) RoleNames() []string {
	out := make([]string, 0, len(c.order))
	for _, role := range c.order {
		out = append(out, role.String())
	}
	return out
}

type capsKey struct{}

// WithCapabilities stores caps on ctx.
func WithCapabilities(ctx context.Context, caps Capabilities) context.Context {
	return context.WithValue(ctx, capsKey{}, caps)
}

// FromContext returns the capabilities resolved for the current request.
func FromContext(ctx context.Context) (Capabilities, bool) {
	if ctx == nil {
		return Capabilities{}, false
	}
	caps, ok := ctx.Value(capsKey{}).(Capabilities)
	return caps, ok
}
