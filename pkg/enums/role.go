package enums

import (
	"fmt"
	"strings"
)

// Role is a platform role granted to a user.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleMerchant Role = "Merchant"
	RoleCustomer Role = "Customer"
	RoleFinance  Role = "Finance"
	RoleSupport  Role = "Support"
)

var validRoles = []Role{
	RoleAdmin,
	RoleMerchant,
	RoleCustomer,
	RoleFinance,
	RoleSupport,
}

// Roles returns every known role in declaration order.
func Roles() []Role {
	out := make([]Role, len(validRoles))
	copy(out, validRoles)
	return out
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// IsValid reports whether the value is a known Role.
func (r Role) IsValid() bool {
	for _, candidate := range validRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRole converts raw input into a Role, ignoring case.
func ParseRole(value string) (Role, error) {
	trimmed := strings.TrimSpace(value)
	for _, candidate := range validRoles {
		if strings.EqualFold(string(candidate), trimmed) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", value)
}

// Permission names a single resource:action grant.
type Permission string

const (
	PermUsersRead      Permission = "users:read"
	PermUsersCreate    Permission = "users:create"
	PermUsersUpdate    Permission = "users:update"
	PermUsersDelete    Permission = "users:delete"
	PermProductsRead   Permission = "products:read"
	PermProductsCreate Permission = "products:create"
	PermProductsUpdate Permission = "products:update"
	PermProductsDelete Permission = "products:delete"
	PermOrdersRead     Permission = "orders:read"
	PermOrdersCreate   Permission = "orders:create"
	PermOrdersUpdate   Permission = "orders:update"
	PermVendorsRead    Permission = "vendors:read"
	PermVendorsCreate  Permission = "vendors:create"
	PermVendorsUpdate  Permission = "vendors:update"
	PermRefundsRead    Permission = "refunds:read"
	PermRefundsCreate  Permission = "refunds:create"
	PermRefundsApprove Permission = "refunds:approve"
	PermRolesRead      Permission = "roles:read"
	PermRolesAssign    Permission = "roles:assign"
)

var validPermissions = []Permission{
	PermUsersRead, PermUsersCreate, PermUsersUpdate, PermUsersDelete,
	PermProductsRead, PermProductsCreate, PermProductsUpdate, PermProductsDelete,
	PermOrdersRead, PermOrdersCreate, PermOrdersUpdate,
	PermVendorsRead, PermVendorsCreate, PermVendorsUpdate,
	PermRefundsRead, PermRefundsCreate, PermRefundsApprove,
	PermRolesRead, PermRolesAssign,
}

// Permissions returns every known permission in declaration order.
func Permissions() []Permission {
	out := make([]Permission, len(validPermissions))
	copy(out, validPermissions)
	return out
}

// IsValid reports whether the value is a known Permission.
func (p Permission) IsValid() bool {
	for _, candidate := range validPermissions {
		if candidate == p {
			return true
		}
	}
	return false
}
