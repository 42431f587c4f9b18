package auth

import "context"

const (
	RoleEmployee = "employee"
	RoleManager  = "manager"
	RoleHR       = "hr"
	RoleAdmin    = "admin"
)

const (
	PermLeaveRead    = "leave.read"
	PermLeaveWrite   = "leave.write"
	PermLeaveApprove = "leave.approve"
	PermLeaveAdmin   = "leave.admin"
)

var RolePermissions = map[string][]string{
	RoleEmployee: {
		PermLeaveRead,
		PermLeaveWrite,
	},
	RoleManager: {
		PermLeaveRead,
		PermLeaveWrite,
		PermLeaveApprove,
	},
	RoleHR: {
		PermLeaveRead,
		PermLeaveWrite,
		PermLeaveApprove,
		PermLeaveAdmin,
	},
	RoleAdmin: {
		PermLeaveRead,
		PermLeaveWrite,
		PermLeaveApprove,
		PermLeaveAdmin,
	},
}

// CanApprove reports whether the role may decide leave and credit requests.
func CanApprove(roleName string) bool {
	return roleName == RoleManager || roleName == RoleHR || roleName == RoleAdmin
}

// IsAdministrative reports whether the role bypasses ownership and
// reporting-line checks.
func IsAdministrative(roleName string) bool {
	return roleName == RoleHR || roleName == RoleAdmin
}

// StaticPermissions satisfies the RBAC middleware's PermissionStore with the
// fixed role table above.
type StaticPermissions struct{}

func (StaticPermissions) HasPermission(_ context.Context, roleName, permission string) (bool, error) {
	for _, p := range RolePermissions[roleName] {
		if p == permission {
			return true, nil
		}
	}
	return false, nil
}
