package authz

import "saas-platform/internal/model"

// Context is the per-request identity derived from a verified token, and
// the sole basis for authorization decisions. It is a tagged variant: a
// scoped context carries its tenant id, an unscoped one belongs to the
// platform super-admin. Keeping the tenant id private makes "null tenant
// means no filter" impossible to express by accident.
type Context struct {
	UserID   string
	Email    string
	Role     model.Role
	tenantID string
	scoped   bool
}

// Scoped builds the context for a tenant-bound user.
func Scoped(userID, email string, role model.Role, tenantID string) Context {
	return Context{UserID: userID, Email: email, Role: role, tenantID: tenantID, scoped: true}
}

// Unscoped builds the context for the platform super-admin.
func Unscoped(userID, email string) Context {
	return Context{UserID: userID, Email: email, Role: model.RoleSuperAdmin}
}

// TenantID returns the tenant the context is scoped to; ok is false for the
// super-admin context.
func (c Context) TenantID() (string, bool) {
	return c.tenantID, c.scoped
}

func (c Context) IsSuperAdmin() bool {
	return c.Role == model.RoleSuperAdmin
}

func (c Context) IsTenantAdmin() bool {
	return c.Role == model.RoleTenantAdmin
}

// Allow reports whether the context may touch a row owned by rowTenantID.
// The super-admin bypass is an explicit role branch, never a consequence of
// an empty tenant filter. An unscoped non-admin context matches nothing.
func (c Context) Allow(rowTenantID string) bool {
	if c.IsSuperAdmin() {
		return true
	}
	return c.scoped && c.tenantID == rowTenantID
}
