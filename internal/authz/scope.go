package authz

import "gorm.io/gorm"

// TenantScope is the mandatory filter for every list query on tenant-owned
// tables. Filtering happens at the query, not on returned rows, so result
// sets and pagination stay bounded. A context that is neither super-admin
// nor tenant-scoped gets a contradiction, not an open filter.
func TenantScope(ctx Context) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if ctx.IsSuperAdmin() {
			return db
		}
		tenantID, ok := ctx.TenantID()
		if !ok {
			return db.Where("1 = 0")
		}
		return db.Where("tenant_id = ?", tenantID)
	}
}
