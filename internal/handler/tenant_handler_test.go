package handler

import (
	"net/http"
	"testing"

	"saas-platform/internal/authz"
	"saas-platform/internal/middleware"
	"saas-platform/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectTenantByID(mock sqlmock.Sqlmock, id string) {
	mock.ExpectQuery(`SELECT (.+) FROM "tenants" WHERE id = \$1`).
		WithArgs(id, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "subdomain", "plan", "max_users", "max_projects"}).
			AddRow(id, "Acme", "acme", "free", 5, 3))
}

func TestListTenantsSuperAdminOnly(t *testing.T) {
	setupMockDB(t)

	c, rec := newContext(t, http.MethodGet, "/api/tenants", "")
	c.Set(middleware.AuthContextKey, authz.Scoped(userA, "alice@acme.test", model.RoleTenantAdmin, tenantA))

	require.NoError(t, ListTenants(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListTenantsSuperAdmin(t *testing.T) {
	mock := setupMockDB(t)

	mock.ExpectQuery(`SELECT (.+) FROM "tenants"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "subdomain"}).
			AddRow(tenantA, "Acme", "acme").
			AddRow(tenantB, "Beta", "beta"))

	c, rec := newContext(t, http.MethodGet, "/api/tenants", "")
	c.Set(middleware.AuthContextKey, authz.Unscoped("root", "root@platform.test"))

	require.NoError(t, ListTenants(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "acme")
	assert.Contains(t, rec.Body.String(), "beta")
}

func TestGetTenantOwn(t *testing.T) {
	mock := setupMockDB(t)
	expectTenantByID(mock, tenantA)

	c, rec := newContext(t, http.MethodGet, "/api/tenants/"+tenantA, "")
	c.SetParamNames("id")
	c.SetParamValues(tenantA)
	c.Set(middleware.AuthContextKey, authz.Scoped(userA, "alice@acme.test", model.RoleUser, tenantA))

	require.NoError(t, GetTenant(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetTenantForeignLooksAbsent(t *testing.T) {
	mock := setupMockDB(t)
	expectTenantByID(mock, tenantB)

	c, rec := newContext(t, http.MethodGet, "/api/tenants/"+tenantB, "")
	c.SetParamNames("id")
	c.SetParamValues(tenantB)
	c.Set(middleware.AuthContextKey, authz.Scoped(userA, "alice@acme.test", model.RoleTenantAdmin, tenantA))

	require.NoError(t, GetTenant(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "tenant not found")
}

// A store outage is a 500, never the not-found shape.
func TestGetTenantStoreFailure(t *testing.T) {
	mock := setupMockDB(t)

	mock.ExpectQuery(`SELECT (.+) FROM "tenants" WHERE id = \$1`).
		WithArgs(tenantA, 1).
		WillReturnError(assert.AnError)

	c, rec := newContext(t, http.MethodGet, "/api/tenants/"+tenantA, "")
	c.SetParamNames("id")
	c.SetParamValues(tenantA)
	c.Set(middleware.AuthContextKey, authz.Scoped(userA, "alice@acme.test", model.RoleUser, tenantA))

	require.NoError(t, GetTenant(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "database error")
}

func TestUpdateTenantStoreFailure(t *testing.T) {
	mock := setupMockDB(t)

	mock.ExpectQuery(`SELECT (.+) FROM "tenants" WHERE id = \$1`).
		WithArgs(tenantA, 1).
		WillReturnError(assert.AnError)

	c, rec := newContext(t, http.MethodPatch, "/api/tenants/"+tenantA, `{"name":"Acme Corp"}`)
	c.SetParamNames("id")
	c.SetParamValues(tenantA)
	c.Set(middleware.AuthContextKey, authz.Scoped(userA, "alice@acme.test", model.RoleTenantAdmin, tenantA))

	require.NoError(t, UpdateTenant(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestUpdateTenantRenameByAdmin(t *testing.T) {
	mock := setupMockDB(t)
	expectTenantByID(mock, tenantA)
	mock.ExpectExec(`UPDATE "tenants" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, rec := newContext(t, http.MethodPatch, "/api/tenants/"+tenantA, `{"name":"Acme Corp"}`)
	c.SetParamNames("id")
	c.SetParamValues(tenantA)
	c.Set(middleware.AuthContextKey, authz.Scoped(userA, "alice@acme.test", model.RoleTenantAdmin, tenantA))

	require.NoError(t, UpdateTenant(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTenantMemberForbidden(t *testing.T) {
	mock := setupMockDB(t)
	expectTenantByID(mock, tenantA)

	c, rec := newContext(t, http.MethodPatch, "/api/tenants/"+tenantA, `{"name":"Acme Corp"}`)
	c.SetParamNames("id")
	c.SetParamValues(tenantA)
	c.Set(middleware.AuthContextKey, authz.Scoped(userA, "alice@acme.test", model.RoleUser, tenantA))

	require.NoError(t, UpdateTenant(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// Plan and limit changes are reserved for the platform operator.
func TestUpdateTenantPlanByTenantAdminForbidden(t *testing.T) {
	mock := setupMockDB(t)
	expectTenantByID(mock, tenantA)

	c, rec := newContext(t, http.MethodPatch, "/api/tenants/"+tenantA, `{"plan":"pro"}`)
	c.SetParamNames("id")
	c.SetParamValues(tenantA)
	c.Set(middleware.AuthContextKey, authz.Scoped(userA, "alice@acme.test", model.RoleTenantAdmin, tenantA))

	require.NoError(t, UpdateTenant(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateTenantLimitsBySuperAdmin(t *testing.T) {
	mock := setupMockDB(t)
	expectTenantByID(mock, tenantA)
	mock.ExpectExec(`UPDATE "tenants" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c, rec := newContext(t, http.MethodPatch, "/api/tenants/"+tenantA,
		`{"plan":"enterprise","max_users":100,"max_projects":50}`)
	c.SetParamNames("id")
	c.SetParamValues(tenantA)
	c.Set(middleware.AuthContextKey, authz.Unscoped("root", "root@platform.test"))

	require.NoError(t, UpdateTenant(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTenantForeignLooksAbsent(t *testing.T) {
	mock := setupMockDB(t)
	expectTenantByID(mock, tenantB)

	c, rec := newContext(t, http.MethodPatch, "/api/tenants/"+tenantB, `{"name":"Hijacked"}`)
	c.SetParamNames("id")
	c.SetParamValues(tenantB)
	c.Set(middleware.AuthContextKey, authz.Scoped(userA, "alice@acme.test", model.RoleTenantAdmin, tenantA))

	require.NoError(t, UpdateTenant(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
