package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"saas-platform/internal/authz"
	"saas-platform/internal/middleware"
	"saas-platform/internal/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectTenantLock(mock sqlmock.Sqlmock, tenantID string, maxUsers, maxProjects int) {
	mock.ExpectQuery(`SELECT (.+) FROM "tenants" WHERE id = \$1 (.+)FOR UPDATE`).
		WithArgs(tenantID, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "subdomain", "max_users", "max_projects"}).
			AddRow(tenantID, "Acme", "acme", maxUsers, maxProjects))
}

func TestCreateProjectSuccess(t *testing.T) {
	mock := setupMockDB(t)

	mock.ExpectBegin()
	expectTenantLock(mock, tenantA, 5, 3)
	mock.ExpectQuery(`SELECT count\(\*\) FROM "projects" WHERE tenant_id = \$1`).
		WithArgs(tenantA).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO "projects"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, rec := newContext(t, http.MethodPost, "/api/projects", `{"name":"alpha"}`)
	c.Set(middleware.AuthContextKey, authz.Scoped(userA, "alice@acme.test", model.RoleTenantAdmin, tenantA))

	require.NoError(t, CreateProject(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Project struct {
			TenantID string `json:"tenant_id"`
			Name     string `json:"name"`
		} `json:"project"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, tenantA, resp.Project.TenantID)
	assert.Equal(t, "alpha", resp.Project.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// At the plan limit the whole transaction rolls back; nothing is inserted.
func TestCreateProjectAtLimit(t *testing.T) {
	mock := setupMockDB(t)

	mock.ExpectBegin()
	expectTenantLock(mock, tenantA, 5, 1)
	mock.ExpectQuery(`SELECT count\(\*\) FROM "projects" WHERE tenant_id = \$1`).
		WithArgs(tenantA).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	c, rec := newContext(t, http.MethodPost, "/api/projects", `{"name":"beta"}`)
	c.Set(middleware.AuthContextKey, authz.Scoped(userA, "alice@acme.test", model.RoleTenantAdmin, tenantA))

	require.NoError(t, CreateProject(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "plan limit exceeded")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateProjectUnscopedRejected(t *testing.T) {
	setupMockDB(t)

	c, rec := newContext(t, http.MethodPost, "/api/projects", `{"name":"alpha"}`)
	c.Set(middleware.AuthContextKey, authz.Unscoped("root", "root@platform.test"))

	require.NoError(t, CreateProject(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "tenant context required")
}

func TestListProjectsScopedToTenant(t *testing.T) {
	mock := setupMockDB(t)

	mock.ExpectQuery(`SELECT (.+) FROM "projects" WHERE tenant_id = \$1`).
		WithArgs(tenantA).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "name"}).
			AddRow(proj1, tenantA, "alpha"))

	c, rec := newContext(t, http.MethodGet, "/api/projects", "")
	c.Set(middleware.AuthContextKey, authz.Scoped(userA, "alice@acme.test", model.RoleUser, tenantA))

	require.NoError(t, ListProjects(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "alpha")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProjectCrossTenantLooksAbsent(t *testing.T) {
	mock := setupMockDB(t)
	expectProjectByID(mock, proj1, tenantA)

	c, rec := newContext(t, http.MethodGet, "/api/projects/"+proj1, "")
	c.SetParamNames("id")
	c.SetParamValues(proj1)
	c.Set(middleware.AuthContextKey, authz.Scoped("u9", "eve@beta.test", model.RoleTenantAdmin, tenantB))

	require.NoError(t, GetProject(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "project not found")
}

func TestGetProjectSuperAdminBypass(t *testing.T) {
	mock := setupMockDB(t)
	expectProjectByID(mock, proj1, tenantA)

	c, rec := newContext(t, http.MethodGet, "/api/projects/"+proj1, "")
	c.SetParamNames("id")
	c.SetParamValues(proj1)
	c.Set(middleware.AuthContextKey, authz.Unscoped("root", "root@platform.test"))

	require.NoError(t, GetProject(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

// A store outage is a 500, never the not-found shape: an unreachable
// database must stay distinguishable from an absent row.
func TestGetProjectStoreFailure(t *testing.T) {
	mock := setupMockDB(t)

	mock.ExpectQuery(`SELECT (.+) FROM "projects" WHERE id = \$1`).
		WithArgs(proj1, 1).
		WillReturnError(assert.AnError)

	c, rec := newContext(t, http.MethodGet, "/api/projects/"+proj1, "")
	c.SetParamNames("id")
	c.SetParamValues(proj1)
	c.Set(middleware.AuthContextKey, authz.Scoped(userA, "alice@acme.test", model.RoleUser, tenantA))

	require.NoError(t, GetProject(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "database error")
}

func TestDeleteProjectStoreFailure(t *testing.T) {
	mock := setupMockDB(t)

	mock.ExpectQuery(`SELECT (.+) FROM "projects" WHERE id = \$1`).
		WithArgs(proj1, 1).
		WillReturnError(assert.AnError)

	c, rec := newContext(t, http.MethodDelete, "/api/projects/"+proj1, "")
	c.SetParamNames("id")
	c.SetParamValues(proj1)
	c.Set(middleware.AuthContextKey, authz.Scoped(userA, "alice@acme.test", model.RoleTenantAdmin, tenantA))

	require.NoError(t, DeleteProject(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestUpdateProjectCrossTenantLooksAbsent(t *testing.T) {
	mock := setupMockDB(t)
	expectProjectByID(mock, proj1, tenantA)

	c, rec := newContext(t, http.MethodPatch, "/api/projects/"+proj1, `{"name":"renamed"}`)
	c.SetParamNames("id")
	c.SetParamValues(proj1)
	c.Set(middleware.AuthContextKey, authz.Scoped("u9", "eve@beta.test", model.RoleTenantAdmin, tenantB))

	require.NoError(t, UpdateProject(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteProjectRemovesTasks(t *testing.T) {
	mock := setupMockDB(t)
	expectProjectByID(mock, proj1, tenantA)

	// Soft deletes issue UPDATEs setting deleted_at
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "tasks" SET "deleted_at"`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`UPDATE "projects" SET "deleted_at"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, rec := newContext(t, http.MethodDelete, "/api/projects/"+proj1, "")
	c.SetParamNames("id")
	c.SetParamValues(proj1)
	c.Set(middleware.AuthContextKey, authz.Scoped(userA, "alice@acme.test", model.RoleTenantAdmin, tenantA))

	require.NoError(t, DeleteProject(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
