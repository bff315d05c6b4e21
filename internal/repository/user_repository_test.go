package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qbank-access-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

const (
	testUserID   = "9b2f3c1e-6c4d-4c59-9a55-0d6f3a1b2c01"
	testAdminID  = "9b2f3c1e-6c4d-4c59-9a55-0d6f3a1b2c02"
	testBundleID = "5e8a7d10-3b2c-4f1e-8d7a-1c2b3a4d5e01"
)

func TestFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "email", "username", "password_hash", "role", "created_at", "updated_at"}).
		AddRow(testUserID, "user@example.com", "user", "hash", string(models.RoleStudent), now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, username, password_hash, role, created_at, updated_at FROM users WHERE email = $1 LIMIT 1")).
		WithArgs("user@example.com").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", user.Email)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDRejectsMalformedID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	_, err := repo.FindByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).
		WithArgs(testUserID).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), testUserID)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateAuditLog(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(`INSERT INTO audit_logs \(.*request_id, created_at\)`).
		WithArgs(sqlmock.AnyArg(), testAdminID, models.AuditActionAccessGrant, "access_grants", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "", "", "req-42", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	actor := testAdminID
	err := repo.CreateAuditLog(context.Background(), &models.AuditLog{UserID: &actor, Action: models.AuditActionAccessGrant, Resource: "access_grants", RequestID: "req-42"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
