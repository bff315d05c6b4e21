package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/qbank-access-api/internal/dto"
	"github.com/noah-isme/qbank-access-api/internal/models"
)

var grantRowColumns = []string{"id", "user_id", "bundle_id", "granted_by", "granted_at", "expires_at", "is_active", "notes", "created_at", "updated_at"}

func TestAccessGrantUpsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccessGrantRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows(grantRowColumns).
		AddRow("g-1", testUserID, testBundleID, testAdminID, now, nil, true, "welcome", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO access_grants")).
		WithArgs(sqlmock.AnyArg(), testUserID, testBundleID, testAdminID, sqlmock.AnyArg(), nil, "welcome", sqlmock.AnyArg()).
		WillReturnRows(rows)

	grant, err := repo.Upsert(context.Background(), &models.AccessGrant{UserID: testUserID, BundleID: testBundleID, GrantedBy: testAdminID, Notes: "welcome"})
	require.NoError(t, err)
	assert.True(t, grant.IsActive)
	assert.Nil(t, grant.ExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessGrantUpsertDuplicateKey(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccessGrantRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO access_grants")).
		WillReturnError(&pq.Error{Code: pgerrcode.UniqueViolation, Constraint: "access_grants_user_bundle_key"})

	_, err := repo.Upsert(context.Background(), &models.AccessGrant{UserID: testUserID, BundleID: testBundleID, GrantedBy: testAdminID})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.Equal(t, "access_grants_user_bundle_key", ConstraintOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessGrantRevokeMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccessGrantRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE access_grants SET is_active = FALSE")).
		WithArgs(testUserID, testBundleID, sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Revoke(context.Background(), testUserID, testBundleID)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessGrantListValidByUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccessGrantRepository(db)

	now := time.Now().UTC()
	expiry := now.Add(time.Hour)
	rows := sqlmock.NewRows(grantRowColumns).
		AddRow("g-1", testUserID, testBundleID, testAdminID, now, expiry, true, "", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND is_active = TRUE AND (expires_at IS NULL OR expires_at > $2)")).
		WithArgs(testUserID, now).
		WillReturnRows(rows)

	grants, err := repo.ListValidByUser(context.Background(), testUserID, now)
	require.NoError(t, err)
	require.Len(t, grants, 1)
	require.NotNil(t, grants[0].ExpiresAt)
	assert.True(t, grants[0].ExpiresAt.Equal(expiry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessGrantListWithFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccessGrantRepository(db)

	now := time.Now().UTC()
	active := true
	cols := append(append([]string{}, grantRowColumns...), "user_email", "username", "bundle_title", "bundle_price", "granted_by_name")
	rows := sqlmock.NewRows(cols).
		AddRow("g-1", testUserID, testBundleID, testAdminID, now, nil, true, "", now, now, "s@example.com", "student", "Physics", "10.00", "admin")
	mock.ExpectQuery(`SELECT g\.id, .* FROM access_grants g .* WHERE 1=1 AND g\.bundle_id = \$1 AND g\.is_active = \$2 ORDER BY g\.created_at DESC LIMIT 5 OFFSET 5`).
		WithArgs(testBundleID, true).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM access_grants g`).
		WithArgs(testBundleID, true).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(6))

	items, total, err := repo.List(context.Background(), dto.AccessFilter{BundleID: testBundleID, IsActive: &active, Page: 2, Limit: 5})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 6, total)
	assert.Equal(t, "Physics", items[0].BundleTitle)
	assert.Equal(t, testUserID, items[0].UserID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAccessGrantStats(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccessGrantRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("COUNT(*) FILTER (WHERE is_active) AS total_active")).
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows([]string{"total_active", "total_revoked", "active_with_expiry", "expired"}).AddRow(7, 2, 3, 1))
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY g.bundle_id, b.title, b.price")).
		WillReturnRows(sqlmock.NewRows([]string{"bundle_id", "bundle_title", "bundle_price", "grant_count"}).
			AddRow(testBundleID, "Physics", "10.00", 4))

	stats, err := repo.Stats(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 7, stats.TotalActive)
	assert.Equal(t, 2, stats.TotalRevoked)
	assert.Equal(t, 3, stats.ActiveWithExpiry)
	assert.Equal(t, 1, stats.Expired)
	require.Len(t, stats.TopBundles, 1)
	assert.Equal(t, 4, stats.TopBundles[0].Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
