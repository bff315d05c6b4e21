package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBundleFindByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBundleRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "title", "department_id", "price", "created_at", "updated_at"}).
		AddRow(testBundleID, "Physics Bank", nil, "49.90", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, department_id, price, created_at, updated_at FROM bundles WHERE id = $1 LIMIT 1")).
		WithArgs(testBundleID).
		WillReturnRows(rows)

	bundle, err := repo.FindByID(context.Background(), testBundleID)
	require.NoError(t, err)
	assert.Equal(t, "Physics Bank", bundle.Title)
	assert.InDelta(t, 49.90, bundle.Price, 0.001)
	assert.Nil(t, bundle.DepartmentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBundleFindByIDMalformed(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBundleRepository(db)

	_, err := repo.FindByID(context.Background(), "bundle-x")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBundleContentIDs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBundleRepository(db)

	rows := sqlmock.NewRows([]string{"content_id"}).AddRow("c-1").AddRow("c-2")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT content_id FROM bundle_contents WHERE bundle_id = $1")).
		WithArgs(testBundleID).
		WillReturnRows(rows)

	ids, err := repo.ContentIDs(context.Background(), testBundleID)
	require.NoError(t, err)
	assert.Equal(t, []string{"c-1", "c-2"}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBundleListByIDsEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBundleRepository(db)

	bundles, err := repo.ListByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, bundles)
	assert.NoError(t, mock.ExpectationsWereMet())
}
