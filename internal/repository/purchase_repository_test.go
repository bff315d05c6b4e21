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

var purchaseRowColumns = []string{"id", "user_id", "bundle_id", "payment_done", "created_at", "updated_at"}

func TestPurchaseUpsertIntent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPurchaseRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE purchases.payment_done = FALSE")).
		WithArgs(sqlmock.AnyArg(), testUserID, testBundleID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(purchaseRowColumns).AddRow("p-1", testUserID, testBundleID, false, now, now))

	purchase, err := repo.UpsertIntent(context.Background(), testUserID, testBundleID)
	require.NoError(t, err)
	assert.False(t, purchase.PaymentDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseUpsertIntentAlreadyPaid(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPurchaseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO purchases")).WillReturnError(sql.ErrNoRows)

	_, err := repo.UpsertIntent(context.Background(), testUserID, testBundleID)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseMarkPaid(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPurchaseRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE purchases SET payment_done = TRUE")).
		WithArgs(testUserID, testBundleID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(purchaseRowColumns).AddRow("p-1", testUserID, testBundleID, true, now, now))

	purchase, err := repo.MarkPaid(context.Background(), testUserID, testBundleID)
	require.NoError(t, err)
	assert.True(t, purchase.PaymentDone)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurchaseListPaidByUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPurchaseRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND payment_done = TRUE")).
		WithArgs(testUserID).
		WillReturnRows(sqlmock.NewRows(purchaseRowColumns).AddRow("p-1", testUserID, testBundleID, true, now, now))

	purchases, err := repo.ListPaidByUser(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Len(t, purchases, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
