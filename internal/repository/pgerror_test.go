package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestClassifyUniqueViolation(t *testing.T) {
	err := classify(fmt.Errorf("wrapped: %w", &pq.Error{Code: pgerrcode.UniqueViolation, Constraint: "access_grants_user_bundle_key"}))
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NotErrorIs(t, err, ErrMissingReference)
	assert.Equal(t, "access_grants_user_bundle_key", ConstraintOf(err))
}

func TestClassifyForeignKeyViolation(t *testing.T) {
	err := classify(&pq.Error{Code: pgerrcode.ForeignKeyViolation, Constraint: "access_grants_user_id_fkey"})
	assert.ErrorIs(t, err, ErrMissingReference)
}

func TestClassifyPassthrough(t *testing.T) {
	plain := errors.New("boom")
	assert.Same(t, plain, classify(plain))
	assert.Empty(t, ConstraintOf(plain))
}
