package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"car-rental/internal/data/entity"
	"car-rental/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestScopePredicate(t *testing.T) {
	assert.Equal(t, " AND is_deleted = FALSE", ExcludeDeleted.predicate(""))
	assert.Equal(t, " AND b.is_deleted = FALSE", ExcludeDeleted.predicate("b"))
	assert.Equal(t, "", IncludeDeleted.predicate("b"))
}

func TestMapPgError(t *testing.T) {
	exclusion := fmt.Errorf("create booking: %w", &pgconn.PgError{Code: pgerrcode.ExclusionViolation})
	assert.True(t, errors.Is(mapPgError(exclusion), apperror.ErrConflict))

	unique := &pgconn.PgError{Code: pgerrcode.UniqueViolation}
	assert.True(t, errors.Is(mapPgError(unique), apperror.ErrConflict))

	negative := &pgconn.PgError{Code: pgerrcode.CheckViolation, ConstraintName: "users_balance_non_negative"}
	assert.True(t, errors.Is(mapPgError(negative), apperror.ErrInsufficientFunds))

	plain := errors.New("connection reset")
	assert.Equal(t, plain, mapPgError(plain))
}

func TestExpectOne(t *testing.T) {
	assert.NoError(t, expectOne(pgconn.NewCommandTag("UPDATE 1"), "x"))
	assert.True(t, errors.Is(expectOne(pgconn.NewCommandTag("UPDATE 0"), "gone"), apperror.ErrConflict))
}

func TestBookingFilterWhere(t *testing.T) {
	owner := uuid.New()
	status := entity.BookingStatusApproved

	where, args := BookingFilter{OwnerID: &owner, Status: &status}.where()
	assert.Equal(t, "WHERE TRUE AND c.owner_id = $1 AND b.status = $2 AND b.is_deleted = FALSE", where)
	assert.Equal(t, []any{owner, status}, args)

	where, args = BookingFilter{Scope: IncludeDeleted}.where()
	assert.Equal(t, "WHERE TRUE", where)
	assert.Empty(t, args)
}

func TestWithTxWithoutRunnerRunsInline(t *testing.T) {
	repo := &Repository{}
	called := false
	err := repo.WithTx(context.Background(), func(tx *Repository) error {
		called = true
		assert.Same(t, repo, tx)
		return nil
	})
	assert.NoError(t, err)
	assert.True(t, called)
}
