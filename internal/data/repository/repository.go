package repository

import (
	"context"
	"errors"
	"fmt"

	"car-rental/pkg/apperror"
	"car-rental/pkg/database"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

type Repository struct {
	User          UserRepository
	Car           CarRepository
	Availability  CarAvailabilityRepository
	Booking       BookingRepository
	PaymentOrder  PaymentOrderRepository
	LockedBalance LockedBalanceRepository
	Transaction   TransactionRepository
	Withdrawal    WithdrawalRepository
	Report        ReportRepository

	// Tx runs a unit of work atomically. Nil means the repositories are
	// already bound to an open transaction.
	Tx TxRunner
}

// TxRunner executes fn against repositories bound to a single transaction.
// fn's error rolls everything back.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(tx *Repository) error) error
}

func NewRepository(db database.PgxIface, log *zap.Logger) *Repository {
	repo := newQuerierRepository(db, log)
	repo.Tx = &pgTxRunner{db: db, log: log}
	return repo
}

func newQuerierRepository(q database.Querier, log *zap.Logger) *Repository {
	return &Repository{
		User:          NewUserRepository(q, log),
		Car:           NewCarRepository(q, log),
		Availability:  NewCarAvailabilityRepository(q, log),
		Booking:       NewBookingRepository(q, log),
		PaymentOrder:  NewPaymentOrderRepository(q, log),
		LockedBalance: NewLockedBalanceRepository(q, log),
		Transaction:   NewTransactionRepository(q, log),
		Withdrawal:    NewWithdrawalRepository(q, log),
		Report:        NewReportRepository(q, log),
	}
}

// WithTx runs fn inside a transaction. Inside fn, use the tx argument for
// every read and write; nested calls reuse the open transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(tx *Repository) error) error {
	if r.Tx == nil {
		return fn(r)
	}
	return r.Tx.RunInTx(ctx, fn)
}

type pgTxRunner struct {
	db  database.PgxIface
	log *zap.Logger
}

func (p *pgTxRunner) RunInTx(ctx context.Context, fn func(tx *Repository) error) (err error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			p.log.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
	}()

	if err = fn(newQuerierRepository(tx, p.log)); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return mapPgError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// mapPgError turns constraint violations into domain conflicts so callers can
// branch on apperror kinds.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.ExclusionViolation:
		return &apperror.Error{Kind: apperror.KindConflict, Message: "booking window overlaps an active booking", Err: err}
	case pgerrcode.UniqueViolation:
		return &apperror.Error{Kind: apperror.KindConflict, Message: "duplicate record", Err: err}
	case pgerrcode.CheckViolation:
		if pgErr.ConstraintName == "users_balance_non_negative" || pgErr.ConstraintName == "users_locked_balance_non_negative" {
			return &apperror.Error{Kind: apperror.KindInsufficientFunds, Message: "balance would become negative", Err: err}
		}
		return &apperror.Error{Kind: apperror.KindValidation, Message: "constraint violated", Err: err}
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return &apperror.Error{Kind: apperror.KindConflict, Message: "concurrent update, retry", Err: err}
	}
	return err
}

// expectOne converts a compare-and-set update that touched no rows into a
// conflict.
func expectOne(tag pgconn.CommandTag, format string, args ...any) error {
	if tag.RowsAffected() == 0 {
		return apperror.Conflict(format, args...)
	}
	return nil
}
