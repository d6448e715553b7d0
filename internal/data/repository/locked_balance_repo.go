package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"car-rental/internal/data/entity"
	"car-rental/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type LockedBalanceRepository interface {
	Create(ctx context.Context, lb *entity.BookingLockedBalance) error
	// FindActiveByBooking returns the escrow record that has not been
	// released or reversed yet.
	FindActiveByBooking(ctx context.Context, bookingID uuid.UUID) (*entity.BookingLockedBalance, error)
	UpdateAmount(ctx context.Context, id uuid.UUID, amount int64, at time.Time) error
	SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
}

type lockedBalanceRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewLockedBalanceRepository(db database.Querier, log *zap.Logger) LockedBalanceRepository {
	return &lockedBalanceRepository{
		db:  db,
		log: log.With(zap.String("repository", "locked_balance")),
	}
}

func (r *lockedBalanceRepository) Create(ctx context.Context, lb *entity.BookingLockedBalance) error {
	query := `
		INSERT INTO booking_locked_balances (id, booking_id, owner_id, amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(ctx, query, lb.ID, lb.BookingID, lb.OwnerID, lb.Amount, lb.CreatedAt, lb.UpdatedAt)
	if err != nil {
		r.log.Error("Failed to create locked balance",
			zap.Error(err),
			zap.String("booking_id", lb.BookingID.String()),
		)
		return mapPgError(fmt.Errorf("create locked balance for booking %s: %w", lb.BookingID, err))
	}

	return nil
}

func (r *lockedBalanceRepository) FindActiveByBooking(ctx context.Context, bookingID uuid.UUID) (*entity.BookingLockedBalance, error) {
	query := `
		SELECT id, booking_id, owner_id, amount, created_at, updated_at, is_deleted, deleted_at
		FROM booking_locked_balances
		WHERE booking_id = $1 AND is_deleted = FALSE
	`

	var lb entity.BookingLockedBalance
	err := r.db.QueryRow(ctx, query, bookingID).Scan(
		&lb.ID,
		&lb.BookingID,
		&lb.OwnerID,
		&lb.Amount,
		&lb.CreatedAt,
		&lb.UpdatedAt,
		&lb.IsDeleted,
		&lb.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find locked balance", zap.Error(err), zap.String("booking_id", bookingID.String()))
		return nil, fmt.Errorf("find locked balance for booking %s: %w", bookingID, err)
	}

	return &lb, nil
}

func (r *lockedBalanceRepository) UpdateAmount(ctx context.Context, id uuid.UUID, amount int64, at time.Time) error {
	query := `
		UPDATE booking_locked_balances
		SET amount = $2, updated_at = $3
		WHERE id = $1 AND is_deleted = FALSE
	`

	tag, err := r.db.Exec(ctx, query, id, amount, at)
	if err != nil {
		r.log.Error("Failed to update locked balance", zap.Error(err), zap.String("id", id.String()))
		return fmt.Errorf("update locked balance %s: %w", id, err)
	}

	return expectOne(tag, "locked balance %s not found", id)
}

func (r *lockedBalanceRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE booking_locked_balances
		SET is_deleted = TRUE, deleted_at = $2, updated_at = $2
		WHERE id = $1 AND is_deleted = FALSE
	`

	tag, err := r.db.Exec(ctx, query, id, at)
	if err != nil {
		r.log.Error("Failed to release locked balance", zap.Error(err), zap.String("id", id.String()))
		return fmt.Errorf("release locked balance %s: %w", id, err)
	}

	return expectOne(tag, "locked balance %s already released", id)
}
