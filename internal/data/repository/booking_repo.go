package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"car-rental/internal/data/entity"
	"car-rental/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// BookingFilter narrows list queries. Nil fields are ignored.
type BookingFilter struct {
	RenterID *uuid.UUID
	OwnerID  *uuid.UUID
	Status   *entity.BookingStatus
	Scope    Scope
}

type BookingRepository interface {
	Create(ctx context.Context, booking *entity.Booking) error
	FindByID(ctx context.Context, id uuid.UUID, scope Scope) (*entity.Booking, error)
	// FindByIDForUpdate locks the booking row; webhook, cancel, return and
	// extension paths serialise on it.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	// Update persists every mutable column except status.
	Update(ctx context.Context, booking *entity.Booking) error
	// UpdateStatus is the only status write; it succeeds only when the row is
	// still in from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.BookingStatus, reason *string, at time.Time) error
	List(ctx context.Context, filter BookingFilter, limit, offset int) ([]*entity.Booking, error)
	Count(ctx context.Context, filter BookingFilter) (int64, error)

	// Business queries
	FindActiveOverlapping(ctx context.Context, carID uuid.UUID, start, end time.Time, excludeID uuid.UUID) ([]*entity.Booking, error)
	FindExpirable(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	FindStartable(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	FindStalePending(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

type bookingRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewBookingRepository(db database.Querier, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

const bookingColumns = `b.id, b.renter_id, b.car_id, b.status, b.status_reason, b.start_time, b.end_time,
	b.actual_return_time, b.base_price, b.platform_fee, b.excess_days, b.excess_fee, b.is_excess_paid,
	b.total_amount, b.is_paid, b.is_car_returned, b.payment_order_code, b.extension_amount,
	b.extension_end_time, b.is_extension_paid, b.refund_amount, b.refund_date, b.is_refund,
	b.created_at, b.updated_at, b.is_deleted, b.deleted_at`

func scanBooking(row pgx.Row) (*entity.Booking, error) {
	var b entity.Booking
	err := row.Scan(
		&b.ID,
		&b.RenterID,
		&b.CarID,
		&b.Status,
		&b.StatusReason,
		&b.StartTime,
		&b.EndTime,
		&b.ActualReturnTime,
		&b.BasePrice,
		&b.PlatformFee,
		&b.ExcessDays,
		&b.ExcessFee,
		&b.IsExcessPaid,
		&b.TotalAmount,
		&b.IsPaid,
		&b.IsCarReturned,
		&b.PaymentOrderCode,
		&b.ExtensionAmount,
		&b.ExtensionEndTime,
		&b.IsExtensionPaid,
		&b.RefundAmount,
		&b.RefundDate,
		&b.IsRefund,
		&b.CreatedAt,
		&b.UpdatedAt,
		&b.IsDeleted,
		&b.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	query := `
		INSERT INTO bookings (id, renter_id, car_id, status, start_time, end_time,
		                      base_price, platform_fee, total_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Exec(ctx, query,
		booking.ID,
		booking.RenterID,
		booking.CarID,
		booking.Status,
		booking.StartTime,
		booking.EndTime,
		booking.BasePrice,
		booking.PlatformFee,
		booking.TotalAmount,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create booking",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
			zap.String("car_id", booking.CarID.String()),
		)
		return mapPgError(fmt.Errorf("create booking %s: %w", booking.ID, err))
	}

	return nil
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID, scope Scope) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = $1` + scope.predicate("b")

	booking, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by ID", zap.Error(err), zap.String("booking_id", id.String()))
		return nil, fmt.Errorf("find booking by ID %s: %w", id, err)
	}

	return booking, nil
}

func (r *bookingRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = $1 AND b.is_deleted = FALSE FOR UPDATE`

	booking, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to lock booking", zap.Error(err), zap.String("booking_id", id.String()))
		return nil, fmt.Errorf("lock booking %s: %w", id, err)
	}

	return booking, nil
}

func (r *bookingRepository) Update(ctx context.Context, b *entity.Booking) error {
	query := `
		UPDATE bookings SET
			start_time = $2, end_time = $3, actual_return_time = $4,
			base_price = $5, platform_fee = $6, excess_days = $7, excess_fee = $8, is_excess_paid = $9,
			total_amount = $10, is_paid = $11, is_car_returned = $12, payment_order_code = $13,
			extension_amount = $14, extension_end_time = $15, is_extension_paid = $16,
			refund_amount = $17, refund_date = $18, is_refund = $19, updated_at = $20
		WHERE id = $1 AND is_deleted = FALSE
	`

	tag, err := r.db.Exec(ctx, query,
		b.ID,
		b.StartTime,
		b.EndTime,
		b.ActualReturnTime,
		b.BasePrice,
		b.PlatformFee,
		b.ExcessDays,
		b.ExcessFee,
		b.IsExcessPaid,
		b.TotalAmount,
		b.IsPaid,
		b.IsCarReturned,
		b.PaymentOrderCode,
		b.ExtensionAmount,
		b.ExtensionEndTime,
		b.IsExtensionPaid,
		b.RefundAmount,
		b.RefundDate,
		b.IsRefund,
		b.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to update booking", zap.Error(err), zap.String("booking_id", b.ID.String()))
		return mapPgError(fmt.Errorf("update booking %s: %w", b.ID, err))
	}

	return expectOne(tag, "booking %s not found", b.ID)
}

func (r *bookingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.BookingStatus, reason *string, at time.Time) error {
	query := `
		UPDATE bookings
		SET status = $3, status_reason = COALESCE($4, status_reason), updated_at = $5
		WHERE id = $1 AND status = $2 AND is_deleted = FALSE
	`

	tag, err := r.db.Exec(ctx, query, id, from, to, reason, at)
	if err != nil {
		r.log.Error("Failed to update booking status",
			zap.Error(err),
			zap.String("booking_id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		return mapPgError(fmt.Errorf("update booking %s status: %w", id, err))
	}

	return expectOne(tag, "booking %s is no longer %s", id, from)
}

func (f BookingFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.RenterID != nil {
		add("b.renter_id = $%d", *f.RenterID)
	}
	if f.OwnerID != nil {
		add("c.owner_id = $%d", *f.OwnerID)
	}
	if f.Status != nil {
		add("b.status = $%d", *f.Status)
	}

	where := "WHERE TRUE"
	if len(conds) > 0 {
		where += " AND " + strings.Join(conds, " AND ")
	}
	return where + f.Scope.predicate("b"), args
}

func (r *bookingRepository) List(ctx context.Context, filter BookingFilter, limit, offset int) ([]*entity.Booking, error) {
	where, args := filter.where()
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT %s
		FROM bookings b
		JOIN cars c ON c.id = b.car_id
		%s
		ORDER BY b.created_at DESC
		LIMIT $%d OFFSET $%d
	`, bookingColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to list bookings", zap.Error(err))
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}

	return bookings, rows.Err()
}

func (r *bookingRepository) Count(ctx context.Context, filter BookingFilter) (int64, error) {
	where, args := filter.where()
	query := `SELECT COUNT(*) FROM bookings b JOIN cars c ON c.id = b.car_id ` + where

	var count int64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		r.log.Error("Failed to count bookings", zap.Error(err))
		return 0, fmt.Errorf("count bookings: %w", err)
	}

	return count, nil
}

func (r *bookingRepository) FindActiveOverlapping(ctx context.Context, carID uuid.UUID, start, end time.Time, excludeID uuid.UUID) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings b
		WHERE b.car_id = $1
		  AND b.status IN ('approved', 'in_progress')
		  AND b.is_deleted = FALSE
		  AND b.start_time < $3
		  AND $2 < CASE
		        WHEN b.extension_end_time IS NOT NULL AND NOT b.is_extension_paid
		             AND b.extension_end_time > b.end_time THEN b.extension_end_time
		        ELSE b.end_time
		      END
		  AND b.id <> $4
		ORDER BY b.start_time ASC
	`

	rows, err := r.db.Query(ctx, query, carID, start, end, excludeID)
	if err != nil {
		r.log.Error("Failed to find overlapping bookings",
			zap.Error(err),
			zap.String("car_id", carID.String()),
		)
		return nil, fmt.Errorf("find overlapping bookings for car %s: %w", carID, err)
	}
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}

	return bookings, rows.Err()
}

func (r *bookingRepository) findIDs(ctx context.Context, name, query string, args ...any) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to run sweep query", zap.String("query", name), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan booking id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (r *bookingRepository) FindExpirable(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return r.findIDs(ctx, "find expirable bookings", `
		SELECT id FROM bookings
		WHERE status = 'approved' AND is_paid = FALSE AND start_time <= $1 AND is_deleted = FALSE
		ORDER BY start_time ASC
		LIMIT $2
	`, now, limit)
}

func (r *bookingRepository) FindStartable(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return r.findIDs(ctx, "find startable bookings", `
		SELECT id FROM bookings
		WHERE status = 'approved' AND is_paid = TRUE AND start_time <= $1 AND is_deleted = FALSE
		ORDER BY start_time ASC
		LIMIT $2
	`, now, limit)
}

func (r *bookingRepository) FindStalePending(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	return r.findIDs(ctx, "find stale pending bookings", `
		SELECT id FROM bookings
		WHERE status = 'pending' AND start_time <= $1 AND is_deleted = FALSE
		ORDER BY start_time ASC
		LIMIT $2
	`, now, limit)
}
