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

type PaymentOrderRepository interface {
	Create(ctx context.Context, order *entity.PaymentOrder) error
	FindByOrderCode(ctx context.Context, code int64) (*entity.PaymentOrder, error)
	FindByBooking(ctx context.Context, bookingID uuid.UUID) ([]*entity.PaymentOrder, error)
	UpdateLink(ctx context.Context, code int64, linkID, checkoutURL, qrCode string, at time.Time) error
	// UpdateStatus moves the order from one status to another; a concurrent
	// change yields a conflict.
	UpdateStatus(ctx context.Context, code int64, from, to entity.PaymentOrderStatus, at time.Time) error
}

type paymentOrderRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewPaymentOrderRepository(db database.Querier, log *zap.Logger) PaymentOrderRepository {
	return &paymentOrderRepository{
		db:  db,
		log: log.With(zap.String("repository", "payment_order")),
	}
}

const paymentOrderColumns = `order_code, booking_id, purpose, amount, status, payment_link_id,
	checkout_url, qr_code, paid_at, created_at, updated_at`

func scanPaymentOrder(row pgx.Row) (*entity.PaymentOrder, error) {
	var o entity.PaymentOrder
	err := row.Scan(
		&o.OrderCode,
		&o.BookingID,
		&o.Purpose,
		&o.Amount,
		&o.Status,
		&o.PaymentLinkID,
		&o.CheckoutURL,
		&o.QRCode,
		&o.PaidAt,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *paymentOrderRepository) Create(ctx context.Context, o *entity.PaymentOrder) error {
	query := `
		INSERT INTO payment_orders (order_code, booking_id, purpose, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query, o.OrderCode, o.BookingID, o.Purpose, o.Amount, o.Status, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		r.log.Error("Failed to create payment order",
			zap.Error(err),
			zap.Int64("order_code", o.OrderCode),
			zap.String("booking_id", o.BookingID.String()),
		)
		return mapPgError(fmt.Errorf("create payment order %d: %w", o.OrderCode, err))
	}

	return nil
}

func (r *paymentOrderRepository) FindByOrderCode(ctx context.Context, code int64) (*entity.PaymentOrder, error) {
	query := `SELECT ` + paymentOrderColumns + ` FROM payment_orders WHERE order_code = $1`

	order, err := scanPaymentOrder(r.db.QueryRow(ctx, query, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payment order", zap.Error(err), zap.Int64("order_code", code))
		return nil, fmt.Errorf("find payment order %d: %w", code, err)
	}

	return order, nil
}

func (r *paymentOrderRepository) FindByBooking(ctx context.Context, bookingID uuid.UUID) ([]*entity.PaymentOrder, error) {
	query := `SELECT ` + paymentOrderColumns + ` FROM payment_orders WHERE booking_id = $1 ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, bookingID)
	if err != nil {
		r.log.Error("Failed to list payment orders", zap.Error(err), zap.String("booking_id", bookingID.String()))
		return nil, fmt.Errorf("list payment orders for booking %s: %w", bookingID, err)
	}
	defer rows.Close()

	var orders []*entity.PaymentOrder
	for rows.Next() {
		o, err := scanPaymentOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment order: %w", err)
		}
		orders = append(orders, o)
	}

	return orders, rows.Err()
}

func (r *paymentOrderRepository) UpdateLink(ctx context.Context, code int64, linkID, checkoutURL, qrCode string, at time.Time) error {
	query := `
		UPDATE payment_orders
		SET payment_link_id = $2, checkout_url = $3, qr_code = $4, updated_at = $5
		WHERE order_code = $1
	`

	tag, err := r.db.Exec(ctx, query, code, linkID, checkoutURL, qrCode, at)
	if err != nil {
		r.log.Error("Failed to store payment link", zap.Error(err), zap.Int64("order_code", code))
		return fmt.Errorf("store payment link for order %d: %w", code, err)
	}

	return expectOne(tag, "payment order %d not found", code)
}

func (r *paymentOrderRepository) UpdateStatus(ctx context.Context, code int64, from, to entity.PaymentOrderStatus, at time.Time) error {
	query := `
		UPDATE payment_orders
		SET status = $3,
		    paid_at = CASE WHEN $3 = 'paid' THEN $4 ELSE paid_at END,
		    updated_at = $4
		WHERE order_code = $1 AND status = $2
	`

	tag, err := r.db.Exec(ctx, query, code, from, to, at)
	if err != nil {
		r.log.Error("Failed to update payment order status",
			zap.Error(err),
			zap.Int64("order_code", code),
			zap.String("to", string(to)),
		)
		return fmt.Errorf("update payment order %d status: %w", code, err)
	}

	return expectOne(tag, "payment order %d is no longer %s", code, from)
}
