package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"car-rental/internal/data/entity"
	"car-rental/internal/data/repository"
	"car-rental/pkg/apperror"
	"car-rental/pkg/payos"
	"car-rental/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentLink is the checkout handed to the renter.
type PaymentLink struct {
	OrderCode   int64                 `json:"order_code"`
	Purpose     entity.PaymentPurpose `json:"purpose"`
	Amount      int64                 `json:"amount"`
	CheckoutURL string                `json:"checkout_url"`
	QRCode      string                `json:"qr_code,omitempty"`
}

type WebhookOutcome string

const (
	WebhookApplied   WebhookOutcome = "applied"
	WebhookDuplicate WebhookOutcome = "duplicate"
	WebhookIgnored   WebhookOutcome = "ignored"
	WebhookRejected  WebhookOutcome = "rejected"
	WebhookFailed    WebhookOutcome = "failed"
)

type WebhookResult struct {
	OrderCode int64          `json:"order_code"`
	Outcome   WebhookOutcome `json:"outcome"`
	BookingID *uuid.UUID     `json:"booking_id,omitempty"`
}

type PaymentService interface {
	// HandleWebhook verifies the gateway signature and applies the event.
	HandleWebhook(ctx context.Context, body []byte) (*WebhookResult, error)
	// ConfirmPayment applies an already verified event. Replays of the same
	// order code are reported as duplicates and change nothing.
	ConfirmPayment(ctx context.Context, data *payos.WebhookData) (*WebhookResult, error)
}

type paymentService struct {
	base
	ledger  *ledgerEngine
	gateway payos.Gateway
}

func (s *paymentService) HandleWebhook(ctx context.Context, body []byte) (*WebhookResult, error) {
	if s.gateway == nil {
		return nil, fmt.Errorf("payment gateway is not configured")
	}

	data, err := s.gateway.VerifyWebhook(body)
	if err != nil {
		if errors.Is(err, payos.ErrInvalidSignature) || errors.Is(err, payos.ErrMalformedPayload) {
			s.log.Warn("Rejected webhook", zap.Error(err))
			return nil, &apperror.Error{Kind: apperror.KindValidation, Message: "invalid webhook", Err: err}
		}
		return nil, fmt.Errorf("verify webhook: %w", err)
	}

	return s.ConfirmPayment(ctx, data)
}

func (s *paymentService) ConfirmPayment(ctx context.Context, data *payos.WebhookData) (*WebhookResult, error) {
	result := &WebhookResult{OrderCode: data.OrderCode}
	var published []Event

	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		published = nil

		order, err := tx.PaymentOrder.FindByOrderCode(ctx, data.OrderCode)
		if err != nil {
			return err
		}
		if order == nil {
			result.Outcome = WebhookIgnored
			return nil
		}
		bookingID := order.BookingID
		result.BookingID = &bookingID

		// car before booking, the same lock order as StartBooking
		current, err := tx.Booking.FindByID(ctx, order.BookingID, repository.IncludeDeleted)
		if err != nil {
			return err
		}
		if current == nil {
			result.Outcome = WebhookIgnored
			return nil
		}
		car, err := tx.Car.FindByIDForUpdate(ctx, current.CarID)
		if err != nil {
			return err
		}
		if car == nil {
			// delisted cars still settle their payments
			car, err = tx.Car.FindByID(ctx, current.CarID, repository.IncludeDeleted)
			if err != nil {
				return err
			}
		}
		if car == nil {
			return fmt.Errorf("car %s of booking %s is missing", current.CarID, current.ID)
		}

		booking, err := tx.Booking.FindByIDForUpdate(ctx, order.BookingID)
		if err != nil {
			return err
		}
		if booking == nil {
			result.Outcome = WebhookIgnored
			return nil
		}

		// re-read under the booking lock; a concurrent delivery may have won
		order, err = tx.PaymentOrder.FindByOrderCode(ctx, data.OrderCode)
		if err != nil {
			return err
		}
		if order.Status == entity.PaymentOrderPaid {
			result.Outcome = WebhookDuplicate
			return nil
		}

		now := s.clock()

		if !data.Paid() {
			result.Outcome = WebhookFailed
			if order.IsOpen() {
				return tx.PaymentOrder.UpdateStatus(ctx, order.OrderCode, order.Status, entity.PaymentOrderFailed, now)
			}
			return nil
		}

		if data.Amount != order.Amount {
			s.log.Error("Webhook amount does not match order",
				zap.Int64("order_code", order.OrderCode),
				zap.Int64("expected", order.Amount),
				zap.Int64("received", data.Amount),
			)
			result.Outcome = WebhookRejected
			return tx.PaymentOrder.UpdateStatus(ctx, order.OrderCode, order.Status, entity.PaymentOrderRejected, now)
		}

		if reason := payableReason(booking, order); reason != "" {
			s.log.Warn("Payment rejected",
				zap.Int64("order_code", order.OrderCode),
				zap.String("booking_id", booking.ID.String()),
				zap.String("booking_status", string(booking.Status)),
				zap.String("reason", reason),
			)
			result.Outcome = WebhookRejected
			if order.Status == entity.PaymentOrderRejected {
				return nil
			}
			return tx.PaymentOrder.UpdateStatus(ctx, order.OrderCode, order.Status, entity.PaymentOrderRejected, now)
		}

		if err := tx.PaymentOrder.UpdateStatus(ctx, order.OrderCode, order.Status, entity.PaymentOrderPaid, now); err != nil {
			return err
		}

		switch order.Purpose {
		case entity.PaymentPurposeBooking:
			if _, err := s.ledger.LockFunds(ctx, tx, booking, car.OwnerID); err != nil {
				return err
			}
			code := order.OrderCode
			booking.IsPaid = true
			booking.PaymentOrderCode = &code
			booking.UpdatedAt = now
			if err := tx.Booking.Update(ctx, booking); err != nil {
				return err
			}
			published = append(published, Event{Type: EventBookingPaid, EntityID: booking.ID, Status: string(booking.Status), Amount: order.Amount})

			started, err := startIfDue(ctx, tx, booking, car, now)
			if err != nil {
				return err
			}
			if started {
				published = append(published, bookingEvent(EventBookingStarted, booking))
			}

		case entity.PaymentPurposeExtension:
			if _, err := s.ledger.LockAdditional(ctx, tx, booking, car.OwnerID, entity.TransactionExtensionPayment, order.Amount); err != nil {
				return err
			}
			booking.EndTime = *booking.ExtensionEndTime
			booking.IsExtensionPaid = true
			booking.TotalAmount += order.Amount
			booking.UpdatedAt = now
			if err := tx.Booking.Update(ctx, booking); err != nil {
				return err
			}
			published = append(published, Event{Type: EventBookingExtensionPaid, EntityID: booking.ID, Status: string(booking.Status), Amount: order.Amount})

		case entity.PaymentPurposeExcess:
			if _, err := s.ledger.LockAdditional(ctx, tx, booking, car.OwnerID, entity.TransactionExcessFeePayment, order.Amount); err != nil {
				return err
			}
			booking.IsExcessPaid = true
			booking.UpdatedAt = now
			if err := tx.Booking.Update(ctx, booking); err != nil {
				return err
			}
			if err := settle(ctx, tx, s.ledger, booking, car, now); err != nil {
				return err
			}
			published = append(published, Event{Type: EventBookingCompleted, EntityID: booking.ID, Status: string(booking.Status), Amount: booking.TotalAmount})
		}

		result.Outcome = WebhookApplied
		return nil
	})
	if err != nil {
		s.log.Error("Failed to confirm payment", zap.Int64("order_code", data.OrderCode), zap.Error(err))
		return nil, fmt.Errorf("confirm payment %d: %w", data.OrderCode, err)
	}

	for _, evt := range published {
		s.events.publish(ctx, evt)
	}

	s.log.Info("Webhook handled",
		zap.Int64("order_code", data.OrderCode),
		zap.String("outcome", string(result.Outcome)),
	)
	return result, nil
}

// startIfDue moves a freshly paid booking to in_progress when its start has
// arrived. A car that is not available leaves the booking approved for the
// start sweep.
func startIfDue(ctx context.Context, tx *repository.Repository, booking *entity.Booking, car *entity.Car, now time.Time) (bool, error) {
	if booking.Status != entity.BookingStatusApproved || booking.StartTime.After(now) {
		return false, nil
	}
	if car.IsDeleted || car.Status != entity.CarStatusAvailable {
		return false, nil
	}

	from := booking.Status
	if err := booking.Transition(entity.BookingStatusInProgress, now); err != nil {
		return false, err
	}
	if err := tx.Booking.UpdateStatus(ctx, booking.ID, from, booking.Status, nil, now); err != nil {
		return false, err
	}
	if err := tx.Car.UpdateStatus(ctx, car.ID, entity.CarStatusAvailable, entity.CarStatusRented, now); err != nil {
		return false, err
	}
	car.Status = entity.CarStatusRented
	return true, nil
}

// payableReason explains why the booking can no longer accept the order, or
// returns "" when the payment should be applied.
func payableReason(b *entity.Booking, o *entity.PaymentOrder) string {
	switch o.Purpose {
	case entity.PaymentPurposeBooking:
		if b.Status != entity.BookingStatusApproved {
			return fmt.Sprintf("booking is %s", b.Status)
		}
		if b.IsPaid {
			return "booking already paid"
		}
		if b.TotalAmount != o.Amount {
			return "order amount differs from booking total"
		}
	case entity.PaymentPurposeExtension:
		if b.Status != entity.BookingStatusInProgress {
			return fmt.Sprintf("booking is %s", b.Status)
		}
		if !b.HasPendingExtension() {
			return "no pending extension"
		}
		if b.ExtensionAmount != o.Amount {
			return "order amount differs from extension"
		}
	case entity.PaymentPurposeExcess:
		if b.Status != entity.BookingStatusInProgress || !b.IsCarReturned {
			return fmt.Sprintf("booking is %s", b.Status)
		}
		if !b.HasUnpaidExcess() {
			return "no excess fee due"
		}
		if b.ExcessFee != o.Amount {
			return "order amount differs from excess fee"
		}
	default:
		return fmt.Sprintf("unknown purpose %s", o.Purpose)
	}
	return ""
}

// linkIssuer creates payment orders and their hosted checkout links. Orders
// are inserted inside the caller's transaction; the gateway is only called
// after that transaction has committed.
type linkIssuer struct {
	repo    *repository.Repository
	gateway payos.Gateway
	log     *zap.Logger
	now     func() time.Time
}

// newOrder inserts a pending order. Earlier open orders for the same purpose
// are cancelled so only one checkout can be paid.
func (l *linkIssuer) newOrder(ctx context.Context, tx *repository.Repository, booking *entity.Booking, purpose entity.PaymentPurpose, amount int64) (*entity.PaymentOrder, []int64, error) {
	existing, err := tx.PaymentOrder.FindByBooking(ctx, booking.ID)
	if err != nil {
		return nil, nil, err
	}

	now := l.now().UTC()
	var superseded []int64
	for _, o := range existing {
		if o.Purpose == purpose && o.IsOpen() {
			if err := tx.PaymentOrder.UpdateStatus(ctx, o.OrderCode, o.Status, entity.PaymentOrderCancelled, now); err != nil {
				return nil, nil, err
			}
			superseded = append(superseded, o.OrderCode)
		}
	}

	order := &entity.PaymentOrder{
		OrderCode: utils.GenerateOrderCode(booking.ID, string(purpose), len(existing)),
		BookingID: booking.ID,
		Purpose:   purpose,
		Amount:    amount,
		Status:    entity.PaymentOrderPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.PaymentOrder.Create(ctx, order); err != nil {
		return nil, nil, err
	}

	return order, superseded, nil
}

// openOrder returns the open order for purpose, if any.
func (l *linkIssuer) openOrder(ctx context.Context, tx *repository.Repository, bookingID uuid.UUID, purpose entity.PaymentPurpose) (*entity.PaymentOrder, error) {
	orders, err := tx.PaymentOrder.FindByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	for i := len(orders) - 1; i >= 0; i-- {
		if orders[i].Purpose == purpose && orders[i].IsOpen() {
			return orders[i], nil
		}
	}
	return nil, nil
}

// closeOpen marks every open order of the booking cancelled and returns their
// codes for gateway cancellation after commit.
func (l *linkIssuer) closeOpen(ctx context.Context, tx *repository.Repository, bookingID uuid.UUID) ([]int64, error) {
	orders, err := tx.PaymentOrder.FindByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	now := l.now().UTC()
	var codes []int64
	for _, o := range orders {
		if !o.IsOpen() {
			continue
		}
		if err := tx.PaymentOrder.UpdateStatus(ctx, o.OrderCode, o.Status, entity.PaymentOrderCancelled, now); err != nil {
			return nil, err
		}
		codes = append(codes, o.OrderCode)
	}
	return codes, nil
}

// issue asks the gateway for a checkout link and stores it on the order.
func (l *linkIssuer) issue(ctx context.Context, order *entity.PaymentOrder) (*PaymentLink, error) {
	if order.CheckoutURL != nil && *order.CheckoutURL != "" {
		link := &PaymentLink{OrderCode: order.OrderCode, Purpose: order.Purpose, Amount: order.Amount, CheckoutURL: *order.CheckoutURL}
		if order.QRCode != nil {
			link.QRCode = *order.QRCode
		}
		return link, nil
	}

	if l.gateway == nil {
		return nil, apperror.Gateway(nil, "payment gateway is not configured")
	}

	created, err := l.gateway.CreatePaymentLink(ctx, payos.PaymentRequest{
		OrderCode:   order.OrderCode,
		Amount:      order.Amount,
		Description: fmt.Sprintf("CR%d", order.OrderCode),
	})
	if err != nil {
		l.log.Error("Failed to create payment link",
			zap.Int64("order_code", order.OrderCode),
			zap.String("booking_id", order.BookingID.String()),
			zap.Error(err),
		)
		return nil, apperror.Gateway(err, "create payment link for order %d", order.OrderCode)
	}

	if err := l.repo.PaymentOrder.UpdateLink(ctx, order.OrderCode, created.PaymentLinkID, created.CheckoutURL, created.QRCode, l.now().UTC()); err != nil {
		return nil, fmt.Errorf("store payment link: %w", err)
	}

	return &PaymentLink{
		OrderCode:   order.OrderCode,
		Purpose:     order.Purpose,
		Amount:      order.Amount,
		CheckoutURL: created.CheckoutURL,
		QRCode:      created.QRCode,
	}, nil
}

// cancelAtGateway is best effort; the orders are already closed locally and a
// late payment on them is rejected by the webhook.
func (l *linkIssuer) cancelAtGateway(ctx context.Context, codes []int64, reason string) {
	if l.gateway == nil {
		return
	}
	for _, code := range codes {
		if err := l.gateway.CancelPaymentLink(ctx, code, reason); err != nil {
			l.log.Warn("Failed to cancel payment link", zap.Int64("order_code", code), zap.Error(err))
		}
	}
}
