package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"car-rental/internal/data/entity"
	"car-rental/internal/data/repository"
	"car-rental/pkg/apperror"
	"car-rental/pkg/crypto"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BookingService interface {
	// Renter
	CreateBooking(ctx context.Context, actor Actor, in CreateBookingInput) (*entity.Booking, error)
	CreatePaymentLink(ctx context.Context, actor Actor, bookingID uuid.UUID) (*PaymentLink, error)
	ListRenterBookings(ctx context.Context, actor Actor, status *entity.BookingStatus, limit, offset int) ([]*entity.Booking, int64, error)

	// Owner
	ApproveBooking(ctx context.Context, actor Actor, bookingID uuid.UUID) (*entity.Booking, *PaymentLink, error)
	RejectBooking(ctx context.Context, actor Actor, bookingID uuid.UUID, reason string) (*entity.Booking, error)
	ListOwnerBookings(ctx context.Context, actor Actor, status *entity.BookingStatus, limit, offset int) ([]*entity.Booking, int64, error)

	// Any party
	GetBooking(ctx context.Context, actor Actor, bookingID uuid.UUID) (*BookingDetail, error)
	CancelBooking(ctx context.Context, actor Actor, bookingID uuid.UUID, reason string) (*entity.Booking, error)
	StartBooking(ctx context.Context, actor Actor, bookingID uuid.UUID) (*entity.Booking, error)
	ReturnCar(ctx context.Context, actor Actor, bookingID uuid.UUID) (*entity.Booking, *PaymentLink, error)
	CompleteBooking(ctx context.Context, actor Actor, bookingID uuid.UUID) (*entity.Booking, error)

	// Sweeps
	ExpireBooking(ctx context.Context, bookingID uuid.UUID) (bool, error)
	ExpireOverdue(ctx context.Context) (int, error)
	StartDue(ctx context.Context) (int, error)
	RejectStalePending(ctx context.Context) (int, error)
}

type CreateBookingInput struct {
	CarID     uuid.UUID
	StartTime time.Time
	EndTime   time.Time
}

// BookingDetail is a booking with the decoded fields its parties may see.
type BookingDetail struct {
	Booking       *entity.Booking
	Car           *entity.Car
	LicensePlate  string
	RenterPhone   string
	PaymentOrders []*entity.PaymentOrder
}

const (
	reasonOwnerNoResponse = "owner did not respond"
	reasonPaymentTimeout  = "payment not received before start"
)

type bookingService struct {
	base
	ledger *ledgerEngine
	links  *linkIssuer
	cipher crypto.Cipher
}

func bookingEvent(typ string, b *entity.Booking) Event {
	return Event{Type: typ, EntityID: b.ID, Status: string(b.Status), Amount: b.TotalAmount, OccurredAt: b.UpdatedAt}
}

func (s *bookingService) CreateBooking(ctx context.Context, actor Actor, in CreateBookingInput) (*entity.Booking, error) {
	now := s.clock()
	start, end := in.StartTime.UTC(), in.EndTime.UTC()

	if !start.Before(end) {
		return nil, apperror.Validation("start time must be before end time")
	}
	if !start.After(now) {
		return nil, apperror.Validation("start time must be in the future")
	}
	if end.Sub(start) < s.policy.MinBookingDuration {
		return nil, apperror.Validation("booking must last at least %s", s.policy.MinBookingDuration)
	}
	if s.policy.MaxBookingDuration > 0 && end.Sub(start) > s.policy.MaxBookingDuration {
		return nil, apperror.Validation("booking cannot last longer than %s", s.policy.MaxBookingDuration)
	}

	var booking *entity.Booking
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		renter, err := tx.User.FindByID(ctx, actor.UserID, repository.ExcludeDeleted)
		if err != nil {
			return err
		}
		if renter == nil || !renter.IsActive {
			return apperror.NotFound("user %s not found", actor.UserID)
		}

		car, err := tx.Car.FindByIDForUpdate(ctx, in.CarID)
		if err != nil {
			return err
		}
		if car == nil {
			return apperror.NotFound("car %s not found", in.CarID)
		}
		if car.OwnerID == renter.ID {
			return apperror.Forbidden("you cannot book your own car")
		}
		if !car.IsBookable() {
			return apperror.Conflict("car is not accepting bookings")
		}

		if err := checkWindow(ctx, tx, car.ID, start, end, uuid.Nil); err != nil {
			return err
		}

		basePrice, fee := quote(car.PricePerHour, start, end, s.policy.PlatformFeeBps)
		booking = &entity.Booking{
			Base:        entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
			RenterID:    renter.ID,
			CarID:       car.ID,
			Status:      entity.BookingStatusPending,
			StartTime:   start,
			EndTime:     end,
			BasePrice:   basePrice,
			PlatformFee: fee,
			TotalAmount: basePrice + fee,
		}
		return tx.Booking.Create(ctx, booking)
	})
	if err != nil {
		s.log.Warn("Failed to create booking",
			zap.String("renter_id", actor.UserID.String()),
			zap.String("car_id", in.CarID.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("create booking: %w", err)
	}

	s.log.Info("Booking created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("car_id", booking.CarID.String()),
		zap.Int64("total_amount", booking.TotalAmount),
	)
	s.events.publish(ctx, bookingEvent(EventBookingCreated, booking))
	return booking, nil
}

func (s *bookingService) ApproveBooking(ctx context.Context, actor Actor, bookingID uuid.UUID) (*entity.Booking, *PaymentLink, error) {
	current, err := s.repo.Booking.FindByID(ctx, bookingID, repository.ExcludeDeleted)
	if err != nil {
		return nil, nil, fmt.Errorf("approve booking: %w", err)
	}
	if current == nil {
		return nil, nil, apperror.NotFound("booking %s not found", bookingID)
	}

	var (
		booking *entity.Booking
		order   *entity.PaymentOrder
	)
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		// lock order is car, then booking
		car, err := tx.Car.FindByIDForUpdate(ctx, current.CarID)
		if err != nil {
			return err
		}
		if car == nil {
			return apperror.NotFound("car %s not found", current.CarID)
		}
		if err := s.auth.RequireCarOwner(actor, car); err != nil {
			return err
		}

		booking, err = tx.Booking.FindByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if booking == nil {
			return apperror.NotFound("booking %s not found", bookingID)
		}

		now := s.clock()
		from := booking.Status
		if err := booking.Transition(entity.BookingStatusApproved, now); err != nil {
			return err
		}
		if !booking.StartTime.After(now) {
			return apperror.Conflict("booking start time has already passed")
		}
		if !car.IsBookable() {
			return apperror.Conflict("car is not accepting bookings")
		}
		if err := checkWindow(ctx, tx, car.ID, booking.StartTime, booking.EndTime, booking.ID); err != nil {
			return err
		}
		if err := tx.Booking.UpdateStatus(ctx, booking.ID, from, booking.Status, nil, now); err != nil {
			return err
		}

		order, _, err = s.links.newOrder(ctx, tx, booking, entity.PaymentPurposeBooking, booking.TotalAmount)
		if err != nil {
			return err
		}
		code := order.OrderCode
		booking.PaymentOrderCode = &code
		return tx.Booking.Update(ctx, booking)
	})
	if err != nil {
		s.log.Warn("Failed to approve booking", zap.String("booking_id", bookingID.String()), zap.Error(err))
		return nil, nil, fmt.Errorf("approve booking %s: %w", bookingID, err)
	}

	s.log.Info("Booking approved", zap.String("booking_id", booking.ID.String()), zap.Int64("order_code", order.OrderCode))
	s.events.publish(ctx, bookingEvent(EventBookingApproved, booking))

	link, err := s.links.issue(ctx, order)
	if err != nil {
		// the booking stays approved; the renter can request a new link
		return booking, nil, err
	}
	return booking, link, nil
}

func (s *bookingService) RejectBooking(ctx context.Context, actor Actor, bookingID uuid.UUID, reason string) (*entity.Booking, error) {
	var booking *entity.Booking
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		var car *entity.Car
		var err error
		booking, car, err = s.lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if err := s.auth.RequireCarOwner(actor, car); err != nil {
			return err
		}

		from := booking.Status
		if err := booking.Transition(entity.BookingStatusRejected, s.clock()); err != nil {
			return err
		}
		booking.StatusReason = optionalReason(reason)
		return tx.Booking.UpdateStatus(ctx, booking.ID, from, booking.Status, booking.StatusReason, booking.UpdatedAt)
	})
	if err != nil {
		s.log.Warn("Failed to reject booking", zap.String("booking_id", bookingID.String()), zap.Error(err))
		return nil, fmt.Errorf("reject booking %s: %w", bookingID, err)
	}

	s.log.Info("Booking rejected", zap.String("booking_id", booking.ID.String()))
	s.events.publish(ctx, bookingEvent(EventBookingRejected, booking))
	return booking, nil
}

func (s *bookingService) CreatePaymentLink(ctx context.Context, actor Actor, bookingID uuid.UUID) (*PaymentLink, error) {
	var (
		order      *entity.PaymentOrder
		superseded []int64
	)
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		booking, _, err := s.lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if err := s.auth.RequireRenter(actor, booking); err != nil {
			return err
		}
		if booking.Status != entity.BookingStatusApproved {
			return apperror.InvalidTransition("booking %s is %s and cannot be paid", booking.ID, booking.Status)
		}
		if booking.IsPaid {
			return apperror.Conflict("booking %s is already paid", booking.ID)
		}

		order, err = s.links.openOrder(ctx, tx, booking.ID, entity.PaymentPurposeBooking)
		if err != nil {
			return err
		}
		if order != nil && order.CheckoutURL != nil {
			return nil
		}

		// a link-less order may exist at the gateway after a timeout, so
		// never reuse its code
		order, superseded, err = s.links.newOrder(ctx, tx, booking, entity.PaymentPurposeBooking, booking.TotalAmount)
		if err != nil {
			return err
		}
		code := order.OrderCode
		booking.PaymentOrderCode = &code
		booking.UpdatedAt = s.clock()
		return tx.Booking.Update(ctx, booking)
	})
	if err != nil {
		return nil, fmt.Errorf("create payment link for booking %s: %w", bookingID, err)
	}

	s.links.cancelAtGateway(ctx, superseded, "superseded by a new payment link")
	return s.links.issue(ctx, order)
}

func (s *bookingService) CancelBooking(ctx context.Context, actor Actor, bookingID uuid.UUID, reason string) (*entity.Booking, error) {
	var (
		booking *entity.Booking
		closed  []int64
	)
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		var car *entity.Car
		var err error
		booking, car, err = s.lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if err := s.auth.RequireParty(actor, booking, car); err != nil {
			return err
		}

		now := s.clock()
		from := booking.Status
		if err := booking.Transition(entity.BookingStatusCancelled, now); err != nil {
			return err
		}
		booking.StatusReason = optionalReason(reason)
		if err := tx.Booking.UpdateStatus(ctx, booking.ID, from, booking.Status, booking.StatusReason, now); err != nil {
			return err
		}

		if booking.IsPaid && !booking.IsRefund {
			if _, err := s.ledger.RefundFunds(ctx, tx, booking, car.OwnerID); err != nil {
				return err
			}
			booking.RefundAmount = booking.TotalAmount
			booking.RefundDate = &now
			booking.IsRefund = true
			if err := tx.Booking.Update(ctx, booking); err != nil {
				return err
			}
		}

		closed, err = s.links.closeOpen(ctx, tx, booking.ID)
		return err
	})
	if err != nil {
		s.log.Warn("Failed to cancel booking", zap.String("booking_id", bookingID.String()), zap.Error(err))
		return nil, fmt.Errorf("cancel booking %s: %w", bookingID, err)
	}

	s.log.Info("Booking cancelled",
		zap.String("booking_id", booking.ID.String()),
		zap.Bool("refunded", booking.IsRefund),
		zap.Int64("refund_amount", booking.RefundAmount),
	)
	s.links.cancelAtGateway(ctx, closed, "booking cancelled")
	s.events.publish(ctx, bookingEvent(EventBookingCancelled, booking))
	return booking, nil
}

func (s *bookingService) ExpireBooking(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	var (
		booking *entity.Booking
		expired bool
		closed  []int64
	)
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		expired = false
		var err error
		booking, err = tx.Booking.FindByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if booking == nil {
			return apperror.NotFound("booking %s not found", bookingID)
		}

		now := s.clock()
		if booking.Status != entity.BookingStatusApproved || booking.IsPaid || booking.StartTime.After(now) {
			return nil
		}

		from := booking.Status
		if err := booking.Transition(entity.BookingStatusExpired, now); err != nil {
			return err
		}
		reason := reasonPaymentTimeout
		booking.StatusReason = &reason
		if err := tx.Booking.UpdateStatus(ctx, booking.ID, from, booking.Status, booking.StatusReason, now); err != nil {
			return err
		}

		closed, err = s.links.closeOpen(ctx, tx, booking.ID)
		if err != nil {
			return err
		}
		expired = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("expire booking %s: %w", bookingID, err)
	}

	if expired {
		s.log.Info("Booking expired", zap.String("booking_id", booking.ID.String()))
		s.links.cancelAtGateway(ctx, closed, reasonPaymentTimeout)
		s.events.publish(ctx, bookingEvent(EventBookingExpired, booking))
	}
	return expired, nil
}

// sweep applies fn to every id and keeps going past individual failures.
func (s *bookingService) sweep(ctx context.Context, name string, ids []uuid.UUID, fn func(uuid.UUID) (bool, error)) (int, error) {
	var (
		count int
		errs  []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		done, err := fn(id)
		if err != nil {
			s.log.Warn("Sweep item failed", zap.String("sweep", name), zap.String("booking_id", id.String()), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if done {
			count++
		}
	}

	if count > 0 || len(errs) > 0 {
		s.log.Info("Sweep finished",
			zap.String("sweep", name),
			zap.Int("candidates", len(ids)),
			zap.Int("changed", count),
			zap.Int("failed", len(errs)),
		)
	}
	return count, errors.Join(errs...)
}

func (s *bookingService) ExpireOverdue(ctx context.Context) (int, error) {
	ids, err := s.repo.Booking.FindExpirable(ctx, s.clock(), s.policy.SweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("expire overdue: %w", err)
	}
	return s.sweep(ctx, "expire", ids, func(id uuid.UUID) (bool, error) {
		return s.ExpireBooking(ctx, id)
	})
}

func (s *bookingService) StartBooking(ctx context.Context, actor Actor, bookingID uuid.UUID) (*entity.Booking, error) {
	current, err := s.repo.Booking.FindByID(ctx, bookingID, repository.ExcludeDeleted)
	if err != nil {
		return nil, fmt.Errorf("start booking: %w", err)
	}
	if current == nil {
		return nil, apperror.NotFound("booking %s not found", bookingID)
	}

	var booking *entity.Booking
	err = s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		car, err := tx.Car.FindByIDForUpdate(ctx, current.CarID)
		if err != nil {
			return err
		}
		if car == nil {
			return apperror.NotFound("car %s not found", current.CarID)
		}

		booking, err = tx.Booking.FindByIDForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if booking == nil {
			return apperror.NotFound("booking %s not found", bookingID)
		}
		if err := s.auth.RequireParty(actor, booking, car); err != nil {
			return err
		}

		now := s.clock()
		if booking.Status == entity.BookingStatusApproved && !booking.IsPaid {
			return apperror.Conflict("booking %s is not paid", booking.ID)
		}
		if booking.Status == entity.BookingStatusApproved && booking.StartTime.After(now) {
			return apperror.Conflict("booking %s starts at %s", booking.ID, booking.StartTime.Format(time.RFC3339))
		}

		from := booking.Status
		if err := booking.Transition(entity.BookingStatusInProgress, now); err != nil {
			return err
		}
		if car.Status != entity.CarStatusAvailable {
			return apperror.Conflict("car is %s", car.Status)
		}
		if err := tx.Booking.UpdateStatus(ctx, booking.ID, from, booking.Status, nil, now); err != nil {
			return err
		}
		return tx.Car.UpdateStatus(ctx, car.ID, entity.CarStatusAvailable, entity.CarStatusRented, now)
	})
	if err != nil {
		return nil, fmt.Errorf("start booking %s: %w", bookingID, err)
	}

	s.log.Info("Booking started", zap.String("booking_id", booking.ID.String()))
	s.events.publish(ctx, bookingEvent(EventBookingStarted, booking))
	return booking, nil
}

func (s *bookingService) StartDue(ctx context.Context) (int, error) {
	ids, err := s.repo.Booking.FindStartable(ctx, s.clock(), s.policy.SweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("start due: %w", err)
	}
	return s.sweep(ctx, "start", ids, func(id uuid.UUID) (bool, error) {
		_, err := s.StartBooking(ctx, SystemActor, id)
		if apperror.KindOf(err) == apperror.KindInvalidStateTransition {
			return false, nil
		}
		return err == nil, err
	})
}

func (s *bookingService) RejectStalePending(ctx context.Context) (int, error) {
	ids, err := s.repo.Booking.FindStalePending(ctx, s.clock(), s.policy.SweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("reject stale pending: %w", err)
	}
	return s.sweep(ctx, "stale_pending", ids, func(id uuid.UUID) (bool, error) {
		var booking *entity.Booking
		rejected := false
		err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
			rejected = false
			var err error
			booking, err = tx.Booking.FindByIDForUpdate(ctx, id)
			if err != nil || booking == nil {
				return err
			}

			now := s.clock()
			if booking.Status != entity.BookingStatusPending || booking.StartTime.After(now) {
				return nil
			}
			if err := booking.Transition(entity.BookingStatusRejected, now); err != nil {
				return err
			}
			reason := reasonOwnerNoResponse
			booking.StatusReason = &reason
			if err := tx.Booking.UpdateStatus(ctx, id, entity.BookingStatusPending, booking.Status, booking.StatusReason, now); err != nil {
				return err
			}
			rejected = true
			return nil
		})
		if err != nil {
			return false, err
		}
		if rejected {
			s.events.publish(ctx, bookingEvent(EventBookingRejected, booking))
		}
		return rejected, nil
	})
}

func (s *bookingService) ReturnCar(ctx context.Context, actor Actor, bookingID uuid.UUID) (*entity.Booking, *PaymentLink, error) {
	var (
		booking   *entity.Booking
		order     *entity.PaymentOrder
		closed    []int64
		completed bool
	)
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		completed = false
		var car *entity.Car
		var err error
		booking, car, err = s.lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if !s.auth.IsRenter(actor, booking) && !s.auth.IsCarOwner(actor, car) {
			return apperror.Forbidden("only the renter or the car owner can return the car")
		}
		if booking.Status != entity.BookingStatusInProgress {
			return apperror.InvalidTransition("booking %s is %s and cannot be returned", booking.ID, booking.Status)
		}
		if booking.IsCarReturned {
			return apperror.Conflict("car for booking %s was already returned", booking.ID)
		}

		now := s.clock()
		booking.ActualReturnTime = &now
		booking.IsCarReturned = true
		booking.UpdatedAt = now

		// an unpaid extension no longer makes sense once the car is back
		if booking.HasPendingExtension() {
			booking.ExtensionEndTime = nil
			booking.ExtensionAmount = 0
		}
		closed, err = s.links.closeOpen(ctx, tx, booking.ID)
		if err != nil {
			return err
		}

		booking.ExcessDays = excessDays(now, booking.EndTime, s.policy.ExcessGrace)
		booking.ExcessFee = excessFee(booking.ExcessDays, car.PricePerHour, s.policy.ExcessDayFeeBps)
		booking.TotalAmount += booking.ExcessFee

		if booking.ExcessFee > 0 {
			order, _, err = s.links.newOrder(ctx, tx, booking, entity.PaymentPurposeExcess, booking.ExcessFee)
			if err != nil {
				return err
			}
			return tx.Booking.Update(ctx, booking)
		}

		if err := tx.Booking.Update(ctx, booking); err != nil {
			return err
		}
		if err := settle(ctx, tx, s.ledger, booking, car, now); err != nil {
			return err
		}
		completed = true
		return nil
	})
	if err != nil {
		s.log.Warn("Failed to return car", zap.String("booking_id", bookingID.String()), zap.Error(err))
		return nil, nil, fmt.Errorf("return car for booking %s: %w", bookingID, err)
	}

	s.log.Info("Car returned",
		zap.String("booking_id", booking.ID.String()),
		zap.Int("excess_days", booking.ExcessDays),
		zap.Int64("excess_fee", booking.ExcessFee),
	)
	s.links.cancelAtGateway(ctx, closed, "car returned")
	s.events.publish(ctx, bookingEvent(EventBookingReturned, booking))
	if completed {
		s.events.publish(ctx, bookingEvent(EventBookingCompleted, booking))
		return booking, nil, nil
	}

	link, err := s.links.issue(ctx, order)
	if err != nil {
		return booking, nil, err
	}
	return booking, link, nil
}

func (s *bookingService) CompleteBooking(ctx context.Context, actor Actor, bookingID uuid.UUID) (*entity.Booking, error) {
	var (
		booking   *entity.Booking
		completed bool
	)
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		completed = false
		var car *entity.Car
		var err error
		booking, car, err = s.lockBooking(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if !s.auth.IsCarOwner(actor, car) && !s.auth.IsStaff(actor) {
			return apperror.Forbidden("only the car owner or staff can complete a booking")
		}

		if booking.Status == entity.BookingStatusCompleted {
			return nil
		}
		if booking.Status != entity.BookingStatusInProgress {
			return apperror.InvalidTransition("booking %s is %s and cannot be completed", booking.ID, booking.Status)
		}
		if !booking.IsCarReturned {
			return apperror.Conflict("car for booking %s has not been returned", booking.ID)
		}
		if booking.HasUnpaidExcess() {
			return apperror.Conflict("excess fee for booking %s is unpaid", booking.ID)
		}

		if err := settle(ctx, tx, s.ledger, booking, car, s.clock()); err != nil {
			return err
		}
		completed = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("complete booking %s: %w", bookingID, err)
	}

	if completed {
		s.log.Info("Booking completed", zap.String("booking_id", booking.ID.String()))
		s.events.publish(ctx, bookingEvent(EventBookingCompleted, booking))
	}
	return booking, nil
}

func (s *bookingService) GetBooking(ctx context.Context, actor Actor, bookingID uuid.UUID) (*BookingDetail, error) {
	booking, err := s.repo.Booking.FindByID(ctx, bookingID, repository.ExcludeDeleted)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if booking == nil {
		return nil, apperror.NotFound("booking %s not found", bookingID)
	}

	car, err := s.repo.Car.FindByID(ctx, booking.CarID, repository.IncludeDeleted)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if err := s.auth.RequireParty(actor, booking, car); err != nil {
		return nil, err
	}

	detail := &BookingDetail{Booking: booking, Car: car}
	if car != nil {
		detail.LicensePlate = s.decode(car.LicensePlate, "license_plate")
	}

	renter, err := s.repo.User.FindByID(ctx, booking.RenterID, repository.IncludeDeleted)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if renter != nil && renter.Phone != nil {
		detail.RenterPhone = s.decode(*renter.Phone, "phone")
	}

	detail.PaymentOrders, err = s.repo.PaymentOrder.FindByBooking(ctx, booking.ID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}

	return detail, nil
}

func (s *bookingService) decode(value, field string) string {
	if value == "" {
		return ""
	}
	plain, err := s.cipher.Decode(value)
	if err != nil {
		s.log.Warn("Failed to decode field", zap.String("field", field), zap.Error(err))
		return ""
	}
	return plain
}

func (s *bookingService) ListRenterBookings(ctx context.Context, actor Actor, status *entity.BookingStatus, limit, offset int) ([]*entity.Booking, int64, error) {
	return s.list(ctx, repository.BookingFilter{RenterID: &actor.UserID, Status: status}, limit, offset)
}

func (s *bookingService) ListOwnerBookings(ctx context.Context, actor Actor, status *entity.BookingStatus, limit, offset int) ([]*entity.Booking, int64, error) {
	return s.list(ctx, repository.BookingFilter{OwnerID: &actor.UserID, Status: status}, limit, offset)
}

func (s *bookingService) list(ctx context.Context, filter repository.BookingFilter, limit, offset int) ([]*entity.Booking, int64, error) {
	if filter.Status != nil && !validBookingStatus(*filter.Status) {
		return nil, 0, apperror.Validation("unknown booking status %q", *filter.Status)
	}

	bookings, err := s.repo.Booking.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}
	total, err := s.repo.Booking.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}
	return bookings, total, nil
}

// lockBooking locks the booking row and loads its car.
func (s *bookingService) lockBooking(ctx context.Context, tx *repository.Repository, bookingID uuid.UUID) (*entity.Booking, *entity.Car, error) {
	booking, err := tx.Booking.FindByIDForUpdate(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if booking == nil {
		return nil, nil, apperror.NotFound("booking %s not found", bookingID)
	}

	car, err := tx.Car.FindByID(ctx, booking.CarID, repository.IncludeDeleted)
	if err != nil {
		return nil, nil, err
	}
	if car == nil {
		return nil, nil, fmt.Errorf("car %s of booking %s is missing", booking.CarID, booking.ID)
	}
	return booking, car, nil
}

// settle releases escrow to the owner, frees the car and completes the
// booking, all on the caller's transaction.
func settle(ctx context.Context, tx *repository.Repository, ledger *ledgerEngine, booking *entity.Booking, car *entity.Car, now time.Time) error {
	if err := ledger.ReleaseFunds(ctx, tx, booking, car.OwnerID); err != nil {
		return err
	}

	if car.Status == entity.CarStatusRented {
		err := tx.Car.UpdateStatus(ctx, car.ID, entity.CarStatusRented, entity.CarStatusAvailable, now)
		if err != nil && apperror.KindOf(err) != apperror.KindConflict {
			return err
		}
	}

	from := booking.Status
	if err := booking.Transition(entity.BookingStatusCompleted, now); err != nil {
		return err
	}
	return tx.Booking.UpdateStatus(ctx, booking.ID, from, booking.Status, nil, now)
}

func optionalReason(reason string) *string {
	if reason == "" {
		return nil
	}
	return &reason
}

func validBookingStatus(s entity.BookingStatus) bool {
	switch s {
	case entity.BookingStatusPending, entity.BookingStatusApproved, entity.BookingStatusRejected,
		entity.BookingStatusCancelled, entity.BookingStatusInProgress, entity.BookingStatusCompleted,
		entity.BookingStatusExpired:
		return true
	}
	return false
}
