package usecase

import (
	"context"
	"fmt"
	"time"

	"car-rental/internal/data/entity"
	"car-rental/internal/data/repository"
	"car-rental/pkg/apperror"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ExtensionService interface {
	// RequestExtension holds [end, newEnd) for the booking and returns the
	// amount due with a checkout link. Repeating the request for the same
	// pending end time re-issues the link.
	RequestExtension(ctx context.Context, actor Actor, bookingID uuid.UUID, newEnd time.Time) (*ExtensionQuote, error)
}

type ExtensionQuote struct {
	Booking          *entity.Booking
	AdditionalAmount int64
	Link             *PaymentLink
}

type extensionService struct {
	base
	links *linkIssuer
}

func (s *extensionService) RequestExtension(ctx context.Context, actor Actor, bookingID uuid.UUID, newEnd time.Time) (*ExtensionQuote, error) {
	newEnd = newEnd.UTC()

	current, err := s.repo.Booking.FindByID(ctx, bookingID, repository.ExcludeDeleted)
	if err != nil {
		return nil, fmt.Errorf("request extension: %w", err)
	}
	if current == nil {
		return nil, apperror.NotFound("booking %s not found", bookingID)
	}

	var (
		booking    *entity.Booking
		order      *entity.PaymentOrder
		superseded []int64
	)
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
		if err := s.auth.RequireRenter(actor, booking); err != nil {
			return err
		}
		if booking.Status != entity.BookingStatusInProgress {
			return apperror.InvalidTransition("booking %s is %s and cannot be extended", booking.ID, booking.Status)
		}
		if booking.IsCarReturned {
			return apperror.Conflict("car for booking %s was already returned", booking.ID)
		}
		if !newEnd.After(booking.EndTime) {
			return apperror.Validation("new end time must be after %s", booking.EndTime.Format(time.RFC3339))
		}
		if s.policy.MaxBookingDuration > 0 && newEnd.Sub(booking.StartTime) > s.policy.MaxBookingDuration {
			return apperror.Validation("booking cannot last longer than %s", s.policy.MaxBookingDuration)
		}

		if booking.HasPendingExtension() {
			if !booking.ExtensionEndTime.Equal(newEnd) {
				return apperror.Conflict("an unpaid extension until %s is already pending", booking.ExtensionEndTime.Format(time.RFC3339))
			}
			order, err = s.links.openOrder(ctx, tx, booking.ID, entity.PaymentPurposeExtension)
			if err != nil {
				return err
			}
			if order != nil && order.CheckoutURL != nil {
				return nil
			}
			order, superseded, err = s.links.newOrder(ctx, tx, booking, entity.PaymentPurposeExtension, booking.ExtensionAmount)
			return err
		}

		if err := checkWindow(ctx, tx, car.ID, booking.EndTime, newEnd, booking.ID); err != nil {
			return err
		}

		amount := car.PricePerHour * billableHours(newEnd.Sub(booking.EndTime))
		booking.ExtensionAmount = amount
		booking.ExtensionEndTime = &newEnd
		booking.IsExtensionPaid = false
		booking.UpdatedAt = s.clock()
		if err := tx.Booking.Update(ctx, booking); err != nil {
			return err
		}

		order, superseded, err = s.links.newOrder(ctx, tx, booking, entity.PaymentPurposeExtension, amount)
		return err
	})
	if err != nil {
		s.log.Warn("Failed to request extension", zap.String("booking_id", bookingID.String()), zap.Error(err))
		return nil, fmt.Errorf("request extension for booking %s: %w", bookingID, err)
	}

	s.log.Info("Extension requested",
		zap.String("booking_id", booking.ID.String()),
		zap.Time("new_end", newEnd),
		zap.Int64("amount", booking.ExtensionAmount),
	)

	s.links.cancelAtGateway(ctx, superseded, "superseded by a new payment link")
	quote := &ExtensionQuote{Booking: booking, AdditionalAmount: booking.ExtensionAmount}
	link, err := s.links.issue(ctx, order)
	if err != nil {
		return quote, err
	}
	quote.Link = link
	return quote, nil
}
