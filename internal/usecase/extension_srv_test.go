package usecase

import (
	"testing"
	"time"

	"car-rental/internal/data/entity"
	"car-rental/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtensionPaymentMovesEndTime(t *testing.T) {
	h := newHarness(t)
	b := h.startedBooking(4)
	newEnd := b.EndTime.Add(2 * time.Hour)

	quote, err := h.svc.Extension.RequestExtension(h.ctx, h.renter, b.ID, newEnd)
	require.NoError(t, err)
	assert.Equal(t, int64(200), quote.AdditionalAmount)
	require.NotNil(t, quote.Link)
	assert.Equal(t, entity.PaymentPurposeExtension, quote.Link.Purpose)

	pending := h.booking(b.ID)
	assert.True(t, pending.HasPendingExtension())
	assert.Equal(t, b.EndTime, pending.EndTime)

	res := h.pay(quote.Link.OrderCode, quote.Link.Amount)
	assert.Equal(t, WebhookApplied, res.Outcome)

	got := h.booking(b.ID)
	assert.Equal(t, newEnd, got.EndTime)
	assert.True(t, got.IsExtensionPaid)
	assert.Equal(t, b.TotalAmount+200, got.TotalAmount)
	assert.Equal(t, int64(600), h.user(h.owner.UserID).LockedBalance)
	require.NotNil(t, h.activeLock(b.ID))
	assert.Equal(t, int64(600), h.activeLock(b.ID).Amount)
	assert.Len(t, h.transactions(entity.TransactionExtensionPayment), 1)

	// returning on the extended end time owes nothing more
	h.clock.Set(newEnd)
	returned, link, err := h.svc.Booking.ReturnCar(h.ctx, h.renter, b.ID)
	require.NoError(t, err)
	assert.Nil(t, link)
	assert.Equal(t, entity.BookingStatusCompleted, returned.Status)
	assert.Equal(t, int64(600), h.user(h.owner.UserID).Balance)
	h.requireLedgerConsistent(nil)
}

func TestPendingExtensionHoldsTheWindow(t *testing.T) {
	h := newHarness(t)
	b := h.startedBooking(4)

	_, err := h.svc.Extension.RequestExtension(h.ctx, h.renter, b.ID, b.EndTime.Add(3*time.Hour))
	require.NoError(t, err)

	available, err := h.svc.Availability.IsAvailable(h.ctx, h.carID, b.EndTime.Add(time.Hour), b.EndTime.Add(5*time.Hour))
	require.NoError(t, err)
	assert.False(t, available)
}

func TestRepeatedExtensionRequest(t *testing.T) {
	h := newHarness(t)
	b := h.startedBooking(4)
	newEnd := b.EndTime.Add(2 * time.Hour)

	first, err := h.svc.Extension.RequestExtension(h.ctx, h.renter, b.ID, newEnd)
	require.NoError(t, err)

	again, err := h.svc.Extension.RequestExtension(h.ctx, h.renter, b.ID, newEnd)
	require.NoError(t, err)
	assert.Equal(t, first.Link.OrderCode, again.Link.OrderCode)

	_, err = h.svc.Extension.RequestExtension(h.ctx, h.renter, b.ID, newEnd.Add(time.Hour))
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestExtensionIntoApprovedBookingConflicts(t *testing.T) {
	h := newHarness(t)
	b := h.startedBooking(4)

	next := h.createBooking(b.EndTime.Add(time.Hour), b.EndTime.Add(3*time.Hour))
	h.approve(next.ID)

	_, err := h.svc.Extension.RequestExtension(h.ctx, h.renter, b.ID, b.EndTime.Add(2*time.Hour))
	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.False(t, h.booking(b.ID).HasPendingExtension())

	// up to the next start is still free
	_, err = h.svc.Extension.RequestExtension(h.ctx, h.renter, b.ID, b.EndTime.Add(time.Hour))
	assert.NoError(t, err)
}

func TestExtensionRules(t *testing.T) {
	h := newHarness(t)

	paid := h.paidBooking(4)
	_, err := h.svc.Extension.RequestExtension(h.ctx, h.renter, paid.ID, paid.EndTime.Add(time.Hour))
	assert.ErrorIs(t, err, apperror.ErrInvalidStateTransition)

	h.clock.Set(paid.StartTime)
	_, err = h.svc.Booking.StartBooking(h.ctx, h.owner, paid.ID)
	require.NoError(t, err)

	_, err = h.svc.Extension.RequestExtension(h.ctx, h.owner, paid.ID, paid.EndTime.Add(time.Hour))
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = h.svc.Extension.RequestExtension(h.ctx, h.renter, paid.ID, paid.EndTime)
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = h.svc.Extension.RequestExtension(h.ctx, h.renter, paid.ID, paid.StartTime.Add(91*24*time.Hour))
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestReturnDropsUnpaidExtension(t *testing.T) {
	h := newHarness(t)
	b := h.startedBooking(4)

	quote, err := h.svc.Extension.RequestExtension(h.ctx, h.renter, b.ID, b.EndTime.Add(2*time.Hour))
	require.NoError(t, err)

	h.clock.Set(b.EndTime)
	returned, _, err := h.svc.Booking.ReturnCar(h.ctx, h.renter, b.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusCompleted, returned.Status)
	assert.Nil(t, returned.ExtensionEndTime)

	res := h.pay(quote.Link.OrderCode, quote.Link.Amount)
	assert.Equal(t, WebhookRejected, res.Outcome)
	assert.Empty(t, h.transactions(entity.TransactionExtensionPayment))
}
