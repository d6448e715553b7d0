package usecase

import (
	"errors"
	"testing"
	"time"

	"car-rental/internal/data/entity"
	"car-rental/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateBookingPricesWindow(t *testing.T) {
	h := newHarness(t)
	start := h.day(1).Add(8 * time.Hour)

	b := h.createBooking(start, start.Add(10*time.Hour))

	assert.Equal(t, entity.BookingStatusPending, b.Status)
	assert.Equal(t, int64(1000), b.BasePrice)
	assert.Equal(t, int64(100), b.PlatformFee)
	assert.Equal(t, int64(1100), b.TotalAmount)
	assert.True(t, h.events.has(EventBookingCreated))
}

func TestCreateBookingChargesStartedHours(t *testing.T) {
	h := newHarness(t)
	start := h.day(1).Add(8 * time.Hour)

	b := h.createBooking(start, start.Add(90*time.Minute))

	assert.Equal(t, int64(200), b.BasePrice)
	assert.Equal(t, int64(20), b.PlatformFee)
}

func TestCreateBookingRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	start := h.day(1).Add(8 * time.Hour)

	tests := []struct {
		name  string
		actor Actor
		in    CreateBookingInput
		kind  apperror.Kind
	}{
		{"end before start", h.renter, CreateBookingInput{CarID: h.carID, StartTime: start, EndTime: start.Add(-time.Hour)}, apperror.KindValidation},
		{"start in the past", h.renter, CreateBookingInput{CarID: h.carID, StartTime: h.clock.Now().Add(-time.Hour), EndTime: start}, apperror.KindValidation},
		{"shorter than an hour", h.renter, CreateBookingInput{CarID: h.carID, StartTime: start, EndTime: start.Add(30 * time.Minute)}, apperror.KindValidation},
		{"unknown car", h.renter, CreateBookingInput{CarID: uuid.New(), StartTime: start, EndTime: start.Add(time.Hour)}, apperror.KindNotFound},
		{"unknown renter", Actor{UserID: uuid.New()}, CreateBookingInput{CarID: h.carID, StartTime: start, EndTime: start.Add(time.Hour)}, apperror.KindNotFound},
		{"own car", h.owner, CreateBookingInput{CarID: h.carID, StartTime: start, EndTime: start.Add(time.Hour)}, apperror.KindForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Booking.CreateBooking(h.ctx, tt.actor, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperror.KindOf(err))
		})
	}
	assert.Empty(t, h.store.snapshot().bookings)
}

func TestCreateBookingOnInactiveCarConflicts(t *testing.T) {
	h := newHarness(t)
	h.store.seed(func(s *memState) {
		c := s.cars[h.carID]
		c.Status = entity.CarStatusInactive
		s.cars[h.carID] = c
	})
	start := h.day(1)

	_, err := h.svc.Booking.CreateBooking(h.ctx, h.renter, CreateBookingInput{CarID: h.carID, StartTime: start, EndTime: start.Add(time.Hour)})
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestPaymentLocksOwnerShare(t *testing.T) {
	h := newHarness(t)

	b := h.paidBooking(10)

	assert.True(t, b.IsPaid)
	assert.Equal(t, int64(1000), h.user(h.owner.UserID).LockedBalance)
	assert.Equal(t, int64(0), h.user(h.owner.UserID).Balance)

	payments := h.transactions(entity.TransactionBookingPayment)
	require.Len(t, payments, 1)
	assert.Equal(t, int64(1100), payments[0].Amount)
	assert.Equal(t, int64(1000), payments[0].BalanceAfter)

	lock := h.activeLock(b.ID)
	require.NotNil(t, lock)
	assert.Equal(t, int64(1000), lock.Amount)
	assert.True(t, h.events.has(EventBookingPaid))
}

func TestApproveRechecksOverlap(t *testing.T) {
	h := newHarness(t)
	start := h.day(1).Add(8 * time.Hour)

	first := h.createBooking(start, start.Add(4*time.Hour))
	second := h.createBooking(start.Add(2*time.Hour), start.Add(6*time.Hour))

	h.approve(first.ID)
	_, _, err := h.svc.Booking.ApproveBooking(h.ctx, h.owner, second.ID)

	assert.ErrorIs(t, err, apperror.ErrConflict)
	assert.Equal(t, entity.BookingStatusPending, h.booking(second.ID).Status)
}

func TestApproveRequiresOwnerAndPending(t *testing.T) {
	h := newHarness(t)
	start := h.day(1).Add(8 * time.Hour)
	b := h.createBooking(start, start.Add(2*time.Hour))

	_, _, err := h.svc.Booking.ApproveBooking(h.ctx, h.renter, b.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	h.approve(b.ID)
	_, _, err = h.svc.Booking.ApproveBooking(h.ctx, h.owner, b.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidStateTransition)
}

func TestApproveGatewayFailureKeepsBookingApproved(t *testing.T) {
	h := newHarness(t)
	start := h.day(1).Add(8 * time.Hour)
	b := h.createBooking(start, start.Add(2*time.Hour))

	h.gateway.fail(errors.New("connection refused"))
	approved, link, err := h.svc.Booking.ApproveBooking(h.ctx, h.owner, b.ID)
	require.Error(t, err)
	assert.Equal(t, apperror.KindGateway, apperror.KindOf(err))
	assert.Nil(t, link)
	require.NotNil(t, approved)
	assert.Equal(t, entity.BookingStatusApproved, h.booking(b.ID).Status)
	firstCode := *h.booking(b.ID).PaymentOrderCode

	h.gateway.fail(nil)
	link, err = h.svc.Booking.CreatePaymentLink(h.ctx, h.renter, b.ID)
	require.NoError(t, err)
	assert.NotEqual(t, firstCode, link.OrderCode)
	assert.Equal(t, link.OrderCode, *h.booking(b.ID).PaymentOrderCode)
	assert.Contains(t, h.gateway.cancelled, firstCode)

	// the renter asking again gets the stored link back
	again, err := h.svc.Booking.CreatePaymentLink(h.ctx, h.renter, b.ID)
	require.NoError(t, err)
	assert.Equal(t, link.OrderCode, again.OrderCode)
	assert.Len(t, h.gateway.created, 1)

	assert.Equal(t, WebhookApplied, h.pay(link.OrderCode, link.Amount).Outcome)
	assert.True(t, h.booking(b.ID).IsPaid)
}

func TestCreatePaymentLinkRules(t *testing.T) {
	h := newHarness(t)
	start := h.day(1).Add(8 * time.Hour)
	b := h.createBooking(start, start.Add(2*time.Hour))

	_, err := h.svc.Booking.CreatePaymentLink(h.ctx, h.renter, b.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidStateTransition)

	_, link := h.approve(b.ID)
	_, err = h.svc.Booking.CreatePaymentLink(h.ctx, h.owner, b.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	h.pay(link.OrderCode, link.Amount)
	_, err = h.svc.Booking.CreatePaymentLink(h.ctx, h.renter, b.ID)
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestRejectBooking(t *testing.T) {
	h := newHarness(t)
	start := h.day(1).Add(8 * time.Hour)
	b := h.createBooking(start, start.Add(2*time.Hour))

	rejected, err := h.svc.Booking.RejectBooking(h.ctx, h.owner, b.ID, "car in service")
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusRejected, rejected.Status)
	require.NotNil(t, h.booking(b.ID).StatusReason)
	assert.Equal(t, "car in service", *h.booking(b.ID).StatusReason)

	_, err = h.svc.Booking.RejectBooking(h.ctx, h.owner, b.ID, "")
	assert.ErrorIs(t, err, apperror.ErrInvalidStateTransition)
}

func TestCancelPendingBookingMovesNoMoney(t *testing.T) {
	h := newHarness(t)
	start := h.day(1).Add(8 * time.Hour)
	b := h.createBooking(start, start.Add(10*time.Hour))

	cancelled, err := h.svc.Booking.CancelBooking(h.ctx, h.renter, b.ID, "")
	require.NoError(t, err)

	assert.Equal(t, entity.BookingStatusCancelled, cancelled.Status)
	assert.Empty(t, h.store.snapshot().txs)
	assert.Equal(t, int64(0), h.user(h.renter.UserID).Balance)
	assert.Equal(t, int64(0), h.user(h.owner.UserID).LockedBalance)
}

func TestCancelPaidBookingRefunds(t *testing.T) {
	h := newHarness(t)
	b := h.paidBooking(10)

	cancelled, err := h.svc.Booking.CancelBooking(h.ctx, h.renter, b.ID, "plans changed")
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusCancelled, cancelled.Status)

	refunds := h.transactions(entity.TransactionRefund)
	require.Len(t, refunds, 1)
	assert.Equal(t, int64(1100), refunds[0].Amount)
	assert.Equal(t, int64(1100), h.user(h.renter.UserID).Balance)
	assert.Equal(t, int64(0), h.user(h.owner.UserID).LockedBalance)
	assert.Nil(t, h.activeLock(b.ID))

	stored := h.booking(b.ID)
	assert.True(t, stored.IsRefund)
	assert.Equal(t, int64(1100), stored.RefundAmount)
	h.requireLedgerConsistent(nil)
}

func TestCancelByStrangerForbidden(t *testing.T) {
	h := newHarness(t)
	start := h.day(1).Add(8 * time.Hour)
	b := h.createBooking(start, start.Add(2*time.Hour))

	_, err := h.svc.Booking.CancelBooking(h.ctx, Actor{UserID: uuid.New(), Role: entity.RoleUser}, b.ID, "")
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = h.svc.Booking.CancelBooking(h.ctx, h.staff, b.ID, "fraud")
	assert.NoError(t, err)
}

func TestCancelInProgressIsInvalid(t *testing.T) {
	h := newHarness(t)
	b := h.startedBooking(4)

	_, err := h.svc.Booking.CancelBooking(h.ctx, h.renter, b.ID, "")
	assert.ErrorIs(t, err, apperror.ErrInvalidStateTransition)
	assert.Equal(t, entity.BookingStatusInProgress, h.booking(b.ID).Status)
}

func TestCancelApprovedClosesPaymentLink(t *testing.T) {
	h := newHarness(t)
	start := h.day(1).Add(8 * time.Hour)
	b := h.createBooking(start, start.Add(2*time.Hour))
	_, link := h.approve(b.ID)

	_, err := h.svc.Booking.CancelBooking(h.ctx, h.owner, b.ID, "")
	require.NoError(t, err)
	assert.Contains(t, h.gateway.cancelled, link.OrderCode)

	order := h.store.snapshot().orders[0]
	assert.Equal(t, entity.PaymentOrderCancelled, order.Status)
}

func TestExpireOverdueIsIdempotent(t *testing.T) {
	h := newHarness(t)
	start := h.day(1).Add(8 * time.Hour)
	unpaid := h.createBooking(start, start.Add(2*time.Hour))
	_, link := h.approve(unpaid.ID)

	h.clock.Set(start.Add(time.Minute))
	n, err := h.svc.Booking.ExpireOverdue(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, entity.BookingStatusExpired, h.booking(unpaid.ID).Status)
	assert.Contains(t, h.gateway.cancelled, link.OrderCode)

	n, err = h.svc.Booking.ExpireOverdue(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	expired, err := h.svc.Booking.ExpireBooking(h.ctx, unpaid.ID)
	require.NoError(t, err)
	assert.False(t, expired)
}

func TestExpireSkipsPaidAndFutureBookings(t *testing.T) {
	h := newHarness(t)
	paid := h.paidBooking(2)

	expired, err := h.svc.Booking.ExpireBooking(h.ctx, paid.ID)
	require.NoError(t, err)
	assert.False(t, expired)

	h.clock.Set(paid.StartTime.Add(time.Minute))
	expired, err = h.svc.Booking.ExpireBooking(h.ctx, paid.ID)
	require.NoError(t, err)
	assert.False(t, expired)
	assert.Equal(t, entity.BookingStatusApproved, h.booking(paid.ID).Status)
}

func TestRejectStalePending(t *testing.T) {
	h := newHarness(t)
	start := h.day(1).Add(8 * time.Hour)
	stale := h.createBooking(start, start.Add(2*time.Hour))
	later := h.createBooking(start.Add(24*time.Hour), start.Add(26*time.Hour))

	h.clock.Set(start)
	n, err := h.svc.Booking.RejectStalePending(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got := h.booking(stale.ID)
	assert.Equal(t, entity.BookingStatusRejected, got.Status)
	require.NotNil(t, got.StatusReason)
	assert.Equal(t, "owner did not respond", *got.StatusReason)
	assert.Equal(t, entity.BookingStatusPending, h.booking(later.ID).Status)
}

func TestStartDueRentsCar(t *testing.T) {
	h := newHarness(t)
	b := h.paidBooking(4)

	n, err := h.svc.Booking.StartDue(h.ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	h.clock.Set(b.StartTime)
	n, err = h.svc.Booking.StartDue(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, entity.BookingStatusInProgress, h.booking(b.ID).Status)
	assert.Equal(t, entity.CarStatusRented, h.car().Status)
}

func TestStartUnpaidBookingConflicts(t *testing.T) {
	h := newHarness(t)
	start := h.day(1).Add(8 * time.Hour)
	b := h.createBooking(start, start.Add(2*time.Hour))
	h.approve(b.ID)
	h.clock.Set(start)

	_, err := h.svc.Booking.StartBooking(h.ctx, h.owner, b.ID)
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestReturnOnTimeCompletesBooking(t *testing.T) {
	h := newHarness(t)
	b := h.startedBooking(10)
	h.clock.Set(b.EndTime.Add(30 * time.Minute))

	returned, link, err := h.svc.Booking.ReturnCar(h.ctx, h.renter, b.ID)
	require.NoError(t, err)
	assert.Nil(t, link)
	assert.Equal(t, entity.BookingStatusCompleted, returned.Status)

	owner := h.user(h.owner.UserID)
	assert.Equal(t, int64(1000), owner.Balance)
	assert.Equal(t, int64(0), owner.LockedBalance)
	assert.Nil(t, h.activeLock(b.ID))
	assert.Equal(t, entity.CarStatusAvailable, h.car().Status)

	fees := h.transactions(entity.TransactionPlatformFee)
	require.Len(t, fees, 1)
	assert.Equal(t, int64(100), fees[0].Amount)
	assert.True(t, h.events.has(EventBookingCompleted))
	h.requireLedgerConsistent(nil)
}

func TestReturnLateChargesExcessBeforeCompletion(t *testing.T) {
	h := newHarness(t)
	b := h.startedBooking(10)
	h.clock.Set(b.EndTime.Add(3 * time.Hour))

	returned, link, err := h.svc.Booking.ReturnCar(h.ctx, h.owner, b.ID)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, entity.PaymentPurposeExcess, link.Purpose)
	assert.Equal(t, int64(2400), link.Amount)
	assert.Equal(t, 1, returned.ExcessDays)
	assert.Equal(t, entity.BookingStatusInProgress, returned.Status)
	assert.Equal(t, int64(3500), returned.TotalAmount)

	_, err = h.svc.Booking.CompleteBooking(h.ctx, h.owner, b.ID)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, _, err = h.svc.Booking.ReturnCar(h.ctx, h.renter, b.ID)
	assert.ErrorIs(t, err, apperror.ErrConflict)

	assert.Equal(t, WebhookApplied, h.pay(link.OrderCode, link.Amount).Outcome)

	done := h.booking(b.ID)
	assert.Equal(t, entity.BookingStatusCompleted, done.Status)
	assert.True(t, done.IsExcessPaid)
	assert.Equal(t, int64(3400), h.user(h.owner.UserID).Balance)
	assert.Equal(t, int64(0), h.user(h.owner.UserID).LockedBalance)
	h.requireLedgerConsistent(nil)
}

func TestCompleteBookingIsIdempotent(t *testing.T) {
	h := newHarness(t)
	b := h.startedBooking(2)
	h.clock.Set(b.EndTime)
	_, _, err := h.svc.Booking.ReturnCar(h.ctx, h.renter, b.ID)
	require.NoError(t, err)
	before := len(h.store.snapshot().txs)

	done, err := h.svc.Booking.CompleteBooking(h.ctx, h.owner, b.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusCompleted, done.Status)
	assert.Len(t, h.store.snapshot().txs, before)

	_, err = h.svc.Booking.CompleteBooking(h.ctx, h.renter, b.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)
}

func TestCompleteBeforeReturnConflicts(t *testing.T) {
	h := newHarness(t)
	b := h.startedBooking(2)

	_, err := h.svc.Booking.CompleteBooking(h.ctx, h.staff, b.ID)
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestGetBookingShowsDecodedFieldsToParties(t *testing.T) {
	h := newHarness(t)
	start := h.day(1).Add(8 * time.Hour)
	b := h.createBooking(start, start.Add(2*time.Hour))

	for _, actor := range []Actor{h.renter, h.owner, h.staff} {
		detail, err := h.svc.Booking.GetBooking(h.ctx, actor, b.ID)
		require.NoError(t, err)
		assert.Equal(t, "51A-12345", detail.LicensePlate)
		assert.Equal(t, "0900000000", detail.RenterPhone)
	}

	_, err := h.svc.Booking.GetBooking(h.ctx, Actor{UserID: uuid.New(), Role: entity.RoleUser}, b.ID)
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = h.svc.Booking.GetBooking(h.ctx, h.renter, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestListBookingsByRenterAndOwner(t *testing.T) {
	h := newHarness(t)
	start := h.day(1).Add(8 * time.Hour)
	h.createBooking(start, start.Add(2*time.Hour))
	second := h.createBooking(start.Add(24*time.Hour), start.Add(26*time.Hour))
	h.approve(second.ID)

	items, total, err := h.svc.Booking.ListRenterBookings(h.ctx, h.renter, nil, 10, 0)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, int64(2), total)

	approved := entity.BookingStatusApproved
	items, total, err = h.svc.Booking.ListOwnerBookings(h.ctx, h.owner, &approved, 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, second.ID, items[0].ID)
	assert.Equal(t, int64(1), total)

	items, _, err = h.svc.Booking.ListOwnerBookings(h.ctx, h.renter, nil, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, items)

	bogus := entity.BookingStatus("lost")
	_, _, err = h.svc.Booking.ListRenterBookings(h.ctx, h.renter, &bogus, 10, 0)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}
