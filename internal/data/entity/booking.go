package entity

import (
	"time"

	"car-rental/pkg/apperror"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusApproved   BookingStatus = "approved"
	BookingStatusRejected   BookingStatus = "rejected"
	BookingStatusCancelled  BookingStatus = "cancelled"
	BookingStatusInProgress BookingStatus = "in_progress"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusExpired    BookingStatus = "expired"
)

// bookingTransitions is the only place booking edges are defined.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:    {BookingStatusApproved, BookingStatusRejected, BookingStatusCancelled},
	BookingStatusApproved:   {BookingStatusInProgress, BookingStatusCancelled, BookingStatusExpired},
	BookingStatusInProgress: {BookingStatusCompleted},
}

// ActiveBookingStatuses block the car calendar.
var ActiveBookingStatuses = []BookingStatus{BookingStatusApproved, BookingStatusInProgress}

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return len(bookingTransitions[s]) == 0
}

func (s BookingStatus) IsActive() bool {
	return s == BookingStatusApproved || s == BookingStatusInProgress
}

type Booking struct {
	Base
	RenterID         uuid.UUID     `db:"renter_id"`
	CarID            uuid.UUID     `db:"car_id"`
	Status           BookingStatus `db:"status"`
	StatusReason     *string       `db:"status_reason"`
	StartTime        time.Time     `db:"start_time"`
	EndTime          time.Time     `db:"end_time"`
	ActualReturnTime *time.Time    `db:"actual_return_time"`
	BasePrice        int64         `db:"base_price"`
	PlatformFee      int64         `db:"platform_fee"`
	ExcessDays       int           `db:"excess_days"`
	ExcessFee        int64         `db:"excess_fee"`
	IsExcessPaid     bool          `db:"is_excess_paid"`
	TotalAmount      int64         `db:"total_amount"`
	IsPaid           bool          `db:"is_paid"`
	IsCarReturned    bool          `db:"is_car_returned"`
	PaymentOrderCode *int64        `db:"payment_order_code"`
	ExtensionAmount  int64         `db:"extension_amount"`
	ExtensionEndTime *time.Time    `db:"extension_end_time"`
	IsExtensionPaid  bool          `db:"is_extension_paid"`
	RefundAmount     int64         `db:"refund_amount"`
	RefundDate       *time.Time    `db:"refund_date"`
	IsRefund         bool          `db:"is_refund"`
}

// Transition moves the booking to next if the edge exists; otherwise it
// returns an invalid-state-transition error and leaves the booking untouched.
func (b *Booking) Transition(next BookingStatus, at time.Time) error {
	if !b.Status.CanTransitionTo(next) {
		return apperror.InvalidTransition("booking %s cannot move from %s to %s", b.ID, b.Status, next)
	}
	b.Status = next
	b.UpdatedAt = at
	return nil
}

// OwnerShare is the part of the paid amount earmarked for the car owner.
func (b *Booking) OwnerShare() int64 {
	return b.TotalAmount - b.PlatformFee
}

// HasPendingExtension reports an extension requested but not yet paid.
func (b *Booking) HasPendingExtension() bool {
	return b.ExtensionEndTime != nil && !b.IsExtensionPaid
}

// HasUnpaidExcess reports a returned booking still owing its excess fee.
func (b *Booking) HasUnpaidExcess() bool {
	return b.ExcessFee > 0 && !b.IsExcessPaid
}

// BlockedUntil is the end of the calendar hold. A requested but unpaid
// extension keeps its window reserved until it is paid or dropped.
func (b *Booking) BlockedUntil() time.Time {
	if b.HasPendingExtension() && b.ExtensionEndTime.After(b.EndTime) {
		return *b.ExtensionEndTime
	}
	return b.EndTime
}

// Overlaps reports whether [start, end) intersects the booking's hold.
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && start.Before(b.BlockedUntil())
}
