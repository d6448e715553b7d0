package entity

import "github.com/google/uuid"

// BookingLockedBalance is the escrow earmarked for an owner from a paid booking.
// It is soft-deleted once released to the owner or reversed by a refund.
type BookingLockedBalance struct {
	Base
	BookingID uuid.UUID `db:"booking_id"`
	OwnerID   uuid.UUID `db:"owner_id"`
	Amount    int64     `db:"amount"`
}
