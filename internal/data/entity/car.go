package entity

import "github.com/google/uuid"

type CarStatus string

const (
	CarStatusAvailable CarStatus = "available"
	CarStatusPending   CarStatus = "pending"
	CarStatusRejected  CarStatus = "rejected"
	CarStatusInactive  CarStatus = "inactive"
	CarStatusRented    CarStatus = "rented"
)

type Car struct {
	Base
	OwnerID            uuid.UUID `db:"owner_id"`
	Brand              string    `db:"brand"`
	Model              string    `db:"model"`
	LicensePlate       string    `db:"license_plate"` // encoded
	Status             CarStatus `db:"status"`
	PricePerHour       int64     `db:"price_per_hour"`
	RequiresCollateral bool      `db:"requires_collateral"`
	PickupLocation     string    `db:"pickup_location"`
}

// IsBookable reports whether the listing itself accepts new bookings.
// Rented and inactive cars, and listings not yet approved, are excluded.
func (c *Car) IsBookable() bool {
	return c.Status == CarStatusAvailable
}
