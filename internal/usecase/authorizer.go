package usecase

import (
	"car-rental/internal/data/entity"
	"car-rental/pkg/apperror"

	"github.com/google/uuid"
)

// Actor is the authenticated caller, passed explicitly into every operation.
type Actor struct {
	UserID uuid.UUID
	Role   entity.UserRole
}

// SystemActor is used by scheduled sweeps.
var SystemActor = Actor{Role: entity.RoleAdmin}

// Authorizer answers the ownership and role questions the core asks.
type Authorizer interface {
	IsStaff(actor Actor) bool
	IsCarOwner(actor Actor, car *entity.Car) bool
	IsRenter(actor Actor, booking *entity.Booking) bool
	RequireStaff(actor Actor) error
	RequireCarOwner(actor Actor, car *entity.Car) error
	RequireRenter(actor Actor, booking *entity.Booking) error
	// RequireParty allows the renter, the car owner or staff.
	RequireParty(actor Actor, booking *entity.Booking, car *entity.Car) error
}

type roleAuthorizer struct{}

func NewAuthorizer() Authorizer {
	return roleAuthorizer{}
}

func (roleAuthorizer) IsStaff(actor Actor) bool {
	return actor.Role.IsStaff()
}

func (roleAuthorizer) IsCarOwner(actor Actor, car *entity.Car) bool {
	return car != nil && actor.UserID != uuid.Nil && car.OwnerID == actor.UserID
}

func (roleAuthorizer) IsRenter(actor Actor, booking *entity.Booking) bool {
	return booking != nil && actor.UserID != uuid.Nil && booking.RenterID == actor.UserID
}

func (a roleAuthorizer) RequireStaff(actor Actor) error {
	if !a.IsStaff(actor) {
		return apperror.Forbidden("staff role required")
	}
	return nil
}

func (a roleAuthorizer) RequireCarOwner(actor Actor, car *entity.Car) error {
	if !a.IsCarOwner(actor, car) {
		return apperror.Forbidden("only the car owner can do this")
	}
	return nil
}

func (a roleAuthorizer) RequireRenter(actor Actor, booking *entity.Booking) error {
	if !a.IsRenter(actor, booking) {
		return apperror.Forbidden("only the renter can do this")
	}
	return nil
}

func (a roleAuthorizer) RequireParty(actor Actor, booking *entity.Booking, car *entity.Car) error {
	if a.IsRenter(actor, booking) || a.IsCarOwner(actor, car) || a.IsStaff(actor) {
		return nil
	}
	return apperror.Forbidden("not a party to booking %s", booking.ID)
}
