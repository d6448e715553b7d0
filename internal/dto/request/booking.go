package request

import "time"

type CreateBookingRequest struct {
	CarID     string    `json:"car_id" validate:"required,uuid4"`
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
}

// ReasonRequest is the optional body of reject and cancel.
type ReasonRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type ExtensionRequest struct {
	NewEndTime time.Time `json:"new_end_time" validate:"required"`
}

type BookingListRequest struct {
	PaginatedRequest
	Status string `json:"status" validate:"omitempty,oneof=pending approved rejected cancelled in_progress completed expired"`
}
