package response

import (
	"time"

	"car-rental/internal/data/entity"
	"car-rental/internal/usecase"
)

type BookingResponse struct {
	ID               string               `json:"id"`
	RenterID         string               `json:"renter_id"`
	CarID            string               `json:"car_id"`
	Status           entity.BookingStatus `json:"status"`
	StatusReason     *string              `json:"status_reason,omitempty"`
	StartTime        time.Time            `json:"start_time"`
	EndTime          time.Time            `json:"end_time"`
	ActualReturnTime *time.Time           `json:"actual_return_time,omitempty"`
	BasePrice        int64                `json:"base_price"`
	PlatformFee      int64                `json:"platform_fee"`
	ExcessDays       int                  `json:"excess_days"`
	ExcessFee        int64                `json:"excess_fee"`
	IsExcessPaid     bool                 `json:"is_excess_paid"`
	TotalAmount      int64                `json:"total_amount"`
	IsPaid           bool                 `json:"is_paid"`
	IsCarReturned    bool                 `json:"is_car_returned"`
	ExtensionAmount  int64                `json:"extension_amount,omitempty"`
	ExtensionEndTime *time.Time           `json:"extension_end_time,omitempty"`
	IsExtensionPaid  bool                 `json:"is_extension_paid"`
	RefundAmount     int64                `json:"refund_amount,omitempty"`
	RefundDate       *time.Time           `json:"refund_date,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

type PaymentOrderResponse struct {
	OrderCode   int64                     `json:"order_code"`
	Purpose     entity.PaymentPurpose     `json:"purpose"`
	Amount      int64                     `json:"amount"`
	Status      entity.PaymentOrderStatus `json:"status"`
	CheckoutURL *string                   `json:"checkout_url,omitempty"`
	PaidAt      *time.Time                `json:"paid_at,omitempty"`
	CreatedAt   time.Time                 `json:"created_at"`
}

type CarSummary struct {
	ID             string `json:"id"`
	OwnerID        string `json:"owner_id"`
	Brand          string `json:"brand"`
	Model          string `json:"model"`
	LicensePlate   string `json:"license_plate"`
	PricePerHour   int64  `json:"price_per_hour"`
	PickupLocation string `json:"pickup_location,omitempty"`
}

type BookingDetailResponse struct {
	BookingResponse
	Car           *CarSummary            `json:"car,omitempty"`
	RenterPhone   string                 `json:"renter_phone,omitempty"`
	PaymentOrders []PaymentOrderResponse `json:"payment_orders"`
}

// BookingActionResponse is returned by actions that may hand back a checkout
// link: approval, return with an excess fee and payment link requests.
type BookingActionResponse struct {
	Booking BookingResponse      `json:"booking"`
	Payment *usecase.PaymentLink `json:"payment,omitempty"`
}

type ExtensionResponse struct {
	Booking          BookingResponse      `json:"booking"`
	AdditionalAmount int64                `json:"additional_amount"`
	Payment          *usecase.PaymentLink `json:"payment,omitempty"`
}

func BookingToResponse(b *entity.Booking) BookingResponse {
	return BookingResponse{
		ID:               b.ID.String(),
		RenterID:         b.RenterID.String(),
		CarID:            b.CarID.String(),
		Status:           b.Status,
		StatusReason:     b.StatusReason,
		StartTime:        b.StartTime,
		EndTime:          b.EndTime,
		ActualReturnTime: b.ActualReturnTime,
		BasePrice:        b.BasePrice,
		PlatformFee:      b.PlatformFee,
		ExcessDays:       b.ExcessDays,
		ExcessFee:        b.ExcessFee,
		IsExcessPaid:     b.IsExcessPaid,
		TotalAmount:      b.TotalAmount,
		IsPaid:           b.IsPaid,
		IsCarReturned:    b.IsCarReturned,
		ExtensionAmount:  b.ExtensionAmount,
		ExtensionEndTime: b.ExtensionEndTime,
		IsExtensionPaid:  b.IsExtensionPaid,
		RefundAmount:     b.RefundAmount,
		RefundDate:       b.RefundDate,
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}
}

func BookingsToResponse(bookings []*entity.Booking) []BookingResponse {
	out := make([]BookingResponse, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, BookingToResponse(b))
	}
	return out
}

func BookingDetailToResponse(d *usecase.BookingDetail) BookingDetailResponse {
	resp := BookingDetailResponse{
		BookingResponse: BookingToResponse(d.Booking),
		RenterPhone:     d.RenterPhone,
		PaymentOrders:   make([]PaymentOrderResponse, 0, len(d.PaymentOrders)),
	}
	if d.Car != nil {
		resp.Car = &CarSummary{
			ID:             d.Car.ID.String(),
			OwnerID:        d.Car.OwnerID.String(),
			Brand:          d.Car.Brand,
			Model:          d.Car.Model,
			LicensePlate:   d.LicensePlate,
			PricePerHour:   d.Car.PricePerHour,
			PickupLocation: d.Car.PickupLocation,
		}
	}
	for _, o := range d.PaymentOrders {
		resp.PaymentOrders = append(resp.PaymentOrders, PaymentOrderResponse{
			OrderCode:   o.OrderCode,
			Purpose:     o.Purpose,
			Amount:      o.Amount,
			Status:      o.Status,
			CheckoutURL: o.CheckoutURL,
			PaidAt:      o.PaidAt,
			CreatedAt:   o.CreatedAt,
		})
	}
	return resp
}
