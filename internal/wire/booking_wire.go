package wire

import (
	"net/http"

	"car-rental/internal/adaptor"
	"car-rental/pkg/middleware"
	"car-rental/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireBooking(
	r chi.Router,
	bookingHandler *adaptor.BookingHandler,
	auth func(http.Handler) http.Handler,
	config *utils.Config,
	limiter middleware.Limiter,
	log *zap.Logger,
) {
	r.Group(func(r chi.Router) {
		r.Use(auth)

		// creation is throttled per renter
		r.With(middleware.RateLimit(limiter, "booking_create", config.Redis.BookingLimit, config.Redis.RateLimitWindow, log)).
			Post("/api/bookings", bookingHandler.CreateBooking)

		r.Get("/api/bookings/{id}", bookingHandler.GetBooking)
		r.Get("/api/user/bookings", bookingHandler.ListRenterBookings)
		r.Get("/api/owner/bookings", bookingHandler.ListOwnerBookings)

		r.Put("/api/bookings/{id}/approve", bookingHandler.ApproveBooking)
		r.Put("/api/bookings/{id}/reject", bookingHandler.RejectBooking)
		r.Put("/api/bookings/{id}/cancel", bookingHandler.CancelBooking)
		r.Post("/api/bookings/{id}/payment-link", bookingHandler.CreatePaymentLink)
		r.Put("/api/bookings/{id}/start", bookingHandler.StartBooking)
		r.Put("/api/bookings/{id}/return", bookingHandler.ReturnCar)
		r.Put("/api/bookings/{id}/complete", bookingHandler.CompleteBooking)
		r.Post("/api/bookings/{id}/extensions", bookingHandler.RequestExtension)
	})
}
