package wire

import (
	"net/http"

	"car-rental/internal/adaptor"

	"github.com/go-chi/chi/v5"
)

func wireAvailability(r chi.Router, availabilityHandler *adaptor.AvailabilityHandler, auth func(http.Handler) http.Handler) {
	// public
	r.Get("/api/cars/{id}/availability", availabilityHandler.GetCalendar)
	r.Get("/api/cars/{id}/availability/check", availabilityHandler.CheckAvailability)

	// car owner
	r.With(auth).Put("/api/cars/{id}/availability", availabilityHandler.SetAvailability)
}
