package adaptor

import (
	"context"
	"net/http"

	"car-rental/internal/data/entity"
	"car-rental/internal/dto/request"
	"car-rental/internal/dto/response"
	"car-rental/internal/usecase"
	"car-rental/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BookingHandler struct {
	service   usecase.BookingService
	extension usecase.ExtensionService
	log       *zap.Logger
}

func NewBookingHandler(service usecase.BookingService, extension usecase.ExtensionService, log *zap.Logger) *BookingHandler {
	return &BookingHandler{
		service:   service,
		extension: extension,
		log:       log.With(zap.String("handler", "booking")),
	}
}

// CreateBooking handles POST /api/bookings
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	var req request.CreateBookingRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	booking, err := h.service.CreateBooking(r.Context(), actor, usecase.CreateBookingInput{
		CarID:     uuid.MustParse(req.CarID),
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
	})
	if err != nil {
		handleServiceError(w, h.log, err, "create booking")
		return
	}

	utils.ResponseCreated(w, "Booking created", response.BookingToResponse(booking))
}

// GetBooking handles GET /api/bookings/{id}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.service.GetBooking(r.Context(), actor, id)
	if err != nil {
		handleServiceError(w, h.log, err, "get booking")
		return
	}

	utils.ResponseSuccess(w, "success", response.BookingDetailToResponse(detail))
}

// ListRenterBookings handles GET /api/user/bookings
func (h *BookingHandler) ListRenterBookings(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "list renter bookings", h.service.ListRenterBookings)
}

// ListOwnerBookings handles GET /api/owner/bookings
func (h *BookingHandler) ListOwnerBookings(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, "list owner bookings", h.service.ListOwnerBookings)
}

func (h *BookingHandler) list(
	w http.ResponseWriter,
	r *http.Request,
	operation string,
	fetch func(context.Context, usecase.Actor, *entity.BookingStatus, int, int) ([]*entity.Booking, int64, error),
) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	req := request.BookingListRequest{
		PaginatedRequest: pageFrom(r),
		Status:           r.URL.Query().Get("status"),
	}
	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return
	}

	var status *entity.BookingStatus
	if req.Status != "" {
		s := entity.BookingStatus(req.Status)
		status = &s
	}

	bookings, total, err := fetch(r.Context(), actor, status, req.Limit(), req.Offset())
	if err != nil {
		handleServiceError(w, h.log, err, operation)
		return
	}

	utils.ResponseSuccess(w, "success", response.NewPaginatedResponse(
		response.BookingsToResponse(bookings), req.Page, req.Limit(), total,
	))
}

// ApproveBooking handles PUT /api/bookings/{id}/approve
func (h *BookingHandler) ApproveBooking(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}

	booking, link, err := h.service.ApproveBooking(r.Context(), actor, id)
	if err != nil {
		handleServiceError(w, h.log, err, "approve booking")
		return
	}

	utils.ResponseSuccess(w, "Booking approved", response.BookingActionResponse{
		Booking: response.BookingToResponse(booking),
		Payment: link,
	})
}

// RejectBooking handles PUT /api/bookings/{id}/reject
func (h *BookingHandler) RejectBooking(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req request.ReasonRequest
	if !decodeAndValidate(w, r, &req, true) {
		return
	}

	booking, err := h.service.RejectBooking(r.Context(), actor, id, req.Reason)
	if err != nil {
		handleServiceError(w, h.log, err, "reject booking")
		return
	}

	utils.ResponseSuccess(w, "Booking rejected", response.BookingToResponse(booking))
}

// CancelBooking handles PUT /api/bookings/{id}/cancel
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req request.ReasonRequest
	if !decodeAndValidate(w, r, &req, true) {
		return
	}

	booking, err := h.service.CancelBooking(r.Context(), actor, id, req.Reason)
	if err != nil {
		handleServiceError(w, h.log, err, "cancel booking")
		return
	}

	utils.ResponseSuccess(w, "Booking cancelled", response.BookingToResponse(booking))
}

// CreatePaymentLink handles POST /api/bookings/{id}/payment-link
func (h *BookingHandler) CreatePaymentLink(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}

	link, err := h.service.CreatePaymentLink(r.Context(), actor, id)
	if err != nil {
		handleServiceError(w, h.log, err, "create payment link")
		return
	}

	utils.ResponseSuccess(w, "success", link)
}

// StartBooking handles PUT /api/bookings/{id}/start
func (h *BookingHandler) StartBooking(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}

	booking, err := h.service.StartBooking(r.Context(), actor, id)
	if err != nil {
		handleServiceError(w, h.log, err, "start booking")
		return
	}

	utils.ResponseSuccess(w, "Booking started", response.BookingToResponse(booking))
}

// ReturnCar handles PUT /api/bookings/{id}/return
func (h *BookingHandler) ReturnCar(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}

	booking, link, err := h.service.ReturnCar(r.Context(), actor, id)
	if err != nil {
		handleServiceError(w, h.log, err, "return car")
		return
	}

	message := "Car returned"
	if link != nil {
		message = "Car returned, excess fee due"
	}
	utils.ResponseSuccess(w, message, response.BookingActionResponse{
		Booking: response.BookingToResponse(booking),
		Payment: link,
	})
}

// CompleteBooking handles PUT /api/bookings/{id}/complete
func (h *BookingHandler) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}

	booking, err := h.service.CompleteBooking(r.Context(), actor, id)
	if err != nil {
		handleServiceError(w, h.log, err, "complete booking")
		return
	}

	utils.ResponseSuccess(w, "Booking completed", response.BookingToResponse(booking))
}

// RequestExtension handles POST /api/bookings/{id}/extensions
func (h *BookingHandler) RequestExtension(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.target(w, r)
	if !ok {
		return
	}
	var req request.ExtensionRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	quote, err := h.extension.RequestExtension(r.Context(), actor, id, req.NewEndTime)
	if err != nil {
		handleServiceError(w, h.log, err, "request extension")
		return
	}

	utils.ResponseCreated(w, "Extension requested", response.ExtensionResponse{
		Booking:          response.BookingToResponse(quote.Booking),
		AdditionalAmount: quote.AdditionalAmount,
		Payment:          quote.Link,
	})
}

func (h *BookingHandler) target(w http.ResponseWriter, r *http.Request) (usecase.Actor, uuid.UUID, bool) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return usecase.Actor{}, uuid.Nil, false
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return usecase.Actor{}, uuid.Nil, false
	}
	return actor, id, true
}
