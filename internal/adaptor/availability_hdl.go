package adaptor

import (
	"net/http"
	"time"

	"car-rental/internal/dto/request"
	"car-rental/internal/usecase"
	"car-rental/pkg/utils"

	"go.uber.org/zap"
)

type AvailabilityHandler struct {
	service usecase.AvailabilityService
	log     *zap.Logger
}

func NewAvailabilityHandler(service usecase.AvailabilityService, log *zap.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		service: service,
		log:     log.With(zap.String("handler", "availability")),
	}
}

// GetCalendar handles GET /api/cars/{id}/availability?from=YYYY-MM-DD&to=YYYY-MM-DD
// The range defaults to the next 30 days.
func (h *AvailabilityHandler) GetCalendar(w http.ResponseWriter, r *http.Request) {
	carID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	query := r.URL.Query()
	from := time.Now().UTC()
	to := from.AddDate(0, 0, 30)
	var err error
	if v := query.Get("from"); v != "" {
		if from, err = utils.ParseDate(v); err != nil {
			utils.ResponseBadRequest(w, "Invalid from date, use YYYY-MM-DD", nil)
			return
		}
		if query.Get("to") == "" {
			to = from.AddDate(0, 0, 30)
		}
	}
	if v := query.Get("to"); v != "" {
		if to, err = utils.ParseDate(v); err != nil {
			utils.ResponseBadRequest(w, "Invalid to date, use YYYY-MM-DD", nil)
			return
		}
	}

	calendar, err := h.service.GetCalendar(r.Context(), carID, from, to)
	if err != nil {
		handleServiceError(w, h.log, err, "get calendar")
		return
	}

	utils.ResponseSuccess(w, "success", calendar)
}

// CheckAvailability handles GET /api/cars/{id}/availability/check?start=RFC3339&end=RFC3339
func (h *AvailabilityHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	carID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	query := r.URL.Query()
	start, err := time.Parse(time.RFC3339, query.Get("start"))
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid start, use RFC3339", nil)
		return
	}
	end, err := time.Parse(time.RFC3339, query.Get("end"))
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid end, use RFC3339", nil)
		return
	}

	available, err := h.service.IsAvailable(r.Context(), carID, start, end)
	if err != nil {
		handleServiceError(w, h.log, err, "check availability")
		return
	}

	utils.ResponseSuccess(w, "success", map[string]any{
		"car_id":     carID,
		"start_time": start.UTC(),
		"end_time":   end.UTC(),
		"available":  available,
	})
}

// SetAvailability handles PUT /api/cars/{id}/availability (car owner)
func (h *AvailabilityHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	carID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req request.SetAvailabilityRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	dates := make([]time.Time, 0, len(req.Dates))
	for _, d := range req.Dates {
		day, err := utils.ParseDate(d)
		if err != nil {
			utils.ResponseBadRequest(w, "Invalid date "+d, nil)
			return
		}
		dates = append(dates, day)
	}

	if err := h.service.SetAvailability(r.Context(), actor, carID, dates, *req.IsAvailable); err != nil {
		handleServiceError(w, h.log, err, "set availability")
		return
	}

	utils.ResponseSuccess(w, "Availability updated", nil)
}
