package adaptor

import (
	"net/http"

	"car-rental/internal/data/entity"
	"car-rental/internal/dto/request"
	"car-rental/internal/dto/response"
	"car-rental/internal/usecase"
	"car-rental/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReportHandler struct {
	service usecase.ReportService
	log     *zap.Logger
}

func NewReportHandler(service usecase.ReportService, log *zap.Logger) *ReportHandler {
	return &ReportHandler{
		service: service,
		log:     log.With(zap.String("handler", "report")),
	}
}

// FileReport handles POST /api/reports
func (h *ReportHandler) FileReport(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req request.FileReportRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	report, err := h.service.FileReport(r.Context(), actor, usecase.FileReportInput{
		BookingID:   uuid.MustParse(req.BookingID),
		Type:        entity.ReportType(req.Type),
		Description: req.Description,
	})
	if err != nil {
		handleServiceError(w, h.log, err, "file report")
		return
	}

	utils.ResponseCreated(w, "Report filed", response.ReportToResponse(report))
}

// GetReport handles GET /api/reports/{id}
func (h *ReportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	report, err := h.service.GetReport(r.Context(), actor, id)
	if err != nil {
		handleServiceError(w, h.log, err, "get report")
		return
	}

	utils.ResponseSuccess(w, "success", response.ReportToResponse(report))
}

// ListReports handles GET /api/staff/reports?booking_id=&status=
func (h *ReportHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	page := pageFrom(r)
	query := r.URL.Query()

	var bookingID *uuid.UUID
	if v := query.Get("booking_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			utils.ResponseBadRequest(w, "Invalid booking_id", nil)
			return
		}
		bookingID = &id
	}
	var status *entity.ReportStatus
	if v := query.Get("status"); v != "" {
		s := entity.ReportStatus(v)
		status = &s
	}

	reports, total, err := h.service.ListReports(r.Context(), actor, bookingID, status, page.Limit(), page.Offset())
	if err != nil {
		handleServiceError(w, h.log, err, "list reports")
		return
	}

	utils.ResponseSuccess(w, "success", response.NewPaginatedResponse(
		response.ReportsToResponse(reports), page.Page, page.Limit(), total,
	))
}

// ResolveReport handles PUT /api/staff/reports/{id}/resolve
func (h *ReportHandler) ResolveReport(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req request.ResolveReportRequest
	if !decodeAndValidate(w, r, &req, true) {
		return
	}

	in := usecase.ResolveReportInput{Note: req.Note}
	if c := req.Compensation; c != nil {
		in.Compensation = &usecase.Compensation{
			Amount:        c.Amount,
			ChargedUserID: uuid.MustParse(c.ChargedUserID),
			ProofURL:      c.ProofURL,
		}
		if c.ClaimantID != nil {
			claimant := uuid.MustParse(*c.ClaimantID)
			in.Compensation.ClaimantID = &claimant
		}
	}

	report, err := h.service.ResolveReport(r.Context(), actor, id, in)
	if err != nil {
		handleServiceError(w, h.log, err, "resolve report")
		return
	}

	utils.ResponseSuccess(w, "Report resolved", response.ReportToResponse(report))
}

// RejectReport handles PUT /api/staff/reports/{id}/reject
func (h *ReportHandler) RejectReport(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req request.RejectReportRequest
	if !decodeAndValidate(w, r, &req, true) {
		return
	}

	report, err := h.service.RejectReport(r.Context(), actor, id, req.Note)
	if err != nil {
		handleServiceError(w, h.log, err, "reject report")
		return
	}

	utils.ResponseSuccess(w, "Report rejected", response.ReportToResponse(report))
}
