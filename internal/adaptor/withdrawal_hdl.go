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

type WithdrawalHandler struct {
	service usecase.WithdrawalService
	log     *zap.Logger
}

func NewWithdrawalHandler(service usecase.WithdrawalService, log *zap.Logger) *WithdrawalHandler {
	return &WithdrawalHandler{
		service: service,
		log:     log.With(zap.String("handler", "withdrawal")),
	}
}

// RequestWithdrawal handles POST /api/withdrawals
func (h *WithdrawalHandler) RequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req request.CreateWithdrawalRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	withdrawal, err := h.service.RequestWithdrawal(r.Context(), actor, uuid.MustParse(req.BankAccountID), req.Amount)
	if err != nil {
		handleServiceError(w, h.log, err, "request withdrawal")
		return
	}

	utils.ResponseCreated(w, "Withdrawal requested", response.WithdrawalToResponse(withdrawal))
}

// ListMyWithdrawals handles GET /api/user/withdrawals
func (h *WithdrawalHandler) ListMyWithdrawals(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	page := pageFrom(r)

	items, total, err := h.service.ListMyWithdrawals(r.Context(), actor, page.Limit(), page.Offset())
	if err != nil {
		handleServiceError(w, h.log, err, "list my withdrawals")
		return
	}

	utils.ResponseSuccess(w, "success", response.NewPaginatedResponse(
		response.WithdrawalsToResponse(items), page.Page, page.Limit(), total,
	))
}

// ListWithdrawals handles GET /api/staff/withdrawals?status=
func (h *WithdrawalHandler) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	page := pageFrom(r)

	var status *entity.WithdrawalStatus
	if v := r.URL.Query().Get("status"); v != "" {
		s := entity.WithdrawalStatus(v)
		status = &s
	}

	items, total, err := h.service.ListWithdrawals(r.Context(), actor, status, page.Limit(), page.Offset())
	if err != nil {
		handleServiceError(w, h.log, err, "list withdrawals")
		return
	}

	utils.ResponseSuccess(w, "success", response.NewPaginatedResponse(
		response.WithdrawalsToResponse(items), page.Page, page.Limit(), total,
	))
}

// ApproveWithdrawal handles PUT /api/staff/withdrawals/{id}/approve
func (h *WithdrawalHandler) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "approve withdrawal", h.service.ApproveWithdrawal)
}

// RejectWithdrawal handles PUT /api/staff/withdrawals/{id}/reject
func (h *WithdrawalHandler) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, "reject withdrawal", h.service.RejectWithdrawal)
}

func (h *WithdrawalHandler) review(
	w http.ResponseWriter,
	r *http.Request,
	operation string,
	apply func(ctx context.Context, actor usecase.Actor, id uuid.UUID, note string) (*entity.WithdrawalRequest, error),
) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req request.ReviewWithdrawalRequest
	if !decodeAndValidate(w, r, &req, true) {
		return
	}

	withdrawal, err := apply(r.Context(), actor, id, req.Note)
	if err != nil {
		handleServiceError(w, h.log, err, operation)
		return
	}

	utils.ResponseSuccess(w, "success", response.WithdrawalToResponse(withdrawal))
}

// ProcessWithdrawal handles PUT /api/staff/withdrawals/{id}/process
func (h *WithdrawalHandler) ProcessWithdrawal(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req request.ProcessWithdrawalRequest
	if !decodeAndValidate(w, r, &req, false) {
		return
	}

	withdrawal, record, err := h.service.ProcessWithdrawal(r.Context(), actor, id, req.ProofURL)
	if err != nil {
		handleServiceError(w, h.log, err, "process withdrawal")
		return
	}

	utils.ResponseSuccess(w, "Withdrawal processed", map[string]any{
		"withdrawal":  response.WithdrawalToResponse(withdrawal),
		"transaction": response.TransactionToResponse(record),
	})
}
