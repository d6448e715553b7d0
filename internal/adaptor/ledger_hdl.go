package adaptor

import (
	"net/http"

	"car-rental/internal/dto/response"
	"car-rental/internal/usecase"
	"car-rental/pkg/utils"

	"go.uber.org/zap"
)

type LedgerHandler struct {
	service usecase.LedgerService
	log     *zap.Logger
}

func NewLedgerHandler(service usecase.LedgerService, log *zap.Logger) *LedgerHandler {
	return &LedgerHandler{
		service: service,
		log:     log.With(zap.String("handler", "ledger")),
	}
}

// GetBalance handles GET /api/user/balance
func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}

	balance, err := h.service.GetBalance(r.Context(), actor)
	if err != nil {
		handleServiceError(w, h.log, err, "get balance")
		return
	}

	utils.ResponseSuccess(w, "success", balance)
}

// ListTransactions handles GET /api/user/transactions
func (h *LedgerHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	page := pageFrom(r)

	txs, total, err := h.service.ListTransactions(r.Context(), actor, page.Limit(), page.Offset())
	if err != nil {
		handleServiceError(w, h.log, err, "list transactions")
		return
	}

	utils.ResponseSuccess(w, "success", response.NewPaginatedResponse(
		response.TransactionsToResponse(txs), page.Page, page.Limit(), total,
	))
}
