package adaptor

import (
	"io"
	"net/http"

	"car-rental/internal/usecase"
	"car-rental/pkg/apperror"
	"car-rental/pkg/utils"

	"go.uber.org/zap"
)

// maxWebhookBody bounds what the gateway callback may send.
const maxWebhookBody = 64 << 10

type PaymentHandler struct {
	service usecase.PaymentService
	log     *zap.Logger
}

func NewPaymentHandler(service usecase.PaymentService, log *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		service: service,
		log:     log.With(zap.String("handler", "payment")),
	}
}

// Webhook handles POST /api/payments/payos/webhook. Every verified event is
// acknowledged with 200, including duplicates and business rejections, so the
// gateway stops retrying. Only infrastructure failures return 500.
func (h *PaymentHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.service.HandleWebhook(r.Context(), body)
	if err != nil {
		if apperror.KindOf(err) == apperror.KindValidation {
			h.log.Warn("Rejected webhook", zap.Error(err))
			utils.ResponseBadRequest(w, "Invalid webhook", nil)
			return
		}
		h.log.Error("Failed to handle webhook", zap.Error(err))
		utils.ResponseInternalError(w, "Internal server error")
		return
	}

	utils.ResponseSuccess(w, string(result.Outcome), result)
}
