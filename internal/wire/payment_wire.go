package wire

import (
	"car-rental/internal/adaptor"
	"car-rental/pkg/middleware"
	"car-rental/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// wirePayment mounts the gateway callback. It carries no bearer auth; the
// payload signature is checked by the payment service.
func wirePayment(r chi.Router, paymentHandler *adaptor.PaymentHandler, config *utils.Config, limiter middleware.Limiter, log *zap.Logger) {
	r.With(middleware.RateLimit(limiter, "payos_webhook", config.Redis.WebhookLimit, config.Redis.RateLimitWindow, log)).
		Post("/api/payments/payos/webhook", paymentHandler.Webhook)
}
