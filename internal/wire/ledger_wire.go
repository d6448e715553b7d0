package wire

import (
	"net/http"

	"car-rental/internal/adaptor"
	"car-rental/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireLedger(
	r chi.Router,
	ledgerHandler *adaptor.LedgerHandler,
	withdrawalHandler *adaptor.WithdrawalHandler,
	auth func(http.Handler) http.Handler,
	log *zap.Logger,
) {
	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Get("/api/user/balance", ledgerHandler.GetBalance)
		r.Get("/api/user/transactions", ledgerHandler.ListTransactions)

		r.Post("/api/withdrawals", withdrawalHandler.RequestWithdrawal)
		r.Get("/api/user/withdrawals", withdrawalHandler.ListMyWithdrawals)
	})

	r.Route("/api/staff/withdrawals", func(r chi.Router) {
		r.Use(auth)
		r.Use(middleware.Staff(log))

		r.Get("/", withdrawalHandler.ListWithdrawals)
		r.Put("/{id}/approve", withdrawalHandler.ApproveWithdrawal)
		r.Put("/{id}/reject", withdrawalHandler.RejectWithdrawal)
		r.Put("/{id}/process", withdrawalHandler.ProcessWithdrawal)
	})
}
