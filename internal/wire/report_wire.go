package wire

import (
	"net/http"

	"car-rental/internal/adaptor"
	"car-rental/pkg/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func wireReport(r chi.Router, reportHandler *adaptor.ReportHandler, auth func(http.Handler) http.Handler, log *zap.Logger) {
	r.Group(func(r chi.Router) {
		r.Use(auth)

		r.Post("/api/reports", reportHandler.FileReport)
		r.Get("/api/reports/{id}", reportHandler.GetReport)
	})

	r.Route("/api/staff/reports", func(r chi.Router) {
		r.Use(auth)
		r.Use(middleware.Staff(log))

		r.Get("/", reportHandler.ListReports)
		r.Put("/{id}/resolve", reportHandler.ResolveReport)
		r.Put("/{id}/reject", reportHandler.RejectReport)
	})
}
