package wire

import (
	"net/http"

	"car-rental/internal/adaptor"
	"car-rental/internal/data/repository"
	"car-rental/internal/usecase"
	"car-rental/pkg/middleware"
	"car-rental/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// App holds the wired router and the services behind it. The scheduler
// drives the same services.
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

// Wiring builds services and handlers and mounts every route. limiter may be
// nil, which disables rate limiting.
func Wiring(
	repo *repository.Repository,
	config *utils.Config,
	logger *zap.Logger,
	deps usecase.Dependencies,
	limiter middleware.Limiter,
) *App {
	service := usecase.NewService(repo, config, logger, deps)
	handler := adaptor.NewHandler(service, logger)

	router := setupRouter(handler, config, limiter, logger)

	return &App{
		Router:  router,
		Service: service,
	}
}

func setupRouter(
	handler *adaptor.Handler,
	config *utils.Config,
	limiter middleware.Limiter,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS())

	auth := middleware.Auth(config.JWT.Secret, logger)

	wireBooking(r, handler.Booking, auth, config, limiter, logger)
	wireAvailability(r, handler.Availability, auth)
	wireLedger(r, handler.Ledger, handler.Withdrawal, auth, logger)
	wireReport(r, handler.Report, auth, logger)
	wirePayment(r, handler.Payment, config, limiter, logger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return r
}
