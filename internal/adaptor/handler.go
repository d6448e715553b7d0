package adaptor

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"car-rental/internal/data/entity"
	"car-rental/internal/dto/request"
	"car-rental/internal/usecase"
	"car-rental/pkg/apperror"
	"car-rental/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Handler struct {
	Booking      *BookingHandler
	Availability *AvailabilityHandler
	Ledger       *LedgerHandler
	Withdrawal   *WithdrawalHandler
	Report       *ReportHandler
	Payment      *PaymentHandler
}

func NewHandler(service *usecase.Service, log *zap.Logger) *Handler {
	return &Handler{
		Booking:      NewBookingHandler(service.Booking, service.Extension, log),
		Availability: NewAvailabilityHandler(service.Availability, log),
		Ledger:       NewLedgerHandler(service.Ledger, log),
		Withdrawal:   NewWithdrawalHandler(service.Withdrawal, log),
		Report:       NewReportHandler(service.Report, log),
		Payment:      NewPaymentHandler(service.Payment, log),
	}
}

// actorFrom builds the caller from the auth middleware's context values.
func actorFrom(w http.ResponseWriter, r *http.Request) (usecase.Actor, bool) {
	userID, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
		return usecase.Actor{}, false
	}
	role, _ := utils.GetRoleFromContext(r.Context())
	return usecase.Actor{UserID: userID, Role: entity.UserRole(role)}, true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		utils.ResponseBadRequest(w, "Invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}

// decodeAndValidate reads a JSON body into req and runs its validate tags.
// An empty body is accepted when allowEmpty is set.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, req any, allowEmpty bool) bool {
	err := json.NewDecoder(r.Body).Decode(req)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF) && allowEmpty:
	case errors.Is(err, io.EOF):
		utils.ResponseBadRequest(w, "Request body is required", nil)
		return false
	default:
		utils.ResponseBadRequest(w, "Invalid request body", nil)
		return false
	}

	if validationErrors := utils.ValidateStruct(req); len(validationErrors) > 0 {
		utils.ResponseBadRequest(w, "Validation failed", validationErrors)
		return false
	}
	return true
}

func pageFrom(r *http.Request) request.PaginatedRequest {
	query := r.URL.Query()
	return request.PaginatedRequest{
		Page:    utils.ParseInt(query.Get("page"), 1),
		PerPage: utils.ParseInt(query.Get("per_page"), 10),
	}
}

// handleServiceError maps the error kind to a status code. Client mistakes
// are logged at warn, everything else at error.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	kind := apperror.KindOf(err)
	fields := []zap.Field{zap.Error(err), zap.String("operation", operation), zap.String("kind", string(kind))}

	switch kind {
	case apperror.KindNotFound:
		log.Warn(operation+" failed - not found", fields...)
		utils.ResponseNotFound(w, err.Error())
	case apperror.KindForbidden:
		log.Warn(operation+" failed - forbidden", fields...)
		utils.ResponseForbidden(w, err.Error())
	case apperror.KindConflict, apperror.KindInvalidStateTransition:
		log.Warn(operation+" failed - conflict", fields...)
		utils.ResponseConflict(w, err.Error(), map[string]string{"kind": string(kind)})
	case apperror.KindInsufficientFunds:
		log.Warn(operation+" failed - insufficient funds", fields...)
		utils.ResponseUnprocessable(w, err.Error())
	case apperror.KindValidation:
		log.Warn(operation+" validation failed", fields...)
		utils.ResponseBadRequest(w, err.Error(), apperror.FieldsOf(err))
	case apperror.KindGateway:
		log.Error(operation+" failed - payment gateway", fields...)
		utils.ResponseBadGateway(w, "Payment gateway unavailable, please retry")
	default:
		log.Error("Failed to "+operation, fields...)
		utils.ResponseInternalError(w, "Internal server error")
	}
}
