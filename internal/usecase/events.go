package usecase

import (
	"context"
	"time"

	"car-rental/pkg/rabbitmq"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	EventBookingCreated       = "booking.created"
	EventBookingApproved      = "booking.approved"
	EventBookingRejected      = "booking.rejected"
	EventBookingCancelled     = "booking.cancelled"
	EventBookingPaid          = "booking.paid"
	EventBookingStarted       = "booking.started"
	EventBookingExpired       = "booking.expired"
	EventBookingReturned      = "booking.returned"
	EventBookingCompleted     = "booking.completed"
	EventBookingExtensionPaid = "booking.extension_paid"
	EventReportResolved       = "report.resolved"
	EventReportRejected       = "report.rejected"
	EventWithdrawalProcessed  = "withdrawal.processed"
)

// Event is the message body published for every lifecycle change.
type Event struct {
	Type       string    `json:"type"`
	EntityID   uuid.UUID `json:"entity_id"`
	Status     string    `json:"status,omitempty"`
	Amount     int64     `json:"amount,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type eventPublisher struct {
	publisher rabbitmq.Publisher
	log       *zap.Logger
}

// publish is called after commit. Failures are logged and never returned.
func (p *eventPublisher) publish(ctx context.Context, evt Event) {
	if p == nil || p.publisher == nil {
		return
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = time.Now().UTC()
	}
	if err := p.publisher.Publish(ctx, evt.Type, evt); err != nil {
		p.log.Warn("Failed to publish event",
			zap.String("event", evt.Type),
			zap.String("entity_id", evt.EntityID.String()),
			zap.Error(err),
		)
	}
}
