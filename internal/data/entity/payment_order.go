package entity

import (
	"time"

	"github.com/google/uuid"
)

type PaymentPurpose string

const (
	PaymentPurposeBooking   PaymentPurpose = "booking"
	PaymentPurposeExtension PaymentPurpose = "extension"
	PaymentPurposeExcess    PaymentPurpose = "excess"
)

type PaymentOrderStatus string

const (
	PaymentOrderPending   PaymentOrderStatus = "pending"
	PaymentOrderPaid      PaymentOrderStatus = "paid"
	PaymentOrderFailed    PaymentOrderStatus = "failed"
	PaymentOrderCancelled PaymentOrderStatus = "cancelled"
	PaymentOrderRejected  PaymentOrderStatus = "rejected"
)

// PaymentOrder is one hosted checkout issued by the gateway. OrderCode is the
// idempotency key carried back by the webhook.
type PaymentOrder struct {
	OrderCode     int64              `db:"order_code"`
	BookingID     uuid.UUID          `db:"booking_id"`
	Purpose       PaymentPurpose     `db:"purpose"`
	Amount        int64              `db:"amount"`
	Status        PaymentOrderStatus `db:"status"`
	PaymentLinkID *string            `db:"payment_link_id"`
	CheckoutURL   *string            `db:"checkout_url"`
	QRCode        *string            `db:"qr_code"`
	PaidAt        *time.Time         `db:"paid_at"`
	CreatedAt     time.Time          `db:"created_at"`
	UpdatedAt     time.Time          `db:"updated_at"`
}

func (o *PaymentOrder) IsOpen() bool {
	return o.Status == PaymentOrderPending
}
