package entity

import (
	"time"

	"car-rental/pkg/apperror"

	"github.com/google/uuid"
)

type WithdrawalStatus string

const (
	WithdrawalStatusPending   WithdrawalStatus = "pending"
	WithdrawalStatusApproved  WithdrawalStatus = "approved"
	WithdrawalStatusRejected  WithdrawalStatus = "rejected"
	WithdrawalStatusProcessed WithdrawalStatus = "processed"
)

var withdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalStatusPending:  {WithdrawalStatusApproved, WithdrawalStatusRejected},
	WithdrawalStatusApproved: {WithdrawalStatusProcessed, WithdrawalStatusRejected},
}

type WithdrawalRequest struct {
	Base
	UserID        uuid.UUID        `db:"user_id"`
	BankAccountID uuid.UUID        `db:"bank_account_id"`
	Amount        int64            `db:"amount"`
	Status        WithdrawalStatus `db:"status"`
	TransactionID *uuid.UUID       `db:"transaction_id"`
	AdminNote     *string          `db:"admin_note"`
	ProcessedBy   *uuid.UUID       `db:"processed_by"`
	ProcessedAt   *time.Time       `db:"processed_at"`
}

func (w *WithdrawalRequest) Transition(next WithdrawalStatus, at time.Time) error {
	for _, allowed := range withdrawalTransitions[w.Status] {
		if allowed == next {
			w.Status = next
			w.UpdatedAt = at
			return nil
		}
	}
	return apperror.InvalidTransition("withdrawal %s cannot move from %s to %s", w.ID, w.Status, next)
}
