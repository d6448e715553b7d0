package response

import (
	"time"

	"car-rental/internal/data/entity"

	"github.com/google/uuid"
)

type TransactionResponse struct {
	ID           string                   `json:"id"`
	Type         entity.TransactionType   `json:"type"`
	Status       entity.TransactionStatus `json:"status"`
	FromUserID   *string                  `json:"from_user_id,omitempty"`
	ToUserID     *string                  `json:"to_user_id,omitempty"`
	BookingID    *string                  `json:"booking_id,omitempty"`
	Amount       int64                    `json:"amount"`
	BalanceAfter int64                    `json:"balance_after"`
	Description  string                   `json:"description,omitempty"`
	ProofURL     *string                  `json:"proof_url,omitempty"`
	CreatedAt    time.Time                `json:"created_at"`
}

type WithdrawalResponse struct {
	ID            string                  `json:"id"`
	UserID        string                  `json:"user_id"`
	BankAccountID string                  `json:"bank_account_id"`
	Amount        int64                   `json:"amount"`
	Status        entity.WithdrawalStatus `json:"status"`
	TransactionID *string                 `json:"transaction_id,omitempty"`
	AdminNote     *string                 `json:"admin_note,omitempty"`
	ProcessedBy   *string                 `json:"processed_by,omitempty"`
	ProcessedAt   *time.Time              `json:"processed_at,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

func idString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func TransactionToResponse(t *entity.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:           t.ID.String(),
		Type:         t.Type,
		Status:       t.Status,
		FromUserID:   idString(t.FromUserID),
		ToUserID:     idString(t.ToUserID),
		BookingID:    idString(t.BookingID),
		Amount:       t.Amount,
		BalanceAfter: t.BalanceAfter,
		Description:  t.Description,
		ProofURL:     t.ProofURL,
		CreatedAt:    t.CreatedAt,
	}
}

func TransactionsToResponse(txs []*entity.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, TransactionToResponse(t))
	}
	return out
}

func WithdrawalToResponse(w *entity.WithdrawalRequest) WithdrawalResponse {
	return WithdrawalResponse{
		ID:            w.ID.String(),
		UserID:        w.UserID.String(),
		BankAccountID: w.BankAccountID.String(),
		Amount:        w.Amount,
		Status:        w.Status,
		TransactionID: idString(w.TransactionID),
		AdminNote:     w.AdminNote,
		ProcessedBy:   idString(w.ProcessedBy),
		ProcessedAt:   w.ProcessedAt,
		CreatedAt:     w.CreatedAt,
		UpdatedAt:     w.UpdatedAt,
	}
}

func WithdrawalsToResponse(items []*entity.WithdrawalRequest) []WithdrawalResponse {
	out := make([]WithdrawalResponse, 0, len(items))
	for _, w := range items {
		out = append(out, WithdrawalToResponse(w))
	}
	return out
}
