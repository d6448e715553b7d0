package entity

import "github.com/google/uuid"

type TransactionType string

const (
	TransactionBookingPayment     TransactionType = "booking_payment"
	TransactionExtensionPayment   TransactionType = "extension_payment"
	TransactionExcessFeePayment   TransactionType = "excess_fee_payment"
	TransactionOwnerPayout        TransactionType = "owner_payout"
	TransactionPlatformFee        TransactionType = "platform_fee"
	TransactionRefund             TransactionType = "refund"
	TransactionWithdrawalPayout   TransactionType = "withdrawal_payout"
	TransactionCompensationPayout TransactionType = "compensation_payout"
)

// Posting describes which legs of a transaction move available balances.
// External legs (gateway, bank) and escrow legs do not.
type Posting struct {
	DebitsFromBalance bool
	CreditsToBalance  bool
}

var postings = map[TransactionType]Posting{
	TransactionBookingPayment:     {},
	TransactionExtensionPayment:   {},
	TransactionExcessFeePayment:   {},
	TransactionOwnerPayout:        {CreditsToBalance: true},
	TransactionPlatformFee:        {},
	TransactionRefund:             {CreditsToBalance: true},
	TransactionWithdrawalPayout:   {DebitsFromBalance: true},
	TransactionCompensationPayout: {DebitsFromBalance: true, CreditsToBalance: true},
}

func (t TransactionType) Posting() Posting {
	return postings[t]
}

func (t TransactionType) IsValid() bool {
	_, ok := postings[t]
	return ok
}

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

// Transaction is an immutable ledger entry. Corrections are new offsetting rows.
type Transaction struct {
	BaseSimple
	FromUserID    *uuid.UUID        `db:"from_user_id"`
	ToUserID      *uuid.UUID        `db:"to_user_id"`
	BookingID     *uuid.UUID        `db:"booking_id"`
	BankAccountID *uuid.UUID        `db:"bank_account_id"`
	Type          TransactionType   `db:"type"`
	Status        TransactionStatus `db:"status"`
	Amount        int64             `db:"amount"`
	BalanceAfter  int64             `db:"balance_after"`
	Description   string            `db:"description"`
	ProofURL      *string           `db:"proof_url"`
}

// SignedAmountFor returns the effect of t on userID's available balance.
func (t *Transaction) SignedAmountFor(userID uuid.UUID) int64 {
	p := t.Type.Posting()
	var delta int64
	if p.DebitsFromBalance && t.FromUserID != nil && *t.FromUserID == userID {
		delta -= t.Amount
	}
	if p.CreditsToBalance && t.ToUserID != nil && *t.ToUserID == userID {
		delta += t.Amount
	}
	return delta
}
