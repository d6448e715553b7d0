package request

type CreateWithdrawalRequest struct {
	BankAccountID string `json:"bank_account_id" validate:"required,uuid4"`
	Amount        int64  `json:"amount" validate:"required,gt=0"`
}

type ReviewWithdrawalRequest struct {
	Note string `json:"note" validate:"max=500"`
}

type ProcessWithdrawalRequest struct {
	ProofURL string `json:"proof_url" validate:"required,url"`
}
