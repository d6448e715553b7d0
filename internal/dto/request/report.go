package request

type FileReportRequest struct {
	BookingID   string `json:"booking_id" validate:"required,uuid4"`
	Type        string `json:"report_type" validate:"required,oneof=damage late_return no_show dirty other"`
	Description string `json:"description" validate:"max=2000"`
}

type ResolveReportRequest struct {
	Note         string               `json:"note" validate:"max=1000"`
	Compensation *CompensationRequest `json:"compensation,omitempty" validate:"omitempty"`
}

type CompensationRequest struct {
	Amount        int64   `json:"amount" validate:"required,gt=0"`
	ChargedUserID string  `json:"charged_user_id" validate:"required,uuid4"`
	ClaimantID    *string `json:"claimant_id,omitempty" validate:"omitempty,uuid4"`
	ProofURL      string  `json:"proof_url" validate:"omitempty,url"`
}

type RejectReportRequest struct {
	Note string `json:"note" validate:"max=1000"`
}
