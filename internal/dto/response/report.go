package response

import (
	"time"

	"car-rental/internal/data/entity"
)

type ReportResponse struct {
	ID                        string              `json:"id"`
	BookingID                 string              `json:"booking_id"`
	ReporterID                string              `json:"reporter_id"`
	ReportType                entity.ReportType   `json:"report_type"`
	Description               string              `json:"description"`
	Status                    entity.ReportStatus `json:"status"`
	CompensationAmount        int64               `json:"compensation_amount,omitempty"`
	CompensationUserID        *string             `json:"compensation_user_id,omitempty"`
	CompensationClaimantID    *string             `json:"compensation_claimant_id,omitempty"`
	IsCompensationPaid        bool                `json:"is_compensation_paid"`
	CompensationPaidAt        *time.Time          `json:"compensation_paid_at,omitempty"`
	CompensationProofURL      *string             `json:"compensation_proof_url,omitempty"`
	CompensationTransactionID *string             `json:"compensation_transaction_id,omitempty"`
	ResolutionNote            *string             `json:"resolution_note,omitempty"`
	ResolvedBy                *string             `json:"resolved_by,omitempty"`
	ResolvedAt                *time.Time          `json:"resolved_at,omitempty"`
	CreatedAt                 time.Time           `json:"created_at"`
}

func ReportToResponse(r *entity.BookingReport) ReportResponse {
	return ReportResponse{
		ID:                        r.ID.String(),
		BookingID:                 r.BookingID.String(),
		ReporterID:                r.ReporterID.String(),
		ReportType:                r.ReportType,
		Description:               r.Description,
		Status:                    r.Status,
		CompensationAmount:        r.CompensationAmount,
		CompensationUserID:        idString(r.CompensationUserID),
		CompensationClaimantID:    idString(r.CompensationClaimantID),
		IsCompensationPaid:        r.IsCompensationPaid,
		CompensationPaidAt:        r.CompensationPaidAt,
		CompensationProofURL:      r.CompensationProofURL,
		CompensationTransactionID: idString(r.CompensationTransactionID),
		ResolutionNote:            r.ResolutionNote,
		ResolvedBy:                idString(r.ResolvedBy),
		ResolvedAt:                r.ResolvedAt,
		CreatedAt:                 r.CreatedAt,
	}
}

func ReportsToResponse(items []*entity.BookingReport) []ReportResponse {
	out := make([]ReportResponse, 0, len(items))
	for _, r := range items {
		out = append(out, ReportToResponse(r))
	}
	return out
}
