package entity

import (
	"time"

	"car-rental/pkg/apperror"

	"github.com/google/uuid"
)

type ReportType string

const (
	ReportTypeDamage     ReportType = "damage"
	ReportTypeLateReturn ReportType = "late_return"
	ReportTypeNoShow     ReportType = "no_show"
	ReportTypeDirty      ReportType = "dirty"
	ReportTypeOther      ReportType = "other"
)

type ReportStatus string

const (
	ReportStatusPending  ReportStatus = "pending"
	ReportStatusResolved ReportStatus = "resolved"
	ReportStatusRejected ReportStatus = "rejected"
)

type BookingReport struct {
	Base
	BookingID                 uuid.UUID    `db:"booking_id"`
	ReporterID                uuid.UUID    `db:"reporter_id"`
	ReportType                ReportType   `db:"report_type"`
	Description               string       `db:"description"`
	Status                    ReportStatus `db:"status"`
	CompensationAmount        int64        `db:"compensation_amount"`
	CompensationUserID        *uuid.UUID   `db:"compensation_user_id"`
	CompensationClaimantID    *uuid.UUID   `db:"compensation_claimant_id"`
	IsCompensationPaid        bool         `db:"is_compensation_paid"`
	CompensationPaidAt        *time.Time   `db:"compensation_paid_at"`
	CompensationProofURL      *string      `db:"compensation_proof_url"`
	CompensationTransactionID *uuid.UUID   `db:"compensation_transaction_id"`
	ResolutionNote            *string      `db:"resolution_note"`
	ResolvedBy                *uuid.UUID   `db:"resolved_by"`
	ResolvedAt                *time.Time   `db:"resolved_at"`
}

// Transition is the single source of truth for report edges:
// pending -> resolved | rejected.
func (r *BookingReport) Transition(next ReportStatus, at time.Time) error {
	if r.Status != ReportStatusPending || (next != ReportStatusResolved && next != ReportStatusRejected) {
		return apperror.InvalidTransition("report %s cannot move from %s to %s", r.ID, r.Status, next)
	}
	r.Status = next
	r.UpdatedAt = at
	return nil
}
