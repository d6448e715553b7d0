package usecase

import (
	"context"
	"fmt"
	"strings"

	"car-rental/internal/data/entity"
	"car-rental/internal/data/repository"
	"car-rental/pkg/apperror"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReportService interface {
	FileReport(ctx context.Context, actor Actor, in FileReportInput) (*entity.BookingReport, error)
	GetReport(ctx context.Context, actor Actor, id uuid.UUID) (*entity.BookingReport, error)

	// Staff
	ListReports(ctx context.Context, actor Actor, bookingID *uuid.UUID, status *entity.ReportStatus, limit, offset int) ([]*entity.BookingReport, int64, error)
	ResolveReport(ctx context.Context, actor Actor, id uuid.UUID, in ResolveReportInput) (*entity.BookingReport, error)
	RejectReport(ctx context.Context, actor Actor, id uuid.UUID, note string) (*entity.BookingReport, error)
}

type FileReportInput struct {
	BookingID   uuid.UUID
	Type        entity.ReportType
	Description string
}

type ResolveReportInput struct {
	Note         string
	Compensation *Compensation
}

// Compensation moves Amount from the charged party to the claimant. A nil
// ClaimantID pays the platform.
type Compensation struct {
	Amount        int64
	ChargedUserID uuid.UUID
	ClaimantID    *uuid.UUID
	ProofURL      string
}

type reportService struct {
	base
	ledger *ledgerEngine
}

func validReportType(t entity.ReportType) bool {
	switch t {
	case entity.ReportTypeDamage, entity.ReportTypeLateReturn, entity.ReportTypeNoShow,
		entity.ReportTypeDirty, entity.ReportTypeOther:
		return true
	}
	return false
}

// wasApproved reports whether the booking reached approval at some point.
// A cancelled booking counts only when it had been approved first, which is
// when a payment order code is assigned.
func wasApproved(b *entity.Booking) bool {
	switch b.Status {
	case entity.BookingStatusApproved, entity.BookingStatusInProgress, entity.BookingStatusCompleted:
		return true
	case entity.BookingStatusCancelled:
		return b.PaymentOrderCode != nil
	}
	return false
}

func (s *reportService) FileReport(ctx context.Context, actor Actor, in FileReportInput) (*entity.BookingReport, error) {
	if !validReportType(in.Type) {
		return nil, apperror.Validation("unknown report type %q", in.Type)
	}

	booking, car, err := s.loadBooking(ctx, in.BookingID)
	if err != nil {
		return nil, fmt.Errorf("file report: %w", err)
	}
	if !s.auth.IsRenter(actor, booking) && !s.auth.IsCarOwner(actor, car) {
		return nil, apperror.Forbidden("only the renter or the car owner can report booking %s", booking.ID)
	}
	if !wasApproved(booking) {
		return nil, apperror.InvalidTransition("booking %s is %s and cannot be reported", booking.ID, booking.Status)
	}

	now := s.clock()
	report := &entity.BookingReport{
		Base:        entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
		BookingID:   booking.ID,
		ReporterID:  actor.UserID,
		ReportType:  in.Type,
		Description: strings.TrimSpace(in.Description),
		Status:      entity.ReportStatusPending,
	}
	if err := s.repo.Report.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("file report: %w", err)
	}

	s.log.Info("Report filed",
		zap.String("report_id", report.ID.String()),
		zap.String("booking_id", booking.ID.String()),
		zap.String("type", string(report.ReportType)),
	)
	return report, nil
}

func (s *reportService) GetReport(ctx context.Context, actor Actor, id uuid.UUID) (*entity.BookingReport, error) {
	report, err := s.repo.Report.FindByID(ctx, id, repository.ExcludeDeleted)
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	if report == nil {
		return nil, apperror.NotFound("report %s not found", id)
	}
	if report.ReporterID == actor.UserID || s.auth.IsStaff(actor) {
		return report, nil
	}

	booking, car, err := s.loadBooking(ctx, report.BookingID)
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	if err := s.auth.RequireParty(actor, booking, car); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *reportService) ListReports(ctx context.Context, actor Actor, bookingID *uuid.UUID, status *entity.ReportStatus, limit, offset int) ([]*entity.BookingReport, int64, error) {
	if err := s.auth.RequireStaff(actor); err != nil {
		return nil, 0, err
	}

	filter := repository.ReportFilter{BookingID: bookingID, Status: status}
	reports, err := s.repo.Report.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}
	total, err := s.repo.Report.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}
	return reports, total, nil
}

func (s *reportService) ResolveReport(ctx context.Context, actor Actor, id uuid.UUID, in ResolveReportInput) (*entity.BookingReport, error) {
	if err := s.auth.RequireStaff(actor); err != nil {
		return nil, err
	}
	if c := in.Compensation; c != nil {
		if c.Amount <= 0 {
			return nil, apperror.Validation("compensation amount must be positive")
		}
		if c.ClaimantID != nil && *c.ClaimantID == c.ChargedUserID {
			return nil, apperror.Validation("charged user and claimant must differ")
		}
	}

	var report *entity.BookingReport
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		var err error
		report, err = s.lockReport(ctx, tx, id)
		if err != nil {
			return err
		}

		now := s.clock()
		if err := report.Transition(entity.ReportStatusResolved, now); err != nil {
			return err
		}

		if c := in.Compensation; c != nil {
			booking, err := tx.Booking.FindByID(ctx, report.BookingID, repository.IncludeDeleted)
			if err != nil {
				return err
			}
			if booking == nil {
				return apperror.NotFound("booking %s not found", report.BookingID)
			}
			car, err := tx.Car.FindByID(ctx, booking.CarID, repository.IncludeDeleted)
			if err != nil {
				return err
			}
			if !isParty(c.ChargedUserID, booking, car) {
				return apperror.Validation("charged user is not a party to booking %s", booking.ID)
			}
			if c.ClaimantID != nil && !isParty(*c.ClaimantID, booking, car) {
				return apperror.Validation("claimant is not a party to booking %s", booking.ID)
			}

			var proof *string
			if p := strings.TrimSpace(c.ProofURL); p != "" {
				proof = &p
			}
			charged := c.ChargedUserID
			record, err := s.ledger.ApplyTransaction(ctx, tx, TransactionInput{
				Type:        entity.TransactionCompensationPayout,
				FromUserID:  &charged,
				ToUserID:    c.ClaimantID,
				BookingID:   &booking.ID,
				Amount:      c.Amount,
				Description: fmt.Sprintf("Compensation for report %s", report.ID),
				ProofURL:    proof,
			})
			if err != nil {
				return err
			}

			report.CompensationAmount = c.Amount
			report.CompensationUserID = &charged
			report.CompensationClaimantID = c.ClaimantID
			report.IsCompensationPaid = true
			report.CompensationPaidAt = &now
			report.CompensationProofURL = proof
			report.CompensationTransactionID = &record.ID
		}

		s.stamp(report, actor, in.Note)
		if err := tx.Report.UpdateStatus(ctx, report.ID, entity.ReportStatusPending, report.Status, now); err != nil {
			return err
		}
		return tx.Report.Update(ctx, report)
	})
	if err != nil {
		s.log.Warn("Failed to resolve report", zap.String("report_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("resolve report %s: %w", id, err)
	}

	s.log.Info("Report resolved",
		zap.String("report_id", report.ID.String()),
		zap.Int64("compensation", report.CompensationAmount),
	)
	s.events.publish(ctx, Event{
		Type:       EventReportResolved,
		EntityID:   report.ID,
		Status:     string(report.Status),
		Amount:     report.CompensationAmount,
		OccurredAt: report.UpdatedAt,
	})
	return report, nil
}

func (s *reportService) RejectReport(ctx context.Context, actor Actor, id uuid.UUID, note string) (*entity.BookingReport, error) {
	if err := s.auth.RequireStaff(actor); err != nil {
		return nil, err
	}

	var report *entity.BookingReport
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		var err error
		report, err = s.lockReport(ctx, tx, id)
		if err != nil {
			return err
		}

		now := s.clock()
		if err := report.Transition(entity.ReportStatusRejected, now); err != nil {
			return err
		}
		s.stamp(report, actor, note)
		if err := tx.Report.UpdateStatus(ctx, report.ID, entity.ReportStatusPending, report.Status, now); err != nil {
			return err
		}
		return tx.Report.Update(ctx, report)
	})
	if err != nil {
		return nil, fmt.Errorf("reject report %s: %w", id, err)
	}

	s.log.Info("Report rejected", zap.String("report_id", report.ID.String()))
	s.events.publish(ctx, Event{Type: EventReportRejected, EntityID: report.ID, Status: string(report.Status), OccurredAt: report.UpdatedAt})
	return report, nil
}

func (s *reportService) stamp(report *entity.BookingReport, actor Actor, note string) {
	if note = strings.TrimSpace(note); note != "" {
		report.ResolutionNote = &note
	}
	resolver := actor.UserID
	at := report.UpdatedAt
	report.ResolvedBy = &resolver
	report.ResolvedAt = &at
}

func (s *reportService) lockReport(ctx context.Context, tx *repository.Repository, id uuid.UUID) (*entity.BookingReport, error) {
	report, err := tx.Report.FindByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, apperror.NotFound("report %s not found", id)
	}
	return report, nil
}

func (s *reportService) loadBooking(ctx context.Context, id uuid.UUID) (*entity.Booking, *entity.Car, error) {
	booking, err := s.repo.Booking.FindByID(ctx, id, repository.ExcludeDeleted)
	if err != nil {
		return nil, nil, err
	}
	if booking == nil {
		return nil, nil, apperror.NotFound("booking %s not found", id)
	}
	car, err := s.repo.Car.FindByID(ctx, booking.CarID, repository.IncludeDeleted)
	if err != nil {
		return nil, nil, err
	}
	return booking, car, nil
}

func isParty(userID uuid.UUID, booking *entity.Booking, car *entity.Car) bool {
	return booking.RenterID == userID || (car != nil && car.OwnerID == userID)
}
