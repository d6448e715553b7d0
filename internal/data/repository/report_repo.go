package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"car-rental/internal/data/entity"
	"car-rental/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type ReportFilter struct {
	BookingID *uuid.UUID
	Status    *entity.ReportStatus
	Scope     Scope
}

type ReportRepository interface {
	Create(ctx context.Context, report *entity.BookingReport) error
	FindByID(ctx context.Context, id uuid.UUID, scope Scope) (*entity.BookingReport, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.BookingReport, error)
	// Update persists resolution and compensation details; status goes
	// through UpdateStatus.
	Update(ctx context.Context, report *entity.BookingReport) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.ReportStatus, at time.Time) error
	List(ctx context.Context, filter ReportFilter, limit, offset int) ([]*entity.BookingReport, error)
	Count(ctx context.Context, filter ReportFilter) (int64, error)
}

type reportRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewReportRepository(db database.Querier, log *zap.Logger) ReportRepository {
	return &reportRepository{
		db:  db,
		log: log.With(zap.String("repository", "report")),
	}
}

const reportColumns = `id, booking_id, reporter_id, report_type, description, status,
	compensation_amount, compensation_user_id, compensation_claimant_id, is_compensation_paid,
	compensation_paid_at, compensation_proof_url, compensation_transaction_id, resolution_note,
	resolved_by, resolved_at, created_at, updated_at, is_deleted, deleted_at`

func scanReport(row pgx.Row) (*entity.BookingReport, error) {
	var rp entity.BookingReport
	err := row.Scan(
		&rp.ID,
		&rp.BookingID,
		&rp.ReporterID,
		&rp.ReportType,
		&rp.Description,
		&rp.Status,
		&rp.CompensationAmount,
		&rp.CompensationUserID,
		&rp.CompensationClaimantID,
		&rp.IsCompensationPaid,
		&rp.CompensationPaidAt,
		&rp.CompensationProofURL,
		&rp.CompensationTransactionID,
		&rp.ResolutionNote,
		&rp.ResolvedBy,
		&rp.ResolvedAt,
		&rp.CreatedAt,
		&rp.UpdatedAt,
		&rp.IsDeleted,
		&rp.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rp, nil
}

func (r *reportRepository) Create(ctx context.Context, rp *entity.BookingReport) error {
	query := `
		INSERT INTO booking_reports (id, booking_id, reporter_id, report_type, description, status,
		                             created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(ctx, query, rp.ID, rp.BookingID, rp.ReporterID, rp.ReportType, rp.Description, rp.Status, rp.CreatedAt, rp.UpdatedAt)
	if err != nil {
		r.log.Error("Failed to create report", zap.Error(err), zap.String("booking_id", rp.BookingID.String()))
		return mapPgError(fmt.Errorf("create report for booking %s: %w", rp.BookingID, err))
	}

	return nil
}

func (r *reportRepository) FindByID(ctx context.Context, id uuid.UUID, scope Scope) (*entity.BookingReport, error) {
	query := `SELECT ` + reportColumns + ` FROM booking_reports WHERE id = $1` + scope.predicate("")

	rp, err := scanReport(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find report", zap.Error(err), zap.String("report_id", id.String()))
		return nil, fmt.Errorf("find report %s: %w", id, err)
	}

	return rp, nil
}

func (r *reportRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.BookingReport, error) {
	query := `SELECT ` + reportColumns + ` FROM booking_reports WHERE id = $1 AND is_deleted = FALSE FOR UPDATE`

	rp, err := scanReport(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to lock report", zap.Error(err), zap.String("report_id", id.String()))
		return nil, fmt.Errorf("lock report %s: %w", id, err)
	}

	return rp, nil
}

func (r *reportRepository) Update(ctx context.Context, rp *entity.BookingReport) error {
	query := `
		UPDATE booking_reports SET
			compensation_amount = $2, compensation_user_id = $3, compensation_claimant_id = $4,
			is_compensation_paid = $5, compensation_paid_at = $6, compensation_proof_url = $7,
			compensation_transaction_id = $8, resolution_note = $9, resolved_by = $10,
			resolved_at = $11, updated_at = $12
		WHERE id = $1 AND is_deleted = FALSE
	`

	tag, err := r.db.Exec(ctx, query,
		rp.ID,
		rp.CompensationAmount,
		rp.CompensationUserID,
		rp.CompensationClaimantID,
		rp.IsCompensationPaid,
		rp.CompensationPaidAt,
		rp.CompensationProofURL,
		rp.CompensationTransactionID,
		rp.ResolutionNote,
		rp.ResolvedBy,
		rp.ResolvedAt,
		rp.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to update report", zap.Error(err), zap.String("report_id", rp.ID.String()))
		return fmt.Errorf("update report %s: %w", rp.ID, err)
	}

	return expectOne(tag, "report %s not found", rp.ID)
}

func (r *reportRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.ReportStatus, at time.Time) error {
	query := `
		UPDATE booking_reports
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2 AND is_deleted = FALSE
	`

	tag, err := r.db.Exec(ctx, query, id, from, to, at)
	if err != nil {
		r.log.Error("Failed to update report status", zap.Error(err), zap.String("report_id", id.String()))
		return fmt.Errorf("update report %s status: %w", id, err)
	}

	return expectOne(tag, "report %s is no longer %s", id, from)
}

func (f ReportFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.BookingID != nil {
		args = append(args, *f.BookingID)
		conds = append(conds, fmt.Sprintf("booking_id = $%d", len(args)))
	}
	if f.Status != nil {
		args = append(args, *f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	where := "WHERE TRUE"
	if len(conds) > 0 {
		where += " AND " + strings.Join(conds, " AND ")
	}
	return where + f.Scope.predicate(""), args
}

func (r *reportRepository) List(ctx context.Context, filter ReportFilter, limit, offset int) ([]*entity.BookingReport, error) {
	where, args := filter.where()
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT %s FROM booking_reports
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, reportColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to list reports", zap.Error(err))
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var result []*entity.BookingReport
	for rows.Next() {
		rp, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		result = append(result, rp)
	}

	return result, rows.Err()
}

func (r *reportRepository) Count(ctx context.Context, filter ReportFilter) (int64, error) {
	where, args := filter.where()

	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM booking_reports `+where, args...).Scan(&count); err != nil {
		r.log.Error("Failed to count reports", zap.Error(err))
		return 0, fmt.Errorf("count reports: %w", err)
	}

	return count, nil
}
