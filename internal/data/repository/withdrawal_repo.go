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

type WithdrawalFilter struct {
	UserID *uuid.UUID
	Status *entity.WithdrawalStatus
	Scope  Scope
}

type WithdrawalRepository interface {
	Create(ctx context.Context, w *entity.WithdrawalRequest) error
	FindByID(ctx context.Context, id uuid.UUID, scope Scope) (*entity.WithdrawalRequest, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.WithdrawalRequest, error)
	// Update persists processing details; status goes through UpdateStatus.
	Update(ctx context.Context, w *entity.WithdrawalRequest) error
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.WithdrawalStatus, at time.Time) error
	List(ctx context.Context, filter WithdrawalFilter, limit, offset int) ([]*entity.WithdrawalRequest, error)
	Count(ctx context.Context, filter WithdrawalFilter) (int64, error)
	// SumReserved totals the user's pending and approved requests.
	SumReserved(ctx context.Context, userID uuid.UUID) (int64, error)
}

type withdrawalRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewWithdrawalRepository(db database.Querier, log *zap.Logger) WithdrawalRepository {
	return &withdrawalRepository{
		db:  db,
		log: log.With(zap.String("repository", "withdrawal")),
	}
}

const withdrawalColumns = `id, user_id, bank_account_id, amount, status, transaction_id, admin_note,
	processed_by, processed_at, created_at, updated_at, is_deleted, deleted_at`

func scanWithdrawal(row pgx.Row) (*entity.WithdrawalRequest, error) {
	var w entity.WithdrawalRequest
	err := row.Scan(
		&w.ID,
		&w.UserID,
		&w.BankAccountID,
		&w.Amount,
		&w.Status,
		&w.TransactionID,
		&w.AdminNote,
		&w.ProcessedBy,
		&w.ProcessedAt,
		&w.CreatedAt,
		&w.UpdatedAt,
		&w.IsDeleted,
		&w.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *withdrawalRepository) Create(ctx context.Context, w *entity.WithdrawalRequest) error {
	query := `
		INSERT INTO withdrawal_requests (id, user_id, bank_account_id, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query, w.ID, w.UserID, w.BankAccountID, w.Amount, w.Status, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		r.log.Error("Failed to create withdrawal request",
			zap.Error(err),
			zap.String("user_id", w.UserID.String()),
			zap.Int64("amount", w.Amount),
		)
		return mapPgError(fmt.Errorf("create withdrawal request: %w", err))
	}

	return nil
}

func (r *withdrawalRepository) FindByID(ctx context.Context, id uuid.UUID, scope Scope) (*entity.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1` + scope.predicate("")

	w, err := scanWithdrawal(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find withdrawal", zap.Error(err), zap.String("withdrawal_id", id.String()))
		return nil, fmt.Errorf("find withdrawal %s: %w", id, err)
	}

	return w, nil
}

func (r *withdrawalRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.WithdrawalRequest, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawal_requests WHERE id = $1 AND is_deleted = FALSE FOR UPDATE`

	w, err := scanWithdrawal(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to lock withdrawal", zap.Error(err), zap.String("withdrawal_id", id.String()))
		return nil, fmt.Errorf("lock withdrawal %s: %w", id, err)
	}

	return w, nil
}

func (r *withdrawalRepository) Update(ctx context.Context, w *entity.WithdrawalRequest) error {
	query := `
		UPDATE withdrawal_requests
		SET transaction_id = $2, admin_note = $3, processed_by = $4, processed_at = $5, updated_at = $6
		WHERE id = $1 AND is_deleted = FALSE
	`

	tag, err := r.db.Exec(ctx, query, w.ID, w.TransactionID, w.AdminNote, w.ProcessedBy, w.ProcessedAt, w.UpdatedAt)
	if err != nil {
		r.log.Error("Failed to update withdrawal", zap.Error(err), zap.String("withdrawal_id", w.ID.String()))
		return fmt.Errorf("update withdrawal %s: %w", w.ID, err)
	}

	return expectOne(tag, "withdrawal %s not found", w.ID)
}

func (r *withdrawalRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.WithdrawalStatus, at time.Time) error {
	query := `
		UPDATE withdrawal_requests
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2 AND is_deleted = FALSE
	`

	tag, err := r.db.Exec(ctx, query, id, from, to, at)
	if err != nil {
		r.log.Error("Failed to update withdrawal status", zap.Error(err), zap.String("withdrawal_id", id.String()))
		return fmt.Errorf("update withdrawal %s status: %w", id, err)
	}

	return expectOne(tag, "withdrawal %s is no longer %s", id, from)
}

func (f WithdrawalFilter) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.UserID != nil {
		args = append(args, *f.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
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

func (r *withdrawalRepository) List(ctx context.Context, filter WithdrawalFilter, limit, offset int) ([]*entity.WithdrawalRequest, error) {
	where, args := filter.where()
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT %s FROM withdrawal_requests
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, withdrawalColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to list withdrawals", zap.Error(err))
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	defer rows.Close()

	var result []*entity.WithdrawalRequest
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		result = append(result, w)
	}

	return result, rows.Err()
}

func (r *withdrawalRepository) Count(ctx context.Context, filter WithdrawalFilter) (int64, error) {
	where, args := filter.where()

	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM withdrawal_requests `+where, args...).Scan(&count); err != nil {
		r.log.Error("Failed to count withdrawals", zap.Error(err))
		return 0, fmt.Errorf("count withdrawals: %w", err)
	}

	return count, nil
}

func (r *withdrawalRepository) SumReserved(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM withdrawal_requests
		WHERE user_id = $1 AND status IN ('pending', 'approved') AND is_deleted = FALSE
	`

	var sum int64
	if err := r.db.QueryRow(ctx, query, userID).Scan(&sum); err != nil {
		r.log.Error("Failed to sum reserved withdrawals", zap.Error(err), zap.String("user_id", userID.String()))
		return 0, fmt.Errorf("sum reserved withdrawals for user %s: %w", userID, err)
	}

	return sum, nil
}
