package repository

import (
	"context"
	"errors"
	"fmt"

	"car-rental/internal/data/entity"
	"car-rental/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// TransactionRepository is append-only: ledger rows are never updated.
type TransactionRepository interface {
	Create(ctx context.Context, tx *entity.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Transaction, error)
	FindByBooking(ctx context.Context, bookingID uuid.UUID) ([]*entity.Transaction, error)
	FindByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Transaction, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type transactionRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewTransactionRepository(db database.Querier, log *zap.Logger) TransactionRepository {
	return &transactionRepository{
		db:  db,
		log: log.With(zap.String("repository", "transaction")),
	}
}

const transactionColumns = `id, from_user_id, to_user_id, booking_id, bank_account_id, type, status,
	amount, balance_after, description, proof_url, created_at`

func scanTransaction(row pgx.Row) (*entity.Transaction, error) {
	var t entity.Transaction
	err := row.Scan(
		&t.ID,
		&t.FromUserID,
		&t.ToUserID,
		&t.BookingID,
		&t.BankAccountID,
		&t.Type,
		&t.Status,
		&t.Amount,
		&t.BalanceAfter,
		&t.Description,
		&t.ProofURL,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transactionRepository) Create(ctx context.Context, t *entity.Transaction) error {
	query := `
		INSERT INTO transactions (id, from_user_id, to_user_id, booking_id, bank_account_id, type,
		                          status, amount, balance_after, description, proof_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.Exec(ctx, query,
		t.ID,
		t.FromUserID,
		t.ToUserID,
		t.BookingID,
		t.BankAccountID,
		t.Type,
		t.Status,
		t.Amount,
		t.BalanceAfter,
		t.Description,
		t.ProofURL,
		t.CreatedAt,
	)
	if err != nil {
		r.log.Error("Failed to insert transaction",
			zap.Error(err),
			zap.String("type", string(t.Type)),
			zap.Int64("amount", t.Amount),
		)
		return mapPgError(fmt.Errorf("insert %s transaction: %w", t.Type, err))
	}

	return nil
}

func (r *transactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	t, err := scanTransaction(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find transaction", zap.Error(err), zap.String("transaction_id", id.String()))
		return nil, fmt.Errorf("find transaction %s: %w", id, err)
	}

	return t, nil
}

func (r *transactionRepository) collect(rows pgx.Rows) ([]*entity.Transaction, error) {
	defer rows.Close()

	var txs []*entity.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}

	return txs, rows.Err()
}

func (r *transactionRepository) FindByBooking(ctx context.Context, bookingID uuid.UUID) ([]*entity.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE booking_id = $1 ORDER BY created_at ASC`

	rows, err := r.db.Query(ctx, query, bookingID)
	if err != nil {
		r.log.Error("Failed to list booking transactions", zap.Error(err), zap.String("booking_id", bookingID.String()))
		return nil, fmt.Errorf("list transactions for booking %s: %w", bookingID, err)
	}

	return r.collect(rows)
}

func (r *transactionRepository) FindByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*entity.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE from_user_id = $1 OR to_user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		r.log.Error("Failed to list user transactions", zap.Error(err), zap.String("user_id", userID.String()))
		return nil, fmt.Errorf("list transactions for user %s: %w", userID, err)
	}

	return r.collect(rows)
}

func (r *transactionRepository) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM transactions WHERE from_user_id = $1 OR to_user_id = $1`

	var count int64
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		r.log.Error("Failed to count user transactions", zap.Error(err), zap.String("user_id", userID.String()))
		return 0, fmt.Errorf("count transactions for user %s: %w", userID, err)
	}

	return count, nil
}
