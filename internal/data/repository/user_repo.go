package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"car-rental/internal/data/entity"
	"car-rental/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id uuid.UUID, scope Scope) (*entity.User, error)
	// FindByIDForUpdate locks the user row until the transaction ends.
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.User, error)
	UpdateBalances(ctx context.Context, id uuid.UUID, balance, locked int64, at time.Time) error
}

type userRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewUserRepository(db database.Querier, log *zap.Logger) UserRepository {
	return &userRepository{
		db:  db,
		log: log.With(zap.String("repository", "user")),
	}
}

const userColumns = `id, username, email, phone, role, balance, locked_balance, is_active,
	created_at, updated_at, is_deleted, deleted_at`

func scanUser(row pgx.Row) (*entity.User, error) {
	var u entity.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.Phone,
		&u.Role,
		&u.Balance,
		&u.LockedBalance,
		&u.IsActive,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.IsDeleted,
		&u.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) Create(ctx context.Context, user *entity.User) error {
	query := `
		INSERT INTO users (id, username, email, phone, role, balance, locked_balance,
		                   is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.Exec(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.Phone,
		user.Role,
		user.Balance,
		user.LockedBalance,
		user.IsActive,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		r.log.Error("Failed to create user", zap.Error(err), zap.String("email", user.Email))
		return mapPgError(fmt.Errorf("create user %s: %w", user.Email, err))
	}

	return nil
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID, scope Scope) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1` + scope.predicate("")

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find user by ID", zap.Error(err), zap.String("user_id", id.String()))
		return nil, fmt.Errorf("find user by ID %s: %w", id, err)
	}

	return user, nil
}

func (r *userRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND is_deleted = FALSE FOR UPDATE`

	user, err := scanUser(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to lock user", zap.Error(err), zap.String("user_id", id.String()))
		return nil, fmt.Errorf("lock user %s: %w", id, err)
	}

	return user, nil
}

func (r *userRepository) UpdateBalances(ctx context.Context, id uuid.UUID, balance, locked int64, at time.Time) error {
	query := `
		UPDATE users
		SET balance = $2, locked_balance = $3, updated_at = $4
		WHERE id = $1 AND is_deleted = FALSE
	`

	tag, err := r.db.Exec(ctx, query, id, balance, locked, at)
	if err != nil {
		r.log.Error("Failed to update balances",
			zap.Error(err),
			zap.String("user_id", id.String()),
			zap.Int64("balance", balance),
			zap.Int64("locked_balance", locked),
		)
		return mapPgError(fmt.Errorf("update balances for user %s: %w", id, err))
	}

	return expectOne(tag, "user %s not found", id)
}
