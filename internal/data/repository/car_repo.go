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

type CarRepository interface {
	FindByID(ctx context.Context, id uuid.UUID, scope Scope) (*entity.Car, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Car, error)
	// UpdateStatus moves the car from one status to another; it fails with a
	// conflict when the car is no longer in from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.CarStatus, at time.Time) error
}

type carRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewCarRepository(db database.Querier, log *zap.Logger) CarRepository {
	return &carRepository{
		db:  db,
		log: log.With(zap.String("repository", "car")),
	}
}

const carColumns = `id, owner_id, brand, model, license_plate, status, price_per_hour,
	requires_collateral, pickup_location, created_at, updated_at, is_deleted, deleted_at`

func scanCar(row pgx.Row) (*entity.Car, error) {
	var c entity.Car
	err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&c.Brand,
		&c.Model,
		&c.LicensePlate,
		&c.Status,
		&c.PricePerHour,
		&c.RequiresCollateral,
		&c.PickupLocation,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.IsDeleted,
		&c.DeletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *carRepository) FindByID(ctx context.Context, id uuid.UUID, scope Scope) (*entity.Car, error) {
	query := `SELECT ` + carColumns + ` FROM cars WHERE id = $1` + scope.predicate("")

	car, err := scanCar(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find car by ID", zap.Error(err), zap.String("car_id", id.String()))
		return nil, fmt.Errorf("find car by ID %s: %w", id, err)
	}

	return car, nil
}

func (r *carRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Car, error) {
	query := `SELECT ` + carColumns + ` FROM cars WHERE id = $1 AND is_deleted = FALSE FOR UPDATE`

	car, err := scanCar(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to lock car", zap.Error(err), zap.String("car_id", id.String()))
		return nil, fmt.Errorf("lock car %s: %w", id, err)
	}

	return car, nil
}

func (r *carRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to entity.CarStatus, at time.Time) error {
	query := `
		UPDATE cars
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2 AND is_deleted = FALSE
	`

	tag, err := r.db.Exec(ctx, query, id, from, to, at)
	if err != nil {
		r.log.Error("Failed to update car status",
			zap.Error(err),
			zap.String("car_id", id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		return fmt.Errorf("update car %s status: %w", id, err)
	}

	return expectOne(tag, "car %s is no longer %s", id, from)
}
