package repository

import (
	"context"
	"fmt"
	"time"

	"car-rental/internal/data/entity"
	"car-rental/pkg/database"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CarAvailabilityRepository interface {
	// FindByCarAndRange returns overrides for days in [from, to).
	FindByCarAndRange(ctx context.Context, carID uuid.UUID, from, to time.Time, scope Scope) ([]*entity.CarAvailability, error)
	// Upsert writes the override for (car, date), reviving a soft-deleted row.
	Upsert(ctx context.Context, a *entity.CarAvailability) error
}

type carAvailabilityRepository struct {
	db  database.Querier
	log *zap.Logger
}

func NewCarAvailabilityRepository(db database.Querier, log *zap.Logger) CarAvailabilityRepository {
	return &carAvailabilityRepository{
		db:  db,
		log: log.With(zap.String("repository", "car_availability")),
	}
}

func (r *carAvailabilityRepository) FindByCarAndRange(ctx context.Context, carID uuid.UUID, from, to time.Time, scope Scope) ([]*entity.CarAvailability, error) {
	query := `
		SELECT id, car_id, date, is_available, created_at, updated_at, is_deleted, deleted_at
		FROM car_availabilities
		WHERE car_id = $1 AND date >= $2::date AND date < $3::date` + scope.predicate("") + `
		ORDER BY date ASC
	`

	rows, err := r.db.Query(ctx, query, carID, from, to)
	if err != nil {
		r.log.Error("Failed to query availability",
			zap.Error(err),
			zap.String("car_id", carID.String()),
			zap.Time("from", from),
			zap.Time("to", to),
		)
		return nil, fmt.Errorf("query availability for car %s: %w", carID, err)
	}
	defer rows.Close()

	var result []*entity.CarAvailability
	for rows.Next() {
		var a entity.CarAvailability
		if err := rows.Scan(
			&a.ID,
			&a.CarID,
			&a.Date,
			&a.IsAvailable,
			&a.CreatedAt,
			&a.UpdatedAt,
			&a.IsDeleted,
			&a.DeletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan availability: %w", err)
		}
		a.Date = entity.DayStart(a.Date)
		result = append(result, &a)
	}

	return result, rows.Err()
}

func (r *carAvailabilityRepository) Upsert(ctx context.Context, a *entity.CarAvailability) error {
	query := `
		INSERT INTO car_availabilities (id, car_id, date, is_available, created_at, updated_at)
		VALUES ($1, $2, $3::date, $4, $5, $6)
		ON CONFLICT (car_id, date) DO UPDATE
		SET is_available = EXCLUDED.is_available,
		    updated_at = EXCLUDED.updated_at,
		    is_deleted = FALSE,
		    deleted_at = NULL
	`

	_, err := r.db.Exec(ctx, query, a.ID, a.CarID, a.Date, a.IsAvailable, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		r.log.Error("Failed to upsert availability",
			zap.Error(err),
			zap.String("car_id", a.CarID.String()),
			zap.Time("date", a.Date),
		)
		return mapPgError(fmt.Errorf("upsert availability for car %s: %w", a.CarID, err))
	}

	return nil
}
