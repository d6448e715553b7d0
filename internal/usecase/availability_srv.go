package usecase

import (
	"context"
	"fmt"
	"time"

	"car-rental/internal/data/entity"
	"car-rental/internal/data/repository"
	"car-rental/pkg/apperror"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AvailabilityService interface {
	IsAvailable(ctx context.Context, carID uuid.UUID, start, end time.Time) (bool, error)
	SetAvailability(ctx context.Context, actor Actor, carID uuid.UUID, dates []time.Time, isAvailable bool) error
	GetCalendar(ctx context.Context, carID uuid.UUID, from, to time.Time) ([]DayAvailability, error)
}

// DayAvailability is one calendar day of a car.
type DayAvailability struct {
	Date      time.Time  `json:"date"`
	Available bool       `json:"available"`
	Blocked   bool       `json:"blocked"`
	BookingID *uuid.UUID `json:"booking_id,omitempty"`
}

// maxCalendarDays caps GetCalendar ranges.
const maxCalendarDays = 366

type availabilityService struct {
	base
}

func (s *availabilityService) IsAvailable(ctx context.Context, carID uuid.UUID, start, end time.Time) (bool, error) {
	if !start.Before(end) {
		return false, apperror.Validation("start time must be before end time")
	}

	available := false
	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		car, err := tx.Car.FindByID(ctx, carID, repository.ExcludeDeleted)
		if err != nil {
			return err
		}
		if car == nil {
			return apperror.NotFound("car %s not found", carID)
		}
		if !car.IsBookable() {
			return nil
		}

		err = checkWindow(ctx, tx, carID, start, end, uuid.Nil)
		if apperror.KindOf(err) == apperror.KindConflict {
			return nil
		}
		if err != nil {
			return err
		}
		available = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("check availability of car %s: %w", carID, err)
	}

	return available, nil
}

func (s *availabilityService) SetAvailability(ctx context.Context, actor Actor, carID uuid.UUID, dates []time.Time, isAvailable bool) error {
	if len(dates) == 0 {
		return apperror.Validation("at least one date is required")
	}

	days := make([]time.Time, 0, len(dates))
	seen := make(map[time.Time]bool, len(dates))
	for _, d := range dates {
		day := entity.DayStart(d)
		if seen[day] {
			continue
		}
		seen[day] = true
		days = append(days, day)
	}

	err := s.repo.WithTx(ctx, func(tx *repository.Repository) error {
		car, err := tx.Car.FindByIDForUpdate(ctx, carID)
		if err != nil {
			return err
		}
		if car == nil {
			return apperror.NotFound("car %s not found", carID)
		}
		if err := s.auth.RequireCarOwner(actor, car); err != nil {
			return err
		}

		if !isAvailable {
			for _, day := range days {
				active, err := tx.Booking.FindActiveOverlapping(ctx, carID, day, day.AddDate(0, 0, 1), uuid.Nil)
				if err != nil {
					return err
				}
				if len(active) > 0 {
					return apperror.Conflict("car has an active booking on %s", day.Format(time.DateOnly))
				}
			}
		}

		now := s.clock()
		for _, day := range days {
			existing, err := tx.Availability.FindByCarAndRange(ctx, carID, day, day.AddDate(0, 0, 1), repository.ExcludeDeleted)
			if err != nil {
				return err
			}
			if len(existing) > 0 && existing[0].IsAvailable == isAvailable {
				continue
			}
			// no row already means available
			if len(existing) == 0 && isAvailable {
				continue
			}

			if err := tx.Availability.Upsert(ctx, &entity.CarAvailability{
				Base:        entity.Base{ID: uuid.New(), CreatedAt: now, UpdatedAt: now},
				CarID:       carID,
				Date:        day,
				IsAvailable: isAvailable,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.log.Warn("Failed to set availability",
			zap.String("car_id", carID.String()),
			zap.Bool("is_available", isAvailable),
			zap.Error(err),
		)
		return fmt.Errorf("set availability of car %s: %w", carID, err)
	}

	s.log.Info("Availability updated",
		zap.String("car_id", carID.String()),
		zap.Int("days", len(days)),
		zap.Bool("is_available", isAvailable),
	)
	return nil
}

func (s *availabilityService) GetCalendar(ctx context.Context, carID uuid.UUID, from, to time.Time) ([]DayAvailability, error) {
	from, to = entity.DayStart(from), entity.DayStart(to)
	if !from.Before(to) {
		return nil, apperror.Validation("from must be before to")
	}
	if to.Sub(from) > maxCalendarDays*24*time.Hour {
		return nil, apperror.Validation("calendar range cannot exceed %d days", maxCalendarDays)
	}

	car, err := s.repo.Car.FindByID(ctx, carID, repository.ExcludeDeleted)
	if err != nil {
		return nil, fmt.Errorf("get calendar: %w", err)
	}
	if car == nil {
		return nil, apperror.NotFound("car %s not found", carID)
	}

	overrides, err := s.repo.Availability.FindByCarAndRange(ctx, carID, from, to, repository.ExcludeDeleted)
	if err != nil {
		return nil, fmt.Errorf("get calendar: %w", err)
	}
	blocked := make(map[time.Time]bool, len(overrides))
	for _, o := range overrides {
		if !o.IsAvailable {
			blocked[entity.DayStart(o.Date)] = true
		}
	}

	active, err := s.repo.Booking.FindActiveOverlapping(ctx, carID, from, to, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("get calendar: %w", err)
	}

	days := entity.DaysInWindow(from, to)
	calendar := make([]DayAvailability, 0, len(days))
	for _, day := range days {
		entry := DayAvailability{Date: day, Blocked: blocked[day]}
		for _, b := range active {
			if b.Overlaps(day, day.AddDate(0, 0, 1)) {
				id := b.ID
				entry.BookingID = &id
				break
			}
		}
		entry.Available = car.IsBookable() && !entry.Blocked && entry.BookingID == nil
		calendar = append(calendar, entry)
	}

	return calendar, nil
}

// checkWindow fails with a conflict naming the first blocked or booked day in
// [start, end). It must run on the same transaction as the write it guards.
func checkWindow(ctx context.Context, tx *repository.Repository, carID uuid.UUID, start, end time.Time, excludeID uuid.UUID) error {
	days := entity.DaysInWindow(start, end)
	if len(days) == 0 {
		return apperror.Validation("empty booking window")
	}

	overrides, err := tx.Availability.FindByCarAndRange(ctx, carID, days[0], days[len(days)-1].AddDate(0, 0, 1), repository.ExcludeDeleted)
	if err != nil {
		return err
	}
	for _, o := range overrides {
		if !o.IsAvailable {
			return apperror.Conflict("car is unavailable on %s", o.Date.Format(time.DateOnly))
		}
	}

	active, err := tx.Booking.FindActiveOverlapping(ctx, carID, start, end, excludeID)
	if err != nil {
		return err
	}
	if len(active) > 0 {
		first := active[0].StartTime
		if first.Before(start) {
			first = start
		}
		return apperror.Conflict("car has an active booking on %s", first.UTC().Format(time.DateOnly))
	}

	return nil
}
