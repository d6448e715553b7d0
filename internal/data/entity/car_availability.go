package entity

import (
	"time"

	"github.com/google/uuid"
)

// CarAvailability is an owner override for a single calendar day.
// A missing row means the day is available.
type CarAvailability struct {
	Base
	CarID       uuid.UUID `db:"car_id"`
	Date        time.Time `db:"date"`
	IsAvailable bool      `db:"is_available"`
}

// DayStart truncates t to midnight UTC.
func DayStart(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysInWindow lists every UTC calendar day touched by [start, end).
func DaysInWindow(start, end time.Time) []time.Time {
	if !start.Before(end) {
		return nil
	}
	var days []time.Time
	last := end.Add(-time.Nanosecond)
	for d := DayStart(start); !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
