package utils

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ParseInt converts string to int with default value
func ParseInt(value string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}

	result, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	if result < 1 {
		return defaultValue
	}

	return result
}

// ParseDate parses a YYYY-MM-DD query value as a UTC day.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, value, time.UTC)
}

// maxOrderCode keeps order codes inside the integer range JavaScript clients
// and the payment gateway can represent exactly.
const maxOrderCode = 1<<53 - 1

// GenerateOrderCode derives a stable positive order code for a booking
// payment. The same inputs always yield the same code, so a retried link
// request reuses the gateway order instead of opening a second one.
func GenerateOrderCode(bookingID uuid.UUID, purpose string, seq int) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%s:%d", bookingID, purpose, seq)
	code := int64(h.Sum64() & maxOrderCode)
	if code == 0 {
		code = 1
	}
	return code
}
