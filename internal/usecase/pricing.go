package usecase

import "time"

const bpsDenominator = 10000

// billableHours rounds a duration up to whole hours.
func billableHours(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	hours := int64(d / time.Hour)
	if d%time.Hour != 0 {
		hours++
	}
	return hours
}

// applyBps returns amount × bps / 10000 rounded half up.
func applyBps(amount, bps int64) int64 {
	return (amount*bps + bpsDenominator/2) / bpsDenominator
}

// quote prices a rental window: base is charged per started hour and the
// platform fee is added on top.
func quote(pricePerHour int64, start, end time.Time, feeBps int64) (basePrice, platformFee int64) {
	basePrice = pricePerHour * billableHours(end.Sub(start))
	platformFee = applyBps(basePrice, feeBps)
	return basePrice, platformFee
}

// excessDays counts started days past the agreed end, after the grace period.
func excessDays(actualReturn, end time.Time, grace time.Duration) int {
	late := actualReturn.Sub(end) - grace
	if late <= 0 {
		return 0
	}
	day := 24 * time.Hour
	days := int(late / day)
	if late%day != 0 {
		days++
	}
	return days
}

// excessFee charges each excess day as 24 hours at the hourly rate, scaled by
// the excess-day multiplier.
func excessFee(days int, pricePerHour, feeBps int64) int64 {
	if days <= 0 {
		return 0
	}
	return applyBps(int64(days)*24*pricePerHour, feeBps)
}
