package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

const (
	// DaysPerWeek rows always exist in the weekly template.
	DaysPerWeek = 7

	// MaxBookingsPerIP submissions are accepted per IP per window.
	MaxBookingsPerIP = 3

	// RateLimitWindowSeconds is the fixed IP-quota window.
	RateLimitWindowSeconds = 60 * 60

	// MaxPendingPerPhone pending bookings are allowed per phone number.
	MaxPendingPerPhone = 2

	// SameDayLeadMinutes is the minimum head start for booking a slot
	// on the current date.
	SameDayLeadMinutes = 60

	// MinRecaptchaScore below which a verified token is still rejected.
	MinRecaptchaScore = 0.5
)

// ValidTransition reports whether an administrator may move a booking
// from one status to another: pending -> confirmed -> completed, or
// pending -> cancelled. Nothing transitions automatically and
// customers never transition bookings at all.
func ValidTransition(from, to string) bool {
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCompleted
	default:
		return false
	}
}

// CountsTowardCapacity reports whether a booking in the given status
// occupies slot capacity for availability math.
func CountsTowardCapacity(status string) bool {
	return status == StatusPending || status == StatusConfirmed
}
