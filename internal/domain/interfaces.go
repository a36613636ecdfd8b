package domain

import (
	"context"
	"time"

	"salonbook/internal/models"
	"salonbook/internal/schedule"
)

// ScheduleRepository owns the weekly template and date overrides.
type ScheduleRepository interface {
	// GetTemplate returns all seven weekday rows, synthesizing
	// defaults for weekdays that were never stored.
	GetTemplate(ctx context.Context) ([]models.DaySchedule, error)
	// GetDaySchedule returns the stored row for a weekday, or nil
	// when the weekday was never configured.
	GetDaySchedule(ctx context.Context, dayOfWeek int) (*models.DaySchedule, error)
	// PutTemplate replaces all seven rows in a single transaction.
	PutTemplate(ctx context.Context, rows []models.DaySchedule) error
	GetOverride(ctx context.Context, date string) (*models.DateOverride, error)
	// ListOverrides returns overrides ordered by date; fromDate == ""
	// lists everything.
	ListOverrides(ctx context.Context, fromDate string) ([]models.DateOverride, error)
	UpsertOverride(ctx context.Context, override *models.DateOverride) error
	DeleteOverride(ctx context.Context, date string) error
}

// BookingRepository owns booking records and slot occupancy counts.
type BookingRepository interface {
	// AdmitBooking inserts the booking inside one transaction that
	// re-checks slot occupancy against maxPerSlot; a full slot yields
	// ErrSlotFull and no insert.
	AdmitBooking(ctx context.Context, booking *models.Booking, maxPerSlot int) error
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	// ListBookings returns bookings newest booking date (then slot) first.
	ListBookings(ctx context.Context) ([]models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id, status string) error
	DeleteBooking(ctx context.Context, id string) error
	CountPendingByPhone(ctx context.Context, phone string) (int, error)
	// SlotOccupancy groups pending+confirmed bookings for a date by
	// slot minute.
	SlotOccupancy(ctx context.Context, date string) (map[schedule.Minutes]int, error)
}

// QuotaRepository is a fixed-window counter shared per key (client IP).
// The window is fixed, not sliding: it resets to now+window on the
// first hit after expiry. State may be process-local (memory backend)
// or shared (Redis) for multi-instance deployments.
type QuotaRepository interface {
	// Take consumes one unit for the key and reports whether the call
	// stayed within limit, plus the remaining units in the window.
	Take(ctx context.Context, key string, limit int, window time.Duration) (allowed bool, remaining int, err error)
}

// CaptchaVerifier is the external bot-score oracle.
type CaptchaVerifier interface {
	// Enabled reports whether a secret is configured; when false the
	// check is skipped entirely.
	Enabled() bool
	// Verify calls the oracle. Any transport or decode failure must be
	// returned as err so callers can fail closed.
	Verify(ctx context.Context, token string) (success bool, score float64, err error)
}

// EventPublisher fans domain events out to in-process subscribers.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Clock injects time into components that filter or window by
// wall-clock so tests never sleep.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
