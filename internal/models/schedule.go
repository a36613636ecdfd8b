package models

import (
	"time"

	"salonbook/internal/schedule"
)

// DaySchedule is one weekly-template row. Exactly seven exist after
// first initialization, keyed by weekday 0 (Sunday) through 6.
// Break bounds are either both set or both nil.
type DaySchedule struct {
	DayOfWeek          int               `json:"day_of_week"`
	IsOpen             bool              `json:"is_open"`
	OpenTime           schedule.Minutes  `json:"-"`
	CloseTime          schedule.Minutes  `json:"-"`
	SlotDuration       int               `json:"slot_duration_minutes"`
	MaxBookingsPerSlot int               `json:"max_bookings_per_slot"`
	BreakStart         *schedule.Minutes `json:"-"`
	BreakEnd           *schedule.Minutes `json:"-"`
}

// DateOverride is a date-specific exception to the weekly template.
// Unset pointer fields fall back to the template value; SlotDuration
// and the break window never come from an override.
type DateOverride struct {
	Date               string            `json:"date"` // YYYY-MM-DD
	IsClosed           bool              `json:"is_closed"`
	OpenTime           *schedule.Minutes `json:"-"`
	CloseTime          *schedule.Minutes `json:"-"`
	MaxBookingsPerSlot *int              `json:"max_bookings_per_slot,omitempty"`
	Reason             string            `json:"reason,omitempty"`
	CreatedAt          time.Time         `json:"created_at,omitempty"`
}

// EffectiveDay is the merged template+override configuration the grid
// generator and availability calculator consume.
type EffectiveDay struct {
	Open               bool
	Reason             string // set when Open is false
	OpenTime           schedule.Minutes
	CloseTime          schedule.Minutes
	SlotDuration       int
	MaxBookingsPerSlot int
	BreakStart         schedule.Minutes
	BreakEnd           schedule.Minutes // BreakStart == BreakEnd means no break
}

// DefaultDaySchedule returns the initial template row for a weekday:
// closed on Sunday, otherwise 9:00-18:00 with 60-minute slots, one
// booking per slot and a 12:00-13:00 break.
func DefaultDaySchedule(dayOfWeek int) DaySchedule {
	breakStart := schedule.Minutes(12 * 60)
	breakEnd := schedule.Minutes(13 * 60)
	return DaySchedule{
		DayOfWeek:          dayOfWeek,
		IsOpen:             dayOfWeek != 0,
		OpenTime:           schedule.Minutes(9 * 60),
		CloseTime:          schedule.Minutes(18 * 60),
		SlotDuration:       60,
		MaxBookingsPerSlot: 1,
		BreakStart:         &breakStart,
		BreakEnd:           &breakEnd,
	}
}
