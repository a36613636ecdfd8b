package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"salonbook/internal/domain"
	"salonbook/internal/events"
	"salonbook/internal/metrics"
	"salonbook/internal/models"
	"salonbook/internal/schedule"

	"github.com/rs/zerolog"
)

var ErrInvalidInput = errors.New("invalid input")

const dateLayout = "2006-01-02"

// ScheduleService resolves effective day configurations and computes
// per-slot availability from the weekly template, date overrides and
// current bookings.
type ScheduleService struct {
	schedRepo   domain.ScheduleRepository
	bookingRepo domain.BookingRepository
	eventBus    domain.EventPublisher
	clock       domain.Clock
	leadMinutes int
	logger      *zerolog.Logger
}

func NewScheduleService(schedRepo domain.ScheduleRepository, bookingRepo domain.BookingRepository, eventBus domain.EventPublisher, clock domain.Clock, leadMinutes int, logger *zerolog.Logger) *ScheduleService {
	if clock == nil {
		clock = domain.RealClock{}
	}
	if leadMinutes <= 0 {
		leadMinutes = models.SameDayLeadMinutes
	}
	return &ScheduleService{
		schedRepo:   schedRepo,
		bookingRepo: bookingRepo,
		eventBus:    eventBus,
		clock:       clock,
		leadMinutes: leadMinutes,
		logger:      logger,
	}
}

// ResolveDay merges the weekly template row with the date override, if
// any. A closing override wins over everything; a non-closing override
// supplies hours and capacity but never slot duration or the break
// window, which always come from the template.
func (s *ScheduleService) ResolveDay(ctx context.Context, date string) (*models.EffectiveDay, error) {
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}

	row, err := s.schedRepo.GetDaySchedule(ctx, int(day.Weekday()))
	if err != nil {
		return nil, err
	}
	if row == nil {
		return &models.EffectiveDay{Open: false, Reason: "Schedule not configured"}, nil
	}

	override, err := s.schedRepo.GetOverride(ctx, date)
	if err != nil {
		return nil, err
	}

	if override != nil && override.IsClosed {
		reason := override.Reason
		if reason == "" {
			reason = "Closed"
		}
		return &models.EffectiveDay{Open: false, Reason: reason}, nil
	}

	// A non-closing override opens an otherwise closed template day.
	if !row.IsOpen && override == nil {
		return &models.EffectiveDay{Open: false, Reason: "Closed"}, nil
	}

	effective := &models.EffectiveDay{
		Open:               true,
		OpenTime:           row.OpenTime,
		CloseTime:          row.CloseTime,
		SlotDuration:       row.SlotDuration,
		MaxBookingsPerSlot: row.MaxBookingsPerSlot,
	}
	if row.BreakStart != nil && row.BreakEnd != nil {
		effective.BreakStart = *row.BreakStart
		effective.BreakEnd = *row.BreakEnd
	}
	if override != nil {
		if override.OpenTime != nil {
			effective.OpenTime = *override.OpenTime
		}
		if override.CloseTime != nil {
			effective.CloseTime = *override.CloseTime
		}
		if override.MaxBookingsPerSlot != nil {
			effective.MaxBookingsPerSlot = *override.MaxBookingsPerSlot
		}
	}

	return effective, nil
}

// Availability builds the bookable slot list for a date: raw grid from
// the effective configuration, minus occupancy, minus same-day slots
// starting within the lead-time buffer.
func (s *ScheduleService) Availability(ctx context.Context, date string) (*models.DayAvailability, error) {
	day, err := s.ResolveDay(ctx, date)
	if err != nil {
		return nil, err
	}

	metrics.IncAvailability()

	if !day.Open {
		return &models.DayAvailability{
			Date:   date,
			IsOpen: false,
			Reason: day.Reason,
			Slots:  []models.TimeSlot{},
		}, nil
	}

	grid := schedule.Slots(day.OpenTime, day.CloseTime, day.SlotDuration, day.BreakStart, day.BreakEnd)

	occupancy, err := s.bookingRepo.SlotOccupancy(ctx, date)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	isToday := date == now.Format(dateLayout)
	nowMinute := schedule.Minutes(now.Hour()*60 + now.Minute())

	slots := make([]models.TimeSlot, 0, len(grid))
	for _, minute := range grid {
		if isToday && minute <= nowMinute+schedule.Minutes(s.leadMinutes) {
			continue
		}
		remaining := day.MaxBookingsPerSlot - occupancy[minute]
		if remaining < 0 {
			remaining = 0
		}
		slots = append(slots, models.TimeSlot{
			Time:           minute.Label(),
			Available:      remaining > 0,
			RemainingSlots: remaining,
			MaxSlots:       day.MaxBookingsPerSlot,
		})
	}

	return &models.DayAvailability{
		Date:   date,
		IsOpen: true,
		Slots:  slots,
		Settings: &models.DaySettings{
			OpenTime:           day.OpenTime.Clock(),
			CloseTime:          day.CloseTime.Clock(),
			SlotDuration:       day.SlotDuration,
			MaxBookingsPerSlot: day.MaxBookingsPerSlot,
		},
	}, nil
}

// Template returns the full weekly template plus overrides from today
// onward, for the admin schedule view.
func (s *ScheduleService) Template(ctx context.Context) ([]models.DaySchedule, []models.DateOverride, error) {
	rows, err := s.schedRepo.GetTemplate(ctx)
	if err != nil {
		return nil, nil, err
	}

	overrides, err := s.schedRepo.ListOverrides(ctx, s.clock.Now().Format(dateLayout))
	if err != nil {
		return nil, nil, err
	}

	return rows, overrides, nil
}

// Overrides returns overrides from today onward.
func (s *ScheduleService) Overrides(ctx context.Context) ([]models.DateOverride, error) {
	return s.schedRepo.ListOverrides(ctx, s.clock.Now().Format(dateLayout))
}

// UpdateTemplate validates and replaces all seven weekly rows in one
// transaction.
func (s *ScheduleService) UpdateTemplate(ctx context.Context, rows []models.DaySchedule) error {
	if len(rows) != models.DaysPerWeek {
		return fmt.Errorf("%w: expected %d weekday rows, got %d", ErrInvalidInput, models.DaysPerWeek, len(rows))
	}
	seen := make(map[int]bool, models.DaysPerWeek)
	for _, row := range rows {
		if row.DayOfWeek < 0 || row.DayOfWeek >= models.DaysPerWeek {
			return fmt.Errorf("%w: day_of_week %d out of range", ErrInvalidInput, row.DayOfWeek)
		}
		if seen[row.DayOfWeek] {
			return fmt.Errorf("%w: duplicate day_of_week %d", ErrInvalidInput, row.DayOfWeek)
		}
		seen[row.DayOfWeek] = true

		if err := validateDayRow(row); err != nil {
			return err
		}
	}

	if err := s.schedRepo.PutTemplate(ctx, rows); err != nil {
		return err
	}

	s.publishScheduleEvent(events.EventScheduleUpdated, events.ScheduleEventPayload{})
	return nil
}

func validateDayRow(row models.DaySchedule) error {
	if !row.IsOpen {
		return nil
	}
	if !row.OpenTime.Valid() || !row.CloseTime.Valid() || row.OpenTime >= row.CloseTime {
		return fmt.Errorf("%w: day %d open_time must precede close_time", ErrInvalidInput, row.DayOfWeek)
	}
	if row.SlotDuration <= 0 {
		return fmt.Errorf("%w: day %d slot_duration_minutes must be positive", ErrInvalidInput, row.DayOfWeek)
	}
	if row.MaxBookingsPerSlot < 1 {
		return fmt.Errorf("%w: day %d max_bookings_per_slot must be at least 1", ErrInvalidInput, row.DayOfWeek)
	}
	if (row.BreakStart == nil) != (row.BreakEnd == nil) {
		return fmt.Errorf("%w: day %d break bounds must be set together", ErrInvalidInput, row.DayOfWeek)
	}
	if row.BreakStart != nil && *row.BreakStart >= *row.BreakEnd {
		return fmt.Errorf("%w: day %d break_start must precede break_end", ErrInvalidInput, row.DayOfWeek)
	}
	return nil
}

// UpsertOverride creates or replaces the exception for a date.
func (s *ScheduleService) UpsertOverride(ctx context.Context, override *models.DateOverride) error {
	if _, err := time.Parse(dateLayout, override.Date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	if override.OpenTime != nil && override.CloseTime != nil && *override.OpenTime >= *override.CloseTime {
		return fmt.Errorf("%w: open_time must precede close_time", ErrInvalidInput)
	}
	if override.MaxBookingsPerSlot != nil && *override.MaxBookingsPerSlot < 1 {
		return fmt.Errorf("%w: max_bookings_per_slot must be at least 1", ErrInvalidInput)
	}

	if err := s.schedRepo.UpsertOverride(ctx, override); err != nil {
		return err
	}

	s.publishScheduleEvent(events.EventOverrideUpserted, events.ScheduleEventPayload{
		Date:   override.Date,
		Closed: override.IsClosed,
		Reason: override.Reason,
	})
	return nil
}

// DeleteOverride removes the exception for a date, if one exists.
func (s *ScheduleService) DeleteOverride(ctx context.Context, date string) error {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}

	if err := s.schedRepo.DeleteOverride(ctx, date); err != nil {
		return err
	}

	s.publishScheduleEvent(events.EventOverrideDeleted, events.ScheduleEventPayload{Date: date})
	return nil
}

func (s *ScheduleService) publishScheduleEvent(eventType string, payload events.ScheduleEventPayload) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("failed to publish schedule event")
	}
}
