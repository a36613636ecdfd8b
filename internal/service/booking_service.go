package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"salonbook/internal/database"
	"salonbook/internal/domain"
	"salonbook/internal/events"
	"salonbook/internal/metrics"
	"salonbook/internal/models"
	"salonbook/internal/schedule"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// PH mobile numbers: 11 digits starting with 09.
var phonePattern = regexp.MustCompile(`^09\d{9}$`)

// DayResolver is the slice of ScheduleService the admission path needs.
type DayResolver interface {
	ResolveDay(ctx context.Context, date string) (*models.EffectiveDay, error)
}

// SubmitRequest is a customer booking submission, including the hidden
// honeypot field and the client IP derived at the transport layer.
type SubmitRequest struct {
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  string
	Services       []models.ServiceItem
	BookingDate    string
	BookingTime    string
	Notes          string
	TotalPrice     float64
	RecaptchaToken string
	Honeypot       string
	ClientIP       string
}

// SubmitResult carries either the admitted booking or the rejection the
// handler should relay. Rejections are outcomes, not errors: the
// pipeline never returns a Go error to the transport layer.
type SubmitResult struct {
	Accepted   bool
	Booking    *models.Booking
	Remaining  int
	StatusCode int
	Message    string
	RetryAfter int
	Outcome    string
}

// BookingService admits customer submissions through a fixed-order
// validation pipeline and handles administrator booking management.
type BookingService struct {
	repo     domain.BookingRepository
	resolver DayResolver
	quota    domain.QuotaRepository
	captcha  domain.CaptchaVerifier
	eventBus domain.EventPublisher
	clock    domain.Clock
	maxPerIP int
	window   time.Duration
	maxPend  int
	minScore float64
	logger   *zerolog.Logger
}

func NewBookingService(repo domain.BookingRepository, resolver DayResolver, quota domain.QuotaRepository, captcha domain.CaptchaVerifier, eventBus domain.EventPublisher, clock domain.Clock, logger *zerolog.Logger) *BookingService {
	if clock == nil {
		clock = domain.RealClock{}
	}
	return &BookingService{
		repo:     repo,
		resolver: resolver,
		quota:    quota,
		captcha:  captcha,
		eventBus: eventBus,
		clock:    clock,
		maxPerIP: models.MaxBookingsPerIP,
		window:   models.RateLimitWindowSeconds * time.Second,
		maxPend:  models.MaxPendingPerPhone,
		minScore: models.MinRecaptchaScore,
		logger:   logger,
	}
}

// WithLimits overrides the default abuse-policy knobs from configuration.
func (s *BookingService) WithLimits(maxPerIP, windowSeconds, maxPendingPerPhone int, minScore float64) *BookingService {
	if maxPerIP > 0 {
		s.maxPerIP = maxPerIP
	}
	if windowSeconds > 0 {
		s.window = time.Duration(windowSeconds) * time.Second
	}
	if maxPendingPerPhone > 0 {
		s.maxPend = maxPendingPerPhone
	}
	if minScore > 0 {
		s.minScore = minScore
	}
	return s
}

// Submit runs the admission pipeline in fixed order, short-circuiting
// at the first failure: honeypot, required fields, phone format,
// bot-score verification, per-IP quota, per-phone pending cap, then the
// transactional insert. The quota unit consumed at step five is not
// refunded when a later step rejects.
func (s *BookingService) Submit(ctx context.Context, req *SubmitRequest) *SubmitResult {
	// 1. Honeypot. The response shape matches a generic validation
	// failure so bots cannot tell detection from rejection.
	if req.Honeypot != "" {
		s.logger.Warn().Str("ip", req.ClientIP).Msg("honeypot field filled, rejecting submission")
		return s.reject(req, metrics.OutcomeHoneypot, http.StatusBadRequest, "Booking failed. Please try again.", 0)
	}

	// 2. Required fields.
	if req.CustomerName == "" || req.CustomerPhone == "" || len(req.Services) == 0 || req.BookingDate == "" || req.BookingTime == "" {
		return s.reject(req, metrics.OutcomeInvalid, http.StatusBadRequest, "Missing required fields.", 0)
	}

	// 3. Phone format.
	if !phonePattern.MatchString(req.CustomerPhone) {
		return s.reject(req, metrics.OutcomeInvalid, http.StatusBadRequest, "Invalid phone number format.", 0)
	}

	if _, err := time.Parse(dateLayout, req.BookingDate); err != nil {
		return s.reject(req, metrics.OutcomeInvalid, http.StatusBadRequest, "Invalid booking date or time.", 0)
	}
	slotMinute, err := schedule.ParseLabel(req.BookingTime)
	if err != nil {
		return s.reject(req, metrics.OutcomeInvalid, http.StatusBadRequest, "Invalid booking date or time.", 0)
	}

	// 4. Bot-score verification, fail closed.
	if result := s.verifyCaptcha(ctx, req); result != nil {
		return result
	}

	// 5. Per-IP quota. Consumed here, before the pending cap and the
	// insert, and never refunded.
	allowed, remaining, err := s.quota.Take(ctx, req.ClientIP, s.maxPerIP, s.window)
	if err != nil {
		s.logger.Error().Err(err).Str("ip", req.ClientIP).Msg("quota backend unavailable, admitting without quota check")
	} else if !allowed {
		return s.reject(req, metrics.OutcomeRateLimited, http.StatusTooManyRequests,
			"Too many booking attempts. Please try again in an hour.", int(s.window.Seconds()))
	}

	// 6. Per-phone pending cap.
	pending, err := s.repo.CountPendingByPhone(ctx, req.CustomerPhone)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to count pending bookings, skipping pending cap")
		pending = 0
	}
	if pending >= s.maxPend {
		return s.reject(req, metrics.OutcomePendingCap, http.StatusBadRequest,
			fmt.Sprintf("You already have %d pending booking(s). Please wait for confirmation before booking again.", pending), 0)
	}

	// 7. Commit.
	day, err := s.resolver.ResolveDay(ctx, req.BookingDate)
	if err != nil {
		s.logger.Error().Err(err).Str("date", req.BookingDate).Msg("failed to resolve booking day")
		return s.reject(req, metrics.OutcomeStorageError, http.StatusInternalServerError, "Failed to create booking. Please try again.", 0)
	}
	if !day.Open {
		return s.reject(req, metrics.OutcomeInvalid, http.StatusBadRequest, "This time slot is no longer available. Please choose another time.", 0)
	}

	booking := &models.Booking{
		ID:            uuid.NewString(),
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: req.CustomerPhone,
		Services:      req.Services,
		Date:          req.BookingDate,
		SlotMinute:    slotMinute,
		SlotLabel:     slotMinute.Label(),
		Status:        models.StatusPending,
		Notes:         req.Notes,
		TotalPrice:    req.TotalPrice,
	}

	if err := s.repo.AdmitBooking(ctx, booking, day.MaxBookingsPerSlot); err != nil {
		if errors.Is(err, database.ErrSlotFull) {
			return s.reject(req, metrics.OutcomeSlotFull, http.StatusConflict,
				"This time slot is fully booked. Please choose another time.", 0)
		}
		s.logger.Error().Err(err).Msg("failed to insert booking")
		return s.reject(req, metrics.OutcomeStorageError, http.StatusInternalServerError, "Failed to create booking. Please try again.", 0)
	}

	s.logger.Info().
		Str("booking_id", booking.ID).
		Str("date", booking.Date).
		Str("slot", booking.SlotLabel).
		Str("ip", req.ClientIP).
		Msg("booking admitted")

	s.publishBookingEvent(events.EventBookingCreated, booking, metrics.OutcomeAccepted, "customer")

	return &SubmitResult{
		Accepted:   true,
		Booking:    booking,
		Remaining:  remaining,
		StatusCode: http.StatusCreated,
		Outcome:    metrics.OutcomeAccepted,
	}
}

func (s *BookingService) verifyCaptcha(ctx context.Context, req *SubmitRequest) *SubmitResult {
	if !s.captcha.Enabled() {
		return nil
	}
	if req.RecaptchaToken == "" {
		return s.reject(req, metrics.OutcomeCaptcha, http.StatusBadRequest, "Security verification required.", 0)
	}

	success, score, err := s.captcha.Verify(ctx, req.RecaptchaToken)
	if err != nil {
		s.logger.Error().Err(err).Msg("captcha verification failed")
		return s.reject(req, metrics.OutcomeCaptcha, http.StatusBadRequest,
			"Security verification failed. Please refresh and try again.", 0)
	}
	if !success || score < s.minScore {
		return s.reject(req, metrics.OutcomeCaptcha, http.StatusBadRequest,
			"Security verification failed. Please refresh and try again.", 0)
	}
	return nil
}

func (s *BookingService) reject(req *SubmitRequest, outcome string, status int, message string, retryAfter int) *SubmitResult {
	s.publishRejection(req, outcome)
	return &SubmitResult{
		StatusCode: status,
		Message:    message,
		RetryAfter: retryAfter,
		Outcome:    outcome,
	}
}

// GetBooking returns one booking by id.
func (s *BookingService) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

// ListBookings returns all bookings, newest first.
func (s *BookingService) ListBookings(ctx context.Context) ([]models.Booking, error) {
	return s.repo.ListBookings(ctx)
}

// UpdateStatus applies an administrator status change, enforcing the
// pending -> confirmed -> completed / pending -> cancelled machine.
func (s *BookingService) UpdateStatus(ctx context.Context, id, status string) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	if !models.ValidTransition(booking.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, booking.Status, status)
	}

	if err := s.repo.UpdateBookingStatus(ctx, id, status); err != nil {
		return nil, err
	}
	booking.Status = status

	s.publishBookingEvent(statusEventType(status), booking, "", "admin")
	return booking, nil
}

func statusEventType(status string) string {
	switch status {
	case models.StatusConfirmed:
		return events.EventBookingConfirmed
	case models.StatusCompleted:
		return events.EventBookingCompleted
	case models.StatusCancelled:
		return events.EventBookingCancelled
	default:
		return events.EventBookingCreated
	}
}

// DeleteBooking removes a booking at any status.
func (s *BookingService) DeleteBooking(ctx context.Context, id string) error {
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.DeleteBooking(ctx, id); err != nil {
		return err
	}

	s.publishBookingEvent(events.EventBookingDeleted, booking, "", "admin")
	return nil
}

func (s *BookingService) publishBookingEvent(eventType string, booking *models.Booking, outcome, changedBy string) {
	if s.eventBus == nil {
		return
	}
	payload := events.BookingEventPayload{
		BookingID:     booking.ID,
		CustomerName:  booking.CustomerName,
		CustomerPhone: booking.CustomerPhone,
		Date:          booking.Date,
		SlotLabel:     booking.SlotLabel,
		Status:        booking.Status,
		Outcome:       outcome,
		ChangedBy:     changedBy,
		At:            s.clock.Now(),
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("failed to publish booking event")
	}
}

func (s *BookingService) publishRejection(req *SubmitRequest, outcome string) {
	if s.eventBus == nil {
		return
	}
	payload := events.BookingEventPayload{
		CustomerPhone: req.CustomerPhone,
		Date:          req.BookingDate,
		SlotLabel:     req.BookingTime,
		Outcome:       outcome,
		At:            s.clock.Now(),
	}
	if err := s.eventBus.PublishJSON(events.EventBookingRejected, payload); err != nil {
		s.logger.Error().Err(err).Msg("failed to publish rejection event")
	}
}
