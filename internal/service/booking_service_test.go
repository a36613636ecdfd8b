package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"salonbook/internal/database"
	"salonbook/internal/events"
	"salonbook/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type bookingFixture struct {
	repo     *mockBookingRepo
	resolver *mockResolver
	quota    *mockQuota
	captcha  *mockCaptcha
	bus      *events.EventBus
	svc      *BookingService
}

func newBookingFixture() *bookingFixture {
	f := &bookingFixture{
		repo:     new(mockBookingRepo),
		resolver: new(mockResolver),
		quota:    new(mockQuota),
		captcha:  new(mockCaptcha),
		bus:      events.NewEventBus(),
	}
	logger := zerolog.New(io.Discard)
	clock := fixedClock{now: time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)}
	f.svc = NewBookingService(f.repo, f.resolver, f.quota, f.captcha, f.bus, clock, &logger)
	return f
}

func validSubmit() *SubmitRequest {
	return &SubmitRequest{
		CustomerName:  "Maria Santos",
		CustomerEmail: "maria@example.com",
		CustomerPhone: "09171234567",
		Services: []models.ServiceItem{
			{ID: "svc-1", Name: "Classic Facial", Price: 800, Duration: "60 min"},
		},
		BookingDate: "2026-01-12",
		BookingTime: "10:00 AM",
		TotalPrice:  800,
		ClientIP:    "203.0.113.7",
	}
}

func openDay(maxPerSlot int) *models.EffectiveDay {
	return &models.EffectiveDay{
		Open:               true,
		OpenTime:           minutes(9, 0),
		CloseTime:          minutes(18, 0),
		SlotDuration:       60,
		MaxBookingsPerSlot: maxPerSlot,
	}
}

func TestSubmitAccepted(t *testing.T) {
	ctx := context.Background()
	f := newBookingFixture()

	var created events.BookingEventPayload
	var sawCreated bool
	f.bus.Subscribe(events.EventBookingCreated, func(e *events.Event) error {
		sawCreated = true
		return json.Unmarshal(e.Payload, &created)
	})

	f.captcha.On("Enabled").Return(false)
	f.quota.On("Take", ctx, "203.0.113.7", 3, time.Hour).Return(true, 2, nil).Once()
	f.repo.On("CountPendingByPhone", ctx, "09171234567").Return(0, nil).Once()
	f.resolver.On("ResolveDay", ctx, "2026-01-12").Return(openDay(2), nil).Once()
	f.repo.On("AdmitBooking", ctx, mock.AnythingOfType("*models.Booking"), 2).Return(nil).Once()

	result := f.svc.Submit(ctx, validSubmit())

	require.True(t, result.Accepted)
	assert.Equal(t, http.StatusCreated, result.StatusCode)
	assert.Equal(t, 2, result.Remaining)
	require.NotNil(t, result.Booking)
	assert.Equal(t, models.StatusPending, result.Booking.Status)
	assert.Equal(t, "10:00 AM", result.Booking.SlotLabel)
	assert.Equal(t, minutes(10, 0), result.Booking.SlotMinute)
	_, err := uuid.Parse(result.Booking.ID)
	assert.NoError(t, err)

	assert.True(t, sawCreated)
	assert.Equal(t, result.Booking.ID, created.BookingID)

	f.repo.AssertExpectations(t)
	f.quota.AssertExpectations(t)
	f.resolver.AssertExpectations(t)
}

func TestSubmitHoneypot(t *testing.T) {
	ctx := context.Background()
	f := newBookingFixture()

	var rejected events.BookingEventPayload
	f.bus.Subscribe(events.EventBookingRejected, func(e *events.Event) error {
		return json.Unmarshal(e.Payload, &rejected)
	})

	req := validSubmit()
	req.Honeypot = "gotcha"

	result := f.svc.Submit(ctx, req)

	assert.False(t, result.Accepted)
	assert.Equal(t, http.StatusBadRequest, result.StatusCode)
	// Same shape as an ordinary validation failure.
	assert.Equal(t, "Booking failed. Please try again.", result.Message)
	assert.Equal(t, "honeypot", rejected.Outcome)

	// Nothing downstream runs, not even the quota.
	f.quota.AssertNotCalled(t, "Take", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.repo.AssertNotCalled(t, "AdmitBooking", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*SubmitRequest)
		message string
	}{
		{"MissingName", func(r *SubmitRequest) { r.CustomerName = "" }, "Missing required fields."},
		{"MissingPhone", func(r *SubmitRequest) { r.CustomerPhone = "" }, "Missing required fields."},
		{"NoServices", func(r *SubmitRequest) { r.Services = nil }, "Missing required fields."},
		{"MissingDate", func(r *SubmitRequest) { r.BookingDate = "" }, "Missing required fields."},
		{"MissingTime", func(r *SubmitRequest) { r.BookingTime = "" }, "Missing required fields."},
		{"PhoneTooShort", func(r *SubmitRequest) { r.CustomerPhone = "0912345678" }, "Invalid phone number format."},
		{"PhoneTooLong", func(r *SubmitRequest) { r.CustomerPhone = "091234567890" }, "Invalid phone number format."},
		{"PhoneWrongPrefix", func(r *SubmitRequest) { r.CustomerPhone = "08123456789" }, "Invalid phone number format."},
		{"MalformedDate", func(r *SubmitRequest) { r.BookingDate = "12/01/2026" }, "Invalid booking date or time."},
		{"MalformedTime", func(r *SubmitRequest) { r.BookingTime = "ten o'clock" }, "Invalid booking date or time."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBookingFixture()
			req := validSubmit()
			tt.mutate(req)

			result := f.svc.Submit(ctx, req)

			assert.False(t, result.Accepted)
			assert.Equal(t, http.StatusBadRequest, result.StatusCode)
			assert.Equal(t, tt.message, result.Message)
		})
	}
}

func TestSubmitCaptcha(t *testing.T) {
	ctx := context.Background()

	t.Run("RequiredWhenConfigured", func(t *testing.T) {
		f := newBookingFixture()
		f.captcha.On("Enabled").Return(true)

		result := f.svc.Submit(ctx, validSubmit())

		assert.False(t, result.Accepted)
		assert.Equal(t, "Security verification required.", result.Message)
	})

	t.Run("LowScoreRejected", func(t *testing.T) {
		f := newBookingFixture()
		f.captcha.On("Enabled").Return(true)
		f.captcha.On("Verify", ctx, "tok").Return(true, 0.3, nil).Once()

		req := validSubmit()
		req.RecaptchaToken = "tok"
		result := f.svc.Submit(ctx, req)

		assert.False(t, result.Accepted)
		assert.Equal(t, "Security verification failed. Please refresh and try again.", result.Message)
	})

	t.Run("OracleFailureFailsClosed", func(t *testing.T) {
		f := newBookingFixture()
		f.captcha.On("Enabled").Return(true)
		f.captcha.On("Verify", ctx, "tok").Return(false, 0.0, errors.New("timeout")).Once()

		req := validSubmit()
		req.RecaptchaToken = "tok"
		result := f.svc.Submit(ctx, req)

		assert.False(t, result.Accepted)
		assert.Equal(t, http.StatusBadRequest, result.StatusCode)
	})

	t.Run("GoodScorePasses", func(t *testing.T) {
		f := newBookingFixture()
		f.captcha.On("Enabled").Return(true)
		f.captcha.On("Verify", ctx, "tok").Return(true, 0.9, nil).Once()
		f.quota.On("Take", ctx, "203.0.113.7", 3, time.Hour).Return(true, 2, nil).Once()
		f.repo.On("CountPendingByPhone", ctx, "09171234567").Return(0, nil).Once()
		f.resolver.On("ResolveDay", ctx, "2026-01-12").Return(openDay(1), nil).Once()
		f.repo.On("AdmitBooking", ctx, mock.AnythingOfType("*models.Booking"), 1).Return(nil).Once()

		req := validSubmit()
		req.RecaptchaToken = "tok"
		result := f.svc.Submit(ctx, req)

		assert.True(t, result.Accepted)
	})

	t.Run("SkippedWhenNotConfigured", func(t *testing.T) {
		f := newBookingFixture()
		f.captcha.On("Enabled").Return(false)
		f.quota.On("Take", ctx, "203.0.113.7", 3, time.Hour).Return(true, 2, nil).Once()
		f.repo.On("CountPendingByPhone", ctx, "09171234567").Return(0, nil).Once()
		f.resolver.On("ResolveDay", ctx, "2026-01-12").Return(openDay(1), nil).Once()
		f.repo.On("AdmitBooking", ctx, mock.AnythingOfType("*models.Booking"), 1).Return(nil).Once()

		result := f.svc.Submit(ctx, validSubmit())

		assert.True(t, result.Accepted)
		f.captcha.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
	})
}

func TestSubmitRateLimited(t *testing.T) {
	ctx := context.Background()
	f := newBookingFixture()

	f.captcha.On("Enabled").Return(false)
	f.quota.On("Take", ctx, "203.0.113.7", 3, time.Hour).Return(false, 0, nil).Once()

	result := f.svc.Submit(ctx, validSubmit())

	assert.False(t, result.Accepted)
	assert.Equal(t, http.StatusTooManyRequests, result.StatusCode)
	assert.Equal(t, "Too many booking attempts. Please try again in an hour.", result.Message)
	assert.Equal(t, 3600, result.RetryAfter)

	f.repo.AssertNotCalled(t, "CountPendingByPhone", mock.Anything, mock.Anything)
}

func TestSubmitQuotaBackendFailureAdmits(t *testing.T) {
	ctx := context.Background()
	f := newBookingFixture()

	f.captcha.On("Enabled").Return(false)
	f.quota.On("Take", ctx, "203.0.113.7", 3, time.Hour).Return(false, 0, errors.New("backend down")).Once()
	f.repo.On("CountPendingByPhone", ctx, "09171234567").Return(0, nil).Once()
	f.resolver.On("ResolveDay", ctx, "2026-01-12").Return(openDay(1), nil).Once()
	f.repo.On("AdmitBooking", ctx, mock.AnythingOfType("*models.Booking"), 1).Return(nil).Once()

	result := f.svc.Submit(ctx, validSubmit())

	assert.True(t, result.Accepted)
	assert.Equal(t, 0, result.Remaining)
}

func TestSubmitPendingCap(t *testing.T) {
	ctx := context.Background()
	f := newBookingFixture()

	f.captcha.On("Enabled").Return(false)
	f.quota.On("Take", ctx, "203.0.113.7", 3, time.Hour).Return(true, 1, nil).Once()
	f.repo.On("CountPendingByPhone", ctx, "09171234567").Return(2, nil).Once()

	result := f.svc.Submit(ctx, validSubmit())

	assert.False(t, result.Accepted)
	assert.Equal(t, http.StatusBadRequest, result.StatusCode)
	assert.Equal(t, "You already have 2 pending booking(s). Please wait for confirmation before booking again.", result.Message)

	// Quota was already consumed and is not refunded.
	f.quota.AssertExpectations(t)
	f.repo.AssertNotCalled(t, "AdmitBooking", mock.Anything, mock.Anything, mock.Anything)
}

func TestSubmitClosedDay(t *testing.T) {
	ctx := context.Background()
	f := newBookingFixture()

	f.captcha.On("Enabled").Return(false)
	f.quota.On("Take", ctx, "203.0.113.7", 3, time.Hour).Return(true, 2, nil).Once()
	f.repo.On("CountPendingByPhone", ctx, "09171234567").Return(0, nil).Once()
	f.resolver.On("ResolveDay", ctx, "2026-01-12").Return(&models.EffectiveDay{Open: false, Reason: "Closed"}, nil).Once()

	result := f.svc.Submit(ctx, validSubmit())

	assert.False(t, result.Accepted)
	assert.Equal(t, http.StatusBadRequest, result.StatusCode)
}

func TestSubmitSlotFull(t *testing.T) {
	ctx := context.Background()
	f := newBookingFixture()

	f.captcha.On("Enabled").Return(false)
	f.quota.On("Take", ctx, "203.0.113.7", 3, time.Hour).Return(true, 2, nil).Once()
	f.repo.On("CountPendingByPhone", ctx, "09171234567").Return(0, nil).Once()
	f.resolver.On("ResolveDay", ctx, "2026-01-12").Return(openDay(1), nil).Once()
	f.repo.On("AdmitBooking", ctx, mock.AnythingOfType("*models.Booking"), 1).Return(database.ErrSlotFull).Once()

	result := f.svc.Submit(ctx, validSubmit())

	assert.False(t, result.Accepted)
	assert.Equal(t, http.StatusConflict, result.StatusCode)
	assert.Equal(t, "This time slot is fully booked. Please choose another time.", result.Message)
}

func TestSubmitStorageError(t *testing.T) {
	ctx := context.Background()
	f := newBookingFixture()

	f.captcha.On("Enabled").Return(false)
	f.quota.On("Take", ctx, "203.0.113.7", 3, time.Hour).Return(true, 2, nil).Once()
	f.repo.On("CountPendingByPhone", ctx, "09171234567").Return(0, nil).Once()
	f.resolver.On("ResolveDay", ctx, "2026-01-12").Return(openDay(1), nil).Once()
	f.repo.On("AdmitBooking", ctx, mock.AnythingOfType("*models.Booking"), 1).Return(errors.New("disk full")).Once()

	result := f.svc.Submit(ctx, validSubmit())

	assert.False(t, result.Accepted)
	assert.Equal(t, http.StatusInternalServerError, result.StatusCode)
	assert.Equal(t, "Failed to create booking. Please try again.", result.Message)
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("ConfirmPending", func(t *testing.T) {
		f := newBookingFixture()
		var confirmed bool
		f.bus.Subscribe(events.EventBookingConfirmed, func(*events.Event) error {
			confirmed = true
			return nil
		})

		f.repo.On("GetBooking", ctx, "b-1").Return(&models.Booking{ID: "b-1", Status: models.StatusPending}, nil).Once()
		f.repo.On("UpdateBookingStatus", ctx, "b-1", models.StatusConfirmed).Return(nil).Once()

		booking, err := f.svc.UpdateStatus(ctx, "b-1", models.StatusConfirmed)
		require.NoError(t, err)
		assert.Equal(t, models.StatusConfirmed, booking.Status)
		assert.True(t, confirmed)
	})

	t.Run("CompleteConfirmed", func(t *testing.T) {
		f := newBookingFixture()
		f.repo.On("GetBooking", ctx, "b-2").Return(&models.Booking{ID: "b-2", Status: models.StatusConfirmed}, nil).Once()
		f.repo.On("UpdateBookingStatus", ctx, "b-2", models.StatusCompleted).Return(nil).Once()

		_, err := f.svc.UpdateStatus(ctx, "b-2", models.StatusCompleted)
		assert.NoError(t, err)
	})

	t.Run("InvalidTransitions", func(t *testing.T) {
		invalid := []struct{ from, to string }{
			{models.StatusPending, models.StatusCompleted},
			{models.StatusConfirmed, models.StatusCancelled},
			{models.StatusCompleted, models.StatusPending},
			{models.StatusCancelled, models.StatusConfirmed},
		}
		for _, tc := range invalid {
			f := newBookingFixture()
			f.repo.On("GetBooking", ctx, "b-3").Return(&models.Booking{ID: "b-3", Status: tc.from}, nil).Once()

			_, err := f.svc.UpdateStatus(ctx, "b-3", tc.to)
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s -> %s", tc.from, tc.to)
			f.repo.AssertNotCalled(t, "UpdateBookingStatus", mock.Anything, mock.Anything, mock.Anything)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		f := newBookingFixture()
		f.repo.On("GetBooking", ctx, "missing").Return(nil, database.ErrNotFound).Once()

		_, err := f.svc.UpdateStatus(ctx, "missing", models.StatusConfirmed)
		assert.ErrorIs(t, err, database.ErrNotFound)
	})
}

func TestDeleteBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("DeletableAtAnyStatus", func(t *testing.T) {
		for _, status := range []string{models.StatusPending, models.StatusConfirmed, models.StatusCompleted, models.StatusCancelled} {
			f := newBookingFixture()
			var deleted bool
			f.bus.Subscribe(events.EventBookingDeleted, func(*events.Event) error {
				deleted = true
				return nil
			})

			f.repo.On("GetBooking", ctx, "b-9").Return(&models.Booking{ID: "b-9", Status: status}, nil).Once()
			f.repo.On("DeleteBooking", ctx, "b-9").Return(nil).Once()

			require.NoError(t, f.svc.DeleteBooking(ctx, "b-9"))
			assert.True(t, deleted)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		f := newBookingFixture()
		f.repo.On("GetBooking", ctx, "missing").Return(nil, database.ErrNotFound).Once()

		err := f.svc.DeleteBooking(ctx, "missing")
		assert.ErrorIs(t, err, database.ErrNotFound)
	})
}
