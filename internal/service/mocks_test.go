package service

import (
	"context"
	"time"

	"salonbook/internal/models"
	"salonbook/internal/schedule"

	"github.com/stretchr/testify/mock"
)

type mockScheduleRepo struct {
	mock.Mock
}

func (m *mockScheduleRepo) GetTemplate(ctx context.Context) ([]models.DaySchedule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DaySchedule), args.Error(1)
}
func (m *mockScheduleRepo) GetDaySchedule(ctx context.Context, dayOfWeek int) (*models.DaySchedule, error) {
	args := m.Called(ctx, dayOfWeek)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DaySchedule), args.Error(1)
}
func (m *mockScheduleRepo) PutTemplate(ctx context.Context, rows []models.DaySchedule) error {
	return m.Called(ctx, rows).Error(0)
}
func (m *mockScheduleRepo) GetOverride(ctx context.Context, date string) (*models.DateOverride, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DateOverride), args.Error(1)
}
func (m *mockScheduleRepo) ListOverrides(ctx context.Context, fromDate string) ([]models.DateOverride, error) {
	args := m.Called(ctx, fromDate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.DateOverride), args.Error(1)
}
func (m *mockScheduleRepo) UpsertOverride(ctx context.Context, override *models.DateOverride) error {
	return m.Called(ctx, override).Error(0)
}
func (m *mockScheduleRepo) DeleteOverride(ctx context.Context, date string) error {
	return m.Called(ctx, date).Error(0)
}

type mockBookingRepo struct {
	mock.Mock
}

func (m *mockBookingRepo) AdmitBooking(ctx context.Context, booking *models.Booking, maxPerSlot int) error {
	return m.Called(ctx, booking, maxPerSlot).Error(0)
}
func (m *mockBookingRepo) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockBookingRepo) ListBookings(ctx context.Context) ([]models.Booking, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}
func (m *mockBookingRepo) UpdateBookingStatus(ctx context.Context, id, status string) error {
	return m.Called(ctx, id, status).Error(0)
}
func (m *mockBookingRepo) DeleteBooking(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockBookingRepo) CountPendingByPhone(ctx context.Context, phone string) (int, error) {
	args := m.Called(ctx, phone)
	return args.Int(0), args.Error(1)
}
func (m *mockBookingRepo) SlotOccupancy(ctx context.Context, date string) (map[schedule.Minutes]int, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[schedule.Minutes]int), args.Error(1)
}

type mockQuota struct {
	mock.Mock
}

func (m *mockQuota) Take(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Int(1), args.Error(2)
}

type mockCaptcha struct {
	mock.Mock
}

func (m *mockCaptcha) Enabled() bool {
	return m.Called().Bool(0)
}
func (m *mockCaptcha) Verify(ctx context.Context, token string) (bool, float64, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Get(1).(float64), args.Error(2)
}

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) ResolveDay(ctx context.Context, date string) (*models.EffectiveDay, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EffectiveDay), args.Error(1)
}

// fixedClock pins calendar-sensitive logic to a known instant.
type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }
