package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"salonbook/internal/database"
	"salonbook/internal/models"
	"salonbook/internal/schedule"
	"salonbook/internal/service"
)

// daySettingDTO is the wire form of a weekly template row; times travel
// as "HH:MM:SS" strings.
type daySettingDTO struct {
	DayOfWeek          int     `json:"day_of_week"`
	IsOpen             bool    `json:"is_open"`
	OpenTime           string  `json:"open_time"`
	CloseTime          string  `json:"close_time"`
	SlotDuration       int     `json:"slot_duration_minutes"`
	MaxBookingsPerSlot int     `json:"max_bookings_per_slot"`
	BreakStart         *string `json:"break_start"`
	BreakEnd           *string `json:"break_end"`
}

type overrideDTO struct {
	Date               string  `json:"date"`
	IsClosed           bool    `json:"is_closed"`
	OpenTime           *string `json:"open_time,omitempty"`
	CloseTime          *string `json:"close_time,omitempty"`
	MaxBookingsPerSlot *int    `json:"max_bookings_per_slot,omitempty"`
	Reason             string  `json:"reason,omitempty"`
}

func toDaySettingDTO(row models.DaySchedule) daySettingDTO {
	dto := daySettingDTO{
		DayOfWeek:          row.DayOfWeek,
		IsOpen:             row.IsOpen,
		OpenTime:           row.OpenTime.Clock(),
		CloseTime:          row.CloseTime.Clock(),
		SlotDuration:       row.SlotDuration,
		MaxBookingsPerSlot: row.MaxBookingsPerSlot,
	}
	if row.BreakStart != nil {
		v := row.BreakStart.Clock()
		dto.BreakStart = &v
	}
	if row.BreakEnd != nil {
		v := row.BreakEnd.Clock()
		dto.BreakEnd = &v
	}
	return dto
}

func (dto daySettingDTO) toModel() (models.DaySchedule, error) {
	row := models.DaySchedule{
		DayOfWeek:          dto.DayOfWeek,
		IsOpen:             dto.IsOpen,
		SlotDuration:       dto.SlotDuration,
		MaxBookingsPerSlot: dto.MaxBookingsPerSlot,
	}

	var err error
	if row.OpenTime, err = schedule.ParseClock(dto.OpenTime); err != nil {
		return row, fmt.Errorf("day %d open_time: %w", dto.DayOfWeek, err)
	}
	if row.CloseTime, err = schedule.ParseClock(dto.CloseTime); err != nil {
		return row, fmt.Errorf("day %d close_time: %w", dto.DayOfWeek, err)
	}
	if dto.BreakStart != nil {
		v, err := schedule.ParseClock(*dto.BreakStart)
		if err != nil {
			return row, fmt.Errorf("day %d break_start: %w", dto.DayOfWeek, err)
		}
		row.BreakStart = &v
	}
	if dto.BreakEnd != nil {
		v, err := schedule.ParseClock(*dto.BreakEnd)
		if err != nil {
			return row, fmt.Errorf("day %d break_end: %w", dto.DayOfWeek, err)
		}
		row.BreakEnd = &v
	}
	return row, nil
}

func toOverrideDTO(ov models.DateOverride) overrideDTO {
	dto := overrideDTO{
		Date:               ov.Date,
		IsClosed:           ov.IsClosed,
		MaxBookingsPerSlot: ov.MaxBookingsPerSlot,
		Reason:             ov.Reason,
	}
	if ov.OpenTime != nil {
		v := ov.OpenTime.Clock()
		dto.OpenTime = &v
	}
	if ov.CloseTime != nil {
		v := ov.CloseTime.Clock()
		dto.CloseTime = &v
	}
	return dto
}

func (dto overrideDTO) toModel() (*models.DateOverride, error) {
	ov := &models.DateOverride{
		Date:               dto.Date,
		IsClosed:           dto.IsClosed,
		MaxBookingsPerSlot: dto.MaxBookingsPerSlot,
		Reason:             dto.Reason,
	}
	if dto.OpenTime != nil {
		v, err := schedule.ParseClock(*dto.OpenTime)
		if err != nil {
			return nil, fmt.Errorf("open_time: %w", err)
		}
		ov.OpenTime = &v
	}
	if dto.CloseTime != nil {
		v, err := schedule.ParseClock(*dto.CloseTime)
		if err != nil {
			return nil, fmt.Errorf("close_time: %w", err)
		}
		ov.CloseTime = &v
	}
	return ov, nil
}

// handleSchedule serves the availability query for a date, the raw
// template, and template updates.
func (s *HTTPServer) handleSchedule(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getSchedule(w, r)
	case http.MethodPut:
		s.putSchedule(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) getSchedule(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))

	// No date: return the weekly template plus upcoming overrides.
	if date == "" {
		rows, overrides, err := s.scheduleSvc.Template(r.Context())
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to fetch schedule settings")
			writeError(w, http.StatusInternalServerError, "Failed to fetch schedule settings")
			return
		}

		settings := make([]daySettingDTO, 0, len(rows))
		for _, row := range rows {
			settings = append(settings, toDaySettingDTO(row))
		}
		overrideDTOs := make([]overrideDTO, 0, len(overrides))
		for _, ov := range overrides {
			overrideDTOs = append(overrideDTOs, toOverrideDTO(ov))
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"settings":  settings,
			"overrides": overrideDTOs,
		})
		return
	}

	avail, err := s.scheduleSvc.Availability(r.Context(), date)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
			return
		}
		s.logger.Error().Err(err).Str("date", date).Msg("failed to compute availability")
		writeError(w, http.StatusInternalServerError, "An unexpected error occurred")
		return
	}

	writeJSON(w, http.StatusOK, avail)
}

func (s *HTTPServer) putSchedule(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Settings []daySettingDTO `json:"settings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid settings format")
		return
	}

	rows := make([]models.DaySchedule, 0, len(body.Settings))
	for _, dto := range body.Settings {
		row, err := dto.toModel()
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		rows = append(rows, row)
	}

	if err := s.scheduleSvc.UpdateTemplate(r.Context(), rows); err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("failed to update schedule")
		writeError(w, http.StatusInternalServerError, "Failed to update schedule")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *HTTPServer) handleOverrides(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listOverrides(w, r)
	case http.MethodPost:
		s.postOverride(w, r)
	case http.MethodDelete:
		s.deleteOverride(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) listOverrides(w http.ResponseWriter, r *http.Request) {
	overrides, err := s.scheduleSvc.Overrides(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list overrides")
		writeError(w, http.StatusInternalServerError, "Failed to fetch overrides")
		return
	}

	dtos := make([]overrideDTO, 0, len(overrides))
	for _, ov := range overrides {
		dtos = append(dtos, toOverrideDTO(ov))
	}
	writeJSON(w, http.StatusOK, map[string]any{"overrides": dtos})
}

func (s *HTTPServer) postOverride(w http.ResponseWriter, r *http.Request) {
	var dto overrideDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	override, err := dto.toModel()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.scheduleSvc.UpsertOverride(r.Context(), override); err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("failed to upsert override")
		writeError(w, http.StatusInternalServerError, "Failed to save override")
		return
	}

	writeJSON(w, http.StatusOK, toOverrideDTO(*override))
}

func (s *HTTPServer) deleteOverride(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}

	if err := s.scheduleSvc.DeleteOverride(r.Context(), date); err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error().Err(err).Msg("failed to delete override")
		writeError(w, http.StatusInternalServerError, "Failed to delete override")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.postBooking(w, r)
	case http.MethodGet:
		s.listBookings(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type bookingSubmission struct {
	CustomerName   string               `json:"customerName"`
	CustomerEmail  string               `json:"customerEmail"`
	CustomerPhone  string               `json:"customerPhone"`
	Services       []models.ServiceItem `json:"services"`
	BookingDate    string               `json:"bookingDate"`
	BookingTime    string               `json:"bookingTime"`
	Notes          string               `json:"notes"`
	TotalPrice     float64              `json:"totalPrice"`
	RecaptchaToken string               `json:"recaptchaToken"`
	Honeypot       string               `json:"honeypot"`
}

func (s *HTTPServer) postBooking(w http.ResponseWriter, r *http.Request) {
	var body bookingSubmission
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "Invalid request body.",
		})
		return
	}

	result := s.bookingSvc.Submit(r.Context(), &service.SubmitRequest{
		CustomerName:   body.CustomerName,
		CustomerEmail:  body.CustomerEmail,
		CustomerPhone:  body.CustomerPhone,
		Services:       body.Services,
		BookingDate:    body.BookingDate,
		BookingTime:    body.BookingTime,
		Notes:          body.Notes,
		TotalPrice:     body.TotalPrice,
		RecaptchaToken: body.RecaptchaToken,
		Honeypot:       body.Honeypot,
		ClientIP:       clientIP(r),
	})

	if !result.Accepted {
		payload := map[string]any{
			"success": false,
			"error":   result.Message,
		}
		if result.RetryAfter > 0 {
			payload["retryAfter"] = result.RetryAfter
		}
		writeJSON(w, result.StatusCode, payload)
		return
	}

	writeJSON(w, result.StatusCode, map[string]any{
		"success": true,
		"booking": map[string]any{
			"id":        result.Booking.ID,
			"status":    result.Booking.Status,
			"createdAt": result.Booking.CreatedAt,
		},
		"remaining": result.Remaining,
	})
}

func (s *HTTPServer) listBookings(w http.ResponseWriter, r *http.Request) {
	bookings, err := s.bookingSvc.ListBookings(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list bookings")
		writeError(w, http.StatusInternalServerError, "Failed to fetch bookings")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleBookingByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/bookings/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getBooking(w, r, id)
	case http.MethodPatch:
		s.patchBooking(w, r, id)
	case http.MethodDelete:
		s.deleteBooking(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) getBooking(w http.ResponseWriter, r *http.Request, id string) {
	booking, err := s.bookingSvc.GetBooking(r.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Booking not found")
			return
		}
		s.logger.Error().Err(err).Str("booking_id", id).Msg("failed to fetch booking")
		writeError(w, http.StatusInternalServerError, "Failed to fetch booking")
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) patchBooking(w http.ResponseWriter, r *http.Request, id string) {
	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
		writeError(w, http.StatusBadRequest, "status is required")
		return
	}

	booking, err := s.bookingSvc.UpdateStatus(r.Context(), id, body.Status)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			writeError(w, http.StatusNotFound, "Booking not found")
		case errors.Is(err, service.ErrInvalidTransition):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error().Err(err).Str("booking_id", id).Msg("failed to update booking status")
			writeError(w, http.StatusInternalServerError, "Failed to update booking")
		}
		return
	}

	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) deleteBooking(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.bookingSvc.DeleteBooking(r.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Booking not found")
			return
		}
		s.logger.Error().Err(err).Str("booking_id", id).Msg("failed to delete booking")
		writeError(w, http.StatusInternalServerError, "Failed to delete booking")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
