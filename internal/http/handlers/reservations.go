package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/restaurant-voice/backend/internal/models"
	"github.com/restaurant-voice/backend/internal/normalize"
	"github.com/restaurant-voice/backend/internal/policy"
	"github.com/restaurant-voice/backend/internal/service"
)

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type AvailabilityResponse struct {
	Date      string   `json:"date"`
	PartySize int      `json:"party_size"`
	Open      bool     `json:"open"`
	Hours     string   `json:"hours,omitempty"`
	Note      string   `json:"note,omitempty"`
	Slots     []string `json:"slots"`
}

// CallView is a call log with the transcript inlined as JSON.
type CallView struct {
	models.CallLog
	Transcript json.RawMessage `json:"transcript,omitempty"`
}

// @Summary List reservations
// @Tags reservations
// @Produce json
// @Param status query string false "pending, confirmed, cancelled, completed or no_show"
// @Param date query string false "YYYY-MM-DD"
// @Param name query string false "Name substring"
// @Param phone query string false "Phone number"
// @Param limit query int false "1-200, default 50"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /api/reservations [get]
func (h *Handler) ReservationsList(c *gin.Context) {
	filter := models.ReservationFilter{Name: strings.TrimSpace(c.Query("name"))}

	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := models.ReservationStatus(strings.ToLower(raw))
		if !status.Valid() {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Unknown status", raw)
			return
		}
		filter.Status = status
	}
	if raw := strings.TrimSpace(c.Query("date")); raw != "" {
		day, err := time.ParseInLocation(policy.DateLayout, raw, h.Policy.Location)
		if err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "date must be YYYY-MM-DD", raw)
			return
		}
		filter.From = day
		filter.To = day.AddDate(0, 0, 1)
	}
	if raw := strings.TrimSpace(c.Query("phone")); raw != "" {
		phone, err := normalize.Phone(raw, h.Reservations.CountryCode)
		if err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid phone", err.Error())
			return
		}
		filter.Phone = phone
	}
	filter.Limit, filter.Offset = page(c)

	items, err := h.Bookings.Find(c.Request.Context(), filter)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list reservations", err.Error())
		return
	}
	if items == nil {
		items = []models.Reservation{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": filter.Limit, "offset": filter.Offset})
}

// @Summary Reservation details
// @Tags reservations
// @Produce json
// @Param id path string true "Reservation ID"
// @Success 200 {object} models.Reservation
// @Failure 404 {object} map[string]any
// @Router /api/reservations/{id} [get]
func (h *Handler) ReservationDetails(c *gin.Context) {
	res, err := h.Store.GetReservation(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Reservation not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get reservation", err.Error())
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary Cancel reservation
// @Tags reservations
// @Accept json
// @Produce json
// @Param id path string true "Reservation ID"
// @Param payload body CancelRequest false "Cancellation reason"
// @Success 200 {object} models.Reservation
// @Failure 404 {object} map[string]any
// @Failure 409 {object} map[string]any
// @Router /api/reservations/{id}/cancel [post]
func (h *Handler) ReservationCancel(c *gin.Context) {
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Validation failed", err.Error())
		return
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		reason = "cancelled by staff"
	}

	res, err := h.Bookings.Cancel(c.Request.Context(), c.Param("id"), reason)
	switch {
	case errors.Is(err, models.ErrNotFound):
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Reservation not found", nil)
	case errors.Is(err, models.ErrAlreadyCancelled):
		writeError(c, http.StatusConflict, "ALREADY_CANCELLED", "Reservation is already cancelled", res.CancelReason)
	case err != nil:
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to cancel reservation", err.Error())
	default:
		c.JSON(http.StatusOK, res)
	}
}

// @Summary Validate reservation
// @Description Runs the reservation rules and the capacity check without storing anything.
// @Tags reservations
// @Accept json
// @Produce json
// @Param payload body service.ReservationRequest true "Reservation"
// @Success 200 {object} service.ValidationResult
// @Failure 400 {object} map[string]any
// @Router /api/reservations/validate [post]
func (h *Handler) ReservationValidate(c *gin.Context) {
	var req service.ReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Validation failed", err.Error())
		return
	}
	req.Source = "admin"
	_, result := h.Reservations.Validate(req)
	if err := h.Bookings.Availability.Annotate(c.Request.Context(), &result); err != nil {
		h.Logger.Warn().Err(err).Msg("availability check failed during validation")
	}
	c.JSON(http.StatusOK, result)
}

// @Summary Open slots
// @Tags reservations
// @Produce json
// @Param date query string true "YYYY-MM-DD"
// @Param party_size query int false "Party size, default 2"
// @Success 200 {object} AvailabilityResponse
// @Failure 400 {object} map[string]any
// @Router /api/availability [get]
func (h *Handler) Availability(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("date"))
	day, err := time.ParseInLocation(policy.DateLayout, raw, h.Policy.Location)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "date must be YYYY-MM-DD", raw)
		return
	}
	party, err := strconv.Atoi(c.DefaultQuery("party_size", "2"))
	rules := h.Policy.Rules
	if err != nil || party < rules.MinPartySize || party > rules.MaxPartySize {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "party_size out of range", gin.H{
			"min": rules.MinPartySize,
			"max": rules.MaxPartySize,
		})
		return
	}

	resp := AvailabilityResponse{Date: raw, PartySize: party, Slots: []string{}}
	if sd, ok := h.Policy.SpecialOn(day); ok {
		resp.Note = sd.Description
	}
	hours, open := h.Policy.HoursOn(day)
	resp.Open = open
	if !open {
		c.JSON(http.StatusOK, resp)
		return
	}
	resp.Hours = hours.String()

	slots, err := h.Bookings.OpenSlots(c.Request.Context(), day, party)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load availability", err.Error())
		return
	}
	for _, s := range slots {
		resp.Slots = append(resp.Slots, h.Policy.In(s).Format("15:04"))
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary List calls
// @Tags calls
// @Produce json
// @Param limit query int false "1-200, default 50"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]any
// @Router /api/calls [get]
func (h *Handler) CallsList(c *gin.Context) {
	limit, offset := page(c)
	logs, err := h.Store.ListCalls(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list calls", err.Error())
		return
	}
	items := make([]CallView, 0, len(logs))
	for _, l := range logs {
		v := CallView{CallLog: l}
		if json.Valid(l.Transcript) {
			v.Transcript = l.Transcript
		}
		items = append(items, v)
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
}

// @Summary Live calls
// @Tags calls
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/calls/active [get]
func (h *Handler) CallsActive(c *gin.Context) {
	ids, err := h.Sessions.Active(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusServiceUnavailable, "SESSIONS_UNAVAILABLE", "Failed to list live calls", err.Error())
		return
	}
	if ids == nil {
		ids = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"items": ids})
}

// @Summary Menu
// @Tags menu
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/menu [get]
func (h *Handler) MenuGet(c *gin.Context) {
	if h.Menu == nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "No menu loaded", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": h.Menu.Summary(), "categories": h.Menu.Categories})
}
