package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/restaurant-voice/backend/internal/models"
	"github.com/restaurant-voice/backend/internal/policy"
	"github.com/restaurant-voice/backend/internal/service"
	"github.com/restaurant-voice/backend/internal/session"
)

// Store is the read side of persistence used directly by the API.
type Store interface {
	Ping(ctx context.Context) error
	GetReservation(ctx context.Context, id string) (models.Reservation, error)
	ListCalls(ctx context.Context, limit, offset int) ([]models.CallLog, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// VoiceConfig controls how replies are rendered as TwiML.
type VoiceConfig struct {
	PublicBaseURL string
	OperatorPhone string
	Language      string
	Voice         string
}

type Handler struct {
	Store        Store
	Bookings     *service.BookingService
	Reservations *service.Validator
	Sessions     *session.Manager
	Menu         *service.Menu
	Policy       policy.Policy
	Validator    *validator.Validate
	Logger       zerolog.Logger
	Voice        VoiceConfig
}

// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	if h.Sessions != nil {
		if p, ok := h.Sessions.Store.(pinger); ok {
			if err := p.Ping(ctx); err != nil {
				writeError(c, http.StatusServiceUnavailable, "SESSIONS_UNAVAILABLE", "Session store unavailable", err.Error())
				return
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

// page reads limit and offset, clamping limit to 1..200 with a default of 50.
func page(c *gin.Context) (int, int) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		limit = 50
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 200 {
		limit = 200
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
