package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/restaurant-voice/backend/internal/db"
	"github.com/restaurant-voice/backend/internal/dialogue"
	"github.com/restaurant-voice/backend/internal/http/middleware"
	"github.com/restaurant-voice/backend/internal/models"
	"github.com/restaurant-voice/backend/internal/policy"
	"github.com/restaurant-voice/backend/internal/service"
	"github.com/restaurant-voice/backend/internal/session"
)

const testAdminKey = "secret"

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestHandler wires the API to memory stores on Saturday 2026-10-17
// 10:00 in Bratislava.
func newTestHandler(t *testing.T) (*Handler, *db.MemoryStore) {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Bratislava")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	now := time.Date(2026, 10, 17, 10, 0, 0, 0, loc)
	clock := func() time.Time { return now }

	p := policy.Default(loc)
	store := db.NewMemoryStore()
	registry := service.NewIdempotencyRegistry()
	reservations := service.NewValidator(p, registry, "+421")
	reservations.Now = clock
	bookings := service.NewBookingService(store, service.NewAvailabilityChecker(store, p), registry, nil, zerolog.Nop())
	bookings.Now = clock
	menu, err := service.LoadMenu("")
	if err != nil {
		t.Fatalf("load menu: %v", err)
	}
	engine := dialogue.NewEngine(p, reservations, bookings, menu, dialogue.Config{RestaurantName: "Test Bistro", CountryCode: "+421"}, zerolog.Nop())
	engine.Now = clock
	manager := session.NewManager(session.NewMemoryStore(time.Hour), engine, store, zerolog.Nop())
	manager.Now = clock

	h := &Handler{
		Store:        store,
		Bookings:     bookings,
		Reservations: reservations,
		Sessions:     manager,
		Menu:         menu,
		Policy:       p,
		Validator:    validator.New(),
		Logger:       zerolog.Nop(),
		Voice: VoiceConfig{
			PublicBaseURL: "https://voice.example.com/",
			OperatorPhone: "+421200000999",
			Language:      "en-US",
			Voice:         "Polly.Joanna",
		},
	}
	return h, store
}

func newTestRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.GET("/healthz", h.Healthz)
	r.POST("/twilio/voice", h.TwilioVoice)
	r.POST("/twilio/step", h.TwilioStep)
	r.POST("/twilio/status", h.TwilioStatus)

	api := r.Group("/api")
	api.Use(middleware.AdminKey(testAdminKey))
	api.GET("/reservations", h.ReservationsList)
	api.GET("/reservations/:id", h.ReservationDetails)
	api.POST("/reservations/:id/cancel", h.ReservationCancel)
	api.POST("/reservations/validate", h.ReservationValidate)
	api.GET("/availability", h.Availability)
	api.GET("/calls", h.CallsList)
	api.GET("/calls/active", h.CallsActive)
	api.GET("/menu", h.MenuGet)
	return r
}

func postForm(t *testing.T, r http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func adminRequest(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.AdminKeyHeader, testAdminKey)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
}

func seedReservation(t *testing.T, h *Handler, name, phone string, hour, party int) models.Reservation {
	t.Helper()
	start := time.Date(2026, 10, 18, hour, 0, 0, 0, h.Policy.Location)
	r, err := h.Bookings.Create(context.Background(), models.ReservationDraft{
		Name:            name,
		Phone:           phone,
		StartAt:         start,
		DurationMinutes: 90,
		PartySize:       party,
		Fingerprint:     service.Fingerprint(phone, start, party),
		Source:          "admin",
	})
	if err != nil {
		t.Fatalf("seed reservation: %v", err)
	}
	return r
}
