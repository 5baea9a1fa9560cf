package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/restaurant-voice/backend/internal/models"
	"github.com/restaurant-voice/backend/internal/service"
)

type reservationList struct {
	Items  []models.Reservation `json:"items"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

func TestAdminRequiresKey(t *testing.T) {
	h, _ := newTestHandler(t)
	r := newTestRouter(h)

	req, _ := http.NewRequest(http.MethodGet, "/api/reservations", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestReservationsList(t *testing.T) {
	h, _ := newTestHandler(t)
	r := newTestRouter(h)
	seedReservation(t, h, "Maria Novak", "+421901234567", 18, 2)
	seedReservation(t, h, "Peter Horvath", "+421902222333", 20, 4)

	var list reservationList
	w := adminRequest(t, r, http.MethodGet, "/api/reservations?date=2026-10-18", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	decode(t, w, &list)
	if len(list.Items) != 2 || list.Limit != 50 || list.Offset != 0 {
		t.Fatalf("list = %+v", list)
	}

	list = reservationList{}
	decode(t, adminRequest(t, r, http.MethodGet, "/api/reservations?phone=0901234567", nil), &list)
	if len(list.Items) != 1 || list.Items[0].Name != "Maria Novak" {
		t.Fatalf("phone filter = %+v", list.Items)
	}

	list = reservationList{}
	decode(t, adminRequest(t, r, http.MethodGet, "/api/reservations?name=horv&limit=500", nil), &list)
	if len(list.Items) != 1 || list.Limit != 200 {
		t.Fatalf("name filter = %+v", list)
	}

	list = reservationList{}
	decode(t, adminRequest(t, r, http.MethodGet, "/api/reservations?date=2026-10-19", nil), &list)
	if list.Items == nil || len(list.Items) != 0 {
		t.Fatalf("expected an empty list, got %+v", list.Items)
	}

	for _, q := range []string{"status=seated", "date=18.10.2026", "phone=12"} {
		if w := adminRequest(t, r, http.MethodGet, "/api/reservations?"+q, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, w.Code)
		}
	}
}

func TestReservationDetailsAndCancel(t *testing.T) {
	h, _ := newTestHandler(t)
	r := newTestRouter(h)
	res := seedReservation(t, h, "Maria Novak", "+421901234567", 18, 2)

	var got models.Reservation
	w := adminRequest(t, r, http.MethodGet, "/api/reservations/"+res.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	decode(t, w, &got)
	if got.ID != res.ID || got.Status != models.StatusConfirmed {
		t.Fatalf("details = %+v", got)
	}

	if w := adminRequest(t, r, http.MethodGet, "/api/reservations/missing", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	w = adminRequest(t, r, http.MethodPost, "/api/reservations/"+res.ID+"/cancel", CancelRequest{Reason: "guest called the restaurant"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	got = models.Reservation{}
	decode(t, w, &got)
	if got.Status != models.StatusCancelled || got.CancelReason != "guest called the restaurant" {
		t.Fatalf("cancelled = %+v", got)
	}
	if h.Bookings.Registry.Len() != 0 {
		t.Fatalf("fingerprint still registered after cancel")
	}

	if w := adminRequest(t, r, http.MethodPost, "/api/reservations/"+res.ID+"/cancel", CancelRequest{}); w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if w := adminRequest(t, r, http.MethodPost, "/api/reservations/missing/cancel", CancelRequest{}); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestReservationValidate(t *testing.T) {
	h, store := newTestHandler(t)
	r := newTestRouter(h)

	var result service.ValidationResult
	w := adminRequest(t, r, http.MethodPost, "/api/reservations/validate", service.ReservationRequest{
		Name: "Anna", Phone: "0901 234 567", Date: "2026-10-18", Time: "19:00", PartySize: 2,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	decode(t, w, &result)
	if !result.Valid || result.Normalized.Phone != "+421901234567" || result.Normalized.DurationMinutes != 90 {
		t.Fatalf("result = %+v", result)
	}

	result = service.ValidationResult{}
	decode(t, adminRequest(t, r, http.MethodPost, "/api/reservations/validate", service.ReservationRequest{
		Name: "Anna", Phone: "12", Date: "2026-10-18", Time: "19:10", PartySize: 2,
	}), &result)
	if result.Valid || len(result.Errors) == 0 {
		t.Fatalf("expected errors, got %+v", result)
	}
	if result.Errors[0].Field != service.FieldPhone {
		t.Fatalf("first error = %+v", result.Errors[0])
	}

	if w := adminRequest(t, r, http.MethodPost, "/api/reservations/validate", map[string]any{"phone": "0901234567"}); w.Code != http.StatusBadRequest {
		t.Fatalf("missing fields: expected 400, got %d", w.Code)
	}
	if n := len(store.Audit()); n != 0 {
		t.Fatalf("validation must not write, audit has %d entries", n)
	}

	for i := 1; i <= 6; i++ {
		seedReservation(t, h, "Party", fmt.Sprintf("+42190300000%d", i), 19, 20)
	}
	result = service.ValidationResult{}
	decode(t, adminRequest(t, r, http.MethodPost, "/api/reservations/validate", service.ReservationRequest{
		Name: "Anna", Phone: "0901 234 567", Date: "2026-10-18", Time: "19:00", PartySize: 2,
	}), &result)
	if result.Valid || !result.HasCode("NOT_AVAILABLE") {
		t.Fatalf("expected a capacity error, got %+v", result)
	}
}

func TestAvailability(t *testing.T) {
	h, _ := newTestHandler(t)
	r := newTestRouter(h)

	var resp AvailabilityResponse
	w := adminRequest(t, r, http.MethodGet, "/api/availability?"+url.Values{"date": {"2026-10-18"}, "party_size": {"2"}}.Encode(), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	decode(t, w, &resp)
	if !resp.Open || len(resp.Slots) == 0 || resp.Slots[0] != "10:00" {
		t.Fatalf("availability = %+v", resp)
	}
	found := false
	for _, s := range resp.Slots {
		if s == "19:00" {
			found = true
		}
		if s == "22:30" {
			t.Fatalf("slot after the last seating offered: %v", resp.Slots)
		}
	}
	if !found {
		t.Fatalf("19:00 missing from %v", resp.Slots)
	}

	for _, q := range []string{"date=tomorrow", "date=2026-10-18&party_size=50", "date=2026-10-18&party_size=zero"} {
		if w := adminRequest(t, r, http.MethodGet, "/api/availability?"+q, nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, w.Code)
		}
	}
}

func TestCallsListInlinesTranscript(t *testing.T) {
	h, _ := newTestHandler(t)
	r := newTestRouter(h)
	postForm(t, r, "/twilio/voice", call("CA8"))
	postForm(t, r, "/twilio/step", call("CA8", "SpeechResult", "what is on the menu"))

	var list struct {
		Items []struct {
			CallSID    string           `json:"call_sid"`
			Intent     string           `json:"intent"`
			Transcript []map[string]any `json:"transcript"`
		} `json:"items"`
	}
	w := adminRequest(t, r, http.MethodGet, "/api/calls", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	decode(t, w, &list)
	if len(list.Items) != 1 || list.Items[0].CallSID != "CA8" || list.Items[0].Intent != "menu" {
		t.Fatalf("calls = %+v", list.Items)
	}
	if len(list.Items[0].Transcript) != 3 || list.Items[0].Transcript[1]["text"] != "what is on the menu" {
		t.Fatalf("transcript = %+v", list.Items[0].Transcript)
	}

	var active struct {
		Items []string `json:"items"`
	}
	decode(t, adminRequest(t, r, http.MethodGet, "/api/calls/active", nil), &active)
	if len(active.Items) != 1 || active.Items[0] != "CA8" {
		t.Fatalf("active = %+v", active.Items)
	}
}

func TestMenuGet(t *testing.T) {
	h, _ := newTestHandler(t)
	r := newTestRouter(h)

	var resp struct {
		Summary    service.MenuSummary    `json:"summary"`
		Categories []service.MenuCategory `json:"categories"`
	}
	w := adminRequest(t, r, http.MethodGet, "/api/menu", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	decode(t, w, &resp)
	if resp.Summary.ItemCount == 0 || len(resp.Categories) == 0 || resp.Summary.Currency == "" {
		t.Fatalf("menu = %+v", resp)
	}
}
