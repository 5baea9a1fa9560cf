package service

import (
	"context"
	"testing"
	"time"

	"github.com/restaurant-voice/backend/internal/db"
	"github.com/restaurant-voice/backend/internal/models"
	"github.com/restaurant-voice/backend/internal/policy"
)

func seedStore(t *testing.T, store *db.MemoryStore, start time.Time, party, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		_, err := store.CreateReservation(context.Background(), models.ReservationDraft{
			Name:            "Guest",
			Phone:           "+421900000100",
			StartAt:         start,
			DurationMinutes: 90,
			PartySize:       party,
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestAvailabilityCapacity(t *testing.T) {
	p, _ := testClock(t)
	store := db.NewMemoryStore()
	checker := NewAvailabilityChecker(store, p)
	ctx := context.Background()
	at := time.Date(2026, 10, 18, 19, 0, 0, 0, p.Location)

	seedStore(t, store, at, 20, 5)
	seedStore(t, store, at.Add(-time.Hour), 15, 1)

	got, err := checker.Check(ctx, at.Add(30*time.Minute), 6, "")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if got.Available || got.SeatsTaken != 115 || got.SeatsLeft != 5 || got.Overlapping != 6 || got.Reason == "" {
		t.Fatalf("availability = %+v", got)
	}

	got, _ = checker.Check(ctx, at.Add(30*time.Minute), 5, "")
	if !got.Available {
		t.Fatalf("five seats are left: %+v", got)
	}

	// 20:00 is exactly one turnover after 18:00, so only the 19:00 block counts.
	got, _ = checker.Check(ctx, at.Add(time.Hour), 20, "")
	if !got.Available || got.SeatsTaken != 100 {
		t.Fatalf("turnover boundary: %+v", got)
	}
}

func TestAvailabilityConcurrentLimit(t *testing.T) {
	p, _ := testClock(t)
	store := db.NewMemoryStore()
	checker := NewAvailabilityChecker(store, p)
	at := time.Date(2026, 10, 18, 19, 0, 0, 0, p.Location)
	seedStore(t, store, at, 1, 15)

	got, err := checker.Check(context.Background(), at, 1, "")
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if got.Available || got.Overlapping != 15 || got.SeatsLeft != 105 {
		t.Fatalf("availability = %+v", got)
	}

	all, _ := store.FindReservations(context.Background(), models.ReservationFilter{})
	got, _ = checker.Check(context.Background(), at, 1, all[0].ID)
	if !got.Available {
		t.Fatalf("excluding one reservation frees a table: %+v", got)
	}
}

func TestOpenSlots(t *testing.T) {
	p, clock := testClock(t)
	store := db.NewMemoryStore()
	checker := NewAvailabilityChecker(store, p)
	ctx := context.Background()
	sunday := time.Date(2026, 10, 18, 0, 0, 0, 0, p.Location)

	slots, err := checker.OpenSlots(ctx, sunday, 2, clock())
	if err != nil {
		t.Fatalf("open slots: %v", err)
	}
	if len(slots) != 24 || slots[0].Hour() != 10 || slots[len(slots)-1].Format("15:04") != "21:30" {
		t.Fatalf("slots = %v", slots)
	}

	today, _ := checker.OpenSlots(ctx, clock(), 2, clock())
	if len(today) == 0 || today[0].Format("15:04") != "11:00" {
		t.Fatalf("today's slots must respect lead time: %v", today)
	}

	seedStore(t, store, sunday.Add(19*time.Hour), 30, 4)
	slots, _ = checker.OpenSlots(ctx, sunday, 2, clock())
	if len(slots) != 17 {
		t.Fatalf("expected 17 slots around a full evening, got %d: %v", len(slots), slots)
	}
	for _, s := range slots {
		if s.Format("15:04") == "19:00" || s.Format("15:04") == "20:30" {
			t.Fatalf("full slot %s offered", s.Format("15:04"))
		}
	}

	p.Special = map[string]policy.SpecialDay{"2026-10-21": {Date: "2026-10-21", Closed: true}}
	closed := NewAvailabilityChecker(store, p)
	none, err := closed.OpenSlots(ctx, sunday.AddDate(0, 0, 3), 2, clock())
	if err != nil || none != nil {
		t.Fatalf("closed date slots = %v, err = %v", none, err)
	}
}

func TestAnnotateFullSlot(t *testing.T) {
	p, clock := testClock(t)
	store := db.NewMemoryStore()
	checker := NewAvailabilityChecker(store, p)
	v := NewValidator(p, NewIdempotencyRegistry(), "+421")
	v.Now = clock
	ctx := context.Background()

	_, res := v.Validate(validRequest())
	if err := checker.Annotate(ctx, &res); err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if !res.Valid || res.Stages[len(res.Stages)-1] != "availability" {
		t.Fatalf("an empty evening is available: %+v", res)
	}

	seedStore(t, store, time.Date(2026, 10, 18, 19, 0, 0, 0, p.Location), 40, 3)
	_, res = v.Validate(validRequest())
	if err := checker.Annotate(ctx, &res); err != nil {
		t.Fatalf("annotate: %v", err)
	}
	if res.Valid || !res.HasCode("NOT_AVAILABLE") || res.Errors[0].Category != CategoryAvailability {
		t.Fatalf("result = %+v", res)
	}

	req := validRequest()
	req.Phone = ""
	_, res = v.Validate(req)
	_ = checker.Annotate(ctx, &res)
	if res.HasCode("NOT_AVAILABLE") {
		t.Fatalf("failed results are not checked for capacity")
	}
}
