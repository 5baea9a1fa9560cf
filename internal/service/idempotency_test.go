package service

import (
	"testing"
	"time"

	"github.com/restaurant-voice/backend/internal/models"
)

func TestFingerprint(t *testing.T) {
	loc := time.FixedZone("CEST", 2*60*60)
	start := time.Date(2026, 10, 18, 19, 0, 0, 0, loc)

	a := Fingerprint("+421901234567", start, 2)
	if a != Fingerprint("+421901234567", start, 2) {
		t.Fatalf("fingerprint is not stable")
	}
	if len(a) != 16 {
		t.Fatalf("fingerprint %q has length %d", a, len(a))
	}
	for name, other := range map[string]string{
		"phone": Fingerprint("+421901234568", start, 2),
		"time":  Fingerprint("+421901234567", start.Add(15*time.Minute), 2),
		"party": Fingerprint("+421901234567", start, 3),
	} {
		if other == a {
			t.Errorf("changing %s kept the fingerprint", name)
		}
	}
}

func TestRegistryFindDuplicate(t *testing.T) {
	r := NewIdempotencyRegistry()
	start := time.Date(2026, 10, 18, 19, 0, 0, 0, time.UTC)
	fp := Fingerprint("+421901234567", start, 4)
	r.Register(fp)
	r.Register("")
	if r.Len() != 1 || !r.Contains(fp) {
		t.Fatalf("registry = %d entries", r.Len())
	}

	cases := []struct {
		offset time.Duration
		party  int
		want   bool
	}{
		{0, 4, true},
		{15 * time.Minute, 4, true},
		{-30 * time.Minute, 4, true},
		{45 * time.Minute, 4, false},
		{0, 5, false},
		{10 * time.Minute, 4, false},
	}
	for _, tc := range cases {
		got, ok := r.FindDuplicate("+421901234567", start.Add(tc.offset), tc.party, 30*time.Minute, 15*time.Minute)
		if ok != tc.want {
			t.Errorf("offset %v party %d: duplicate = %v, want %v", tc.offset, tc.party, ok, tc.want)
		}
		if ok && got != fp {
			t.Errorf("offset %v: matched %s, want %s", tc.offset, got, fp)
		}
	}

	if _, ok := r.FindDuplicate("+421901234567", start.Add(15*time.Minute), 4, 30*time.Minute, 0); ok {
		t.Fatalf("a zero step only probes the exact fingerprint")
	}

	r.Unregister(fp)
	if r.Contains(fp) {
		t.Fatalf("fingerprint still present after unregister")
	}
}

func TestRegistryRebuild(t *testing.T) {
	r := NewIdempotencyRegistry()
	r.Register("stale")
	n := r.Rebuild([]models.Reservation{
		{ID: "a", Fingerprint: "fp-a", Status: models.StatusConfirmed},
		{ID: "b", Fingerprint: "fp-b", Status: models.StatusPending},
		{ID: "c", Fingerprint: "fp-c", Status: models.StatusCancelled},
		{ID: "d", Status: models.StatusConfirmed},
	})
	if n != 2 || r.Len() != 2 {
		t.Fatalf("rebuilt %d, len %d", n, r.Len())
	}
	if r.Contains("stale") || r.Contains("fp-c") || !r.Contains("fp-a") || !r.Contains("fp-b") {
		t.Fatalf("unexpected registry contents after rebuild")
	}
}
