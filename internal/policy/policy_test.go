package policy

import (
	"testing"
	"time"
)

func bratislava(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Bratislava")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestHoursOnWeekdayAndWeekend(t *testing.T) {
	loc := bratislava(t)
	p := Default(loc)

	mon := time.Date(2026, 10, 19, 12, 0, 0, 0, loc)
	h, ok := p.HoursOn(mon)
	if !ok || h.Open != At(11, 0) || h.Close != At(23, 0) {
		t.Fatalf("monday hours = %v %v", h, ok)
	}
	sat := time.Date(2026, 10, 17, 12, 0, 0, 0, loc)
	h, ok = p.HoursOn(sat)
	if !ok || h.Open != At(10, 0) || h.Close != At(23, 59) {
		t.Fatalf("saturday hours = %v %v", h, ok)
	}
	if got := p.LastReservation(h); got != At(21, 59) {
		t.Fatalf("last reservation = %s", got)
	}
}

func TestSpecialDayOverridesWeekly(t *testing.T) {
	loc := bratislava(t)
	p := Default(loc)
	p.Special["2026-12-24"] = SpecialDay{Date: "2026-12-24", Hours: Hours{Open: At(10, 0), Close: At(16, 0)}, Description: "Christmas Eve"}
	p.Special["2026-12-25"] = SpecialDay{Date: "2026-12-25", Closed: true}

	h, ok := p.HoursOn(time.Date(2026, 12, 24, 0, 0, 0, 0, loc))
	if !ok || h.Close != At(16, 0) {
		t.Fatalf("special hours not applied: %v", h)
	}
	if _, ok := p.HoursOn(time.Date(2026, 12, 25, 0, 0, 0, 0, loc)); ok {
		t.Fatalf("expected closed date")
	}
}

func TestDurationFor(t *testing.T) {
	p := Default(time.UTC)
	cases := map[int]time.Duration{
		2:  90 * time.Minute,
		6:  105 * time.Minute,
		10: 120 * time.Minute,
	}
	for party, want := range cases {
		if got := p.DurationFor(party); got != want {
			t.Errorf("party %d: got %s want %s", party, got, want)
		}
	}
	p.Rules.MaxDuration = 100 * time.Minute
	if got := p.DurationFor(12); got != 100*time.Minute {
		t.Fatalf("expected cap at max, got %s", got)
	}
}

func TestFitToClosing(t *testing.T) {
	loc := bratislava(t)
	p := Default(loc)
	start := time.Date(2026, 10, 19, 21, 30, 0, 0, loc)

	d, adjusted, ok := p.FitToClosing(start, 90*time.Minute)
	if !ok || adjusted || d != 90*time.Minute {
		t.Fatalf("ending exactly at close should fit unchanged: %s %v %v", d, adjusted, ok)
	}
	d, adjusted, ok = p.FitToClosing(start, 120*time.Minute)
	if !ok || !adjusted || d != 90*time.Minute {
		t.Fatalf("expected shrink to 90m, got %s %v %v", d, adjusted, ok)
	}
	late := time.Date(2026, 10, 19, 22, 30, 0, 0, loc)
	if _, _, ok := p.FitToClosing(late, 90*time.Minute); ok {
		t.Fatalf("expected 30 minute remainder to be rejected")
	}
}

func TestSlotsOn(t *testing.T) {
	loc := bratislava(t)
	p := Default(loc)
	slots := p.SlotsOn(time.Date(2026, 10, 19, 0, 0, 0, 0, loc))
	if len(slots) == 0 || slots[0] != At(11, 0) || slots[len(slots)-1] != At(21, 0) {
		t.Fatalf("unexpected slots: %v", slots)
	}
	for _, s := range slots {
		if !p.Aligned(s) {
			t.Fatalf("slot %s not aligned", s)
		}
	}
}

func TestParseHours(t *testing.T) {
	h, err := ParseHours("11:00-23:00")
	if err != nil || h.String() != "11:00-23:00" {
		t.Fatalf("parse hours: %v %v", h, err)
	}
	if _, err := ParseHours("23:00-11:00"); err == nil {
		t.Fatalf("expected inverted range error")
	}
	if _, err := ParseHours("noon"); err == nil {
		t.Fatalf("expected format error")
	}
}
