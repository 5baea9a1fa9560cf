package normalize

import (
	"testing"
	"time"
)

// Saturday.
var refNow = time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

func TestDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"today", "2026-10-17"},
		{"tomorrow please", "2026-10-18"},
		{"the day after tomorrow", "2026-10-19"},
		{"завтра", "2026-10-18"},
		{"послезавтра", "2026-10-19"},
		{"2026-11-05", "2026-11-05"},
		{"05.11.2026", "2026-11-05"},
		{"5/11", "2026-11-05"},
		{"on the 20th of October", "2026-10-20"},
		{"October 20", "2026-10-20"},
		{"20 октября", "2026-10-20"},
		{"january 3", "2027-01-03"},
		{"on friday", "2026-10-23"},
		{"saturday", "2026-10-17"},
		{"next saturday", "2026-10-24"},
		{"в пятницу", "2026-10-23"},
	}
	for _, tc := range cases {
		got, ok := Date(tc.in, refNow)
		if !ok {
			t.Errorf("Date(%q) not parsed", tc.in)
			continue
		}
		if got.Format("2006-01-02") != tc.want {
			t.Errorf("Date(%q) = %s, want %s", tc.in, got.Format("2006-01-02"), tc.want)
		}
	}
	for _, bad := range []string{"", "whenever", "31.02.2026", "four people"} {
		if _, ok := Date(bad, refNow); ok {
			t.Errorf("Date(%q) should fail", bad)
		}
	}
}

func TestClock(t *testing.T) {
	cases := []struct {
		in   string
		h, m int
	}{
		{"19:00", 19, 0},
		{"at 7:30 pm", 19, 30},
		{"7pm", 19, 0},
		{"7 p.m.", 19, 0},
		{"11 am", 11, 0},
		{"at 7", 19, 0},
		{"18.45", 18, 45},
		{"half past seven", 19, 30},
		{"quarter to eight", 19, 45},
		{"seven thirty", 19, 30},
		{"noon", 12, 0},
		{"в 7 вечера", 19, 0},
		{"8 o'clock", 20, 0},
		{"12", 12, 0},
	}
	for _, tc := range cases {
		h, m, ok := Clock(tc.in)
		if !ok || h != tc.h || m != tc.m {
			t.Errorf("Clock(%q) = %02d:%02d %v, want %02d:%02d", tc.in, h, m, ok, tc.h, tc.m)
		}
	}
	for _, bad := range []string{"", "whenever suits", "25:00"} {
		if _, _, ok := Clock(bad); ok {
			t.Errorf("Clock(%q) should fail", bad)
		}
	}
}

func TestCountAndChoice(t *testing.T) {
	counts := map[string]int{"4": 4, "we are four": 4, "a table for 12 people": 12, "четверо": 4, "just me": 1, "a couple": 2}
	for in, want := range counts {
		if got, ok := Count(in); !ok || got != want {
			t.Errorf("Count(%q) = %d %v, want %d", in, got, ok, want)
		}
	}
	if _, ok := Count("not sure"); ok {
		t.Errorf("Count should fail on no number")
	}
	choices := map[string]int{"2": 2, "the second one": 2, "number one": 1, "третий": 3}
	for in, want := range choices {
		if got, ok := Choice(in); !ok || got != want {
			t.Errorf("Choice(%q) = %d %v, want %d", in, got, ok, want)
		}
	}
}
