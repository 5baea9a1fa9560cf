// Package policy holds the restaurant's immutable booking rules.
package policy

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// TimeOfDay is a wall-clock time expressed in minutes since midnight.
type TimeOfDay int

func At(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return At(h, m), nil
}

func TimeOfDayOf(t time.Time) TimeOfDay {
	return At(t.Hour(), t.Minute())
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

type Hours struct {
	Open  TimeOfDay
	Close TimeOfDay
}

// ParseHours reads "HH:MM-HH:MM".
func ParseHours(s string) (Hours, error) {
	open, closeAt, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Hours{}, fmt.Errorf("invalid hours %q", s)
	}
	o, err := ParseTimeOfDay(open)
	if err != nil {
		return Hours{}, err
	}
	c, err := ParseTimeOfDay(closeAt)
	if err != nil {
		return Hours{}, err
	}
	if c <= o {
		return Hours{}, fmt.Errorf("hours %q close before opening", s)
	}
	return Hours{Open: o, Close: c}, nil
}

func (h Hours) String() string {
	return h.Open.String() + "-" + h.Close.String()
}

// SpecialDay overrides the weekly schedule for one calendar date.
type SpecialDay struct {
	Date        string
	Closed      bool
	Hours       Hours
	Description string
}

type Rules struct {
	SlotGranularity       time.Duration
	MinLeadTime           time.Duration
	MaxHorizonDays        int
	LastReservationOffset time.Duration

	DefaultDuration time.Duration
	MinDuration     time.Duration
	MaxDuration     time.Duration

	MinPartySize         int
	MaxPartySize         int
	LargePartyThreshold  int
	MaxPartyWithoutNotes int
	EscalationPartySize  int
	MinNotesLength       int
	SameDayPartySize     int
	SameDayNotice        time.Duration

	MaxCapacity   int
	MaxConcurrent int
	Turnover      time.Duration

	DuplicateWindow time.Duration
	DuplicateStep   time.Duration
}

func DefaultRules() Rules {
	return Rules{
		SlotGranularity:       30 * time.Minute,
		MinLeadTime:           60 * time.Minute,
		MaxHorizonDays:        60,
		LastReservationOffset: 120 * time.Minute,
		DefaultDuration:       90 * time.Minute,
		MinDuration:           60 * time.Minute,
		MaxDuration:           180 * time.Minute,
		MinPartySize:          1,
		MaxPartySize:          20,
		LargePartyThreshold:   8,
		MaxPartyWithoutNotes:  8,
		EscalationPartySize:   12,
		MinNotesLength:        10,
		SameDayPartySize:      6,
		SameDayNotice:         4 * time.Hour,
		MaxCapacity:           120,
		MaxConcurrent:         15,
		Turnover:              120 * time.Minute,
		DuplicateWindow:       30 * time.Minute,
		DuplicateStep:         15 * time.Minute,
	}
}

type Policy struct {
	Name     string
	Location *time.Location
	Weekly   map[time.Weekday]Hours
	Special  map[string]SpecialDay
	Rules    Rules
}

func Default(loc *time.Location) Policy {
	weekday := Hours{Open: At(11, 0), Close: At(23, 0)}
	weekend := Hours{Open: At(10, 0), Close: At(23, 59)}
	return Policy{
		Name:     "Restaurant",
		Location: loc,
		Weekly: map[time.Weekday]Hours{
			time.Monday:    weekday,
			time.Tuesday:   weekday,
			time.Wednesday: weekday,
			time.Thursday:  weekday,
			time.Friday:    weekday,
			time.Saturday:  weekend,
			time.Sunday:    weekend,
		},
		Special: map[string]SpecialDay{},
		Rules:   DefaultRules(),
	}
}

func (p Policy) In(t time.Time) time.Time {
	return t.In(p.Location)
}

func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// Midnight returns the start of t's calendar day in the restaurant timezone.
func (p Policy) Midnight(t time.Time) time.Time {
	t = p.In(t)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, p.Location)
}

func (p Policy) Combine(date time.Time, at TimeOfDay) time.Time {
	d := p.In(date)
	return time.Date(d.Year(), d.Month(), d.Day(), at.Hour(), at.Minute(), 0, 0, p.Location)
}

func (p Policy) SpecialOn(date time.Time) (SpecialDay, bool) {
	sd, ok := p.Special[DateKey(p.In(date))]
	return sd, ok
}

// HoursOn reports the opening hours for the date. Special days take precedence over the weekly schedule.
func (p Policy) HoursOn(date time.Time) (Hours, bool) {
	if sd, ok := p.SpecialOn(date); ok {
		if sd.Closed {
			return Hours{}, false
		}
		return sd.Hours, true
	}
	h, ok := p.Weekly[p.In(date).Weekday()]
	return h, ok
}

func (p Policy) LastReservation(h Hours) TimeOfDay {
	last := h.Close - TimeOfDay(p.Rules.LastReservationOffset/time.Minute)
	if last < h.Open {
		return h.Open
	}
	return last
}

func (p Policy) Aligned(at TimeOfDay) bool {
	step := int(p.Rules.SlotGranularity / time.Minute)
	if step <= 0 {
		return true
	}
	return int(at)%step == 0
}

// DurationFor scales the default sitting with party size.
func (p Policy) DurationFor(party int) time.Duration {
	d := p.Rules.DefaultDuration
	switch {
	case party >= 10:
		d += 30 * time.Minute
	case party >= 6:
		d += 15 * time.Minute
	}
	if d > p.Rules.MaxDuration {
		d = p.Rules.MaxDuration
	}
	return d
}

// FitToClosing shrinks d so that start+d does not pass closing time.
// adjusted reports a shrink; ok is false when the date is closed or the
// shrunk duration falls below the minimum.
func (p Policy) FitToClosing(start time.Time, d time.Duration) (fitted time.Duration, adjusted bool, ok bool) {
	h, open := p.HoursOn(start)
	if !open {
		return d, false, false
	}
	closing := p.Combine(start, h.Close)
	if !start.Add(d).After(closing) {
		return d, false, true
	}
	fitted = closing.Sub(start)
	if fitted < p.Rules.MinDuration {
		return fitted, true, false
	}
	return fitted, true, true
}

// SlotsOn lists every bookable start time on the date, ignoring lead time and capacity.
func (p Policy) SlotsOn(date time.Time) []TimeOfDay {
	h, ok := p.HoursOn(date)
	if !ok {
		return nil
	}
	step := TimeOfDay(p.Rules.SlotGranularity / time.Minute)
	if step <= 0 {
		step = 30
	}
	first := h.Open
	if rem := first % step; rem != 0 {
		first += step - rem
	}
	last := p.LastReservation(h)
	var out []TimeOfDay
	for t := first; t <= last; t += step {
		out = append(out, t)
	}
	return out
}

func (p Policy) IsWeekend(date time.Time) bool {
	wd := p.In(date).Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
