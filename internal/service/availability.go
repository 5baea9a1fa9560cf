package service

import (
	"context"
	"fmt"
	"time"

	"github.com/restaurant-voice/backend/internal/models"
	"github.com/restaurant-voice/backend/internal/policy"
)

type OverlapLister interface {
	ListOverlapping(ctx context.Context, from, to time.Time) ([]models.Reservation, error)
}

type Availability struct {
	Available   bool   `json:"available"`
	SeatsTaken  int    `json:"seats_taken"`
	SeatsLeft   int    `json:"seats_left"`
	Overlapping int    `json:"overlapping"`
	Reason      string `json:"reason,omitempty"`
}

type AvailabilityChecker struct {
	Store  OverlapLister
	Policy policy.Policy
}

func NewAvailabilityChecker(store OverlapLister, p policy.Policy) *AvailabilityChecker {
	return &AvailabilityChecker{Store: store, Policy: p}
}

// Check reports whether party more guests fit in the turnover window around start.
func (a *AvailabilityChecker) Check(ctx context.Context, start time.Time, party int, excludeID string) (Availability, error) {
	turnover := a.Policy.Rules.Turnover
	existing, err := a.Store.ListOverlapping(ctx, start.Add(-turnover), start.Add(turnover))
	if err != nil {
		return Availability{}, fmt.Errorf("list overlapping reservations: %w", err)
	}
	return a.evaluate(existing, start, party, excludeID), nil
}

func (a *AvailabilityChecker) evaluate(existing []models.Reservation, start time.Time, party int, excludeID string) Availability {
	rules := a.Policy.Rules
	from, to := start.Add(-rules.Turnover), start.Add(rules.Turnover)
	out := Availability{}
	for _, r := range existing {
		if !r.Active() || r.ID == excludeID {
			continue
		}
		if !r.StartAt.After(from) || !r.StartAt.Before(to) {
			continue
		}
		out.SeatsTaken += r.PartySize
		out.Overlapping++
	}
	out.SeatsLeft = rules.MaxCapacity - out.SeatsTaken
	if out.SeatsLeft < 0 {
		out.SeatsLeft = 0
	}
	switch {
	case out.SeatsTaken+party > rules.MaxCapacity:
		out.Reason = fmt.Sprintf("only %d seats left at that time", out.SeatsLeft)
	case out.Overlapping+1 > rules.MaxConcurrent:
		out.Reason = "no tables left at that time"
	default:
		out.Available = true
	}
	return out
}

// OpenSlots lists start times on date that pass lead-time and horizon rules
// and still have room for party.
func (a *AvailabilityChecker) OpenSlots(ctx context.Context, date time.Time, party int, now time.Time) ([]time.Time, error) {
	p := a.Policy
	slots := p.SlotsOn(date)
	if len(slots) == 0 {
		return nil, nil
	}
	first := p.Combine(date, slots[0])
	last := p.Combine(date, slots[len(slots)-1])
	existing, err := a.Store.ListOverlapping(ctx, first.Add(-p.Rules.Turnover), last.Add(p.Rules.Turnover))
	if err != nil {
		return nil, fmt.Errorf("list reservations for %s: %w", policy.DateKey(date), err)
	}

	earliest := now.Add(p.Rules.MinLeadTime)
	latest := now.AddDate(0, 0, p.Rules.MaxHorizonDays)
	var out []time.Time
	for _, s := range slots {
		start := p.Combine(date, s)
		if start.Before(earliest) || start.After(latest) {
			continue
		}
		if _, _, ok := p.FitToClosing(start, p.DurationFor(party)); !ok {
			continue
		}
		if a.evaluate(existing, start, party, "").Available {
			out = append(out, start)
		}
	}
	return out, nil
}

// Annotate turns a passing result invalid with NOT_AVAILABLE when the
// normalized start has no room left. Failed results are left untouched.
func (a *AvailabilityChecker) Annotate(ctx context.Context, res *ValidationResult) error {
	if !res.Valid {
		return nil
	}
	res.Stages = append(res.Stages, "availability")
	avail, err := a.Check(ctx, res.Normalized.StartAt, res.Normalized.PartySize, "")
	if err != nil {
		return err
	}
	if avail.Available {
		return nil
	}
	res.Valid = false
	res.Errors = append(res.Errors, ValidationIssue{
		Category: CategoryAvailability,
		Severity: SeverityError,
		Code:     "NOT_AVAILABLE",
		Field:    FieldTime,
		Message:  "That time is fully booked",
		Details:  map[string]any{"reason": avail.Reason, "seats_left": avail.SeatsLeft},
	})
	return nil
}
