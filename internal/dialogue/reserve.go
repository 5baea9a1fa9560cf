package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/restaurant-voice/backend/internal/models"
	"github.com/restaurant-voice/backend/internal/normalize"
	"github.com/restaurant-voice/backend/internal/policy"
	"github.com/restaurant-voice/backend/internal/service"
)

// reserveCollect fills one reservation slot per turn, in a fixed order.
func (e *Engine) reserveCollect(ctx context.Context, s *CallSession, in *input) step {
	slot := s.Reservation.Missing()
	if slot == "" {
		return e.prevalidate(s)
	}
	if !in.fresh() {
		return e.askReservation(ctx, s, slot, "")
	}
	if problem, ok := e.fillReservationSlot(ctx, s, slot, in.take()); !ok {
		if e.exhausted(s, slot) {
			return e.handoff(s, "could not collect "+slot)
		}
		if problem == "" {
			problem = promptApology
		}
		return say(problem + " " + askReservationSlot(slot, e.offered(s)))
	}
	next := s.Reservation.Missing()
	if next == "" {
		return e.prevalidate(s)
	}
	return e.askReservation(ctx, s, next, "")
}

func (e *Engine) askReservation(ctx context.Context, s *CallSession, slot, prefix string) step {
	if slot == SlotTime && s.OpenSlots == nil {
		if problem, ok := e.loadOpenSlots(ctx, s); !ok {
			e.clearReservationSlot(s, SlotDate)
			return say(strings.TrimSpace(prefix + " " + problem + " " + askReservationSlot(SlotDate, nil)))
		}
	}
	return say(strings.TrimSpace(prefix + " " + askReservationSlot(slot, e.offered(s))))
}

// fillReservationSlot stores the value for slot heard in text. On failure
// it returns what to tell the caller, or "" when nothing was understood.
func (e *Engine) fillReservationSlot(ctx context.Context, s *CallSession, slot, text string) (string, bool) {
	rules := e.Policy.Rules
	switch slot {
	case SlotName:
		name, ok := extractName(text)
		if !ok {
			return "", false
		}
		s.Reservation.Name = name
	case SlotPhone:
		raw, phone, problem := e.extractPhone(s, text)
		if phone == "" {
			return problem, false
		}
		s.Reservation.PhoneRaw, s.Reservation.Phone = raw, phone
	case SlotPartySize:
		n, ok := normalize.Count(text)
		if !ok {
			return "", false
		}
		if n < rules.MinPartySize || n > rules.MaxPartySize {
			return fmt.Sprintf("We take reservations for %d to %d guests.", rules.MinPartySize, rules.MaxPartySize), false
		}
		s.Reservation.PartySize = n
		s.OpenSlots = nil
	case SlotDate:
		return e.fillDate(ctx, s, text)
	case SlotTime:
		h, m, ok := normalize.Clock(text)
		if !ok {
			return "", false
		}
		at := clockString(h, m)
		if len(s.OpenSlots) > 0 && !contains(s.OpenSlots, at) {
			return fmt.Sprintf("Sorry, %s isn't available. The closest times we have are %s.",
				at, listJoin(nearest(s.OpenSlots, at, 3))), false
		}
		s.Reservation.Time = at
	}
	return "", true
}

func (e *Engine) fillDate(ctx context.Context, s *CallSession, text string) (string, bool) {
	now := e.now()
	date, ok := normalize.Date(text, now)
	if !ok {
		return "", false
	}
	today := e.Policy.Midnight(now)
	switch {
	case date.Before(today):
		return "That date has already passed.", false
	case date.After(today.AddDate(0, 0, e.Policy.Rules.MaxHorizonDays)):
		return fmt.Sprintf("We take reservations up to %d days ahead.", e.Policy.Rules.MaxHorizonDays), false
	}
	if _, open := e.Policy.HoursOn(date); !open {
		msg := fmt.Sprintf("I'm sorry, we're closed on %s.", spokenDate(date))
		if sd, ok := e.Policy.SpecialOn(date); ok && sd.Description != "" {
			msg = fmt.Sprintf("I'm sorry, we're closed on %s for %s.", spokenDate(date), sd.Description)
		}
		return msg, false
	}
	s.Reservation.Date = policy.DateKey(date)
	s.OpenSlots = nil
	if problem, ok := e.loadOpenSlots(ctx, s); !ok {
		s.Reservation.Date = ""
		return problem, false
	}
	return "", true
}

// loadOpenSlots caches the free start times for the chosen date and party
// size. A lookup error is logged and leaves the times unfiltered.
func (e *Engine) loadOpenSlots(ctx context.Context, s *CallSession) (string, bool) {
	date, err := time.ParseInLocation(policy.DateLayout, s.Reservation.Date, e.Policy.Location)
	if err != nil {
		return "", false
	}
	slots, err := e.Bookings.OpenSlots(ctx, date, s.Reservation.PartySize)
	if err != nil {
		e.Logger.Warn().Err(err).Str("call_id", s.CallID).Str("date", s.Reservation.Date).Msg("open slot lookup failed")
		return "", true
	}
	if len(slots) == 0 {
		return fmt.Sprintf("Unfortunately we have no free tables for %s on %s.", guests(s.Reservation.PartySize), spokenDate(date)), false
	}
	s.OpenSlots = make([]string, len(slots))
	for i, t := range slots {
		s.OpenSlots[i] = e.Policy.In(t).Format("15:04")
	}
	return "", true
}

func (e *Engine) offered(s *CallSession) []string {
	return spread(s.OpenSlots, e.maxOffered())
}

func (e *Engine) clearReservationSlot(s *CallSession, slot string) {
	s.Reservation.Clear(slot)
	if slot == SlotDate || slot == SlotPartySize {
		s.OpenSlots = nil
	}
}

func (e *Engine) request(s *CallSession) service.ReservationRequest {
	r := s.Reservation
	return service.ReservationRequest{
		Name:      r.Name,
		Phone:     r.PhoneRaw,
		Date:      r.Date,
		Time:      r.Time,
		PartySize: r.PartySize,
		Notes:     r.Notes,
		Source:    "phone",
		CallSID:   s.CallID,
	}
}

// prevalidate runs the full rule set once every slot is filled.
func (e *Engine) prevalidate(s *CallSession) step {
	_, res := e.Validator.Validate(e.request(s))
	if issue, failed := res.FirstError(); failed {
		return e.rejectDraft(s, issue)
	}
	s.Reservation.Name = res.Normalized.Name
	s.Reservation.Phone = res.Normalized.Phone
	s.Reservation.DurationMinutes = res.Normalized.DurationMinutes
	s.Escalation = res.EscalationReason
	s.ManualConfirmation = res.RequiresManualConfirmation
	s.State = StateReserveConfirm
	return proceed()
}

func slotForIssue(issue service.ValidationIssue) string {
	switch issue.Field {
	case service.FieldName:
		return SlotName
	case service.FieldPhone:
		return SlotPhone
	case service.FieldPartySize, service.FieldNotes:
		return SlotPartySize
	case service.FieldDate:
		return SlotDate
	}
	return SlotTime
}

// rejectDraft clears the slot a validation error points at and asks for it
// again. Nothing is pending afterwards.
func (e *Engine) rejectDraft(s *CallSession, issue service.ValidationIssue) step {
	slot := slotForIssue(issue)
	e.clearReservationSlot(s, slot)
	s.NeedsConfirmation = false
	s.PendingAction = ActionNone
	s.State = StateReserveCollect
	e.Logger.Info().Str("call_id", s.CallID).Str("code", issue.Code).Msg("reservation rejected by validation")
	if e.exhausted(s, slot) {
		return e.handoff(s, "could not agree on "+slot)
	}
	return say(fmt.Sprintf("I'm sorry. %s. %s", strings.TrimSuffix(issue.Message, "."), askReservationSlot(slot, e.offered(s))))
}

func (e *Engine) reservationSummary(s *CallSession) string {
	r := s.Reservation
	date, _ := time.ParseInLocation(policy.DateLayout, r.Date, e.Policy.Location)
	var b strings.Builder
	fmt.Fprintf(&b, "Let me confirm: a table for %s under the name %s on %s at %s, for %d minutes. We can reach you at %s.",
		guests(r.PartySize), r.Name, spokenDate(date), r.Time, r.DurationMinutes, r.Phone)
	switch {
	case s.Escalation != "":
		b.WriteString(" A manager needs to approve a party of this size, so we will call you to confirm.")
	case s.ManualConfirmation:
		b.WriteString(" Our staff will call you to confirm the details.")
	}
	b.WriteString(" Is that correct?")
	return b.String()
}

// reserveConfirm reads the summary back and waits for an explicit answer
// on the following turn.
func (e *Engine) reserveConfirm(s *CallSession, in *input) step {
	if !s.NeedsConfirmation || !in.fresh() {
		s.NeedsConfirmation = true
		s.PendingAction = ActionCreateReservation
		return say(e.reservationSummary(s))
	}
	switch Confirmation(in.take()) {
	case AnswerYes:
		s.State = StateReserveExecute
		return proceed()
	case AnswerNo:
		s.NeedsConfirmation = false
		s.PendingAction = ActionNone
		s.Reservation = ReservationSlots{}
		s.OpenSlots = nil
		s.Escalation = ""
		s.ManualConfirmation = false
		s.State = StateReserveCollect
		return say("No problem, let's start again. " + askReservationSlot(SlotName, nil))
	}
	if e.exhausted(s, "confirm") {
		return e.handoff(s, "confirmation unclear")
	}
	return say(promptYesNo + " " + e.reservationSummary(s))
}

func (e *Engine) reserveExecute(ctx context.Context, s *CallSession) step {
	if !s.NeedsConfirmation || s.PendingAction != ActionCreateReservation {
		s.State = StateReserveConfirm
		return proceed()
	}
	draft, res := e.Validator.Validate(e.request(s))
	if issue, failed := res.FirstError(); failed || draft == nil {
		return e.rejectDraft(s, issue)
	}
	r, err := e.Bookings.Create(ctx, *draft)
	switch {
	case errors.Is(err, service.ErrDuplicate):
		return e.rejectDraft(s, service.ValidationIssue{
			Category: service.CategoryIdempotency,
			Severity: service.SeverityError,
			Code:     "DUPLICATE_RESERVATION",
			Field:    service.FieldTime,
			Message:  "A reservation for this phone number, time and party size already exists",
		})
	case errors.Is(err, service.ErrSlotUnavailable):
		s.NeedsConfirmation = false
		s.PendingAction = ActionNone
		e.clearReservationSlot(s, SlotTime)
		s.OpenSlots = nil
		s.State = StateReserveCollect
		return e.askReservation(ctx, s, SlotTime, "I'm sorry, that time has just been taken.")
	case err != nil:
		return e.collaboratorFailure(s, err, StateReserveConfirm,
			"I'm sorry, I couldn't save your reservation just now. Shall I try again?")
	}

	s.NeedsConfirmation = false
	s.PendingAction = ActionNone
	s.ReservationID = r.ID
	s.Completed = true
	s.Ended = true
	start := e.Policy.In(r.StartAt)
	if r.Status == models.StatusPending {
		return say(fmt.Sprintf("Thank you, %s. I've noted your request for %s on %s at %s. A manager will call you at %s to confirm it. Goodbye!",
			r.Name, guests(r.PartySize), spokenDate(start), start.Format("15:04"), r.Phone))
	}
	return say(fmt.Sprintf("Your table is booked, %s: %s on %s at %s. We look forward to seeing you. Goodbye!",
		r.Name, guests(r.PartySize), spokenDate(start), start.Format("15:04")))
}

// collaboratorFailure keeps the pending action and returns to its
// confirmation step once. A second failure hands the call to staff.
func (e *Engine) collaboratorFailure(s *CallSession, err error, back State, prompt string) step {
	s.CollaboratorErrors++
	e.Logger.Error().Err(err).Str("call_id", s.CallID).Str("state", string(s.State)).Msg("booking backend failed")
	if s.CollaboratorErrors >= 2 {
		return e.handoff(s, "booking system unavailable")
	}
	s.State = back
	return say(prompt)
}
