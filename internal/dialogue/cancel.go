package dialogue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/restaurant-voice/backend/internal/models"
	"github.com/restaurant-voice/backend/internal/normalize"
	"github.com/restaurant-voice/backend/internal/policy"
)

const cancelReason = "cancelled by caller"

func (e *Engine) cancelCollect(s *CallSession, in *input) step {
	slot := s.Cancellation.Missing()
	if slot == "" {
		s.State = StateCancelSearch
		return proceed()
	}
	if !in.fresh() {
		return say(askCancellationSlot(slot))
	}
	if problem, ok := e.fillCancellationSlot(s, slot, in.take()); !ok {
		if e.exhausted(s, slot) {
			return e.handoff(s, "could not collect "+slot)
		}
		if problem == "" {
			problem = promptApology
		}
		return say(problem + " " + askCancellationSlot(slot))
	}
	if next := s.Cancellation.Missing(); next != "" {
		return say(askCancellationSlot(next))
	}
	s.State = StateCancelSearch
	return proceed()
}

func (e *Engine) fillCancellationSlot(s *CallSession, slot, text string) (string, bool) {
	switch slot {
	case SlotCancelName:
		name, ok := extractName(text)
		if !ok {
			return "", false
		}
		s.Cancellation.Name = name
	case SlotCancelDate:
		now := e.now()
		date, ok := normalize.Date(text, now)
		if !ok {
			return "", false
		}
		if date.Before(e.Policy.Midnight(now)) {
			return "That date has already passed.", false
		}
		s.Cancellation.Date = policy.DateKey(date)
	case SlotCancelPhoneOrTime:
		if _, phone, _ := e.extractPhone(s, text); phone != "" {
			s.Cancellation.Phone = phone
			return "", true
		}
		h, m, ok := normalize.Clock(text)
		if !ok {
			return "", false
		}
		s.Cancellation.Time = clockString(h, m)
	}
	return "", true
}

// cancelSearch looks up active reservations by name and date, keeping only
// those that also match the caller's phone or time. A failed lookup is
// retried once in place and does not count against the cancel step.
func (e *Engine) cancelSearch(ctx context.Context, s *CallSession) step {
	date, err := time.ParseInLocation(policy.DateLayout, s.Cancellation.Date, e.Policy.Location)
	if err != nil {
		s.Cancellation.Date = ""
		s.State = StateCancelCollect
		return proceed()
	}
	from := e.Policy.Midnight(date)
	filter := models.ReservationFilter{
		Name:   s.Cancellation.Name,
		From:   from,
		To:     from.AddDate(0, 0, 1),
		Active: true,
	}
	var found []models.Reservation
	for attempt := 0; ; attempt++ {
		found, err = e.Bookings.Find(ctx, filter)
		if err == nil {
			break
		}
		e.Logger.Error().Err(err).Str("call_id", s.CallID).Int("attempt", attempt+1).Msg("reservation lookup failed")
		if attempt >= 1 {
			return e.handoff(s, "reservation lookup failed")
		}
	}

	matches := narrowMatches(found, s.Cancellation, e.Policy.Location)
	switch len(matches) {
	case 0:
		s.State = StateCancelNotFound
		s.Completed = true
		s.Ended = true
		return say(fmt.Sprintf("I couldn't find an active reservation under the name %s on %s. %s",
			s.Cancellation.Name, spokenDate(date), promptGoodbye))
	case 1:
		c := toCandidate(matches[0])
		s.Selected = &c
		s.State = StateCancelConfirm
		return proceed()
	}
	s.Candidates = make([]Candidate, len(matches))
	for i, r := range matches {
		s.Candidates[i] = toCandidate(r)
	}
	s.State = StateCancelDisambiguate
	return proceed()
}

func narrowMatches(rs []models.Reservation, c CancellationSlots, loc *time.Location) []models.Reservation {
	var out []models.Reservation
	for _, r := range rs {
		switch {
		case c.Phone != "" && samePhone(r.Phone, c.Phone):
			out = append(out, r)
		case c.Time != "" && r.StartAt.In(loc).Format("15:04") == c.Time:
			out = append(out, r)
		}
	}
	return out
}

func toCandidate(r models.Reservation) Candidate {
	return Candidate{ID: r.ID, Name: r.Name, Phone: r.Phone, StartAt: r.StartAt, PartySize: r.PartySize}
}

func (e *Engine) cancelDisambiguate(s *CallSession, in *input) step {
	loc := e.Policy.Location
	if !in.fresh() {
		return say(fmt.Sprintf("I found %d reservations. %s Which one would you like to cancel? Please say the number.",
			len(s.Candidates), candidateList(s.Candidates, loc)))
	}
	if i, ok := e.pickCandidate(s, in.take()); ok {
		c := s.Candidates[i]
		s.Selected = &c
		s.State = StateCancelConfirm
		return proceed()
	}
	if e.exhausted(s, "selection") {
		return e.handoff(s, "reservation selection unclear")
	}
	return say(fmt.Sprintf("Please choose a number from 1 to %d. %s", len(s.Candidates), candidateList(s.Candidates, loc)))
}

// pickCandidate accepts a list number, or a start time that matches
// exactly one candidate.
func (e *Engine) pickCandidate(s *CallSession, text string) (int, bool) {
	if timeLike.MatchString(text) {
		if h, m, ok := normalize.Clock(text); ok {
			at, hit := clockString(h, m), -1
			for i, c := range s.Candidates {
				if e.Policy.In(c.StartAt).Format("15:04") == at {
					if hit >= 0 {
						return 0, false
					}
					hit = i
				}
			}
			if hit >= 0 {
				return hit, true
			}
		}
	}
	n, ok := normalize.Choice(text)
	if !ok || n < 1 || n > len(s.Candidates) {
		return 0, false
	}
	return n - 1, true
}

func (e *Engine) cancellationSummary(c Candidate) string {
	at := e.Policy.In(c.StartAt)
	return fmt.Sprintf("I have a reservation for %s on %s at %s for %s. Would you like to cancel it?",
		c.Name, spokenDate(at), at.Format("15:04"), guests(c.PartySize))
}

func (e *Engine) cancelConfirm(s *CallSession, in *input) step {
	if s.Selected == nil {
		s.State = StateCancelCollect
		s.Cancellation = CancellationSlots{}
		return proceed()
	}
	if !s.NeedsConfirmation || !in.fresh() {
		s.NeedsConfirmation = true
		s.PendingAction = ActionCancelReservation
		return say(e.cancellationSummary(*s.Selected))
	}
	switch Confirmation(in.take()) {
	case AnswerYes:
		s.State = StateCancelExecute
		return proceed()
	case AnswerNo:
		s.NeedsConfirmation = false
		s.PendingAction = ActionNone
		s.State = StateCancelDeclined
		s.Completed = true
		s.Ended = true
		return say("All right, your reservation stays as it is. " + promptGoodbye)
	}
	if e.exhausted(s, "confirm") {
		return e.handoff(s, "confirmation unclear")
	}
	return say(promptYesNo + " " + e.cancellationSummary(*s.Selected))
}

func (e *Engine) cancelExecute(ctx context.Context, s *CallSession) step {
	if !s.NeedsConfirmation || s.PendingAction != ActionCancelReservation || s.Selected == nil {
		s.State = StateCancelConfirm
		return proceed()
	}
	c := *s.Selected
	_, err := e.Bookings.Cancel(ctx, c.ID, cancelReason)
	switch {
	case errors.Is(err, models.ErrAlreadyCancelled), errors.Is(err, models.ErrNotFound):
		s.NeedsConfirmation = false
		s.PendingAction = ActionNone
		s.State = StateCancelNotFound
		s.Completed = true
		s.Ended = true
		return say("That reservation has already been cancelled. " + promptGoodbye)
	case err != nil:
		return e.collaboratorFailure(s, err, StateCancelConfirm,
			"I'm sorry, I couldn't cancel the reservation just now. Shall I try again?")
	}
	s.NeedsConfirmation = false
	s.PendingAction = ActionNone
	s.CancelledID = c.ID
	s.Completed = true
	s.Ended = true
	at := e.Policy.In(c.StartAt)
	return say(fmt.Sprintf("Your reservation for %s on %s at %s has been cancelled. %s",
		c.Name, spokenDate(at), at.Format("15:04"), promptGoodbye))
}
