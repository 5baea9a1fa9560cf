// Package dialogue runs the per-call conversation state machine.
package dialogue

import (
	"context"
	"errors"
	"time"
)

type State string

const (
	StateDetectIntent       State = "detect_intent"
	StateMenuAnswer         State = "menu_answer"
	StateRecommend          State = "recommend"
	StateReserveCollect     State = "reserve_collect"
	StateReserveConfirm     State = "reserve_confirm"
	StateReserveExecute     State = "reserve_execute"
	StateCancelCollect      State = "cancel_collect"
	StateCancelSearch       State = "cancel_search"
	StateCancelDisambiguate State = "cancel_disambiguate"
	StateCancelConfirm      State = "cancel_confirm"
	StateCancelExecute      State = "cancel_execute"
	StateCancelNotFound     State = "cancel_not_found"
	StateCancelDeclined     State = "cancel_declined"
	StateHandoff            State = "handoff"
)

type Intent string

const (
	IntentUnknown   Intent = "unknown"
	IntentMenu      Intent = "menu"
	IntentRecommend Intent = "recommend"
	IntentReserve   Intent = "reserve"
	IntentCancel    Intent = "cancel"
	IntentHandoff   Intent = "handoff"
)

// Action is a side effect gated behind explicit confirmation.
type Action string

const (
	ActionNone              Action = ""
	ActionCreateReservation Action = "create_reservation"
	ActionCancelReservation Action = "cancel_reservation"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Utterance struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Reservation slot names, in collection order.
const (
	SlotName      = "name"
	SlotPhone     = "phone"
	SlotPartySize = "party_size"
	SlotDate      = "date"
	SlotTime      = "time"
)

type ReservationSlots struct {
	Name            string `json:"name,omitempty"`
	PhoneRaw        string `json:"phone_raw,omitempty"`
	Phone           string `json:"phone,omitempty"`
	PartySize       int    `json:"party_size,omitempty"`
	Date            string `json:"date,omitempty"`
	Time            string `json:"time,omitempty"`
	Notes           string `json:"notes,omitempty"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
}

// Missing returns the next slot to collect, or "" when all five are filled.
func (r ReservationSlots) Missing() string {
	switch {
	case r.Name == "":
		return SlotName
	case r.Phone == "":
		return SlotPhone
	case r.PartySize == 0:
		return SlotPartySize
	case r.Date == "":
		return SlotDate
	case r.Time == "":
		return SlotTime
	}
	return ""
}

// Clear empties slot and anything collected after it that depends on it.
func (r *ReservationSlots) Clear(slot string) {
	switch slot {
	case SlotName:
		r.Name = ""
	case SlotPhone:
		r.Phone, r.PhoneRaw = "", ""
	case SlotPartySize:
		r.PartySize = 0
		r.Time = ""
	case SlotDate:
		r.Date, r.Time = "", ""
	case SlotTime:
		r.Time = ""
	}
	r.DurationMinutes = 0
}

// Cancellation slot names, in collection order.
const (
	SlotCancelName        = "cancel_name"
	SlotCancelDate        = "cancel_date"
	SlotCancelPhoneOrTime = "cancel_phone_or_time"
)

type CancellationSlots struct {
	Name  string `json:"name,omitempty"`
	Date  string `json:"date,omitempty"`
	Phone string `json:"phone,omitempty"`
	Time  string `json:"time,omitempty"`
}

func (c CancellationSlots) Missing() string {
	switch {
	case c.Name == "":
		return SlotCancelName
	case c.Date == "":
		return SlotCancelDate
	case c.Phone == "" && c.Time == "":
		return SlotCancelPhoneOrTime
	}
	return ""
}

// Candidate is a reservation offered to the caller for cancellation.
type Candidate struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	StartAt   time.Time `json:"start_at"`
	PartySize int       `json:"party_size"`
}

type CallSession struct {
	CallID      string         `json:"call_id"`
	CallerPhone string         `json:"caller_phone,omitempty"`
	Transcript  []Utterance    `json:"transcript"`
	State       State          `json:"state"`
	Intent      Intent         `json:"intent"`
	Retries     map[string]int `json:"retries"`

	NeedsConfirmation bool   `json:"needs_confirmation"`
	PendingAction     Action `json:"pending_action,omitempty"`

	Completed     bool   `json:"completed"`
	Ended         bool   `json:"ended"`
	Handoff       bool   `json:"handoff"`
	HandoffReason string `json:"handoff_reason,omitempty"`

	Reservation  ReservationSlots  `json:"reservation"`
	Cancellation CancellationSlots `json:"cancellation"`
	OpenSlots    []string          `json:"open_slots,omitempty"`
	Candidates   []Candidate       `json:"candidates,omitempty"`
	Selected     *Candidate        `json:"selected,omitempty"`

	Escalation         string `json:"escalation,omitempty"`
	ManualConfirmation bool   `json:"manual_confirmation,omitempty"`
	CollaboratorErrors int    `json:"collaborator_errors,omitempty"`
	ReservationID      string `json:"reservation_id,omitempty"`
	CancelledID        string `json:"cancelled_id,omitempty"`

	LastPrompt string    `json:"last_prompt,omitempty"`
	Turns      int       `json:"turns"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func NewSession(callID, callerPhone string, now time.Time) *CallSession {
	return &CallSession{
		CallID:      callID,
		CallerPhone: callerPhone,
		State:       StateDetectIntent,
		Intent:      IntentUnknown,
		Retries:     map[string]int{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *CallSession) record(role Role, text string, at time.Time) {
	s.Transcript = append(s.Transcript, Utterance{Role: role, Text: text, At: at})
	s.UpdatedAt = at
}

// Outcome summarizes how the call ended for call logs.
func (s *CallSession) Outcome() string {
	switch {
	case s.Handoff:
		return "handoff"
	case s.ReservationID != "":
		return "reservation_created"
	case s.CancelledID != "":
		return "reservation_cancelled"
	case s.State == StateCancelNotFound:
		return "reservation_not_found"
	case s.State == StateCancelDeclined:
		return "cancellation_declined"
	case s.State == StateMenuAnswer || s.State == StateRecommend:
		return "information"
	case s.Ended:
		return "ended"
	}
	return "in_progress"
}

var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists sessions between turns.
type SessionStore interface {
	Load(ctx context.Context, callID string) (*CallSession, error)
	Save(ctx context.Context, s *CallSession) error
	Delete(ctx context.Context, callID string) error
}
