package models

import (
	"errors"
	"time"
)

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
	StatusCompleted ReservationStatus = "completed"
	StatusNoShow    ReservationStatus = "no_show"
)

func (s ReservationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

type Reservation struct {
	ID                         string            `json:"id"`
	Name                       string            `json:"name"`
	Phone                      string            `json:"phone"`
	PhoneRaw                   string            `json:"phone_raw,omitempty"`
	StartAt                    time.Time         `json:"start_at"`
	DurationMinutes            int               `json:"duration_minutes"`
	PartySize                  int               `json:"party_size"`
	Notes                      string            `json:"notes,omitempty"`
	Status                     ReservationStatus `json:"status"`
	Fingerprint                string            `json:"fingerprint"`
	RequiresManualConfirmation bool              `json:"requires_manual_confirmation"`
	EscalationReason           string            `json:"escalation_reason,omitempty"`
	Source                     string            `json:"source"`
	CallSID                    string            `json:"call_sid,omitempty"`
	CancelReason               string            `json:"cancel_reason,omitempty"`
	CancelledAt                *time.Time        `json:"cancelled_at,omitempty"`
	CreatedAt                  time.Time         `json:"created_at"`
	UpdatedAt                  time.Time         `json:"updated_at"`
}

func (r Reservation) EndAt() time.Time {
	return r.StartAt.Add(time.Duration(r.DurationMinutes) * time.Minute)
}

func (r Reservation) Active() bool {
	return r.Status != StatusCancelled
}

// ReservationDraft is a validated, normalized reservation ready to be stored.
type ReservationDraft struct {
	Name                       string
	Phone                      string
	PhoneRaw                   string
	StartAt                    time.Time
	DurationMinutes            int
	PartySize                  int
	Notes                      string
	Fingerprint                string
	RequiresManualConfirmation bool
	RequiresEscalation         bool
	EscalationReason           string
	Source                     string
	CallSID                    string
}

// Status is pending for anything that needs a human to look at it.
func (d ReservationDraft) Status() ReservationStatus {
	if d.RequiresEscalation || d.RequiresManualConfirmation {
		return StatusPending
	}
	return StatusConfirmed
}

// ReservationFilter narrows reservation lookups. Zero values are ignored.
type ReservationFilter struct {
	Name   string
	Phone  string
	From   time.Time
	To     time.Time
	Status ReservationStatus
	Active bool
	Limit  int
	Offset int
}

type CallLog struct {
	CallSID         string     `json:"call_sid"`
	From            string     `json:"from"`
	To              string     `json:"to"`
	Intent          string     `json:"intent,omitempty"`
	State           string     `json:"state,omitempty"`
	Outcome         string     `json:"outcome,omitempty"`
	HandoffReason   string     `json:"handoff_reason,omitempty"`
	ReservationID   string     `json:"reservation_id,omitempty"`
	Turns           int        `json:"turns"`
	Transcript      []byte     `json:"transcript,omitempty"`
	Status          string     `json:"status"`
	DurationSeconds int        `json:"duration_seconds"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
}

type AuditEntry struct {
	ID         int64     `json:"id"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Metadata   []byte    `json:"metadata,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyCancelled = errors.New("reservation already cancelled")
)
