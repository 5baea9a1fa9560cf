// Package notify publishes staff-facing events about reservations and calls.
package notify

import (
	"context"
	"time"
)

type EventType string

const (
	EventReservationCreated   EventType = "reservation.created"
	EventReservationEscalated EventType = "reservation.escalated"
	EventReservationCancelled EventType = "reservation.cancelled"
	EventCallHandoff          EventType = "call.handoff"
)

type Event struct {
	Type          EventType `json:"type"`
	ReservationID string    `json:"reservation_id,omitempty"`
	CallSID       string    `json:"call_sid,omitempty"`
	Name          string    `json:"name,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	StartAt       time.Time `json:"start_at,omitempty"`
	PartySize     int       `json:"party_size,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	At            time.Time `json:"at"`
}

type Notifier interface {
	Publish(ctx context.Context, ev Event) error
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
