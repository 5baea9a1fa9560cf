package session

import (
	"context"
	"errors"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"github.com/restaurant-voice/backend/internal/dialogue"
	"github.com/restaurant-voice/backend/internal/models"
	"github.com/restaurant-voice/backend/internal/notify"
)

// CallRecorder keeps the call log in sync with the dialogue.
type CallRecorder interface {
	SaveCall(ctx context.Context, c models.CallLog) error
	FinishCall(ctx context.Context, callSID, status string, durationSeconds int, endedAt time.Time) error
}

// CallLocker is implemented by session stores that can lock a call across
// server instances.
type CallLocker interface {
	Lock(ctx context.Context, callID string) (func(), error)
}

// Manager runs dialogue turns for calls: load, handle, save, log.
type Manager struct {
	Store    dialogue.SessionStore
	Engine   *dialogue.Engine
	Calls    CallRecorder
	Notifier notify.Notifier
	Logger   zerolog.Logger
	Now      func() time.Time
	// LockWait bounds how long a turn waits for a call locked elsewhere.
	LockWait time.Duration

	locks *Locks
}

func NewManager(store dialogue.SessionStore, engine *dialogue.Engine, calls CallRecorder, logger zerolog.Logger) *Manager {
	return &Manager{
		Store:    store,
		Engine:   engine,
		Calls:    calls,
		Notifier: notify.Nop{},
		Logger:   logger,
		Now:      time.Now,
		LockWait: 10 * time.Second,
		locks:    NewLocks(64),
	}
}

// lock serializes work on one call: in process first, then in the store
// when it is shared.
func (m *Manager) lock(ctx context.Context, callSID string) (func(), error) {
	unlock := m.locks.Lock(callSID)
	l, ok := m.Store.(CallLocker)
	if !ok {
		return unlock, nil
	}
	if m.LockWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.LockWait)
		defer cancel()
	}
	release, err := l.Lock(ctx, callSID)
	if err != nil {
		unlock()
		return nil, err
	}
	return func() {
		release()
		unlock()
	}, nil
}

// Turn handles one utterance of callSID, creating the session on first use.
func (m *Manager) Turn(ctx context.Context, callSID, from, to, utterance string) (dialogue.Reply, error) {
	unlock, err := m.lock(ctx, callSID)
	if err != nil {
		return dialogue.Reply{}, err
	}
	defer unlock()

	s, err := m.Store.Load(ctx, callSID)
	if errors.Is(err, dialogue.ErrSessionNotFound) {
		s = dialogue.NewSession(callSID, from, m.now())
		m.Logger.Info().Str("call_sid", callSID).Str("from", from).Msg("call started")
	} else if err != nil {
		return dialogue.Reply{}, err
	}

	wasHandoff := s.Handoff
	reply := m.Engine.Handle(ctx, s, utterance)
	if err := m.Store.Save(ctx, s); err != nil {
		return reply, err
	}
	m.record(ctx, s, to)
	if s.Handoff && !wasHandoff {
		m.publishHandoff(ctx, s)
	}
	return reply, nil
}

// ActiveLister is implemented by session stores that can enumerate live calls.
type ActiveLister interface {
	Active(ctx context.Context) ([]string, error)
}

// Active lists calls with a live session, or nil when the store cannot tell.
func (m *Manager) Active(ctx context.Context) ([]string, error) {
	l, ok := m.Store.(ActiveLister)
	if !ok {
		return nil, nil
	}
	return l.Active(ctx)
}

// Get returns the live session of a call.
func (m *Manager) Get(ctx context.Context, callSID string) (*dialogue.CallSession, error) {
	return m.Store.Load(ctx, callSID)
}

// End closes the call log and drops the session.
func (m *Manager) End(ctx context.Context, callSID, status string, durationSeconds int) error {
	unlock, err := m.lock(ctx, callSID)
	if err != nil {
		return err
	}
	defer unlock()

	if s, err := m.Store.Load(ctx, callSID); err == nil {
		m.record(ctx, s, "")
	}
	if m.Calls != nil {
		if err := m.Calls.FinishCall(ctx, callSID, status, durationSeconds, m.now()); err != nil && !errors.Is(err, models.ErrNotFound) {
			m.Logger.Warn().Err(err).Str("call_sid", callSID).Msg("finish call log failed")
		}
	}
	m.Logger.Info().Str("call_sid", callSID).Str("status", status).Int("duration_seconds", durationSeconds).Msg("call ended")
	return m.Store.Delete(ctx, callSID)
}

func (m *Manager) record(ctx context.Context, s *dialogue.CallSession, to string) {
	if m.Calls == nil {
		return
	}
	transcript, err := sonic.Marshal(s.Transcript)
	if err != nil {
		m.Logger.Warn().Err(err).Str("call_sid", s.CallID).Msg("encode transcript failed")
	}
	err = m.Calls.SaveCall(ctx, models.CallLog{
		CallSID:       s.CallID,
		From:          s.CallerPhone,
		To:            to,
		Intent:        string(s.Intent),
		State:         string(s.State),
		Outcome:       s.Outcome(),
		HandoffReason: s.HandoffReason,
		ReservationID: s.ReservationID,
		Turns:         s.Turns,
		Transcript:    transcript,
		StartedAt:     s.CreatedAt,
	})
	if err != nil {
		m.Logger.Warn().Err(err).Str("call_sid", s.CallID).Msg("save call log failed")
	}
}

func (m *Manager) publishHandoff(ctx context.Context, s *dialogue.CallSession) {
	if m.Notifier == nil {
		return
	}
	ev := notify.Event{
		Type:    notify.EventCallHandoff,
		CallSID: s.CallID,
		Phone:   s.CallerPhone,
		Name:    s.Reservation.Name,
		Reason:  s.HandoffReason,
		At:      m.now(),
	}
	if err := m.Notifier.Publish(ctx, ev); err != nil {
		m.Logger.Warn().Err(err).Str("call_sid", s.CallID).Msg("publish handoff failed")
	}
}

func (m *Manager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}
