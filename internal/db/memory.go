package db

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/restaurant-voice/backend/internal/models"
)

// MemoryStore keeps reservations and call logs in process memory.
type MemoryStore struct {
	mu           sync.RWMutex
	reservations map[string]models.Reservation
	calls        map[string]models.CallLog
	audit        []models.AuditEntry
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reservations: make(map[string]models.Reservation),
		calls:        make(map[string]models.CallLog),
		now:          time.Now,
	}
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
func (s *MemoryStore) Close() error               { return nil }

func (s *MemoryStore) CreateReservation(_ context.Context, d models.ReservationDraft) (models.Reservation, error) {
	now := s.now().UTC()
	r := models.Reservation{
		ID:                         uuid.NewString(),
		Name:                       d.Name,
		Phone:                      d.Phone,
		PhoneRaw:                   d.PhoneRaw,
		StartAt:                    d.StartAt,
		DurationMinutes:            d.DurationMinutes,
		PartySize:                  d.PartySize,
		Notes:                      d.Notes,
		Status:                     d.Status(),
		Fingerprint:                d.Fingerprint,
		RequiresManualConfirmation: d.RequiresManualConfirmation,
		EscalationReason:           d.EscalationReason,
		Source:                     d.Source,
		CallSID:                    d.CallSID,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservations[r.ID] = r
	s.audit = append(s.audit, models.AuditEntry{
		ID: int64(len(s.audit) + 1), Action: "reservation.created", EntityType: "reservation",
		EntityID: r.ID, Metadata: auditMetadata(r, map[string]any{"source": r.Source}), CreatedAt: now,
	})
	return r, nil
}

func (s *MemoryStore) CancelReservation(_ context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return models.ErrNotFound
	}
	if r.Status == models.StatusCancelled {
		return models.ErrAlreadyCancelled
	}
	now := s.now().UTC()
	r.Status = models.StatusCancelled
	r.CancelReason = reason
	r.CancelledAt = &now
	r.UpdatedAt = now
	s.reservations[id] = r
	s.audit = append(s.audit, models.AuditEntry{
		ID: int64(len(s.audit) + 1), Action: "reservation.cancelled", EntityType: "reservation",
		EntityID: id, Metadata: reasonMetadata(reason), CreatedAt: now,
	})
	return nil
}

func (s *MemoryStore) GetReservation(_ context.Context, id string) (models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[id]
	if !ok {
		return models.Reservation{}, models.ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) FindReservations(_ context.Context, f models.ReservationFilter) ([]models.Reservation, error) {
	s.mu.RLock()
	var out []models.Reservation
	name := strings.ToLower(f.Name)
	for _, r := range s.reservations {
		switch {
		case name != "" && !strings.Contains(strings.ToLower(r.Name), name):
		case f.Phone != "" && r.Phone != f.Phone:
		case !f.From.IsZero() && r.StartAt.Before(f.From):
		case !f.To.IsZero() && !r.StartAt.Before(f.To):
		case f.Status != "" && r.Status != f.Status:
		case f.Active && !r.Active():
		default:
			out = append(out, r)
		}
	}
	s.mu.RUnlock()
	sortReservations(out)
	return paginate(out, f.Limit, f.Offset), nil
}

func (s *MemoryStore) ListOverlapping(_ context.Context, from, to time.Time) ([]models.Reservation, error) {
	s.mu.RLock()
	var out []models.Reservation
	for _, r := range s.reservations {
		if r.Active() && r.StartAt.After(from) && r.StartAt.Before(to) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()
	sortReservations(out)
	return out, nil
}

func (s *MemoryStore) SaveCall(_ context.Context, c models.CallLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.calls[c.CallSID]
	if ok {
		existing.Intent = c.Intent
		existing.State = c.State
		existing.Outcome = c.Outcome
		existing.HandoffReason = c.HandoffReason
		existing.ReservationID = c.ReservationID
		existing.Turns = c.Turns
		existing.Transcript = c.Transcript
		s.calls[c.CallSID] = existing
		return nil
	}
	if c.StartedAt.IsZero() {
		c.StartedAt = s.now().UTC()
	}
	if c.Status == "" {
		c.Status = "in-progress"
	}
	s.calls[c.CallSID] = c
	return nil
}

func (s *MemoryStore) FinishCall(_ context.Context, callSID, status string, durationSeconds int, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.calls[callSID]
	if !ok {
		return models.ErrNotFound
	}
	c.Status = status
	c.DurationSeconds = durationSeconds
	c.EndedAt = &endedAt
	s.calls[callSID] = c
	return nil
}

func (s *MemoryStore) ListCalls(_ context.Context, limit, offset int) ([]models.CallLog, error) {
	limit, offset = normalizeLimit(limit, offset)
	s.mu.RLock()
	out := make([]models.CallLog, 0, len(s.calls))
	for _, c := range s.calls {
		out = append(out, c)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if offset >= len(out) {
		return []models.CallLog{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Audit returns a copy of the audit trail.
func (s *MemoryStore) Audit() []models.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.AuditEntry(nil), s.audit...)
}

func sortReservations(rs []models.Reservation) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].StartAt.Equal(rs[j].StartAt) {
			return rs[i].StartAt.Before(rs[j].StartAt)
		}
		return rs[i].CreatedAt.Before(rs[j].CreatedAt)
	})
}

func paginate(rs []models.Reservation, limit, offset int) []models.Reservation {
	if limit <= 0 {
		return rs
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(rs) {
		return nil
	}
	rs = rs[offset:]
	if len(rs) > limit {
		rs = rs[:limit]
	}
	return rs
}
