package service

import (
	"strconv"
	"sync"
	"time"

	"github.com/restaurant-voice/backend/internal/models"
	"github.com/restaurant-voice/backend/internal/utils"
)

// Fingerprint identifies a reservation by phone, start instant and party size.
func Fingerprint(phone string, start time.Time, party int) string {
	return utils.ShortDigest(phone, start.Format(time.RFC3339), strconv.Itoa(party))
}

// IdempotencyRegistry is the process-local set of fingerprints of live
// reservations. The database stays the source of truth; Rebuild reloads it.
type IdempotencyRegistry struct {
	mu   sync.RWMutex
	keys map[string]struct{}
}

func NewIdempotencyRegistry() *IdempotencyRegistry {
	return &IdempotencyRegistry{keys: make(map[string]struct{})}
}

func (r *IdempotencyRegistry) Register(fp string) {
	if fp == "" {
		return
	}
	r.mu.Lock()
	r.keys[fp] = struct{}{}
	r.mu.Unlock()
}

func (r *IdempotencyRegistry) Unregister(fp string) {
	r.mu.Lock()
	delete(r.keys, fp)
	r.mu.Unlock()
}

func (r *IdempotencyRegistry) Contains(fp string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.keys[fp]
	return ok
}

func (r *IdempotencyRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}

// FindDuplicate probes the exact fingerprint and its neighbours every step
// within ±window of start.
func (r *IdempotencyRegistry) FindDuplicate(phone string, start time.Time, party int, window, step time.Duration) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if fp := Fingerprint(phone, start, party); r.has(fp) {
		return fp, true
	}
	if step <= 0 {
		return "", false
	}
	for off := step; off <= window; off += step {
		for _, at := range []time.Time{start.Add(-off), start.Add(off)} {
			if fp := Fingerprint(phone, at, party); r.has(fp) {
				return fp, true
			}
		}
	}
	return "", false
}

func (r *IdempotencyRegistry) has(fp string) bool {
	_, ok := r.keys[fp]
	return ok
}

// Rebuild replaces the set with the fingerprints of active reservations.
func (r *IdempotencyRegistry) Rebuild(reservations []models.Reservation) int {
	keys := make(map[string]struct{}, len(reservations))
	for _, res := range reservations {
		if res.Active() && res.Fingerprint != "" {
			keys[res.Fingerprint] = struct{}{}
		}
	}
	r.mu.Lock()
	r.keys = keys
	r.mu.Unlock()
	return len(keys)
}
