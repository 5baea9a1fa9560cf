// Package session keeps dialogue state between webhook turns of a call.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/restaurant-voice/backend/internal/dialogue"
)

func encode(s *dialogue.CallSession) ([]byte, error) {
	return sonic.Marshal(s)
}

func decode(b []byte) (*dialogue.CallSession, error) {
	var s dialogue.CallSession
	if err := sonic.Unmarshal(b, &s); err != nil {
		return nil, err
	}
	if s.Retries == nil {
		s.Retries = map[string]int{}
	}
	return &s, nil
}

type memoryItem struct {
	data    []byte
	expires time.Time
}

// MemoryStore keeps encoded sessions in process. Loaded sessions are
// copies, so callers must Save to persist changes.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	ttl   time.Duration
	Now   func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{items: make(map[string]memoryItem), ttl: ttl, Now: time.Now}
}

func (m *MemoryStore) Load(_ context.Context, callID string) (*dialogue.CallSession, error) {
	m.mu.RLock()
	it, ok := m.items[callID]
	m.mu.RUnlock()
	if !ok || (m.ttl > 0 && m.Now().After(it.expires)) {
		return nil, dialogue.ErrSessionNotFound
	}
	return decode(it.data)
}

func (m *MemoryStore) Save(_ context.Context, s *dialogue.CallSession) error {
	b, err := encode(s)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.items[s.CallID] = memoryItem{data: b, expires: m.Now().Add(m.ttl)}
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, callID string) error {
	m.mu.Lock()
	delete(m.items, callID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Active lists calls with an unexpired session, sorted by call id.
func (m *MemoryStore) Active(context.Context) ([]string, error) {
	now := m.Now()
	m.mu.RLock()
	ids := make([]string, 0, len(m.items))
	for id, it := range m.items {
		if m.ttl <= 0 || !now.After(it.expires) {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids, nil
}

// Cleanup drops expired sessions and returns how many were removed.
func (m *MemoryStore) Cleanup() int {
	if m.ttl <= 0 {
		return 0
	}
	now := m.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, it := range m.items {
		if now.After(it.expires) {
			delete(m.items, id)
			n++
		}
	}
	return n
}

// StartCleanup runs Cleanup every interval until ctx is done.
func (m *MemoryStore) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Cleanup()
		}
	}
}
