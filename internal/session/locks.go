package session

import (
	"sync"

	"github.com/restaurant-voice/backend/internal/utils"
)

// Locks serializes turns of the same call. Calls hash onto a fixed set
// of mutexes, so unrelated calls may occasionally share one.
type Locks struct {
	stripes []sync.Mutex
}

func NewLocks(n int) *Locks {
	if n <= 0 {
		n = 64
	}
	return &Locks{stripes: make([]sync.Mutex, n)}
}

// Lock blocks until the call's stripe is free and returns its unlock.
func (l *Locks) Lock(callID string) func() {
	m := &l.stripes[utils.HashStringToUint64(callID)%uint64(len(l.stripes))]
	m.Lock()
	return m.Unlock
}
