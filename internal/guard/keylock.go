package guard

import (
	"sync"

	"github.com/attaboy/adrewards/internal/domain"
	"github.com/google/uuid"
)

// KeyLock is a non-blocking lock per ad session. A second holder is refused
// instead of queued, so two persistence retries for one session never race.
type KeyLock struct {
	mu   sync.Mutex
	held map[uuid.UUID]struct{}
}

// NewKeyLock creates an empty KeyLock.
func NewKeyLock() *KeyLock {
	return &KeyLock{held: make(map[uuid.UUID]struct{})}
}

// TryLock claims id. It is refused while another caller holds it.
func (l *KeyLock) TryLock(id uuid.UUID) domain.GuardResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[id]; busy {
		return domain.GuardResult{
			Allowed: false,
			Reason:  "session " + id.String() + " is already being persisted",
			Guard:   "key_lock",
		}
	}
	l.held[id] = struct{}{}
	return domain.GuardResult{Allowed: true}
}

// Unlock releases id. Unlocking a free id is a no-op.
func (l *KeyLock) Unlock(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, id)
}

// Held returns the number of claimed ids.
func (l *KeyLock) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}
