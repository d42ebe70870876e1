package dedup

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// DefaultLockWindow bounds how long a capture holds its id.
const DefaultLockWindow = 10 * time.Second

var ErrInFlight = errors.New("capture already in flight")

// Locks is an in-memory table of id -> expiry. It is never persisted.
type Locks struct {
	mu     sync.Mutex
	held   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

func NewLocks(window time.Duration, now func() time.Time) *Locks {
	if window <= 0 {
		window = DefaultLockWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Locks{held: make(map[string]time.Time), window: window, now: now}
}

// Acquire fails with ErrInFlight while an unexpired lock exists for id.
func (l *Locks) Acquire(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if exp, ok := l.held[id]; ok && exp.After(now) {
		return errors.Wrapf(ErrInFlight, "record %s", id)
	}
	l.held[id] = now.Add(l.window)
	return nil
}

func (l *Locks) Release(id string) {
	l.mu.Lock()
	delete(l.held, id)
	l.mu.Unlock()
}

// Held reports whether id is currently locked.
func (l *Locks) Held(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	exp, ok := l.held[id]
	return ok && exp.After(l.now())
}
