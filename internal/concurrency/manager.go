// Package concurrency provides the named-lock and rate-limit service that
// serializes every state-mutating operation in the backend. The upstream bot
// may redeliver the same user action (double taps, retried webhooks, a
// re-fired job); deriving a deterministic key per logical operation and
// funnelling it through this manager turns at-least-once delivery into
// at-most-once effect without an external dedup store.
//
// Locks are process-local. The manager is an injected service object, so a
// shared-backend implementation can replace it without touching call sites.
package concurrency

import (
	"context"
	"strings"
	"sync"
	"time"

	apperrors "reward-giveaway-backend/internal/common/errors"
	"reward-giveaway-backend/internal/common/logger"

	"github.com/rs/zerolog"
)

const staleCheckInterval = 100 * time.Millisecond

// Options tune the manager. Zero values fall back to the defaults below.
type Options struct {
	AcquireTimeout time.Duration // bounded wait for a contended key
	StaleAfter     time.Duration // forced discard threshold for a held entry
	DebounceWindow time.Duration // per-user rapid-repeat rejection window
}

func (o Options) withDefaults() Options {
	if o.AcquireTimeout <= 0 {
		o.AcquireTimeout = 15 * time.Second
	}
	if o.StaleAfter <= 0 {
		o.StaleAfter = 30 * time.Second
	}
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = 2 * time.Second
	}
	return o
}

type lockEntry struct {
	sem       chan struct{} // capacity 1; the holder's token lives here
	held      bool
	heldSince time.Time
	waiters   int
	gen       uint64 // incremented per acquisition; stops a reaped holder from releasing its successor
}

// Manager owns every named lock and rate-limit entry in the process.
// Construct once at startup, share by injection, Close at shutdown.
type Manager struct {
	opts Options
	log  zerolog.Logger

	mu    sync.Mutex
	locks map[string]*lockEntry
	rate  map[int64]time.Time

	now func() time.Time
}

func NewManager(opts Options) *Manager {
	return &Manager{
		opts:  opts.withDefaults(),
		log:   logger.With("concurrency"),
		locks: make(map[string]*lockEntry),
		rate:  make(map[int64]time.Time),
		now:   time.Now,
	}
}

// Key builds a composite lock key from its parts.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}

// Guard is the scoped handle for a held lock. Release is idempotent and must
// run on every exit path of the critical section.
type Guard struct {
	key     string
	gen     uint64
	m       *Manager
	release sync.Once
}

// Release gives the lock back and drops the entry once no one is queued on it.
func (g *Guard) Release() {
	g.release.Do(func() {
		g.m.releaseKey(g.key, g.gen)
	})
}

// Acquire blocks the caller until it exclusively owns key, up to the
// configured acquire timeout. On timeout it fails with a LockTimeout error;
// the lock is never silently bypassed. A holder that outlived the staleness
// threshold is forcibly discarded so a crashed owner cannot block the key
// forever.
func (m *Manager) Acquire(ctx context.Context, key string) (*Guard, error) {
	entry := m.join(key)
	defer m.leave(key)

	timer := time.NewTimer(m.opts.AcquireTimeout)
	defer timer.Stop()
	ticker := time.NewTicker(staleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case entry.sem <- struct{}{}:
			return m.hold(key, entry), nil
		case <-ticker.C:
			m.reapStale(key, entry)
		case <-timer.C:
			m.reapStale(key, entry)
			// One last non-blocking try in case the reap freed the key.
			select {
			case entry.sem <- struct{}{}:
				return m.hold(key, entry), nil
			default:
			}
			m.log.Warn().Str("key", key).Dur("timeout", m.opts.AcquireTimeout).
				Msg("Lock acquisition timed out")
			return nil, apperrors.NewLockTimeoutError(key, m.opts.AcquireTimeout)
		case <-ctx.Done():
			return nil, apperrors.Wrap(ctx.Err(), apperrors.ErrCodeLockTimeout, "Lock wait cancelled").
				WithDetail("key", key)
		}
	}
}

// InFlight reports whether key is currently held. Used as the cheap
// check-before-lock idempotency short circuit. A holder past the staleness
/// threshold is discarded here, not just inside Acquire's wait loop: with no
// waiter queued, this is the only place a crashed holder would ever be seen,
// and it must not block the key forever.
func (m *Manager) InFlight(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.locks[key]
	if !ok || !entry.held {
		return false
	}
	if m.now().Sub(entry.heldSince) >= m.opts.StaleAfter {
		m.discardLocked(key, entry)
		return false
	}
	return true
}

// ActiveOperations returns a snapshot of every currently held key.
func (m *Manager) ActiveOperations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.locks))
	for key, entry := range m.locks {
		if entry.held {
			keys = append(keys, key)
		}
	}
	return keys
}

// IsRateLimited stamps the user's action time and reports whether the
// previous action fell inside the debounce window. Rapid duplicate triggers
// are rejected here before any lock is attempted.
func (m *Manager) IsRateLimited(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	last, seen := m.rate[userID]
	m.rate[userID] = now
	return seen && now.Sub(last) < m.opts.DebounceWindow
}

// CleanupStale purges rate-limit entries older than maxAge to bound memory.
// Intended to run on a fixed interval from the cleanup worker.
func (m *Manager) CleanupStale(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-maxAge)
	purged := 0
	for userID, last := range m.rate {
		if last.Before(cutoff) {
			delete(m.rate, userID)
			purged++
		}
	}
	return purged
}

// Close discards all state. Pending waiters fail on their own timers.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks = make(map[string]*lockEntry)
	m.rate = make(map[int64]time.Time)
}

// join registers the caller as a waiter, creating the entry lazily.
func (m *Manager) join(key string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.locks[key]
	if !ok {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		m.locks[key] = entry
	}
	entry.waiters++
	return entry
}

// leave drops the caller's waiter registration; the entry disappears once it
// is neither held nor waited on.
func (m *Manager) leave(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.locks[key]
	if !ok {
		return
	}
	entry.waiters--
	if entry.waiters <= 0 && !entry.held {
		delete(m.locks, key)
	}
}

// hold marks entry as owned by the caller that just put its token in sem.
func (m *Manager) hold(key string, entry *lockEntry) *Guard {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.held = true
	entry.heldSince = m.now()
	entry.gen++
	return &Guard{key: key, gen: entry.gen, m: m}
}

func (m *Manager) releaseKey(key string, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.locks[key]
	if !ok || !entry.held || entry.gen != gen {
		// Reaped as stale and possibly re-acquired; nothing left to release.
		return
	}
	select {
	case <-entry.sem:
	default:
	}
	entry.held = false
	if entry.waiters <= 0 {
		delete(m.locks, key)
	}
}

// reapStale forcibly discards a holder that exceeded the staleness threshold,
// e.g. after a crash that skipped Release.
func (m *Manager) reapStale(key string, entry *lockEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !entry.held || m.now().Sub(entry.heldSince) < m.opts.StaleAfter {
		return
	}
	m.discardLocked(key, entry)
}

// discardLocked drops a held entry without a matching Release. Caller holds
// m.mu and has already established staleness. The entry itself stays in the
// map so its generation counter keeps the reaped holder's Guard inert.
func (m *Manager) discardLocked(key string, entry *lockEntry) {
	select {
	case <-entry.sem:
	default:
	}
	entry.held = false
	m.log.Warn().Str("key", key).Time("held_since", entry.heldSince).
		Msg("Discarded stale lock entry")
}
