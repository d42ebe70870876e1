// Package dedup holds the TTL'd seen-record cache and the in-flight lock table.
package dedup

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"jobsheet-engine/internal/store"
)

// CacheVersion tags the persisted snapshot format.
const CacheVersion = 2

const (
	DefaultTTL        = 30 * 24 * time.Hour
	DefaultMaxEntries = 5000
)

// Snapshot is the persisted form of the seen set.
type Snapshot struct {
	Version         int                  `json:"version"`
	HealthCheckedAt time.Time            `json:"health_checked_at"`
	Seen            map[string]time.Time `json:"seen"`
}

type Options struct {
	TTL        time.Duration
	MaxEntries int
	Now        func() time.Time
	Logger     *zap.Logger
}

type Cache struct {
	kv         store.KV
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	log        *zap.Logger
}

func NewCache(kv store.KV, opts Options) *Cache {
	c := &Cache{
		kv:         kv,
		ttl:        opts.TTL,
		maxEntries: opts.MaxEntries,
		now:        opts.Now,
		log:        opts.Logger,
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.maxEntries <= 0 {
		c.maxEntries = DefaultMaxEntries
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	c.log = c.log.Named("dedup")
	return c
}

// Load returns the seen set with entries older than the TTL dropped. The
// filtered set is not written back.
func (c *Cache) Load(ctx context.Context) (map[string]time.Time, error) {
	snap, err := c.read(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := c.now().Add(-c.ttl)
	seen := make(map[string]time.Time, len(snap.Seen))
	for id, at := range snap.Seen {
		if at.After(cutoff) {
			seen[id] = at
		}
	}
	return seen, nil
}

// Save persists seen with the current format version and a fresh health timestamp.
func (c *Cache) Save(ctx context.Context, seen map[string]time.Time) error {
	if seen == nil {
		seen = map[string]time.Time{}
	}
	snap := Snapshot{
		Version:         CacheVersion,
		HealthCheckedAt: c.now().UTC(),
		Seen:            seen,
	}
	return errors.Wrap(c.kv.SetJSON(ctx, store.KeySeenRecords, snap), "save seen records")
}

// Forget removes ids from the persisted set.
func (c *Cache) Forget(ctx context.Context, ids ...string) error {
	seen, err := c.Load(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		delete(seen, id)
	}
	return c.Save(ctx, seen)
}

type Health struct {
	Healthy         bool      `json:"healthy"`
	Version         int       `json:"version"`
	Entries         int       `json:"entries"`
	HealthCheckedAt time.Time `json:"health_checked_at"`
	Reason          string    `json:"reason,omitempty"`
}

// HealthCheck reports a verdict on the persisted snapshot. An unhealthy verdict
// is logged; nothing is repaired.
func (c *Cache) HealthCheck(ctx context.Context) (Health, error) {
	snap, err := c.read(ctx)
	if err != nil {
		return Health{}, err
	}
	h := Health{
		Healthy:         true,
		Version:         snap.Version,
		Entries:         len(snap.Seen),
		HealthCheckedAt: snap.HealthCheckedAt,
	}
	switch {
	case len(snap.Seen) > 0 && snap.Version != CacheVersion:
		h.Healthy = false
		h.Reason = "version mismatch"
	case len(snap.Seen) > c.maxEntries:
		h.Healthy = false
		h.Reason = "too many entries"
	}
	if h.Healthy {
		c.log.Debug("cache healthy", zap.Int("entries", h.Entries))
	} else {
		c.log.Warn("cache unhealthy",
			zap.String("reason", h.Reason),
			zap.Int("version", h.Version),
			zap.Int("entries", h.Entries))
	}
	return h, nil
}

func (c *Cache) read(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	ok, err := c.kv.GetJSON(ctx, store.KeySeenRecords, &snap)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "load seen records")
	}
	if !ok {
		return Snapshot{Version: CacheVersion, Seen: map[string]time.Time{}}, nil
	}
	if snap.Seen == nil {
		snap.Seen = map[string]time.Time{}
	}
	return snap, nil
}
