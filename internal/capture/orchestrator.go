// Package capture turns a detected application into a sheet row: identity,
// in-flight lock, dedup, optimistic local commit, then a background append
// that is rolled back locally when it fails.
package capture

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"jobsheet-engine/internal/config"
	"jobsheet-engine/internal/dedup"
	"jobsheet-engine/internal/domain"
	"jobsheet-engine/internal/events"
	"jobsheet-engine/internal/identity"
)

var ErrNotConfigured = errors.New("no destination spreadsheet configured")

// Reasons reported when a capture is not appended.
const (
	ReasonNotConfigured  = "not-configured"
	ReasonSourceDisabled = "source-disabled"
	ReasonInFlight       = "in-flight"
	ReasonDuplicate      = "duplicate"
)

const defaultAppendTimeout = 60 * time.Second

// Result reports the outcome. Entry is the entry as normalized and resolved,
// which is what gets written when Appended is set.
type Result struct {
	Appended bool                 `json:"appended"`
	Reason   string               `json:"reason,omitempty"`
	RecordID string               `json:"recordId,omitempty"`
	Entry    *domain.CaptureEntry `json:"entry,omitempty"`
}

// Appender writes one row to the destination table.
type Appender interface {
	AppendRow(ctx context.Context, e domain.CaptureEntry) error
}

type SettingsLoader interface {
	Load(ctx context.Context) (config.Settings, error)
}

type Options struct {
	Settings SettingsLoader
	Resolver *identity.Resolver
	Cache    *dedup.Cache
	Locks    *dedup.Locks
	Recent   *RecentList
	// Table opens the destination named by the current settings.
	Table         func(config.Settings) Appender
	Events        *events.Hub
	AppendTimeout time.Duration
	Now           func() time.Time
	Logger        *zap.Logger
}

type Orchestrator struct {
	settings      SettingsLoader
	resolver      *identity.Resolver
	cache         *dedup.Cache
	locks         *dedup.Locks
	recent        *RecentList
	table         func(config.Settings) Appender
	events        *events.Hub
	appendTimeout time.Duration
	now           func() time.Time
	log           *zap.Logger

	// cacheMu serialises read-modify-write cycles on the seen set.
	cacheMu sync.Mutex
	wg      sync.WaitGroup
}

func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		settings:      opts.Settings,
		resolver:      opts.Resolver,
		cache:         opts.Cache,
		locks:         opts.Locks,
		recent:        opts.Recent,
		table:         opts.Table,
		events:        opts.Events,
		appendTimeout: opts.AppendTimeout,
		now:           opts.Now,
		log:           opts.Logger,
	}
	if o.resolver == nil {
		o.resolver = identity.New()
	}
	if o.locks == nil {
		o.locks = dedup.NewLocks(dedup.DefaultLockWindow, nil)
	}
	if o.events == nil {
		o.events = events.NewHub()
	}
	if o.appendTimeout <= 0 {
		o.appendTimeout = defaultAppendTimeout
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	o.log = o.log.Named("capture")
	return o
}

// Capture acknowledges after the local commit. The remote append continues
// in the background; Wait drains it.
func (o *Orchestrator) Capture(ctx context.Context, entry domain.CaptureEntry) (Result, error) {
	entry.Normalize(o.now())

	settings, err := o.settings.Load(ctx)
	if err != nil {
		return Result{}, err
	}

	id := o.resolver.Resolve(&entry)
	log := o.log.With(zap.String("record_id", id))

	if !settings.Configured() {
		log.Info("capture skipped", zap.String("reason", ReasonNotConfigured))
		return Result{Reason: ReasonNotConfigured, RecordID: id, Entry: &entry}, nil
	}
	if !settings.SourceEnabled(entry.Source) {
		log.Info("capture skipped", zap.String("reason", ReasonSourceDisabled), zap.String("source", entry.Source))
		return Result{Reason: ReasonSourceDisabled, RecordID: id, Entry: &entry}, nil
	}

	if err := o.locks.Acquire(id); err != nil {
		log.Info("capture skipped", zap.String("reason", ReasonInFlight))
		return Result{Reason: ReasonInFlight, RecordID: id, Entry: &entry}, nil
	}
	defer o.locks.Release(id)

	dup, err := o.markSeen(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if dup {
		log.Info("capture skipped", zap.String("reason", ReasonDuplicate))
		return Result{Reason: ReasonDuplicate, RecordID: id, Entry: &entry}, nil
	}

	if err := o.recent.Push(ctx, entry); err != nil {
		log.Warn("recent list update failed", zap.Error(err))
	}

	table := o.table(settings)
	reqID := events.RequestIDFrom(ctx)
	o.wg.Add(1)
	go o.commit(context.WithoutCancel(ctx), reqID, table, entry)

	log.Info("capture committed", zap.String("title", entry.JobTitle), zap.String("company", entry.Company))
	return Result{Appended: true, RecordID: id, Entry: &entry}, nil
}

// markSeen reports whether id is already present; otherwise it records id
// with the current time and persists the set before returning.
func (o *Orchestrator) markSeen(ctx context.Context, id string) (bool, error) {
	o.cacheMu.Lock()
	defer o.cacheMu.Unlock()

	seen, err := o.cache.Load(ctx)
	if err != nil {
		return false, err
	}
	if _, ok := seen[id]; ok {
		return true, nil
	}
	seen[id] = o.now().UTC()
	return false, o.cache.Save(ctx, seen)
}

func (o *Orchestrator) commit(ctx context.Context, reqID string, table Appender, entry domain.CaptureEntry) {
	defer o.wg.Done()
	log := o.log.With(zap.String("record_id", entry.RecordID))

	actx, cancel := context.WithTimeout(ctx, o.appendTimeout)
	err := table.AppendRow(actx, entry)
	cancel()

	if err == nil {
		log.Info("capture confirmed")
		o.events.Emit(reqID, events.TypeCaptureConfirmed, map[string]string{
			"recordId": entry.RecordID,
			"title":    entry.JobTitle,
			"company":  entry.Company,
		})
		return
	}

	log.Warn("append failed; rolling back", zap.Error(err))
	if rerr := o.Forget(ctx, entry.RecordID); rerr != nil {
		log.Error("rollback failed", zap.Error(rerr))
	}
	o.events.Emit(reqID, events.TypeCaptureFailed, map[string]string{
		"recordId": entry.RecordID,
		"error":    err.Error(),
	})
}

// Forget removes id from the seen set and the recent list so the posting
// can be captured again.
func (o *Orchestrator) Forget(ctx context.Context, id string) error {
	o.cacheMu.Lock()
	err := o.cache.Forget(ctx, id)
	o.cacheMu.Unlock()
	if err != nil {
		return err
	}
	return o.recent.Remove(ctx, id)
}

func (o *Orchestrator) Recent(ctx context.Context) ([]domain.CaptureEntry, error) {
	return o.recent.List(ctx)
}

func (o *Orchestrator) CacheHealth(ctx context.Context) (dedup.Health, error) {
	return o.cache.HealthCheck(ctx)
}

// Wait blocks until background appends finish or ctx is done.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
