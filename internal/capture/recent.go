package capture

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"

	"jobsheet-engine/internal/domain"
	"jobsheet-engine/internal/store"
)

const DefaultRecentLimit = 20

// RecentList keeps the last committed entries, newest first.
type RecentList struct {
	mu    sync.Mutex
	kv    store.KV
	limit int
}

func NewRecentList(kv store.KV, limit int) *RecentList {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	return &RecentList{kv: kv, limit: limit}
}

func (r *RecentList) List(ctx context.Context) ([]domain.CaptureEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx)
}

// Push adds e at the front, replacing an older entry with the same record id.
func (r *RecentList) Push(ctx context.Context, e domain.CaptureEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.load(ctx)
	if err != nil {
		return err
	}
	out := make([]domain.CaptureEntry, 0, len(list)+1)
	out = append(out, e)
	for _, x := range list {
		if e.RecordID != "" && x.RecordID == e.RecordID {
			continue
		}
		out = append(out, x)
	}
	if len(out) > r.limit {
		out = out[:r.limit]
	}
	return r.save(ctx, out)
}

// Remove drops the entry with the given record id; a missing id is not an error.
func (r *RecentList) Remove(ctx context.Context, recordID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list, err := r.load(ctx)
	if err != nil {
		return err
	}
	out := list[:0]
	for _, x := range list {
		if x.RecordID != recordID {
			out = append(out, x)
		}
	}
	if len(out) == len(list) {
		return nil
	}
	return r.save(ctx, out)
}

func (r *RecentList) load(ctx context.Context) ([]domain.CaptureEntry, error) {
	list := []domain.CaptureEntry{}
	if _, err := r.kv.GetJSON(ctx, store.KeyRecentEntries, &list); err != nil {
		return nil, errors.Wrap(err, "load recent entries")
	}
	return list, nil
}

func (r *RecentList) save(ctx context.Context, list []domain.CaptureEntry) error {
	return errors.Wrap(r.kv.SetJSON(ctx, store.KeyRecentEntries, list), "save recent entries")
}
