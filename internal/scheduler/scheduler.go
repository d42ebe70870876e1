// Package scheduler runs periodic background tasks until their context ends.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Task func(ctx context.Context) error

// Every runs task once right away and then on each tick. Errors are logged and
// do not stop the loop. It returns when ctx is done.
func Every(ctx context.Context, log *zap.Logger, interval time.Duration, name string, task Task) {
	log = log.With(zap.String("task", name))
	run := func() {
		if err := task(ctx); err != nil && ctx.Err() == nil {
			log.Warn("task failed", zap.Error(err))
		}
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	run()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			run()
		}
	}
}
