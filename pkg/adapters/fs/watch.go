package fs

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"

	"github.com/gnowledge/nodeBook-sub003/pkg/core"
)

// Watch reports changes to the user's documents until ctx is canceled.
// The watcher runs under a supervisor that restarts it after failures.
func (r *Repository) Watch(ctx context.Context, userID string) (<-chan core.Event, error) {
	userDir, err := r.userDir(userID)
	if err != nil {
		return nil, err
	}

	events := make(chan core.Event)
	spec := supervisor.Spec{
		Name: "fs-watcher",
		Type: string(worker.TypeGoroutine),
		Factory: func() (worker.Worker, error) {
			return newWatchWorker(r, userDir, events), nil
		},
		Backoff: supervisor.Backoff{
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      2,
			ResetDuration:   time.Minute,
			MaxRestarts:     5,
			MaxDuration:     10 * time.Minute,
		},
		RestartPolicy: supervisor.RestartOnFailure,
	}

	sup := supervisor.New("fs-watch-"+userID, supervisor.StrategyOneForOne, spec)
	if err := sup.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start watcher: %w", err)
	}

	lifecycle.Go(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		defer close(events)
		return sup.Stop(stopCtx)
	}, lifecycle.WithErrorHandler(func(err error) {
		r.config.Logger.Error("failed to stop watcher", "user", userID, "error", err)
	}))

	r.config.Logger.Debug("watching documents", "user", userID, "dir", userDir)
	return events, nil
}
