// Package refresh periodically re-hydrates the local task forest from the
// backend task list.
package refresh

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/arenalab/arena/internal/store"
	"github.com/robfig/cron/v3"
)

// cronParser accepts 5-field cron expressions plus descriptors like
// "@every 5m".
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Source fetches the server task forest.
type Source interface {
	TaskList(ctx context.Context) ([]store.TaskNode, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) ([]store.TaskNode, error)

func (f SourceFunc) TaskList(ctx context.Context) ([]store.TaskNode, error) { return f(ctx) }

// Refresher merges the server task list into the store on a cron schedule.
type Refresher struct {
	source   Source
	store    *store.Store
	schedule cron.Schedule
	now      func() time.Time
}

// New creates a Refresher. The expression is validated up front.
func New(source Source, st *store.Store, expr string) (*Refresher, error) {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("refresh: parse schedule %q: %w", expr, err)
	}
	return &Refresher{source: source, store: st, schedule: sched, now: time.Now}, nil
}

// Once fetches the task list and merges it into the store.
func (r *Refresher) Once(ctx context.Context) error {
	forest, err := r.source.TaskList(ctx)
	if err != nil {
		return fmt.Errorf("refresh: fetch task list: %w", err)
	}
	r.store.ApplyTaskList(forest)
	return nil
}

// Run refreshes on the schedule until ctx is cancelled. Fetch failures are
// logged and the schedule continues.
func (r *Refresher) Run(ctx context.Context) {
	for {
		next := r.schedule.Next(r.now())
		wait := time.Until(next)
		if wait < 0 {
			wait = 0
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if err := r.Once(ctx); err != nil {
			log.Printf("refresh: %v", err)
		}
	}
}
