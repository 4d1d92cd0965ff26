package watcher

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/vipul43/ledger-sync/internal/service"
)

// Runner performs one orchestrated sync.
type Runner interface {
	Run(ctx context.Context) (service.Summary, error)
}

// Watcher repeats the sync on a fixed interval. A failed run is logged and the
// next tick resumes from the stored checkpoints.
type Watcher struct {
	runner   Runner
	interval time.Duration
}

func New(runner Runner, interval time.Duration) *Watcher {
	return &Watcher{
		runner:   runner,
		interval: interval,
	}
}

// Start runs once immediately, then on every tick until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if w.interval <= 0 {
		return fmt.Errorf("watcher interval must be positive, got %s", w.interval)
	}
	log.Printf("Starting watcher, syncing every %s...", w.interval)

	w.runOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Watcher shutting down...")
			return ctx.Err()
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Watcher) runOnce(ctx context.Context) {
	summary, err := w.runner.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Printf("Error during sync run (%d records committed before failure): %v", summary.Total, err)
		return
	}
	log.Printf("Sync run finished: %d records", summary.Total)
}
