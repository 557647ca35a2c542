package worker

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Manager starts and supervises a set of workers.
type Manager struct {
	workers []Worker
}

func NewManager(ws ...Worker) *Manager {
	return &Manager{workers: ws}
}

// Start runs every worker and blocks until all of them have returned. The
// first worker error cancels the others and is returned.
func (m *Manager) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range m.workers {
		g.Go(func() error {
			if err := w.Start(gctx); err != nil {
				slog.Error("manager: worker stopped", "worker", fmt.Sprintf("%T", w), "error", err)
				return err
			}
			return nil
		})
	}
	return g.Wait()
}
