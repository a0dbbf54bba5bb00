package workers

import (
	"context"
	"log/slog"
	"time"
)

type roomSweeper interface {
	SweepIdle(idleTTL time.Duration, now time.Time) ([]string, error)
}

// RetentionWorker periodically ends rooms with no activity past the idle
// TTL. Ended rooms reject joins and submissions but their history stays
// readable until the store itself is purged.
type RetentionWorker struct {
	sweeper  roomSweeper
	log      *slog.Logger
	interval time.Duration
	idleTTL  time.Duration
}

func NewRetentionWorker(sweeper roomSweeper, log *slog.Logger, interval, idleTTL time.Duration) *RetentionWorker {
	return &RetentionWorker{sweeper: sweeper, log: log, interval: interval, idleTTL: idleTTL}
}

func (w *RetentionWorker) Run(ctx context.Context) error {
	w.log.Info("Starting retention worker", "interval", w.interval, "idleTTL", w.idleTTL)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			ended, err := w.sweeper.SweepIdle(w.idleTTL, time.Now().UTC())
			if err != nil {
				w.log.Error("Retention sweep failed", "err", err)
				continue
			}
			if len(ended) > 0 {
				w.log.Info("Retention sweep ended idle rooms", "rooms", ended)
			}
		}
	}
}
