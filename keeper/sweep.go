package keeper

import (
	"context"
	"time"
)

// SweepStats are point-in-time sweeper counters.
type SweepStats struct {
	Sweeps int64 `json:"sweeps"`
	Purged int64 `json:"purged"`
	Errors int64 `json:"errors"`
}

// Stats returns the sweeper counters.
func (k *Keeper) Stats() SweepStats {
	return SweepStats{
		Sweeps: k.sweeps.Load(),
		Purged: k.purged.Load(),
		Errors: k.failed.Load(),
	}
}

// Sweep purges drafts older than MaxAge once.
func (k *Keeper) Sweep(ctx context.Context) (int64, error) {
	k.sweeps.Add(1)
	n, err := k.Purge(ctx, k.config.MaxAge)
	if err != nil {
		k.failed.Add(1)
		return 0, err
	}
	k.purged.Add(n)
	return n, nil
}

func (k *Keeper) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(k.config.SweepInterval)
	defer ticker.Stop()

	k.logger.Info("keeper: sweeper started", "interval", k.config.SweepInterval)
	for {
		select {
		case <-ctx.Done():
			k.logger.Info("keeper: sweeper stopped")
			return
		case <-ticker.C:
			n, err := k.Sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				k.logger.Warn("keeper: sweep failed", "error", err)
				continue
			}
			if n > 0 {
				k.logger.Info("keeper: stale drafts purged", "count", n)
			}
		}
	}
}
