package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// LedgerSweeper deletes dead refresh token records. auth.RefreshLedger
// satisfies it.
type LedgerSweeper interface {
	Sweep(ctx context.Context, olderThan time.Duration) (int64, error)
}

// LedgerJanitor periodically removes expired and revoked refresh token records.
type LedgerJanitor struct {
	ledger    LedgerSweeper
	interval  time.Duration
	retention time.Duration
	logger    *zap.Logger
}

// NewLedgerJanitor builds a janitor. A non-positive interval disables it.
func NewLedgerJanitor(ledger LedgerSweeper, interval, retention time.Duration, logger *zap.Logger) *LedgerJanitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerJanitor{
		ledger:    ledger,
		interval:  interval,
		retention: retention,
		logger:    logger.Named("ledger_janitor"),
	}
}

// Run sweeps once per interval until ctx is cancelled.
func (j *LedgerJanitor) Run(ctx context.Context) {
	if j.interval <= 0 {
		j.logger.Info("ledger sweep disabled")
		return
	}

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single sweep and returns the number of deleted records.
func (j *LedgerJanitor) SweepOnce(ctx context.Context) int64 {
	deleted, err := j.ledger.Sweep(ctx, j.retention)
	if err != nil {
		j.logger.Warn("ledger sweep failed", zap.Error(err))
		return 0
	}
	if deleted > 0 {
		j.logger.Info("ledger swept", zap.Int64("deleted", deleted))
	}
	return deleted
}
