// Package watchdog keeps systemd's service watchdog fed while the daemon is
// healthy.
package watchdog

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"
)

// Watchdog notifies systemd at a fixed interval. The interval must be well
// under the unit's WatchdogSec.
type Watchdog struct {
	interval time.Duration
	done     chan struct{}
	logger   *zap.Logger
}

func New(interval time.Duration, logger *zap.Logger) *Watchdog {
	return &Watchdog{
		interval: interval,
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// Start feeds the watchdog until ctx is cancelled or Stop is called.
func (w *Watchdog) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Feeding systemd watchdog", zap.Duration("interval", w.interval))

	for {
		select {
		case <-ticker.C:
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				w.logger.Warn("Watchdog notification failed", zap.Error(err))
			}
		case <-ctx.Done():
			w.logger.Info("Watchdog stopped, context cancelled")
			return
		case <-w.done:
			w.logger.Info("Watchdog stopped")
			return
		}
	}
}

// Stop halts feeding. Safe to call more than once.
func (w *Watchdog) Stop() {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
}
