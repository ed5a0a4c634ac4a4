package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"fieldline/internal/logging"
	"fieldline/internal/pipeline"
)

// HeartbeatMonitor refreshes claim heartbeats and reclaims stale claims.
type HeartbeatMonitor struct {
	store             *pipeline.Store
	logger            *slog.Logger
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
}

// NewHeartbeatMonitor creates a new monitor.
func NewHeartbeatMonitor(store *pipeline.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &HeartbeatMonitor{
		store:             store,
		logger:            logger,
		heartbeatInterval: interval,
		heartbeatTimeout:  timeout,
	}
}

// ReclaimStale returns properties whose worker stopped heartbeating to the
// scrape queue so another poller can claim them.
func (h *HeartbeatMonitor) ReclaimStale(ctx context.Context, logger *slog.Logger) error {
	if h.heartbeatTimeout <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-h.heartbeatTimeout)
	reclaimed, err := h.store.ReclaimStaleScraping(ctx, cutoff)
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		logger.Info("reclaimed stale claims", logging.Int64("count", reclaimed))
	}
	return nil
}

// StartLoop runs a heartbeat updater for one claimed property until context
// cancellation.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, propertyID int64) {
	defer wg.Done()
	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	logger := h.logger.With(logging.String(logging.FieldComponent, "workflow-heartbeat"))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.UpdateHeartbeat(ctx, propertyID); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.Warn("heartbeat update failed",
					logging.Int64(logging.FieldPropertyID, propertyID),
					logging.Error(err))
			}
		}
	}
}
