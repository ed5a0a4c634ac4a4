package workflow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"fieldline/internal/logging"
	"fieldline/internal/pipeline"
	"fieldline/internal/portal"
)

// scrapeBatchLimit caps how many properties one extraction run claims. The
// shared portal session ages while a run executes; smaller batches bound
// how much work a mid-run session expiry can strand.
const scrapeBatchLimit = 25

func (m *Manager) runScrapeLane(ctx context.Context) {
	defer m.wg.Done()
	ctx = portal.WithStage(ctx, "scrape")
	logger := logging.WithContext(ctx, m.logger).With(logging.String(logging.FieldComponent, "workflow-scrape"))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.heartbeat.ReclaimStale(ctx, logger); err != nil {
			logger.Warn("stale claim reclaim failed", logging.Error(err))
		}

		worked, err := m.scrapeTick(ctx, logger)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			logger.Error("scrape lane tick failed", logging.Error(err))
			m.waitForWorkOrShutdown(ctx)
			continue
		}
		if !worked {
			m.waitForWorkOrShutdown(ctx)
		}
	}
}

// scrapeTick resumes an interrupted run if one exists, otherwise claims a
// fresh batch of pending properties and processes it. Returns false when
// there was nothing to do.
func (m *Manager) scrapeTick(ctx context.Context, logger *slog.Logger) (bool, error) {
	requestID := uuid.NewString()
	ctx = portal.WithRequestID(ctx, requestID)
	logger = logger.With(logging.String(logging.FieldCorrelationID, requestID))

	if run, err := m.resumableRun(ctx); err != nil {
		return false, err
	} else if run != nil {
		logger.Info("resuming interrupted run", logging.String(logging.FieldRunID, run.ID))
		_, err := m.processor.ProcessRun(ctx, run.ID, m.client)
		return true, err
	}

	envelope, err := m.sessions.Envelope()
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			// Nothing to scrape against until an operator imports a session.
			return false, nil
		}
		return false, err
	}

	ids, err := m.claimScrapeBatch(ctx)
	if err != nil {
		return false, err
	}
	if len(ids) == 0 {
		return false, nil
	}

	run, err := m.store.CreateRun(ctx, envelope, ids)
	if err != nil {
		return false, err
	}
	logger.Info("starting extraction run",
		logging.String(logging.FieldRunID, run.ID),
		logging.Int("properties", len(ids)))
	if err := m.notifier.NotifyRunStarted(ctx, run.ID, len(ids)); err != nil {
		logger.Warn("run start notification failed", logging.Error(err))
	}

	_, err = m.processor.ProcessRun(ctx, run.ID, m.client)
	return true, err
}

// claimScrapeBatch drains the pending queue through the claim protocol,
// stopping at the batch limit. Losing a claim race simply ends the batch.
func (m *Manager) claimScrapeBatch(ctx context.Context) ([]int64, error) {
	ids := make([]int64, 0, scrapeBatchLimit)
	for len(ids) < scrapeBatchLimit {
		claimed, err := m.store.ClaimNextForScrape(ctx)
		if err != nil {
			return nil, err
		}
		if claimed == nil {
			break
		}
		ids = append(ids, claimed.ID)
	}
	return ids, nil
}

// resumableRun finds a run left pending or running by a previous process.
func (m *Manager) resumableRun(ctx context.Context) (*pipeline.ExtractionRun, error) {
	runs, err := m.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	for _, run := range runs {
		if run.Status == pipeline.RunPending || run.Status == pipeline.RunRunning {
			return run, nil
		}
	}
	return nil, nil
}
