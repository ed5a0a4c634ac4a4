// Package extraction orchestrates batch customer-data extraction runs
// against a single decrypted portal session.
package extraction

import (
	"context"
	"fmt"
	"log/slog"

	"fieldline/internal/logging"
	"fieldline/internal/pipeline"
	"fieldline/internal/portal"
	"fieldline/internal/retry"
	"fieldline/internal/sessionvault"
)

// Notifier receives run lifecycle events. The noop notifications service
// satisfies it when no topic is configured.
type Notifier interface {
	RunCompleted(ctx context.Context, run *pipeline.ExtractionRun)
	RunFailed(ctx context.Context, run *pipeline.ExtractionRun, reason string)
	VisitReady(ctx context.Context, property *pipeline.Property)
}

// Processor walks a run's queued items through the extraction lifecycle.
// One processor handles one run at a time; the session it decrypts is
// shared across every item in the batch.
type Processor struct {
	store    *pipeline.Store
	vault    *sessionvault.Vault
	policy   retry.Policy
	notifier Notifier
	logger   *slog.Logger
}

func NewProcessor(store *pipeline.Store, vault *sessionvault.Vault, policy retry.Policy, notifier Notifier, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Processor{
		store:    store,
		vault:    vault,
		policy:   policy,
		notifier: notifier,
		logger:   logger.With(logging.FieldComponent, "extraction"),
	}
}

type runCounters struct {
	processed int
	succeeded int
	failed    int
}

// ProcessRun executes every still-queued item of the run in order. It is
// safe to re-invoke on a run left running by a crash: items left processing
// are requeued and re-attempted (at-least-once), finished items are not
// reprocessed, and the final counters cover the whole run. Per-item failures
// are recorded and the run continues; a session-class failure fails the
// remainder of the batch without further extraction calls; infrastructure
// failures mark the run failed and propagate.
func (p *Processor) ProcessRun(ctx context.Context, runID string, client portal.AutomationClient) (*pipeline.ExtractionRun, error) {
	ctx = portal.WithRunID(ctx, runID)
	logger := logging.WithContext(ctx, p.logger)

	run, err := p.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, portal.Wrap(portal.ErrValidation, "extraction", "process run",
			fmt.Sprintf("run %s not found", runID), nil)
	}

	if run.Status == pipeline.RunRunning {
		// A previous invocation died mid-run. Items it left processing are
		// re-attempted rather than stranded in a finished run.
		requeued, err := p.store.RequeueProcessingItems(ctx, runID)
		if err != nil {
			return nil, err
		}
		if requeued > 0 {
			logger.Info("requeued interrupted items", "count", requeued)
		}
	}

	items, err := p.store.QueuedRunItems(ctx, runID)
	if err != nil {
		return nil, err
	}

	session, err := p.vault.Decrypt(run.SessionCiphertext)
	if err != nil {
		logger.Error("session decryption failed", "error", err)
		return p.failRun(ctx, run, fmt.Sprintf("decrypting session: %v", err), err)
	}

	if err := p.store.MarkRunRunning(ctx, runID); err != nil {
		return nil, err
	}
	logger.Info("run started", "queued_items", len(items))

	var shortCircuit string
	for _, item := range items {
		itemCtx := portal.WithPropertyID(ctx, item.PropertyID)
		if err := p.store.SetRunItemStatus(itemCtx, item.ID, pipeline.RunItemProcessing, ""); err != nil {
			return p.failRun(ctx, run, err.Error(), err)
		}

		result, err := p.processItem(itemCtx, item, session, client)
		if err != nil {
			return p.failRun(ctx, run, err.Error(), err)
		}

		if result.err == nil {
			if err := p.store.SetRunItemStatus(ctx, item.ID, pipeline.RunItemSucceeded, ""); err != nil {
				return p.failRun(ctx, run, err.Error(), err)
			}
			continue
		}

		message := result.err.Error()
		if err := p.store.SetRunItemStatus(ctx, item.ID, pipeline.RunItemFailed, message); err != nil {
			return p.failRun(ctx, run, err.Error(), err)
		}
		logging.WithContext(itemCtx, p.logger).Warn("item extraction failed", "error", message)

		if portal.IsSessionFailure(message) {
			// The session is shared across the batch; once it has broken,
			// every remaining call would fail the same way.
			shortCircuit = message
			remaining, err := p.store.FailRemainingQueued(ctx, runID,
				fmt.Sprintf("session failure halted run: %s", message))
			if err != nil {
				return p.failRun(ctx, run, err.Error(), err)
			}
			logger.Warn("session failure halted run", "skipped_items", remaining)
			break
		}
	}

	// Aggregate counters derive from the persisted item statuses so a
	// resumed run keeps the progress of earlier invocations.
	counters, err := p.runCounters(ctx, runID)
	if err != nil {
		return nil, err
	}
	status := finalStatus(counters)
	if err := p.store.FinishRun(ctx, runID, status, counters.processed, counters.succeeded, counters.failed, shortCircuit); err != nil {
		return nil, err
	}

	finished, err := p.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	logger.Info("run finished",
		"status", string(status),
		"processed", counters.processed,
		"succeeded", counters.succeeded,
		"failed", counters.failed)
	if p.notifier != nil {
		if status == pipeline.RunFailed {
			p.notifier.RunFailed(ctx, finished, shortCircuit)
		} else {
			p.notifier.RunCompleted(ctx, finished)
		}
	}
	return finished, nil
}

type itemResult struct {
	// err is the per-item failure, nil on success. Infrastructure errors
	// are returned separately and abort the run.
	err error
}

func (p *Processor) processItem(ctx context.Context, item *pipeline.ExtractionRunItem, session []byte, client portal.AutomationClient) (itemResult, error) {
	property, err := p.store.GetProperty(ctx, item.PropertyID)
	if err != nil {
		return itemResult{}, err
	}
	if property == nil {
		return itemResult{err: fmt.Errorf("item not found")}, nil
	}

	address := portal.Address{
		StreetNumber: property.StreetNumber,
		StreetName:   property.StreetName,
		ZipCode:      property.ZipCode,
	}

	var extracted portal.CustomerData
	err = retry.Execute(ctx, p.policy, func() error {
		var callErr error
		extracted, callErr = client.ExtractCustomerData(ctx, address, session)
		return callErr
	})
	if err != nil {
		if ctx.Err() != nil {
			return itemResult{}, ctx.Err()
		}
		return itemResult{err: portal.ClassifyExtractionError(err)}, nil
	}

	if !extracted.HasUsableData() {
		return itemResult{err: fmt.Errorf("no data extracted")}, nil
	}

	merged := extracted.Merge(portal.CustomerData{
		Name:  property.CustomerName,
		Phone: property.CustomerPhone,
		Email: property.CustomerEmail,
	})
	updated, err := p.store.ApplyExtractionSuccess(ctx, property.ID, merged.Name, merged.Phone, merged.Email)
	if err != nil {
		return itemResult{}, err
	}
	if updated == nil {
		return itemResult{err: fmt.Errorf("property %d left %s before extraction landed",
			property.ID, pipeline.StatusScrapingInProgress)}, nil
	}
	if p.notifier != nil {
		p.notifier.VisitReady(ctx, updated)
	}
	return itemResult{}, nil
}

// runCounters rebuilds the aggregate tallies from the run's persisted item
// statuses.
func (p *Processor) runCounters(ctx context.Context, runID string) (runCounters, error) {
	succeeded, failed, err := p.store.RunItemCounts(ctx, runID)
	if err != nil {
		return runCounters{}, err
	}
	return runCounters{
		processed: succeeded + failed,
		succeeded: succeeded,
		failed:    failed,
	}, nil
}

func (p *Processor) failRun(ctx context.Context, run *pipeline.ExtractionRun, summary string, cause error) (*pipeline.ExtractionRun, error) {
	counters, err := p.runCounters(ctx, run.ID)
	if err != nil {
		logging.WithContext(ctx, p.logger).Error("counting run items", "error", err)
	}
	if err := p.store.FinishRun(ctx, run.ID, pipeline.RunFailed,
		counters.processed, counters.succeeded, counters.failed, summary); err != nil {
		logging.WithContext(ctx, p.logger).Error("recording run failure", "error", err)
	}
	if p.notifier != nil {
		p.notifier.RunFailed(ctx, run, summary)
	}
	return nil, cause
}

func finalStatus(counters runCounters) pipeline.RunStatus {
	switch {
	case counters.failed == 0:
		return pipeline.RunCompleted
	case counters.succeeded == 0:
		return pipeline.RunFailed
	default:
		return pipeline.RunCompletedWithErrors
	}
}
