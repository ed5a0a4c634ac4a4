package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"fieldline/internal/logging"
	"fieldline/internal/pipeline"
	"fieldline/internal/portal"
	"fieldline/internal/retry"
)

func (m *Manager) runSubmitLane(ctx context.Context) {
	defer m.wg.Done()
	ctx = portal.WithStage(ctx, "submit")
	logger := logging.WithContext(ctx, m.logger).With(logging.String(logging.FieldComponent, "workflow-submit"))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		worked, err := m.submitTick(ctx, logger)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.setLastError(err)
			logger.Error("submit lane tick failed", logging.Error(err))
			m.waitForWorkOrShutdown(ctx)
			continue
		}
		if !worked {
			m.waitForWorkOrShutdown(ctx)
		}
	}
}

// submitTick claims one visited property and files its case on the portal.
// Returns false when the submit queue is empty or no session is available.
func (m *Manager) submitTick(ctx context.Context, logger *slog.Logger) (bool, error) {
	requestID := uuid.NewString()
	ctx = portal.WithRequestID(ctx, requestID)
	logger = logger.With(logging.String(logging.FieldCorrelationID, requestID))

	session, err := m.sessions.Decrypt()
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return false, nil
		}
		return false, err
	}

	claimed, err := m.store.ClaimNextForSubmission(ctx)
	if err != nil {
		return false, err
	}
	if claimed == nil {
		return false, nil
	}

	ctx = portal.WithPropertyID(ctx, claimed.ID)
	logger = logger.With(logging.Int64(logging.FieldPropertyID, claimed.ID))
	logger.Info("submitting case", logging.String("address", claimed.FullAddress))

	heartbeatCtx, stopHeartbeat := context.WithCancel(ctx)
	var hbWg sync.WaitGroup
	hbWg.Add(1)
	go m.heartbeat.StartLoop(heartbeatCtx, &hbWg, claimed.ID)
	defer func() {
		stopHeartbeat()
		hbWg.Wait()
	}()

	var result portal.SubmitResult
	submitErr := retry.Execute(ctx, m.retryPolicy, func() error {
		var callErr error
		result, callErr = m.client.SubmitCase(ctx, portal.SubmitRequest{
			Address: portal.Address{
				StreetNumber: claimed.StreetNumber,
				StreetName:   claimed.StreetName,
				ZipCode:      claimed.ZipCode,
			},
			CustomerName: claimed.CustomerName,
			SessionBlob:  session,
		})
		return callErr
	})
	if submitErr != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return true, m.handleSubmitFailure(ctx, logger, claimed, submitErr)
	}

	return true, m.recordSubmission(ctx, logger, claimed, result)
}

// recordSubmission finishes a successful portal call. A confirmed case ID
// completes the property; a submission the portal accepted for later manual
// confirmation parks it in ready_for_submission instead.
func (m *Manager) recordSubmission(ctx context.Context, logger *slog.Logger, claimed *pipeline.Property, result portal.SubmitResult) error {
	caseID := strings.TrimSpace(result.CaseID)
	target := pipeline.StatusComplete
	if caseID == "" {
		target = pipeline.StatusReadyForSubmission
	}

	updated, err := m.store.ConditionalUpdate(ctx, claimed.ID, pipeline.StatusSubmittingInProgress, func(p *pipeline.Property) {
		p.Status = target
		p.SCECaseID = caseID
		p.ErrorMessage = ""
		p.LastHeartbeat = nil
	})
	if err != nil {
		return err
	}
	if updated == nil {
		logger.Warn("submission result discarded, property left submitting state")
		return nil
	}

	logger.Info("case submitted",
		logging.String("status", string(target)),
		logging.String("case_id", caseID))
	if err := m.notifier.NotifyCaseSubmitted(ctx, updated); err != nil {
		logger.Warn("submission notification failed", logging.Error(err))
	}
	return nil
}

// handleSubmitFailure compensates a failed submission. Session failures
// requeue the property so it is retried once the operator re-authenticates;
// anything else marks it failed with the reason retained.
func (m *Manager) handleSubmitFailure(ctx context.Context, logger *slog.Logger, claimed *pipeline.Property, submitErr error) error {
	if portal.IsSessionFailure(submitErr.Error()) {
		logger.Warn("submission hit session failure, requeueing", logging.Error(submitErr))
		if err := m.store.RequeueSubmission(ctx, claimed.ID); err != nil {
			return err
		}
		if err := m.notifier.NotifyError(ctx, submitErr, "case submission"); err != nil {
			logger.Warn("error notification failed", logging.Error(err))
		}
		return nil
	}

	logger.Error("submission failed", logging.Error(submitErr))
	if err := m.store.MarkFailed(ctx, claimed.ID, submitErr.Error()); err != nil {
		return err
	}
	if err := m.notifier.NotifyError(ctx, submitErr, "case submission"); err != nil {
		logger.Warn("error notification failed", logging.Error(err))
	}
	return nil
}
