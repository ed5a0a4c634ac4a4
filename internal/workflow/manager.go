package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"fieldline/internal/config"
	"fieldline/internal/extraction"
	"fieldline/internal/logging"
	"fieldline/internal/notifications"
	"fieldline/internal/pipeline"
	"fieldline/internal/portal"
	"fieldline/internal/retry"
	"fieldline/internal/sessionvault"
)

// Manager coordinates the scrape and submit lanes over a shared store.
type Manager struct {
	cfg          *config.Config
	store        *pipeline.Store
	logger       *slog.Logger
	notifier     notifications.Service
	client       portal.AutomationClient
	vault        *sessionvault.Vault
	processor    *extraction.Processor
	sessions     *SessionFile
	pollInterval time.Duration
	retryPolicy  retry.Policy
	heartbeat    *HeartbeatMonitor

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
}

// NewManager constructs a manager with production collaborators derived
// from the configuration.
func NewManager(cfg *config.Config, store *pipeline.Store, logger *slog.Logger) (*Manager, error) {
	client, err := portal.NewClient(cfg, nil)
	if err != nil {
		return nil, err
	}
	return NewManagerWithDeps(cfg, store, logger, notifications.NewService(cfg), client)
}

// NewManagerWithDeps constructs a manager with explicit collaborators
// (used in tests).
func NewManagerWithDeps(cfg *config.Config, store *pipeline.Store, logger *slog.Logger, notifier notifications.Service, client portal.AutomationClient) (*Manager, error) {
	vault, err := sessionvault.New(cfg.Portal.SessionKey)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	policy := retry.Policy{
		MaxAttempts:  cfg.Workflow.RetryMaxAttempts,
		InitialDelay: time.Duration(cfg.Workflow.RetryInitialMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Workflow.RetryMaxMs) * time.Millisecond,
		Multiplier:   2,
	}

	return &Manager{
		cfg:          cfg,
		store:        store,
		logger:       logger,
		notifier:     notifier,
		client:       client,
		vault:        vault,
		processor:    extraction.NewProcessor(store, vault, policy, runNotifier{notifier, logger}, logger),
		sessions:     NewSessionFile(cfg.SessionEnvelopePath(), vault),
		pollInterval: time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		retryPolicy:  policy,
		heartbeat: NewHeartbeatMonitor(
			store,
			logger,
			time.Duration(cfg.Workflow.HeartbeatInterval)*time.Second,
			time.Duration(cfg.Workflow.HeartbeatTimeout)*time.Second,
		),
	}, nil
}

// Sessions exposes the encrypted session file handle, shared with the CLI.
func (m *Manager) Sessions() *SessionFile { return m.sessions }

// Start begins background processing on both lanes.
func (m *Manager) Start(ctx context.Context) error {
	if strings.TrimSpace(m.cfg.Portal.AutomationURL) == "" {
		return errors.New("portal automation_url is not configured")
	}

	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(2)
	m.mu.Unlock()

	go m.runScrapeLane(runCtx)
	go m.runSubmitLane(runCtx)
	return nil
}

// Stop terminates background processing and waits for both lanes to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
}

// LastError returns the most recent lane-level failure, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) waitForWorkOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}

// runNotifier bridges the notifications service into the processor's
// narrower notifier contract, logging delivery failures instead of
// surfacing them into run processing.
type runNotifier struct {
	svc    notifications.Service
	logger *slog.Logger
}

func (n runNotifier) RunCompleted(ctx context.Context, run *pipeline.ExtractionRun) {
	if err := n.svc.NotifyRunCompleted(ctx, run); err != nil {
		n.logger.Warn("run completion notification failed", logging.Error(err))
	}
}

func (n runNotifier) RunFailed(ctx context.Context, run *pipeline.ExtractionRun, reason string) {
	if err := n.svc.NotifyRunFailed(ctx, run, reason); err != nil {
		n.logger.Warn("run failure notification failed", logging.Error(err))
	}
}

func (n runNotifier) VisitReady(ctx context.Context, property *pipeline.Property) {
	if err := n.svc.NotifyVisitReady(ctx, property); err != nil {
		n.logger.Warn("visit ready notification failed", logging.Error(err))
	}
}
