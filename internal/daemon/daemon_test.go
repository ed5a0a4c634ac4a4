package daemon

import (
	"context"
	"testing"

	"fieldline/internal/notifications"
	"fieldline/internal/pipeline"
	"fieldline/internal/portal"
	"fieldline/internal/testsupport"
	"fieldline/internal/workflow"
)

type idleClient struct{}

func (idleClient) ExtractCustomerData(context.Context, portal.Address, []byte) (portal.CustomerData, error) {
	return portal.CustomerData{}, nil
}

func (idleClient) SubmitCase(context.Context, portal.SubmitRequest) (portal.SubmitResult, error) {
	return portal.SubmitResult{}, nil
}

func newTestDaemon(t *testing.T) (*Daemon, *pipeline.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithAutomationURL("http://localhost:9"))
	cfg.Workflow.QueuePollInterval = 1
	store := testsupport.MustOpenStore(t, cfg)

	mgr, err := workflow.NewManagerWithDeps(cfg, store, nil, notifications.NewService(cfg), idleClient{})
	if err != nil {
		t.Fatalf("NewManagerWithDeps failed: %v", err)
	}
	d, err := New(cfg, store, nil, mgr)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return d, store
}

func TestDaemonStartStop(t *testing.T) {
	d, _ := newTestDaemon(t)
	ctx := context.Background()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !d.Status().Running {
		t.Fatal("expected daemon to report running")
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon to report stopped")
	}
	// Stop is idempotent.
	d.Stop()
}

func TestDaemonLockExcludesSecondInstance(t *testing.T) {
	first, store := newTestDaemon(t)
	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer first.Stop()

	mgr, err := workflow.NewManagerWithDeps(first.cfg, store, nil, notifications.NewService(first.cfg), idleClient{})
	if err != nil {
		t.Fatalf("NewManagerWithDeps failed: %v", err)
	}
	second, err := New(first.cfg, store, nil, mgr)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected lock contention error")
	}
}

func TestDaemonStatusPaths(t *testing.T) {
	d, store := newTestDaemon(t)
	status := d.Status()
	if status.DatabasePath != store.Path() {
		t.Fatalf("database path = %q, want %q", status.DatabasePath, store.Path())
	}
	if status.LockFilePath == "" || status.SessionPath == "" {
		t.Fatalf("expected lock and session paths, got %+v", status)
	}
}
