package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"fieldline/internal/notifications"
	"fieldline/internal/pipeline"
	"fieldline/internal/portal"
	"fieldline/internal/testsupport"
)

type stubClient struct {
	extract    func(portal.Address) (portal.CustomerData, error)
	submit     func(portal.SubmitRequest) (portal.SubmitResult, error)
	calls      int
	requestIDs []string
}

func (c *stubClient) ExtractCustomerData(ctx context.Context, address portal.Address, _ []byte) (portal.CustomerData, error) {
	c.calls++
	c.recordRequestID(ctx)
	if c.extract == nil {
		return portal.CustomerData{}, errors.New("extract not scripted")
	}
	return c.extract(address)
}

func (c *stubClient) SubmitCase(ctx context.Context, req portal.SubmitRequest) (portal.SubmitResult, error) {
	c.calls++
	c.recordRequestID(ctx)
	if c.submit == nil {
		return portal.SubmitResult{}, errors.New("submit not scripted")
	}
	return c.submit(req)
}

func (c *stubClient) recordRequestID(ctx context.Context) {
	rid, _ := portal.RequestIDFromContext(ctx)
	c.requestIDs = append(c.requestIDs, rid)
}

func newTestManager(t *testing.T, client portal.AutomationClient) (*Manager, *pipeline.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithAutomationURL("http://localhost:9"))
	cfg.Workflow.RetryMaxAttempts = 1
	cfg.Workflow.QueuePollInterval = 1
	store := testsupport.MustOpenStore(t, cfg)

	mgr, err := NewManagerWithDeps(cfg, store, nil, notifications.NewService(cfg), client)
	if err != nil {
		t.Fatalf("NewManagerWithDeps failed: %v", err)
	}
	return mgr, store
}

func importSession(t *testing.T, mgr *Manager) {
	t.Helper()
	if err := mgr.Sessions().Import([]byte(`{"cookies":[]}`)); err != nil {
		t.Fatalf("session import failed: %v", err)
	}
}

func makeVisited(t *testing.T, store *pipeline.Store) *pipeline.Property {
	t.Helper()
	ctx := context.Background()
	property := testsupport.NewProperty(t, store, "100", "Test Ave", "90210")
	if _, err := store.ClaimNextForScrape(ctx); err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if _, err := store.ApplyExtractionSuccess(ctx, property.ID, "Ada Lovelace", "555-0100", ""); err != nil {
		t.Fatalf("ApplyExtractionSuccess failed: %v", err)
	}
	for _, docType := range pipeline.RequiredDocumentTypes {
		if _, err := store.AddDocument(ctx, property.ID, docType, ""); err != nil {
			t.Fatalf("AddDocument failed: %v", err)
		}
	}
	if _, err := store.CompleteVisit(ctx, property.ID); err != nil {
		t.Fatalf("CompleteVisit failed: %v", err)
	}
	return property
}

func TestSessionFileRoundTrip(t *testing.T) {
	mgr, _ := newTestManager(t, &stubClient{})

	if _, err := mgr.Sessions().Envelope(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession before import, got %v", err)
	}

	importSession(t, mgr)
	plaintext, err := mgr.Sessions().Decrypt()
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if string(plaintext) != `{"cookies":[]}` {
		t.Fatalf("unexpected plaintext: %q", plaintext)
	}

	if err := mgr.Sessions().Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := mgr.Sessions().Envelope(); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession after clear, got %v", err)
	}
}

func TestScrapeTickProcessesClaimedBatch(t *testing.T) {
	client := &stubClient{
		extract: func(portal.Address) (portal.CustomerData, error) {
			return portal.CustomerData{Name: "Ada"}, nil
		},
	}
	mgr, store := newTestManager(t, client)
	ctx := context.Background()
	seeded := testsupport.SeedProperties(t, store, 3)
	importSession(t, mgr)

	worked, err := mgr.scrapeTick(ctx, mgr.logger)
	if err != nil {
		t.Fatalf("scrapeTick failed: %v", err)
	}
	if !worked {
		t.Fatal("scrapeTick should report having worked")
	}

	for _, property := range seeded {
		updated, err := store.GetProperty(ctx, property.ID)
		if err != nil {
			t.Fatalf("GetProperty failed: %v", err)
		}
		if updated.Status != pipeline.StatusReadyForField {
			t.Fatalf("property %d should be ready_for_field, got %s", property.ID, updated.Status)
		}
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0].Status != pipeline.RunCompleted {
		t.Fatalf("expected one completed run, got %#v", runs)
	}

	// Empty queue: the next tick is a no-op.
	worked, err = mgr.scrapeTick(ctx, mgr.logger)
	if err != nil || worked {
		t.Fatalf("expected idle tick, got worked=%v err=%v", worked, err)
	}
}

func TestScrapeTickIdlesWithoutSession(t *testing.T) {
	mgr, store := newTestManager(t, &stubClient{})
	testsupport.SeedProperties(t, store, 1)

	worked, err := mgr.scrapeTick(context.Background(), mgr.logger)
	if err != nil {
		t.Fatalf("scrapeTick failed: %v", err)
	}
	if worked {
		t.Fatal("no session imported, tick should idle")
	}

	count, err := store.CountByStatus(context.Background(), pipeline.StatusPendingScrape)
	if err != nil {
		t.Fatalf("CountByStatus failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("no claims should happen without a session, pending=%d", count)
	}
}

func TestScrapeTickResumesInterruptedRun(t *testing.T) {
	client := &stubClient{
		extract: func(portal.Address) (portal.CustomerData, error) {
			return portal.CustomerData{Name: "Ada"}, nil
		},
	}
	mgr, store := newTestManager(t, client)
	ctx := context.Background()
	testsupport.SeedProperties(t, store, 1)
	importSession(t, mgr)

	// Simulate a crash after claiming and creating the run.
	ids, err := mgr.claimScrapeBatch(ctx)
	if err != nil || len(ids) != 1 {
		t.Fatalf("claim batch failed: %v %v", err, ids)
	}
	envelope, err := mgr.sessions.Envelope()
	if err != nil {
		t.Fatalf("Envelope failed: %v", err)
	}
	run, err := store.CreateRun(ctx, envelope, ids)
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if err := store.MarkRunRunning(ctx, run.ID); err != nil {
		t.Fatalf("MarkRunRunning failed: %v", err)
	}

	worked, err := mgr.scrapeTick(ctx, mgr.logger)
	if err != nil {
		t.Fatalf("scrapeTick failed: %v", err)
	}
	if !worked {
		t.Fatal("interrupted run should be resumed")
	}

	resumed, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if resumed.Status != pipeline.RunCompleted {
		t.Fatalf("expected resumed run completed, got %s", resumed.Status)
	}
}

func TestSubmitTickCompletesProperty(t *testing.T) {
	client := &stubClient{
		submit: func(req portal.SubmitRequest) (portal.SubmitResult, error) {
			if req.CustomerName != "Ada Lovelace" {
				return portal.SubmitResult{}, errors.New("wrong customer")
			}
			return portal.SubmitResult{CaseID: "CASE-42"}, nil
		},
	}
	mgr, store := newTestManager(t, client)
	ctx := context.Background()
	property := makeVisited(t, store)
	importSession(t, mgr)

	worked, err := mgr.submitTick(ctx, mgr.logger)
	if err != nil {
		t.Fatalf("submitTick failed: %v", err)
	}
	if !worked {
		t.Fatal("submitTick should claim the visited property")
	}

	updated, err := store.GetProperty(ctx, property.ID)
	if err != nil {
		t.Fatalf("GetProperty failed: %v", err)
	}
	if updated.Status != pipeline.StatusComplete {
		t.Fatalf("expected complete, got %s", updated.Status)
	}
	if updated.SCECaseID != "CASE-42" {
		t.Fatalf("case id not stored, got %q", updated.SCECaseID)
	}
}

func TestSubmitTickParksWithoutCaseID(t *testing.T) {
	client := &stubClient{
		submit: func(portal.SubmitRequest) (portal.SubmitResult, error) {
			return portal.SubmitResult{}, nil
		},
	}
	mgr, store := newTestManager(t, client)
	ctx := context.Background()
	property := makeVisited(t, store)
	importSession(t, mgr)

	if _, err := mgr.submitTick(ctx, mgr.logger); err != nil {
		t.Fatalf("submitTick failed: %v", err)
	}

	updated, err := store.GetProperty(ctx, property.ID)
	if err != nil {
		t.Fatalf("GetProperty failed: %v", err)
	}
	if updated.Status != pipeline.StatusReadyForSubmission {
		t.Fatalf("expected ready_for_submission, got %s", updated.Status)
	}
}

func TestSubmitTickRequeuesOnSessionFailure(t *testing.T) {
	client := &stubClient{
		submit: func(portal.SubmitRequest) (portal.SubmitResult, error) {
			return portal.SubmitResult{}, errors.New("session expired, login required")
		},
	}
	mgr, store := newTestManager(t, client)
	ctx := context.Background()
	property := makeVisited(t, store)
	importSession(t, mgr)

	if _, err := mgr.submitTick(ctx, mgr.logger); err != nil {
		t.Fatalf("submitTick failed: %v", err)
	}

	updated, err := store.GetProperty(ctx, property.ID)
	if err != nil {
		t.Fatalf("GetProperty failed: %v", err)
	}
	if updated.Status != pipeline.StatusVisited {
		t.Fatalf("session failure should requeue to visited, got %s", updated.Status)
	}
}

func TestSubmitTickMarksFailedOnPortalError(t *testing.T) {
	client := &stubClient{
		submit: func(portal.SubmitRequest) (portal.SubmitResult, error) {
			return portal.SubmitResult{}, errors.New("portal returned 500")
		},
	}
	mgr, store := newTestManager(t, client)
	ctx := context.Background()
	property := makeVisited(t, store)
	importSession(t, mgr)

	if _, err := mgr.submitTick(ctx, mgr.logger); err != nil {
		t.Fatalf("submitTick failed: %v", err)
	}

	updated, err := store.GetProperty(ctx, property.ID)
	if err != nil {
		t.Fatalf("GetProperty failed: %v", err)
	}
	if updated.Status != pipeline.StatusFailed {
		t.Fatalf("expected failed, got %s", updated.Status)
	}
	if updated.ErrorMessage != "portal returned 500" {
		t.Fatalf("failure reason not retained, got %q", updated.ErrorMessage)
	}
}

func TestTicksCarryRequestIDs(t *testing.T) {
	client := &stubClient{
		extract: func(portal.Address) (portal.CustomerData, error) {
			return portal.CustomerData{Name: "Ada"}, nil
		},
		submit: func(portal.SubmitRequest) (portal.SubmitResult, error) {
			return portal.SubmitResult{CaseID: "CASE-1"}, nil
		},
	}
	mgr, store := newTestManager(t, client)
	ctx := context.Background()
	testsupport.SeedProperties(t, store, 1)
	importSession(t, mgr)

	if _, err := mgr.scrapeTick(ctx, mgr.logger); err != nil {
		t.Fatalf("scrapeTick failed: %v", err)
	}
	makeVisited(t, store)
	if _, err := mgr.submitTick(ctx, mgr.logger); err != nil {
		t.Fatalf("submitTick failed: %v", err)
	}

	if len(client.requestIDs) != 2 {
		t.Fatalf("expected a portal call per tick, got %v", client.requestIDs)
	}
	for i, rid := range client.requestIDs {
		if rid == "" {
			t.Fatalf("portal call %d carried no request id", i)
		}
	}
	if client.requestIDs[0] == client.requestIDs[1] {
		t.Fatalf("ticks must mint distinct request ids, both got %q", client.requestIDs[0])
	}
}

func TestManagerStartStop(t *testing.T) {
	client := &stubClient{
		extract: func(portal.Address) (portal.CustomerData, error) {
			return portal.CustomerData{Name: "Ada"}, nil
		},
	}
	mgr, _ := newTestManager(t, client)

	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := mgr.Start(context.Background()); err == nil {
		t.Fatal("second Start should fail while running")
	}

	done := make(chan struct{})
	go func() {
		mgr.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	// Stop again is a no-op.
	mgr.Stop()
}
