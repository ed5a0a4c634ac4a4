package preflight

import (
	"context"

	"fieldline/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckSession(cfg),
	}

	if cfg.Portal.AutomationURL != "" {
		results = append(results, CheckAutomationService(ctx, cfg.Portal.AutomationURL))
	}
	results = append(results, CheckNotifications(cfg))

	return results
}
