package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"fieldline/internal/config"
	"fieldline/internal/pipeline"
	"fieldline/internal/sessionvault"
	"fieldline/internal/workflow"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// configPath returns the raw --config flag value, empty when unset.
func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withStore opens the pipeline store for the duration of one command.
func (c *commandContext) withStore(fn func(*config.Config, *pipeline.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := pipeline.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

// sessionFile builds the encrypted session file handle used by both the
// daemon and the session commands.
func (c *commandContext) sessionFile() (*workflow.SessionFile, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	vault, err := sessionvault.New(cfg.Portal.SessionKey)
	if err != nil {
		return nil, err
	}
	return workflow.NewSessionFile(cfg.SessionEnvelopePath(), vault), nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
