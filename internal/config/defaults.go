package config

const (
	defaultDataDir              = "~/.local/share/fieldline"
	defaultLogDir               = "~/.local/share/fieldline/logs"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
	defaultQueuePollInterval    = 10
	defaultHeartbeatInterval    = 15
	defaultHeartbeatTimeout     = 120
	defaultPortalRequestTimeout = 120
	defaultNotifyRequestTimeout = 10
	defaultRetryMaxAttempts     = 3
	defaultRetryInitialMs       = 1000
	defaultRetryMaxMs           = 10000
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Portal: Portal{
			RequestTimeout: defaultPortalRequestTimeout,
		},
		Workflow: Workflow{
			QueuePollInterval: defaultQueuePollInterval,
			HeartbeatInterval: defaultHeartbeatInterval,
			HeartbeatTimeout:  defaultHeartbeatTimeout,
			RetryMaxAttempts:  defaultRetryMaxAttempts,
			RetryInitialMs:    defaultRetryInitialMs,
			RetryMaxMs:        defaultRetryMaxMs,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Runs:           true,
			Visits:         true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
