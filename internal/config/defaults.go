package config

const (
	defaultDataDir                 = "~/.local/share/batchflow"
	defaultLogDir                  = "~/.local/share/batchflow/logs"
	defaultAPIBind                 = "127.0.0.1:7490"
	defaultRetryMaxAttempts        = 3
	defaultRetryInitialDelay       = 2
	defaultRetryBackoffMultiplier  = 2
	defaultNotifyRequestTimeout    = 10
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogRetentionDays        = 30
	maxRetryAttempts               = 20
	maxRetryBackoffMultiplier      = 10
	maxRetryInitialDelaySeconds    = 3600
	maxBatchConcurrency            = 4096
	minNotifyRequestTimeoutSeconds = 1
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Retry: Retry{
			MaxAttempts:         defaultRetryMaxAttempts,
			InitialDelaySeconds: defaultRetryInitialDelay,
			BackoffMultiplier:   defaultRetryBackoffMultiplier,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Quarantine:     true,
			RunCompleted:   true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
