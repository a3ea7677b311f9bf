package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// envOverrides lists the settings that may be supplied through the
// environment. Unset variables leave the file/default value untouched.
type envOverrides struct {
	DataDir   *string `env:"BATCHFLOW_DATA_DIR"`
	LogDir    *string `env:"BATCHFLOW_LOG_DIR"`
	APIBind   *string `env:"BATCHFLOW_API_BIND"`
	APIToken  *string `env:"BATCHFLOW_API_TOKEN"`
	NtfyTopic *string `env:"BATCHFLOW_NTFY_TOPIC"`
	LogLevel  *string `env:"BATCHFLOW_LOG_LEVEL"`
	LogFormat *string `env:"BATCHFLOW_LOG_FORMAT"`
}

func (c *Config) applyEnv() error {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	assign := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	assign(&c.Paths.DataDir, overrides.DataDir)
	assign(&c.Paths.LogDir, overrides.LogDir)
	assign(&c.Paths.APIBind, overrides.APIBind)
	assign(&c.Paths.APIToken, overrides.APIToken)
	assign(&c.Notifications.NtfyTopic, overrides.NtfyTopic)
	assign(&c.Logging.Level, overrides.LogLevel)
	assign(&c.Logging.Format, overrides.LogFormat)
	return nil
}
