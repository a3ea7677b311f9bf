package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if c.Retry.MaxAttempts < 1 || c.Retry.MaxAttempts > maxRetryAttempts {
		return fmt.Errorf("retry.max_attempts must be between 1 and %d", maxRetryAttempts)
	}
	if c.Retry.InitialDelaySeconds < 0 || c.Retry.InitialDelaySeconds > maxRetryInitialDelaySeconds {
		return fmt.Errorf("retry.initial_delay_seconds must be between 0 and %d", maxRetryInitialDelaySeconds)
	}
	if c.Retry.BackoffMultiplier < 1 || c.Retry.BackoffMultiplier > maxRetryBackoffMultiplier {
		return fmt.Errorf("retry.backoff_multiplier must be between 1 and %d", maxRetryBackoffMultiplier)
	}
	return nil
}

func (c *Config) validateBatch() error {
	if c.Batch.MaxConcurrency < 0 || c.Batch.MaxConcurrency > maxBatchConcurrency {
		return fmt.Errorf("batch.max_concurrency must be between 0 and %d", maxBatchConcurrency)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be a full http(s) URL, got %q", topic)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (expected console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
