package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateProcessing(); err != nil {
		return err
	}
	if err := c.validateNetwork(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if strings.TrimSpace(c.Server.Bind) == "" {
		return errors.New("server.bind must be set")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case BackendLocal:
		return nil
	case BackendS3:
		if strings.TrimSpace(c.Storage.S3Endpoint) == "" {
			return errors.New("storage.s3_endpoint must be set when storage.backend is \"s3\"")
		}
		if strings.TrimSpace(c.Storage.S3Bucket) == "" {
			return errors.New("storage.s3_bucket must be set when storage.backend is \"s3\"")
		}
		return nil
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", BackendLocal, BackendS3, c.Storage.Backend)
	}
}

func (c *Config) validateProcessing() error {
	if c.Processing.MaxConcurrentJobs < 1 {
		return errors.New("processing.max_concurrent_jobs must be at least 1")
	}
	if c.Processing.MaxRetries < 0 {
		return errors.New("processing.max_retries must not be negative")
	}
	if c.Processing.ProcessingTimeSeconds <= 0 {
		return errors.New("processing.processing_time_seconds must be positive")
	}
	if c.Processing.AnalyzerTimeoutSeconds <= 0 {
		return errors.New("processing.analyzer_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateNetwork() error {
	if c.Network.CheckIntervalSeconds <= 0 {
		return errors.New("network.check_interval_seconds must be positive")
	}
	if strings.TrimSpace(c.Network.ProbeAddress) == "" {
		return errors.New("network.probe_address must be set")
	}
	if c.Network.ProbeTimeoutSeconds <= 0 {
		return errors.New("network.probe_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	n := c.Notifications
	if n.EmailEnabled {
		if strings.TrimSpace(n.SMTPHost) == "" {
			return errors.New("notifications.smtp_host must be set when notifications.email_enabled is true")
		}
		if n.SMTPPort <= 0 || n.SMTPPort > 65535 {
			return errors.New("notifications.smtp_port must be a valid port")
		}
		if strings.TrimSpace(n.SMTPFrom) == "" {
			return errors.New("notifications.smtp_from must be set when notifications.email_enabled is true")
		}
	}
	if n.MaxAttempts < 1 {
		return errors.New("notifications.max_attempts must be at least 1")
	}
	if n.BackoffInitialSeconds <= 0 || n.BackoffMaxSeconds < n.BackoffInitialSeconds {
		return errors.New("notifications backoff bounds are invalid")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not recognized", c.Logging.Level)
	}
	return nil
}
