package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains the HTTP bind address and optional API token.
type Server struct {
	Bind        string   `toml:"bind"`
	APIToken    string   `toml:"api_token"`
	CORSOrigins []string `toml:"cors_origins"`
}

// Paths contains directory configuration.
type Paths struct {
	VideoDir   string `toml:"video_dir"`
	ResultsDir string `toml:"results_dir"`
	LogDir     string `toml:"log_dir"`
}

// Storage selects and configures the media storage backend.
type Storage struct {
	Backend     string `toml:"backend"` // "local" or "s3"
	S3Endpoint  string `toml:"s3_endpoint"`
	S3AccessKey string `toml:"s3_access_key"`
	S3SecretKey string `toml:"s3_secret_key"`
	S3Bucket    string `toml:"s3_bucket"`
	S3Region    string `toml:"s3_region"`
	S3UseSSL    bool   `toml:"s3_use_ssl"`
}

// Processing contains concurrency and analyzer settings.
type Processing struct {
	MaxConcurrentJobs      int    `toml:"max_concurrent_jobs"`
	ProcessingTimeSeconds  int    `toml:"processing_time_seconds"`
	MaxRetries             int    `toml:"max_retries"`
	AnalyzerCommand        string `toml:"analyzer_command"`
	AnalyzerTimeoutSeconds int    `toml:"analyzer_timeout_seconds"`
}

// Network contains connectivity monitoring settings.
type Network struct {
	CheckIntervalSeconds int    `toml:"check_interval_seconds"`
	ProbeAddress         string `toml:"probe_address"`
	ProbeTimeoutSeconds  int    `toml:"probe_timeout_seconds"`
}

// Notifications contains result email delivery and operator alert settings.
type Notifications struct {
	EmailEnabled          bool   `toml:"email_enabled"`
	SMTPHost              string `toml:"smtp_host"`
	SMTPPort              int    `toml:"smtp_port"`
	SMTPFrom              string `toml:"smtp_from"`
	SMTPUsername          string `toml:"smtp_username"`
	SMTPPassword          string `toml:"smtp_password"`
	MaxAttempts           int    `toml:"max_attempts"`
	BackoffInitialSeconds int    `toml:"backoff_initial_seconds"`
	BackoffMaxSeconds     int    `toml:"backoff_max_seconds"`
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeout        int    `toml:"request_timeout"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for suture.
//
// Sections by subsystem:
//   - Server: HTTP bind address, API token, CORS origins
//   - Paths: video/results/log directories
//   - Storage: local disk or S3-compatible media storage
//   - Processing: worker pool size, retry ceiling, analyzer wiring
//   - Network: connectivity probe cadence and target
//   - Notifications: SMTP result delivery and ntfy operator alerts
//   - Logging: log format and level
type Config struct {
	Server        Server        `toml:"server"`
	Paths         Paths         `toml:"paths"`
	Storage       Storage       `toml:"storage"`
	Processing    Processing    `toml:"processing"`
	Network       Network       `toml:"network"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/suture/config.toml")
}

// SampleConfig returns the embedded sample configuration text.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. The bool reports
// whether a config file was actually found at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("suture.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the daemon needs at runtime.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.VideoDir, c.Paths.ResultsDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDatabasePath returns the location of the submission database.
func (c *Config) QueueDatabasePath() string {
	return filepath.Join(c.Paths.LogDir, "queue.db")
}

// LockFilePath returns the daemon single-instance lock location.
func (c *Config) LockFilePath() string {
	return filepath.Join(c.Paths.LogDir, "sutured.lock")
}

// AnalyzerTimeout returns the analyzer execution ceiling as a duration.
func (c *Config) AnalyzerTimeout() time.Duration {
	return time.Duration(c.Processing.AnalyzerTimeoutSeconds) * time.Second
}

// AverageProcessingTime returns the configured per-job duration estimate.
func (c *Config) AverageProcessingTime() time.Duration {
	return time.Duration(c.Processing.ProcessingTimeSeconds) * time.Second
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.VideoDir, err = expandPath(c.Paths.VideoDir); err != nil {
		return err
	}
	if c.Paths.ResultsDir, err = expandPath(c.Paths.ResultsDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendLocal
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
