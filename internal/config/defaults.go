package config

// Storage backend identifiers.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

const (
	defaultBind                  = "127.0.0.1:8085"
	defaultVideoDir              = "~/.local/share/suture/videos"
	defaultResultsDir            = "~/.local/share/suture/results"
	defaultLogDir                = "~/.local/share/suture/logs"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultMaxConcurrentJobs     = 2
	defaultProcessingTimeSeconds = 30
	defaultMaxRetries            = 2
	defaultAnalyzerTimeout       = 600
	defaultNetworkCheckInterval  = 30
	defaultProbeAddress          = "8.8.8.8:53"
	defaultProbeTimeout          = 3
	defaultSMTPPort              = 587
	defaultNotifyMaxAttempts     = 3
	defaultNotifyBackoffInitial  = 5
	defaultNotifyBackoffMax      = 60
	defaultNtfyRequestTimeout    = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Server: Server{
			Bind: defaultBind,
		},
		Paths: Paths{
			VideoDir:   defaultVideoDir,
			ResultsDir: defaultResultsDir,
			LogDir:     defaultLogDir,
		},
		Storage: Storage{
			Backend: BackendLocal,
		},
		Processing: Processing{
			MaxConcurrentJobs:      defaultMaxConcurrentJobs,
			ProcessingTimeSeconds:  defaultProcessingTimeSeconds,
			MaxRetries:             defaultMaxRetries,
			AnalyzerTimeoutSeconds: defaultAnalyzerTimeout,
		},
		Network: Network{
			CheckIntervalSeconds: defaultNetworkCheckInterval,
			ProbeAddress:         defaultProbeAddress,
			ProbeTimeoutSeconds:  defaultProbeTimeout,
		},
		Notifications: Notifications{
			SMTPPort:              defaultSMTPPort,
			MaxAttempts:           defaultNotifyMaxAttempts,
			BackoffInitialSeconds: defaultNotifyBackoffInitial,
			BackoffMaxSeconds:     defaultNotifyBackoffMax,
			RequestTimeout:        defaultNtfyRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
