package config

const (
	LedgerBackendStore = "store"
	LedgerBackendFile  = "file"

	BackoffConstant    = "constant"
	BackoffExponential = "exponential"
)

const (
	defaultConfigPath    = "~/.config/mangacache/config.toml"
	defaultAPIBaseURL    = "http://localhost:8000/api/"
	defaultRefreshPath   = "auth/refresh/"
	defaultAPITimeout    = 30
	defaultStoragePath   = "~/.local/share/mangacache/cache.db"
	defaultLedgerPath    = "~/.local/share/mangacache/downloads.json"
	defaultMaxAttempts   = 3
	defaultMaxConcurrent = 3
	defaultLogLevel      = "info"
	defaultLogFormat     = "auto"
	defaultServerBind    = "127.0.0.1:7488"
	defaultHandleTTL     = 600
	defaultMaxHandles    = 2048
	defaultExportDir     = "~/Downloads"
	defaultJPEGQuality   = 85
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		API: API{
			BaseURL:        defaultAPIBaseURL,
			RefreshPath:    defaultRefreshPath,
			TimeoutSeconds: defaultAPITimeout,
		},
		Storage: Storage{
			Path:             defaultStoragePath,
			FallbackToMemory: true,
			LedgerBackend:    LedgerBackendStore,
			LedgerPath:       defaultLedgerPath,
		},
		Downloads: Downloads{
			MaxAttempts:   defaultMaxAttempts,
			RetryBackoff:  BackoffConstant,
			MaxConcurrent: defaultMaxConcurrent,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Server: Server{
			Bind:             defaultServerBind,
			HandleTTLSeconds: defaultHandleTTL,
			MaxHandles:       defaultMaxHandles,
		},
		Export: Export{
			Dir:         defaultExportDir,
			JPEGQuality: defaultJPEGQuality,
		},
	}
}
