package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds application configuration.
type Config struct {
	// StoreBackend selects where drafts, history and the signature live:
	// "sqlite" (default), "redis", or "memory" (nothing survives a restart).
	StoreBackend string `json:"store_backend,omitempty"`

	// DBMaxOpenConns limits the maximum number of open SQLite connections.
	// 0 means use sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle SQLite connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	RedisAddr     string `json:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty"`
	// RedisPrefix namespaces every key written to Redis.
	RedisPrefix string `json:"redis_prefix,omitempty"`

	// AssistantBaseURL is the root of the generateContent-style API.
	AssistantBaseURL string `json:"assistant_base_url,omitempty"`
	AssistantModel   string `json:"assistant_model,omitempty"`
	// AssistantAPIKey is usually supplied through CLINOTE_API_KEY instead.
	AssistantAPIKey string `json:"assistant_api_key,omitempty"`
	// AssistantTimeoutSeconds bounds a single assistant call. 0 means no timeout.
	AssistantTimeoutSeconds int `json:"assistant_timeout_seconds,omitempty"`

	// BreakerMaxFailures is the number of consecutive assistant failures
	// that opens the circuit breaker.
	BreakerMaxFailures int `json:"breaker_max_failures,omitempty"`
	// BreakerOpenSeconds is how long the breaker stays open before probing.
	BreakerOpenSeconds int `json:"breaker_open_seconds,omitempty"`

	// HistoryLimit caps the number of committed notes kept in history.
	HistoryLimit int `json:"history_limit,omitempty"`

	// DraftDebounceMillis is the quiet period after an edit before the draft is saved.
	DraftDebounceMillis int `json:"draft_debounce_millis,omitempty"`
	// AutosaveIntervalSeconds is the period of the unconditional draft flush.
	AutosaveIntervalSeconds int `json:"autosave_interval_seconds,omitempty"`

	// AllowedPaths is an allowlist of directories for export/ingest files.
	// Paths outside ~/.clinote/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for export/ingest.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`
	// LogFormat is "json" or "console".
	LogFormat string `json:"log_format,omitempty"`

	HTTPBind string `json:"http_bind,omitempty"`
	HTTPPort int    `json:"http_port,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		StoreBackend:            BackendSQLite,
		RedisPrefix:             "clinote:",
		AssistantBaseURL:        "https://generativelanguage.googleapis.com",
		AssistantModel:          "gemini-2.5-flash",
		BreakerMaxFailures:      5,
		BreakerOpenSeconds:      30,
		HistoryLimit:            30,
		DraftDebounceMillis:     2000,
		AutosaveIntervalSeconds: 30,
		LogLevel:                "info",
		LogFormat:               "console",
		HTTPBind:                "127.0.0.1",
		HTTPPort:                8741,
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.clinote.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithWard loads configuration from the global directory (~/.clinote) and
// the nearest .clinote/config.json found walking upward from startDir.
// The ward config takes precedence for scalar values; arrays are merged.
// Either or both configs may be missing.
func LoadWithWard(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	ward, err := loadFileRaw(FindWardConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), ward), nil
}

// FindWardConfig walks upward from startDir to find the nearest .clinote/config.json.
// Returns the path if found, or empty string if not found.
func FindWardConfig(startDir string) string {
	if startDir == "" {
		return ""
	}
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".clinote", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// ApplyEnv overrides file values with environment variables.
// getenv is os.Getenv outside of tests.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if key := getenv("CLINOTE_API_KEY"); key != "" {
		cfg.AssistantAPIKey = key
	} else if key := getenv("GEMINI_API_KEY"); key != "" && cfg.AssistantAPIKey == "" {
		cfg.AssistantAPIKey = key
	}
	if backend := getenv("CLINOTE_STORE"); backend != "" {
		cfg.StoreBackend = backend
	}
	if addr := getenv("CLINOTE_REDIS_ADDR"); addr != "" {
		cfg.RedisAddr = addr
	}
	if password := getenv("CLINOTE_REDIS_PASSWORD"); password != "" {
		cfg.RedisPassword = password
	}
	if db := getenv("CLINOTE_REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			cfg.RedisDB = n
		}
	}
	if level := getenv("CLINOTE_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	return &Config{
		StoreBackend:            pickString(base.StoreBackend, overlay.StoreBackend),
		DBMaxOpenConns:          pickInt(base.DBMaxOpenConns, overlay.DBMaxOpenConns),
		DBMaxIdleConns:          pickInt(base.DBMaxIdleConns, overlay.DBMaxIdleConns),
		RedisAddr:               pickString(base.RedisAddr, overlay.RedisAddr),
		RedisPassword:           pickString(base.RedisPassword, overlay.RedisPassword),
		RedisDB:                 pickInt(base.RedisDB, overlay.RedisDB),
		RedisPrefix:             pickString(base.RedisPrefix, overlay.RedisPrefix),
		AssistantBaseURL:        pickString(base.AssistantBaseURL, overlay.AssistantBaseURL),
		AssistantModel:          pickString(base.AssistantModel, overlay.AssistantModel),
		AssistantAPIKey:         pickString(base.AssistantAPIKey, overlay.AssistantAPIKey),
		AssistantTimeoutSeconds: pickInt(base.AssistantTimeoutSeconds, overlay.AssistantTimeoutSeconds),
		BreakerMaxFailures:      pickInt(base.BreakerMaxFailures, overlay.BreakerMaxFailures),
		BreakerOpenSeconds:      pickInt(base.BreakerOpenSeconds, overlay.BreakerOpenSeconds),
		HistoryLimit:            pickInt(base.HistoryLimit, overlay.HistoryLimit),
		DraftDebounceMillis:     pickInt(base.DraftDebounceMillis, overlay.DraftDebounceMillis),
		AutosaveIntervalSeconds: pickInt(base.AutosaveIntervalSeconds, overlay.AutosaveIntervalSeconds),
		LogLevel:                pickString(base.LogLevel, overlay.LogLevel),
		LogFormat:               pickString(base.LogFormat, overlay.LogFormat),
		HTTPBind:                pickString(base.HTTPBind, overlay.HTTPBind),
		HTTPPort:                pickInt(base.HTTPPort, overlay.HTTPPort),

		// Booleans: overlay wins if true, else base
		AllowUnsafePaths: base.AllowUnsafePaths || overlay.AllowUnsafePaths,

		AllowedPaths:  mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths),
		DisabledTools: mergeStringSlice(base.DisabledTools, overlay.DisabledTools),
	}
}

func pickString(base, overlay string) string {
	if overlay != "" {
		return overlay
	}
	return base
}

func pickInt(base, overlay int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, list := range [][]string{a, b} {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s != "" && !seen[s] {
				seen[s] = true
				result = append(result, s)
			}
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
