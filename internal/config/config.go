package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// HistoryConfig represents run-history storage configuration
type HistoryConfig struct {
	// Enabled enables recording runs to the history database
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the history database file
	DBPath string `yaml:"db_path"`

	// KeepDays is the number of days to retain run records
	KeepDays int `yaml:"keep_days"`
}

// UploadConfig represents coverage upload configuration
type UploadConfig struct {
	// URL is the coverage service endpoint; empty disables uploads
	URL string `yaml:"url"`

	// TokenEnv names the environment variable holding the upload token
	TokenEnv string `yaml:"token_env"`

	// Timeout bounds a single upload request
	Timeout time.Duration `yaml:"timeout"`
}

// Config represents stagehand runner configuration options
type Config struct {
	// MaxConcurrency is the maximum number of concurrent matrix jobs (0 = unlimited)
	MaxConcurrency int `yaml:"max_concurrency"`

	// Timeout is the maximum execution time for a run
	Timeout time.Duration `yaml:"timeout"`

	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where logs will be written
	LogDir string `yaml:"log_dir"`

	// WorkspaceDir is the directory under which per-entry workspaces are created
	WorkspaceDir string `yaml:"workspace_dir"`

	// KeepWorkspaces preserves per-entry workspaces after a run
	KeepWorkspaces bool `yaml:"keep_workspaces"`

	// History contains run-history storage configuration
	History HistoryConfig `yaml:"history"`

	// Upload contains coverage upload configuration
	Upload UploadConfig `yaml:"upload"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrency: 0, // Unlimited
		Timeout:        2 * time.Hour,
		LogLevel:       "info",
		LogDir:         ".stagehand/logs",
		WorkspaceDir:   ".stagehand/workspaces",
		KeepWorkspaces: false,
		History: HistoryConfig{
			Enabled:  true,
			DBPath:   ".stagehand/history.db",
			KeepDays: 90,
		},
		Upload: UploadConfig{
			TokenEnv: "STAGEHAND_UPLOAD_TOKEN",
			Timeout:  30 * time.Second,
		},
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		// File doesn't exist, return defaults (not an error)
		return cfg, nil
	}

	// Read the file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	// Durations are declared as strings in YAML, so parse via a shadow struct
	type yamlUpload struct {
		URL      string `yaml:"url"`
		TokenEnv string `yaml:"token_env"`
		Timeout  string `yaml:"timeout"`
	}
	type yamlConfig struct {
		MaxConcurrency int           `yaml:"max_concurrency"`
		Timeout        string        `yaml:"timeout"`
		LogLevel       string        `yaml:"log_level"`
		LogDir         string        `yaml:"log_dir"`
		WorkspaceDir   string        `yaml:"workspace_dir"`
		KeepWorkspaces bool          `yaml:"keep_workspaces"`
		History        HistoryConfig `yaml:"history"`
		Upload         yamlUpload    `yaml:"upload"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply non-zero values from file (merging with defaults)
	if yamlCfg.MaxConcurrency != 0 {
		cfg.MaxConcurrency = yamlCfg.MaxConcurrency
	}
	if yamlCfg.Timeout != "" {
		timeout, err := time.ParseDuration(yamlCfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout format %q: %w", yamlCfg.Timeout, err)
		}
		cfg.Timeout = timeout
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}
	if yamlCfg.WorkspaceDir != "" {
		cfg.WorkspaceDir = yamlCfg.WorkspaceDir
	}
	if yamlCfg.KeepWorkspaces {
		cfg.KeepWorkspaces = yamlCfg.KeepWorkspaces
	}

	// Merge nested sections only when present in the YAML, so that a bare
	// "history:" key doesn't clobber defaults with zero values
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err == nil {
		if section, exists := rawMap["history"]; exists && section != nil {
			historyMap, _ := section.(map[string]interface{})
			if _, exists := historyMap["enabled"]; exists {
				cfg.History.Enabled = yamlCfg.History.Enabled
			}
			if _, exists := historyMap["db_path"]; exists {
				cfg.History.DBPath = yamlCfg.History.DBPath
			}
			if _, exists := historyMap["keep_days"]; exists {
				cfg.History.KeepDays = yamlCfg.History.KeepDays
			}
		}
		if section, exists := rawMap["upload"]; exists && section != nil {
			uploadMap, _ := section.(map[string]interface{})
			if _, exists := uploadMap["url"]; exists {
				cfg.Upload.URL = yamlCfg.Upload.URL
			}
			if _, exists := uploadMap["token_env"]; exists {
				cfg.Upload.TokenEnv = yamlCfg.Upload.TokenEnv
			}
			if _, exists := uploadMap["timeout"]; exists {
				timeout, err := time.ParseDuration(yamlCfg.Upload.Timeout)
				if err != nil {
					return nil, fmt.Errorf("invalid upload timeout %q: %w", yamlCfg.Upload.Timeout, err)
				}
				cfg.Upload.Timeout = timeout
			}
		}
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .stagehand/config.yaml in the
// specified directory. If the directory or file doesn't exist, returns
// default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ".stagehand", "config.yaml")
	return LoadConfig(configPath)
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
// This allows CLI flags to take precedence over config file settings
func (c *Config) MergeWithFlags(maxConcurrency *int, timeout *time.Duration, logDir *string, keepWorkspaces *bool) {
	if maxConcurrency != nil {
		c.MaxConcurrency = *maxConcurrency
	}
	if timeout != nil {
		c.Timeout = *timeout
	}
	if logDir != nil {
		c.LogDir = *logDir
	}
	if keepWorkspaces != nil {
		c.KeepWorkspaces = *keepWorkspaces
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("max_concurrency must be >= 0, got %d", c.MaxConcurrency)
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	// Timeout can be 0 (no timeout) or positive, negative is invalid
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %v", c.Timeout)
	}

	if c.History.Enabled {
		if c.History.DBPath == "" {
			return fmt.Errorf("history.db_path cannot be empty when history is enabled")
		}
		if c.History.KeepDays < 0 {
			return fmt.Errorf("history.keep_days must be >= 0, got %d", c.History.KeepDays)
		}
	}

	if c.Upload.URL != "" {
		if c.Upload.TokenEnv == "" {
			return fmt.Errorf("upload.token_env cannot be empty when upload.url is set")
		}
		if c.Upload.Timeout <= 0 {
			return fmt.Errorf("upload.timeout must be > 0, got %v", c.Upload.Timeout)
		}
	}

	return nil
}
