package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pevans/pagecat/page/rodpage"
	"github.com/pevans/pagecat/scroll"
	"gopkg.in/yaml.v3"
)

// StorageConfig locates pagecat's persistent state.
type StorageConfig struct {
	// Settings is the SQLite database holding the completion API settings.
	Settings string `yaml:"settings"`
	// History is the SQLite database holding recent instructions.
	History string `yaml:"history"`
	// Runs is the directory completed extraction runs are written to.
	Runs string `yaml:"runs"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LLMConfig tunes calls to the completion API.
type LLMConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute"`
}

// FileConfig represents the structure of ~/.pagecat/config.yaml.
type FileConfig struct {
	Storage StorageConfig   `yaml:"storage"`
	Scroll  scroll.Config   `yaml:"scroll"`
	Browser rodpage.Options `yaml:"browser"`
	Log     LogConfig       `yaml:"log"`
	LLM     LLMConfig       `yaml:"llm"`

	// Profile is a YAML selector profile used instead of the built-in one.
	Profile string `yaml:"profile"`
	// Listen is the address the API server binds.
	Listen string `yaml:"listen"`
}

// DefaultFileConfig returns the configuration used when no file exists.
// Storage paths are left empty; callers fill them from the environment.
func DefaultFileConfig() *FileConfig {
	return &FileConfig{
		Scroll:  scroll.DefaultConfig(),
		Browser: rodpage.Options{Headless: true, NavigateTimeout: rodpage.DefaultNavigateTimeout},
		Log:     LogConfig{Level: "info", Format: "text"},
		LLM:     LLMConfig{RequestsPerMinute: 20},
		Listen:  ":8080",
	}
}

// Dir returns ~/.pagecat.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".pagecat"), nil
}

// LoadConfigFile loads configuration from ~/.pagecat/config.yaml. Returns nil
// if the file doesn't exist (not an error). Returns error if the file exists
// but cannot be parsed.
func LoadConfigFile() (*FileConfig, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(dir, "config.yaml")

	// Check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, nil // File doesn't exist -- not an error
	}

	return LoadConfigFileFrom(configPath)
}

// LoadConfigFileFrom loads configuration from path. Settings the file leaves
// out keep their defaults.
func LoadConfigFileFrom(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultFileConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Scroll.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scroll settings in %s: %w", path, err)
	}

	return cfg, nil
}

// DefaultStorage places every store under dir.
func DefaultStorage(dir string) StorageConfig {
	return StorageConfig{
		Settings: filepath.Join(dir, "settings.db"),
		History:  filepath.Join(dir, "history.db"),
		Runs:     filepath.Join(dir, "runs"),
	}
}

// ConfigFilePath returns the path of ~/.pagecat/config.yaml.
func ConfigFilePath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// WriteDefaultConfigFile writes the default configuration, with absolute
// storage paths under ~/.pagecat, unless a config file already exists. With
// force an existing file is overwritten. It reports whether a file was
// written.
func WriteDefaultConfigFile(force bool) (bool, error) {
	dir, err := Dir()
	if err != nil {
		return false, err
	}
	configPath := filepath.Join(dir, "config.yaml")

	if _, err := os.Stat(configPath); err == nil && !force {
		return false, nil
	}

	// 0700: owner-only access
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := DefaultFileConfig()
	cfg.Storage = DefaultStorage(dir)

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return false, fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return false, fmt.Errorf("failed to write config file: %w", err)
	}
	return true, nil
}
