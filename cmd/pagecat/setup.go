package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pevans/pagecat"
	"github.com/pevans/pagecat/config"
	"github.com/pevans/pagecat/history"
	"github.com/pevans/pagecat/logging"
	"github.com/pevans/pagecat/page"
	"github.com/pevans/pagecat/page/rodpage"
	"github.com/pevans/pagecat/runs"
	"github.com/pevans/pagecat/scraper"
	"github.com/sirupsen/logrus"
)

// loadFileConfig loads configuration with precedence:
// 1. Environment variables (highest priority)
// 2. Configuration file (~/.pagecat/config.yaml)
// 3. Default values (lowest priority)
func loadFileConfig() *config.FileConfig {
	cfg, err := config.LoadConfigFile()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config file: %v\n", err)
		fmt.Fprintf(os.Stderr, "Continuing with defaults and environment variables...\n\n")
	}
	if cfg == nil {
		cfg = config.DefaultFileConfig()
	}

	if dir, err := config.Dir(); err == nil {
		defaults := config.DefaultStorage(dir)
		if cfg.Storage.Settings == "" {
			cfg.Storage.Settings = defaults.Settings
		}
		if cfg.Storage.History == "" {
			cfg.Storage.History = defaults.History
		}
		if cfg.Storage.Runs == "" {
			cfg.Storage.Runs = defaults.Runs
		}
	}

	cfg.Storage.Settings = getEnv("PAGECAT_SETTINGS_DSN", cfg.Storage.Settings)
	cfg.Storage.History = getEnv("PAGECAT_HISTORY_DSN", cfg.Storage.History)
	cfg.Storage.Runs = getEnv("PAGECAT_RUNS_DIR", cfg.Storage.Runs)
	cfg.Profile = getEnv("PAGECAT_PROFILE", cfg.Profile)
	cfg.Browser.ControlURL = getEnv("PAGECAT_BROWSER_URL", cfg.Browser.ControlURL)
	cfg.Log.Level = getEnv("PAGECAT_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("PAGECAT_LOG_FORMAT", cfg.Log.Format)
	cfg.Listen = getEnv("PAGECAT_LISTEN", cfg.Listen)

	return cfg
}

func newLogger(cfg *config.FileConfig) *logrus.Logger {
	return logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
}

func loadProfile(cfg *config.FileConfig) scraper.Profile {
	if cfg.Profile == "" {
		return scraper.XiaohongshuProfile()
	}

	profile, err := scraper.LoadProfile(cfg.Profile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return *profile
}

// ensureParent creates the directory holding a database file.
func ensureParent(path string) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create directory %s: %v\n", dir, err)
			os.Exit(1)
		}
	}
}

func openSettings(cfg *config.FileConfig) *config.ConfigStore {
	ensureParent(cfg.Storage.Settings)
	store, err := config.NewConfigStore(cfg.Storage.Settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open settings database: %v\n", err)
		os.Exit(1)
	}
	return store
}

func openHistory(cfg *config.FileConfig) *history.Store {
	ensureParent(cfg.Storage.History)
	store, err := history.NewStore(cfg.Storage.History)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open history database: %v\n", err)
		os.Exit(1)
	}
	return store
}

func openRuns(cfg *config.FileConfig) *runs.Store {
	store, err := runs.NewStore(cfg.Storage.Runs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open run storage: %v\n", err)
		os.Exit(1)
	}
	return store
}

func launchBrowser(cfg *config.FileConfig, logger *logrus.Logger) *rodpage.Browser {
	browser, err := rodpage.Launch(cfg.Browser, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return browser
}

// newService wires a service with the configured profile and scroll tuning.
func newService(cfg *config.FileConfig, opener page.Opener, logger *logrus.Logger, opts ...pagecat.ServiceOption) *pagecat.Service {
	opts = append([]pagecat.ServiceOption{
		pagecat.WithProfile(loadProfile(cfg)),
		pagecat.WithScrollConfig(cfg.Scroll),
		pagecat.WithRequestsPerMinute(cfg.LLM.RequestsPerMinute),
		pagecat.WithLogger(logger),
	}, opts...)
	return pagecat.NewService(opener, opts...)
}
