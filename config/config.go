package config

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// ErrSettingsMissing is returned when the completion API is not configured.
var ErrSettingsMissing = errors.New("API configuration is missing. Please set the API base URL, API key and model name first")

// ConfigStore keeps the completion API settings in SQLite.
type ConfigStore struct {
	db *sql.DB
}

// Settings configures the OpenAI-compatible completion API.
type Settings struct {
	BaseURL   string `json:"base_url"`
	APIKey    string `json:"api_key"`
	ModelName string `json:"model_name"`
}

// Complete reports whether every field is set.
func (s Settings) Complete() bool {
	return s.BaseURL != "" && s.APIKey != "" && s.ModelName != ""
}

// Validate returns ErrSettingsMissing unless the settings are complete.
func (s Settings) Validate() error {
	if !s.Complete() {
		return ErrSettingsMissing
	}
	return nil
}

// Masked returns a copy with all but the last four characters of the API
// key hidden.
func (s Settings) Masked() Settings {
	if n := len(s.APIKey); n > 4 {
		s.APIKey = strings.Repeat("*", n-4) + s.APIKey[n-4:]
	} else if n > 0 {
		s.APIKey = strings.Repeat("*", n)
	}
	return s
}

var settingKeys = []string{"base_url", "api_key", "model_name"}

// NewConfigStore creates a new config store with the given database path.
func NewConfigStore(dbPath string) (*ConfigStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &ConfigStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the config table if it doesn't exist.
func (c *ConfigStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS config (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	_, err := c.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (c *ConfigStore) Close() error {
	return c.db.Close()
}

// GetSettings retrieves the stored settings. Unset fields are empty.
func (c *ConfigStore) GetSettings() (*Settings, error) {
	rows, err := c.db.Query("SELECT key, value FROM config WHERE key IN (?, ?, ?)",
		settingKeys[0], settingKeys[1], settingKeys[2])
	if err != nil {
		return nil, fmt.Errorf("failed to query config: %w", err)
	}
	defer rows.Close()

	settings := &Settings{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan config: %w", err)
		}
		switch key {
		case "base_url":
			settings.BaseURL = value
		case "api_key":
			settings.APIKey = value
		case "model_name":
			settings.ModelName = value
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return settings, nil
}

// UpdateSettings stores every non-empty field of s, trimmed. A trailing
// slash on the base URL is dropped.
func (c *ConfigStore) UpdateSettings(s *Settings) error {
	values := map[string]string{
		"base_url":   strings.TrimRight(strings.TrimSpace(s.BaseURL), "/"),
		"api_key":    strings.TrimSpace(s.APIKey),
		"model_name": strings.TrimSpace(s.ModelName),
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, key := range settingKeys {
		if values[key] == "" {
			continue
		}
		if _, err := tx.Exec("INSERT OR REPLACE INTO config (key, value) VALUES (?, ?)", key, values[key]); err != nil {
			return fmt.Errorf("failed to update config: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit config: %w", err)
	}
	return nil
}
