package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

const appDirName = "tankobon"

// Config holds the user-tunable settings persisted between runs.
type Config struct {
	// DownloadRoot is the directory that series folders are created under.
	DownloadRoot string `json:"download_root"`
}

// Dir returns the application config directory (~/.config/tankobon),
// creating it if needed.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".config", appDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// DefaultPath returns the config file location inside the config directory.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// HistoryPath returns the download history file location.
func HistoryPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.json"), nil
}

// Load reads the config from the default location, creating it with defaults
// on first run.
func Load() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path. A missing file is created with the
// working directory as the download root; an unreadable one falls back to
// defaults without overwriting the file.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := defaultConfig()
		if saveErr := SaveTo(path, cfg); saveErr != nil {
			return nil, saveErr
		}
		log.Printf("[Config] Created default config at %s", path)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		log.Printf("[Config] Unreadable config at %s, using defaults: %v", path, err)
		return defaultConfig(), nil
	}
	if cfg.DownloadRoot == "" {
		cfg.DownloadRoot = defaultConfig().DownloadRoot
	}
	return &cfg, nil
}

// Save writes the config to the default location.
func Save(cfg *Config) error {
	path, err := DefaultPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

// SaveTo writes the config to path.
func SaveTo(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func defaultConfig() *Config {
	root, err := os.Getwd()
	if err != nil {
		root = "."
	}
	return &Config{DownloadRoot: root}
}
