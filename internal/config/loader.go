package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Loader handles configuration loading. Configuration is read once at
// process start; there is no hot reload.
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load loads the configuration from file
func (l *Loader) Load() (*Config, error) {
	configPath := l.configPath
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".webgate", "webgate.json")
	}

	// Missing file means defaults; env vars still apply below.
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return l.applyEnv(DefaultConfig())
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.SetEnvPrefix("WEBGATE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return l.finalize(cfg)
}

// applyEnv builds a config from defaults plus WEBGATE_* environment
// variables when no file exists.
func (l *Loader) applyEnv(cfg *Config) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WEBGATE")
	v.AutomaticEnv()

	if port := v.GetInt("PORT"); port > 0 {
		cfg.Server.Port = port
	}
	if host := v.GetString("HOST"); host != "" {
		cfg.Server.Host = host
	}
	if mode := v.GetString("MODE"); mode != "" {
		cfg.Server.Mode = mode
	}
	if level := v.GetString("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	return l.finalize(cfg)
}

func (l *Loader) finalize(cfg *Config) (*Config, error) {
	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		cfg.DataDir = filepath.Join(home, ".webgate")
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.DataDir, "webgate.log")
	}
	if !filepath.IsAbs(cfg.Artifacts.OutputDir) && cfg.Artifacts.OutputDir != "" {
		cfg.Artifacts.OutputDir = filepath.Join(cfg.DataDir, cfg.Artifacts.OutputDir)
	}
	return cfg, nil
}

// Save saves the configuration to file
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return fmt.Errorf("could not determine config path")
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	v.Set("server", cfg.Server)
	v.Set("browser", cfg.Browser)
	v.Set("artifacts", cfg.Artifacts)
	v.Set("logging", cfg.Logging)
	v.Set("data_dir", cfg.DataDir)

	if err := v.WriteConfig(); err != nil {
		if os.IsNotExist(err) {
			if err := v.SafeWriteConfig(); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}
		} else {
			return fmt.Errorf("failed to write config file: %w", err)
		}
	}

	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".webgate", "webgate.json")
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	loader := NewLoader(configPath)
	return loader.Load()
}
