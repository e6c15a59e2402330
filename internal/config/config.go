package config

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyeon/webgate/pkg/automation"
)

// Config represents the main webgate configuration
type Config struct {
	// Server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Browser engine
	Browser BrowserConfig `json:"browser" mapstructure:"browser"`

	// Artifacts (screenshots etc.)
	Artifacts ArtifactsConfig `json:"artifacts" mapstructure:"artifacts"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ServerConfig holds gateway server configuration
type ServerConfig struct {
	Host                 string `json:"host" mapstructure:"host"`
	Port                 int    `json:"port" mapstructure:"port"`
	Mode                 string `json:"mode" mapstructure:"mode"` // full, simple
	HeartbeatIntervalSec int    `json:"heartbeat_interval_seconds" mapstructure:"heartbeat_interval_seconds"`
}

// HeartbeatInterval returns the heartbeat interval as a duration.
func (s ServerConfig) HeartbeatInterval() time.Duration {
	return time.Duration(s.HeartbeatIntervalSec) * time.Second
}

// BrowserConfig holds browser engine configuration
type BrowserConfig struct {
	Headless    bool   `json:"headless" mapstructure:"headless"`
	NoSandbox   bool   `json:"no_sandbox" mapstructure:"no_sandbox"`
	ChromePath  string `json:"chrome_path" mapstructure:"chrome_path"`
	CDPPort     int    `json:"cdp_port" mapstructure:"cdp_port"`
	MaxSessions int    `json:"max_sessions" mapstructure:"max_sessions"`
}

// ArtifactsConfig holds output settings for captured artifacts
type ArtifactsConfig struct {
	OutputDir string `json:"output_dir" mapstructure:"output_dir"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `json:"level" mapstructure:"level"`
	File  string `json:"file" mapstructure:"file"`
}

// Engine maps the browser settings onto the automation engine config.
func (c *Config) Engine() automation.Config {
	return automation.Config{
		Headless:    c.Browser.Headless,
		NoSandbox:   c.Browser.NoSandbox,
		ChromePath:  c.Browser.ChromePath,
		CDPPort:     c.Browser.CDPPort,
		MaxSessions: c.Browser.MaxSessions,
		ArtifactDir: c.Artifacts.OutputDir,
	}
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:                 "127.0.0.1",
			Port:                 8931,
			Mode:                 "full",
			HeartbeatIntervalSec: 30,
		},
		Browser: BrowserConfig{
			Headless:    true,
			NoSandbox:   false,
			MaxSessions: 8,
		},
		Artifacts: ArtifactsConfig{
			OutputDir: "screenshots",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Sprintf("config marshal error: %v", err)
	}
	return string(data)
}
