package config

import (
	"fmt"
	"strings"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidatePort validates a listen port
func (v *Validator) ValidatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// ValidateMode validates the operating mode
func (v *Validator) ValidateMode(mode string) error {
	if mode == "" {
		return nil // Use default
	}

	validModes := []string{"full", "simple"}
	for _, valid := range validModes {
		if mode == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid mode: %s (must be one of: %s)", mode, strings.Join(validModes, ", "))
}

// ValidateLogLevel validates log level
func (v *Validator) ValidateLogLevel(level string) error {
	validLevels := []string{"trace", "debug", "info", "warn", "error"}
	for _, valid := range validLevels {
		if level == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid log level: %s (must be one of: %s)", level, strings.Join(validLevels, ", "))
}

// ValidateMaxSessions validates the session cap
func (v *Validator) ValidateMaxSessions(max int) error {
	if max < 0 {
		return fmt.Errorf("browser.max_sessions must be >= 0, got %d", max)
	}
	return nil
}

// ValidateConfig performs comprehensive validation
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errors []error

	if err := v.ValidatePort(cfg.Server.Port); err != nil {
		errors = append(errors, err)
	}
	if err := v.ValidateMode(cfg.Server.Mode); err != nil {
		errors = append(errors, err)
	}
	if cfg.Server.HeartbeatIntervalSec < 0 {
		errors = append(errors, fmt.Errorf("server.heartbeat_interval_seconds must be >= 0"))
	}
	if err := v.ValidateMaxSessions(cfg.Browser.MaxSessions); err != nil {
		errors = append(errors, err)
	}
	if cfg.Browser.CDPPort < 0 || cfg.Browser.CDPPort > 65535 {
		errors = append(errors, fmt.Errorf("browser.cdp_port must be between 0 and 65535"))
	}
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errors = append(errors, err)
	}

	return errors
}
