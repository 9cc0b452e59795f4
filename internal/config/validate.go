package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

var validLogFormats = map[string]bool{
	"text": true,
	"json": true,
}

// maxDisplayName is the EDID product name descriptor field width.
const maxDisplayName = 13

// Validate checks the config for invalid values and returns all errors found.
// Dangerous zero-values are clamped to safe defaults; other validation errors
// are logged as warnings but do not prevent startup.
func (c *Config) Validate() []error {
	var errs []error
	def := Default()

	if c.DebugfsRoot == "" {
		c.DebugfsRoot = def.DebugfsRoot
	} else if !filepath.IsAbs(c.DebugfsRoot) {
		errs = append(errs, fmt.Errorf("debugfs_root %q must be an absolute path", c.DebugfsRoot))
	}

	if c.SysfsRoot == "" {
		c.SysfsRoot = def.SysfsRoot
	} else if !filepath.IsAbs(c.SysfsRoot) {
		errs = append(errs, fmt.Errorf("sysfs_root %q must be an absolute path", c.SysfsRoot))
	}

	if c.StateFile == "" {
		c.StateFile = def.StateFile
	}

	if c.DisplayName == "" {
		c.DisplayName = def.DisplayName
	} else if len(c.DisplayName) > maxDisplayName {
		errs = append(errs, fmt.Errorf("display_name %q exceeds %d characters and will be truncated", c.DisplayName, maxDisplayName))
		c.DisplayName = c.DisplayName[:maxDisplayName]
	}

	if c.LogLevel != "" && !validLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
		c.LogLevel = def.LogLevel
	}

	if c.LogFormat != "" && !validLogFormats[c.LogFormat] {
		errs = append(errs, fmt.Errorf("log_format %q is not one of text, json", c.LogFormat))
		c.LogFormat = def.LogFormat
	}

	return errs
}

// LogWarnings logs each validation error at warn level.
func LogWarnings(errs []error) {
	for _, err := range errs {
		slog.Warn("config validation", "error", err)
	}
}
