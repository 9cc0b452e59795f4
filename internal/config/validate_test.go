package config

import (
	"strings"
	"testing"
)

func TestValidateDefaultsAreClean(t *testing.T) {
	cfg := Default()
	if errs := cfg.Validate(); len(errs) != 0 {
		t.Fatalf("default config should validate cleanly, got %v", errs)
	}
}

func TestDefaultDisplayNameFitsDescriptor(t *testing.T) {
	if n := len(Default().DisplayName); n > maxDisplayName {
		t.Errorf("default display name is %d chars, EDID descriptor field holds %d", n, maxDisplayName)
	}
}

func TestValidateClampsEmptyPaths(t *testing.T) {
	cfg := &Config{}
	cfg.Validate()

	if cfg.DebugfsRoot != "/sys/kernel/debug/dri" {
		t.Errorf("empty debugfs_root not clamped, got %q", cfg.DebugfsRoot)
	}
	if cfg.SysfsRoot != "/sys/class/drm" {
		t.Errorf("empty sysfs_root not clamped, got %q", cfg.SysfsRoot)
	}
	if cfg.StateFile == "" {
		t.Error("empty state_file not clamped")
	}
}

func TestValidateRejectsRelativeRoots(t *testing.T) {
	cfg := Default()
	cfg.DebugfsRoot = "debug/dri"

	errs := cfg.Validate()
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d: %v", len(errs), errs)
	}
	if !strings.Contains(errs[0].Error(), "debugfs_root") {
		t.Errorf("unexpected error: %v", errs[0])
	}
}

func TestValidateTruncatesLongDisplayName(t *testing.T) {
	cfg := Default()
	cfg.DisplayName = "A Very Long Display Name"

	errs := cfg.Validate()
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d: %v", len(errs), errs)
	}
	if len(cfg.DisplayName) != 13 {
		t.Errorf("display_name not truncated to 13 chars, got %q", cfg.DisplayName)
	}
}

func TestValidateResetsBadLogSettings(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "verbose"
	cfg.LogFormat = "xml"

	errs := cfg.Validate()
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", len(errs), errs)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("bad log settings not reset: level=%q format=%q", cfg.LogLevel, cfg.LogFormat)
	}
}
