// Package config provides configuration loading for the reinstall CLI.
package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/reinstall/internal/model"
)

// Config holds the effective settings of a reinstall run.
type Config struct {
	// Package is the distribution to uninstall. Empty means "read it from
	// the project definition".
	Package string `koanf:"package" yaml:"package"`

	// Dir is the project directory used as the editable install source.
	Dir string `koanf:"dir" yaml:"dir"`

	// FailFast halts after the first failing step.
	FailFast bool `koanf:"fail_fast" yaml:"fail_fast"`

	// Verify checks the package registry after a successful install.
	Verify bool `koanf:"verify" yaml:"verify"`

	// DryRun prints the package manager commands instead of running them.
	DryRun bool `koanf:"dry_run" yaml:"dry_run"`

	// Color is one of auto, always, never.
	Color string `koanf:"color" yaml:"color"`

	Manager ManagerConfig `koanf:"manager" yaml:"manager"`
	Log     LogConfig     `koanf:"log" yaml:"log"`
}

// ManagerConfig selects and parameterizes the package manager.
type ManagerConfig struct {
	// Command is the package manager invocation, split on whitespace,
	// e.g. "pip", "python -m pip", "uv".
	Command string `koanf:"command" yaml:"command"`

	// Flavor forces the CLI dialect (pip or uv). Empty means auto-detect.
	Flavor string `koanf:"flavor" yaml:"flavor,omitempty"`

	// InstallArgs are extra arguments for the editable install.
	InstallArgs []string `koanf:"install_args" yaml:"install_args,omitempty"`
}

// LogConfig controls diagnostic logging on stderr.
type LogConfig struct {
	Level  string `koanf:"level" yaml:"level"`
	Format string `koanf:"format" yaml:"format"`
}

// NewDefaultConfig returns the configuration used when nothing is set.
func NewDefaultConfig() *Config {
	return &Config{
		Dir:   ".",
		Color: string(model.ColorAuto),
		Manager: ManagerConfig{
			Command: "pip",
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// applyDefaults fills zero values left after unmarshalling.
func applyDefaults(cfg *Config) {
	def := NewDefaultConfig()
	if cfg.Dir == "" {
		cfg.Dir = def.Dir
	}
	if cfg.Color == "" {
		cfg.Color = def.Color
	}
	if strings.TrimSpace(cfg.Manager.Command) == "" {
		cfg.Manager.Command = def.Manager.Command
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
}

// Validate checks config for errors.
func (c *Config) Validate() error {
	if c.Package != "" {
		if err := model.ValidatePackageName(c.Package); err != nil {
			return err
		}
	}
	if _, err := model.ParseColorMode(c.Color); err != nil {
		return err
	}
	if len(c.ManagerCommand()) == 0 {
		return fmt.Errorf("manager.command must not be empty")
	}
	if c.Manager.Flavor != "" {
		if _, err := model.ParseManagerFlavor(c.Manager.Flavor); err != nil {
			return err
		}
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("log format must be 'json' or 'console', got %q", c.Log.Format)
	}
	return nil
}

// ManagerCommand returns the package manager argv prefix.
func (c *Config) ManagerCommand() []string {
	return strings.Fields(c.Manager.Command)
}

// ManagerFlavor returns the configured flavor, or "" for auto-detection.
// Call Validate first; an invalid flavor is reported as "".
func (c *Config) ManagerFlavor() model.ManagerFlavor {
	if c.Manager.Flavor == "" {
		return ""
	}
	flavor, err := model.ParseManagerFlavor(c.Manager.Flavor)
	if err != nil {
		return ""
	}
	return flavor
}

// Policy returns the failure policy implied by FailFast.
func (c *Config) Policy() model.FailurePolicy {
	if c.FailFast {
		return model.PolicyFailFast
	}
	return model.PolicyContinue
}

// ColorMode returns the parsed color mode, defaulting to auto.
func (c *Config) ColorMode() model.ColorMode {
	mode, err := model.ParseColorMode(c.Color)
	if err != nil {
		return model.ColorAuto
	}
	return mode
}

// Dump renders the configuration as YAML.
func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return data, nil
}
