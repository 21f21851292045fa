package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix is the prefix of every environment variable read by Load.
	EnvPrefix = "REINSTALL_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// FileNames are the project config files looked up in the project
// directory, in priority order.
var FileNames = []string{
	".reinstall.yaml",
	".reinstall.yml",
	".reinstall.jsonc",
	".reinstall.json",
}

// envSections are config sections whose env vars split on the first
// underscore (REINSTALL_MANAGER_COMMAND -> manager.command). All other
// keys keep their underscores (REINSTALL_FAIL_FAST -> fail_fast).
var envSections = map[string]bool{
	"manager": true,
	"log":     true,
}

// Options tells Load where to look for a config file.
type Options struct {
	// Path is an explicit config file. It must exist when set.
	Path string

	// Dir is the project directory searched for FileNames when Path is
	// empty. Defaults to the current directory.
	Dir string
}

// Load builds the configuration from defaults, an optional config file,
// and environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (REINSTALL_PACKAGE, REINSTALL_MANAGER_COMMAND, ...)
//  2. Config file (--config, or .reinstall.{yaml,yml,jsonc,json} in the project dir)
//  3. Hardcoded defaults
//
// CLI flags sit above all of these and are applied by the caller.
//
// A relative `dir` inside a config file is resolved against the directory
// containing that file. The returned path is the config file that was
// loaded, or "" if none was found.
func Load(opts Options) (*Config, string, error) {
	k := koanf.New(".")

	path, err := resolvePath(opts)
	if err != nil {
		return nil, "", err
	}

	if path != "" {
		if err := loadFile(k, path); err != nil {
			return nil, "", err
		}

		if dir := k.String("dir"); dir != "" && !filepath.IsAbs(dir) {
			if err := k.Set("dir", filepath.Join(filepath.Dir(path), dir)); err != nil {
				return nil, "", fmt.Errorf("failed to resolve dir from %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKeyValue), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, path, nil
}

// resolvePath returns the config file to load, or "" when none applies.
func resolvePath(opts Options) (string, error) {
	if opts.Path != "" {
		if _, err := os.Stat(opts.Path); err != nil {
			return "", fmt.Errorf("config file %s: %w", opts.Path, err)
		}
		return opts.Path, nil
	}

	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	for _, name := range FileNames {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", nil
}

// loadFile reads path (size-limited) and merges it into k with the parser
// matching its extension.
func loadFile(k *koanf.Koanf, path string) error {
	parser, err := parserFor(path)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file %s too large: %d bytes (max %d)", path, info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := k.Load(rawbytes.Provider(content), parser); err != nil {
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json", ".jsonc":
		return JSONC(), nil
	default:
		return nil, fmt.Errorf("unsupported config file type %q (use .yaml, .yml, .json or .jsonc)", filepath.Ext(path))
	}
}

// envKeyValue maps an environment variable onto a config key.
//
//	REINSTALL_PACKAGE            -> package
//	REINSTALL_FAIL_FAST          -> fail_fast
//	REINSTALL_MANAGER_COMMAND    -> manager.command
//	REINSTALL_MANAGER_INSTALL_ARGS -> manager.install_args (split on whitespace)
//	REINSTALL_LOG_LEVEL          -> log.level
func envKeyValue(key, value string) (string, interface{}) {
	lower := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))

	section, field, ok := strings.Cut(lower, "_")
	if ok && envSections[section] {
		lower = section + "." + field
	}

	if lower == "manager.install_args" {
		return lower, strings.Fields(value)
	}
	return lower, value
}
