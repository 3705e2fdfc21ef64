package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "VECTORD_"
)

// nestedSections are second-level sections whose env names need an
// extra dot, e.g. VECTORD_ENGINE_QDRANT_HOST -> engine.qdrant.host.
var nestedSections = map[string][]string{
	"engine": {"qdrant"},
}

// LoadWithFile loads configuration from a YAML file, then overrides it
// with environment variables.
//
// Precedence (highest to lowest):
//  1. VECTORD_* environment variables
//  2. YAML config file (~/.config/vectord/config.yaml by default)
//  3. Default()
//
// The file must live under ~/.config/vectord/ or /etc/vectord/, have 0600
// or 0400 permissions and be at most 1MB. A missing file is not an error.
//
// Environment names map onto keys by splitting the section off at the
// first underscore:
//
//	VECTORD_SERVER_GRPC_PORT   -> server.grpc_port
//	VECTORD_ADMISSION_BUDGET   -> admission.budget
//	VECTORD_ENGINE_QDRANT_HOST -> engine.qdrant.host
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		dir, err := DefaultConfigDir()
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(dir, "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		// Validate through the opened descriptor to avoid a TOCTOU race.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// envKey maps VECTORD_SECTION_FIELD_NAME to section.field_name.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if !ok {
		return lower
	}
	for _, sub := range nestedSections[section] {
		if rest, found := strings.CutPrefix(field, sub+"_"); found {
			return section + "." + sub + "." + rest
		}
	}
	return section + "." + field
}

// DefaultConfigDir returns ~/.config/vectord.
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "vectord"), nil
}

// validateConfigPath checks that path is inside an allowed directory.
// It runs even if the file does not exist yet.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	// Follow symlinks so they cannot escape the allowed directories.
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolvedPath = absPath
	}

	userDir, err := DefaultConfigDir()
	if err != nil {
		return err
	}

	for _, dir := range []string{userDir, "/etc/vectord"} {
		if resolvedPath == dir || strings.HasPrefix(resolvedPath, dir+string(filepath.Separator)) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/vectord/ or /etc/vectord/")
}

// validateConfigFileProperties checks permissions and size of an opened file.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
