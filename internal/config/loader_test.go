package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// setupTestHome points HOME at a temp dir and returns the vectord config dir inside it.
func setupTestHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".config", "vectord")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("Failed to create config dir: %v", err)
	}
	return dir
}

func writeConfig(t *testing.T, dir, content string, perm os.FileMode) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	if err := os.Chmod(path, perm); err != nil {
		t.Fatalf("Failed to chmod test config: %v", err)
	}
	return path
}

func TestLoadWithFile_Defaults(t *testing.T) {
	setupTestHome(t)

	cfg, err := LoadWithFile("")
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	if cfg.Server.GRPCPort != 19530 {
		t.Errorf("Server.GRPCPort = %d, want 19530", cfg.Server.GRPCPort)
	}
	if cfg.Admission.Budget != 256*MiB {
		t.Errorf("Admission.Budget = %d, want %d", cfg.Admission.Budget, 256*MiB)
	}
	if cfg.Engine.Provider != "memory" {
		t.Errorf("Engine.Provider = %q, want memory", cfg.Engine.Provider)
	}
	if cfg.Server.ShutdownTimeout.Duration() != 10*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 10s", cfg.Server.ShutdownTimeout.Duration())
	}
}

func TestLoadWithFile_ValidYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `server:
  grpc_port: 29530
  partial_egress: true
admission:
  budget: 64MB
  wait_timeout: 2s
engine:
  provider: qdrant
  max_topk: 2048
  qdrant:
    host: qdrant.local
    port: 6334
logging:
  level: debug
  format: console
`, 0600)

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v, want nil", err)
	}

	if cfg.Server.GRPCPort != 29530 {
		t.Errorf("Server.GRPCPort = %d, want 29530", cfg.Server.GRPCPort)
	}
	if !cfg.Server.PartialEgress {
		t.Error("Server.PartialEgress = false, want true")
	}
	if cfg.Admission.Budget != 64*MiB {
		t.Errorf("Admission.Budget = %d, want %d", cfg.Admission.Budget, 64*MiB)
	}
	if cfg.Admission.WaitTimeout.Duration() != 2*time.Second {
		t.Errorf("Admission.WaitTimeout = %v, want 2s", cfg.Admission.WaitTimeout.Duration())
	}
	if cfg.Engine.Qdrant.Host != "qdrant.local" {
		t.Errorf("Engine.Qdrant.Host = %q, want qdrant.local", cfg.Engine.Qdrant.Host)
	}
	if cfg.Engine.MaxTopK != 2048 {
		t.Errorf("Engine.MaxTopK = %d, want 2048", cfg.Engine.MaxTopK)
	}
	// Untouched keys keep their defaults.
	if cfg.Server.HTTPPort != 19121 {
		t.Errorf("Server.HTTPPort = %d, want 19121", cfg.Server.HTTPPort)
	}
}

func TestLoadWithFile_EnvironmentOverride(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `server:
  grpc_port: 29530
`, 0600)

	t.Setenv("VECTORD_SERVER_GRPC_PORT", "39530")
	t.Setenv("VECTORD_ADMISSION_BUDGET", "1GiB")
	t.Setenv("VECTORD_ENGINE_QDRANT_HOST", "env-host")

	cfg, err := LoadWithFile(path)
	if err != nil {
		t.Fatalf("LoadWithFile() error = %v", err)
	}
	if cfg.Server.GRPCPort != 39530 {
		t.Errorf("Server.GRPCPort = %d, want 39530 (env override)", cfg.Server.GRPCPort)
	}
	if cfg.Admission.Budget != GiB {
		t.Errorf("Admission.Budget = %d, want %d", cfg.Admission.Budget, GiB)
	}
	if cfg.Engine.Qdrant.Host != "env-host" {
		t.Errorf("Engine.Qdrant.Host = %q, want env-host", cfg.Engine.Qdrant.Host)
	}
}

func TestLoadWithFile_InvalidYAML(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server: [unterminated", 0600)

	if _, err := LoadWithFile(path); err == nil {
		t.Error("LoadWithFile() error = nil, want parse error")
	}
}

func TestLoadWithFile_Validation(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, `engine:
  provider: faiss
`, 0600)

	_, err := LoadWithFile(path)
	if err == nil || !strings.Contains(err.Error(), "unsupported engine provider") {
		t.Errorf("LoadWithFile() error = %v, want unsupported engine provider", err)
	}
}

func TestLoadWithFile_PathOutsideAllowedDirs(t *testing.T) {
	setupTestHome(t)

	for _, p := range []string{
		"/tmp/vectord.yaml",
		"/etc/vectord../etc/passwd",
		"/etc/passwd",
	} {
		t.Run(p, func(t *testing.T) {
			if _, err := LoadWithFile(p); err == nil {
				t.Errorf("LoadWithFile(%q) error = nil, want path rejection", p)
			}
		})
	}
}

func TestLoadWithFile_InsecurePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission model differs on windows")
	}
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "server:\n  grpc_port: 29530\n", 0644)

	_, err := LoadWithFile(path)
	if err == nil || !strings.Contains(err.Error(), "insecure config file permissions") {
		t.Errorf("LoadWithFile() error = %v, want permission error", err)
	}
}

func TestLoadWithFile_FileTooLarge(t *testing.T) {
	dir := setupTestHome(t)
	path := writeConfig(t, dir, "# "+strings.Repeat("x", maxConfigFileSize+1)+"\n", 0600)

	_, err := LoadWithFile(path)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("LoadWithFile() error = %v, want size error", err)
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"VECTORD_SERVER_GRPC_PORT":        "server.grpc_port",
		"VECTORD_ADMISSION_WAIT_TIMEOUT":  "admission.wait_timeout",
		"VECTORD_ENGINE_QDRANT_API_KEY":   "engine.qdrant.api_key",
		"VECTORD_ENGINE_SEGMENT_ROW_LIMIT": "engine.segment_row_limit",
		"VECTORD_DEBUG":                   "debug",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}
