package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with an invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("STORYBOX_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_IncompleteConfig verifies run fails config validation when
// required settings are missing.
func TestRun_IncompleteConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")

	// No account ID, no cloud credentials.
	configContent := `
database:
  path: ""

logging:
  level: info
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("STORYBOX_CONFIG", configPath)
	t.Setenv("STORYBOX_CLOUD_REFRESH_TOKEN", "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail validation for incomplete config")
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("STORYBOX_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want default %q", got, defaultConfigPath)
	}

	t.Setenv("STORYBOX_CONFIG", "/etc/storybox/config.yaml")
	if got := getConfigPath(); got != "/etc/storybox/config.yaml" {
		t.Errorf("getConfigPath() = %q", got)
	}
}
