package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/waabox/ontoloci/internal/config"
)

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	content := `
[github]
app_id = 12345
private_key_path = "/etc/ontoloci/app.pem"
check_name = "shapes"

[http]
timeout = "5s"
max_retries = 7

[validator]
url = "http://validator:8080"
timeout = "2m"

[executor]
workers = 4
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GitHub.AppID != 12345 {
		t.Errorf("expected app id 12345, got %d", cfg.GitHub.AppID)
	}
	if cfg.CheckNameOrDefault() != "shapes" {
		t.Errorf("expected check name 'shapes', got '%s'", cfg.CheckNameOrDefault())
	}
	if cfg.HTTPTimeoutOrDefault() != 5*time.Second {
		t.Errorf("expected timeout 5s, got %s", cfg.HTTPTimeoutOrDefault())
	}
	if cfg.MaxRetriesOrDefault() != 7 {
		t.Errorf("expected 7 retries, got %d", cfg.MaxRetriesOrDefault())
	}
	if cfg.ValidatorTimeoutOrDefault() != 2*time.Minute {
		t.Errorf("expected validator timeout 2m, got %s", cfg.ValidatorTimeoutOrDefault())
	}
	if cfg.WorkersOrDefault() != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.WorkersOrDefault())
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.LoadFrom("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("missing file should not be an error, got: %v", err)
	}
	if cfg.CheckNameOrDefault() != "ontolo-ci" {
		t.Errorf("expected default check name 'ontolo-ci', got '%s'", cfg.CheckNameOrDefault())
	}
	if cfg.HTTPTimeoutOrDefault() != 15*time.Second {
		t.Errorf("expected default timeout 15s, got %s", cfg.HTTPTimeoutOrDefault())
	}
	if cfg.MaxRetriesOrDefault() != 3 {
		t.Errorf("expected default 3 retries, got %d", cfg.MaxRetriesOrDefault())
	}
	if cfg.WorkersOrDefault() != 1 {
		t.Errorf("expected sequential default, got %d workers", cfg.WorkersOrDefault())
	}
}

func TestLoad_NegativeRetriesDisablesRetry(t *testing.T) {
	cfg := config.Config{HTTP: config.HTTPConfig{MaxRetries: -1}}
	if cfg.MaxRetriesOrDefault() != 0 {
		t.Errorf("expected 0 retries, got %d", cfg.MaxRetriesOrDefault())
	}
}

func TestLoad_EnvVarsTakePrecedence(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	content := `
[github]
app_id = 1

[validator]
url = "http://fromfile"
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ONTOLOCI_GITHUB_APP_ID", "99")
	t.Setenv("ONTOLOCI_VALIDATOR_URL", "http://fromenv")
	t.Setenv("ONTOLOCI_STORE_PATH", "/tmp/builds.db")

	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GitHub.AppID != 99 {
		t.Errorf("expected env app id 99, got %d", cfg.GitHub.AppID)
	}
	if cfg.Validator.URL != "http://fromenv" {
		t.Errorf("expected env validator url, got '%s'", cfg.Validator.URL)
	}
	if cfg.StorePathOrDefault() != "/tmp/builds.db" {
		t.Errorf("expected env store path, got '%s'", cfg.StorePathOrDefault())
	}
}

func TestLoad_InvalidAppIDFromEnv(t *testing.T) {
	t.Setenv("ONTOLOCI_GITHUB_APP_ID", "not-a-number")
	if _, err := config.LoadFrom("/nonexistent/path/config.toml"); err == nil {
		t.Fatal("expected error for non-numeric app id")
	}
}

func TestPrivateKeyPEM_PrefersInlineKey(t *testing.T) {
	dir := t.TempDir()
	keyPath := filepath.Join(dir, "app.pem")
	if err := os.WriteFile(keyPath, []byte("from-file"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg := config.Config{GitHub: config.GitHubConfig{PrivateKeyPath: keyPath}}
	got, err := cfg.PrivateKeyPEM()
	if err != nil || string(got) != "from-file" {
		t.Fatalf("expected key from file, got %q (%v)", got, err)
	}
	cfg.GitHub.PrivateKey = "inline"
	got, _ = cfg.PrivateKeyPEM()
	if string(got) != "inline" {
		t.Errorf("expected inline key, got %q", got)
	}
	if _, err := (config.Config{}).PrivateKeyPEM(); err == nil {
		t.Error("expected error when no key is configured")
	}
}
