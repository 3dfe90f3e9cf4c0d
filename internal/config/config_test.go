package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
registration: my-sdm
version: "1.0.0"
natsUrl: nats://localhost:4222
signingKeyPath: /etc/sdm/signing.pem
verifyingKeyPaths:
  - /etc/sdm/verify.pem
rules:
  - name: build-on-push
    test:
      kind: isDefaultBranch
    goals:
      - uniqueName: build
        environment: testing
`

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "sdm.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, sampleYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Registration != "my-sdm" {
		t.Fatalf("Registration = %q", cfg.Registration)
	}
	if len(cfg.Rules) != 1 || len(cfg.Rules[0].Goals) != 1 {
		t.Fatalf("unexpected rules: %+v", cfg.Rules)
	}
}

func TestLoadMissingRequiredFieldFails(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "registration: my-sdm\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for missing required fields")
	}
}

func TestWatcherHotReloadsRulesOnly(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, sampleYAML)

	w, err := NewWatcher(path, func(err error) { t.Logf("watcher error: %v", err) })
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Close()

	if len(w.Rules()) != 1 {
		t.Fatalf("expected 1 initial rule, got %d", len(w.Rules()))
	}

	updated := sampleYAML + `
  - name: test-on-push
    test:
      kind: isDefaultBranch
    goals:
      - uniqueName: test
        environment: testing
`
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(w.Rules()) == 2 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected rule list to hot-reload to 2 rules, got %d", len(w.Rules()))
}
