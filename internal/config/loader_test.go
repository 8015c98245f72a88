package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("TEST_VAR", "hello")
	defer os.Unsetenv("TEST_VAR")

	tests := []struct {
		input    string
		expected string
	}{
		{"${TEST_VAR}", "hello"},
		{"${TEST_VAR:default}", "hello"},
		{"${UNSET_VAR:fallback}", "fallback"},
		{"${UNSET_VAR}", ""},
		{"no vars here", "no vars here"},
		{"prefix-${TEST_VAR}-suffix", "prefix-hello-suffix"},
	}

	for _, tt := range tests {
		got := expandEnvVars(tt.input)
		if got != tt.expected {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestLoadFile(t *testing.T) {
	// Create a temp YAML file
	tmpFile, err := os.CreateTemp("", "test-config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpFile.Name())

	content := `
server:
  host: "0.0.0.0"
  port: 9999
`
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatal(err)
	}
	tmpFile.Close()

	var cfg Config
	if err := LoadFile(tmpFile.Name(), &cfg); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("expected port 9999, got %d", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("expected host 0.0.0.0, got %s", cfg.Server.Host)
	}
}

func TestLoadFile_WithEnvVars(t *testing.T) {
	os.Setenv("TEST_PORT", "7777")
	defer os.Unsetenv("TEST_PORT")

	tmpFile, err := os.CreateTemp("", "test-config-env-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpFile.Name())

	content := `
server:
  host: "${TEST_HOST:127.0.0.1}"
  port: ${TEST_PORT}
`
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatal(err)
	}
	tmpFile.Close()

	var cfg Config
	if err := LoadFile(tmpFile.Name(), &cfg); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("expected host 127.0.0.1 (default), got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("expected port 7777, got %d", cfg.Server.Port)
	}
}

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const exampleDocument = `{
  "models": [
    {
      "name": "open-llama",
      "model_id": "huggingface-textgeneration-open-llama",
      "instance": "ml.g5.2xlarge",
      "integration": {
        "type": "lambda",
        "properties": {"code": "functions/example_function", "permissions": ["sagemaker:InvokeEndpoint"], "timeout": 29, "memory": 1024}
      }
    }
  ],
  "endpoints": []
}`

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	docPath := writeTemp(t, dir, "models.json", exampleDocument)
	settings := writeTemp(t, dir, "mlapi.yaml", `
synth:
  document: "`+docPath+`"
  region: eu-west-1
policy:
  evaluation_timeout: 250ms
`)

	l := NewLoader(settings, "", discardLogger())
	if err := l.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := l.Config()
	if cfg.Synth.Region != "eu-west-1" {
		t.Errorf("expected region eu-west-1, got %q", cfg.Synth.Region)
	}
	if cfg.Policy.EvaluationTimeout != 250*time.Millisecond {
		t.Errorf("expected 250ms evaluation timeout, got %v", cfg.Policy.EvaluationTimeout)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if l.DocumentPath() != docPath {
		t.Errorf("expected document %s, got %s", docPath, l.DocumentPath())
	}

	doc, ok := l.Document().(map[string]any)
	if !ok {
		t.Fatalf("expected document mapping, got %T", l.Document())
	}
	models, _ := doc["models"].([]any)
	if len(models) != 1 {
		t.Errorf("expected 1 model, got %d", len(models))
	}
}

func TestLoader_DocumentOverride(t *testing.T) {
	dir := t.TempDir()
	docPath := writeTemp(t, dir, "override.yaml", "models: []\nendpoints: []\n")

	l := NewLoader("", docPath, discardLogger())
	if err := l.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if l.Config().Synth.Document != "config/models.json" {
		t.Errorf("settings default should be untouched, got %q", l.Config().Synth.Document)
	}
	if l.DocumentPath() != docPath {
		t.Errorf("expected override path, got %s", l.DocumentPath())
	}
}

func TestLoader_MissingDocument(t *testing.T) {
	l := NewLoader("", filepath.Join(t.TempDir(), "missing.json"), discardLogger())
	if err := l.Load(); err == nil {
		t.Fatal("expected error for missing document")
	}
	if l.Config() != nil {
		t.Error("failed load must not publish a config")
	}
}

func TestLoader_WatchReloads(t *testing.T) {
	dir := t.TempDir()
	docPath := writeTemp(t, dir, "models.yaml", "models: []\nendpoints: []\n")

	l := NewLoader("", docPath, discardLogger())
	if err := l.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	reloaded := make(chan struct{}, 1)
	l.OnReload(func() {
		select {
		case reloaded <- struct{}{}:
		default:
		}
	})
	if err := l.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	defer l.Close()

	writeTemp(t, dir, "unrelated.txt", "ignored")
	writeTemp(t, dir, "models.yaml", "models: []\nendpoints:\n  - name: legacy\n    integration: {type: api}\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-reloaded:
			doc, _ := l.Document().(map[string]any)
			if eps, _ := doc["endpoints"].([]any); len(eps) == 1 {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for reload")
		}
	}
}
