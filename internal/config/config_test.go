package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server != defaultServer {
		t.Errorf("Server = %q, want %q", cfg.Server, defaultServer)
	}
	if cfg.PollEverySeconds != defaultPollSeconds {
		t.Errorf("PollEverySeconds = %d, want %d", cfg.PollEverySeconds, defaultPollSeconds)
	}
	if cfg.DisablePolling {
		t.Error("DisablePolling should default to false")
	}
}

func TestLoad_ParsesAllFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "server = \"labelbase.example.com:9000\"\npoll_every_seconds = 30\ndisable_polling = true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server != "labelbase.example.com:9000" {
		t.Errorf("Server = %q", cfg.Server)
	}
	if cfg.PollEverySeconds != 30 {
		t.Errorf("PollEverySeconds = %d, want 30", cfg.PollEverySeconds)
	}
	if !cfg.DisablePolling {
		t.Error("DisablePolling not parsed")
	}
}

func TestLoad_MalformedFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("server = [broken"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed config")
	}
}

func TestLoad_BlankAndNonPositiveValuesFallBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "server = \"   \"\npoll_every_seconds = 0\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server != defaultServer {
		t.Errorf("Server = %q, want default", cfg.Server)
	}
	if cfg.PollEverySeconds != defaultPollSeconds {
		t.Errorf("PollEverySeconds = %d, want default", cfg.PollEverySeconds)
	}
}
