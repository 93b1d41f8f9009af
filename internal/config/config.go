package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures the fields Curator needs to reach a Labelbase server.
type Config struct {
	Server           string
	PollEverySeconds int
	DisablePolling   bool
}

const (
	defaultConfigPath  = "~/.config/curator/config.toml"
	defaultServer      = "127.0.0.1:8080"
	defaultPollSeconds = 10
)

// Load locates and parses the config, falling back to defaults when the
// file is missing. A present but malformed file is a hard error.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{Server: defaultServer, PollEverySeconds: defaultPollSeconds}

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		Server           string `toml:"server"`
		PollEverySeconds int    `toml:"poll_every_seconds"`
		DisablePolling   bool   `toml:"disable_polling"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.Server = strings.TrimSpace(raw.Server)
	if cfg.Server == "" {
		cfg.Server = defaultServer
	}
	if raw.PollEverySeconds > 0 {
		cfg.PollEverySeconds = raw.PollEverySeconds
	}
	cfg.DisablePolling = raw.DisablePolling

	return cfg, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
