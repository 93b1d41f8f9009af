// Package prefs handles Curator user preferences persistence.
// Preferences are stored in ~/.config/curator/prefs.toml.
package prefs

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	toml "github.com/pelletier/go-toml/v2"
)

// Stream modes for the "advance to next record" action.
const (
	StreamAll      = "all"      // drop filters, stream the whole collection
	StreamFiltered = "filtered" // keep the view's filters while streaming
)

// Prefs holds user preferences for Curator.
type Prefs struct {
	PageSize   int    `toml:"page_size"`
	StreamMode string `toml:"stream_mode"`
	Theme      string `toml:"theme"`
}

const (
	defaultPrefsPath = "~/.config/curator/prefs.toml"
	defaultPageSize  = 30
	defaultTheme     = "Dracula"
)

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

// Load reads preferences from the given path, falling back to defaults if
// missing or unreadable.
func Load(path string) Prefs {
	defaults := Prefs{PageSize: defaultPageSize, StreamMode: StreamFiltered, Theme: defaultTheme}

	resolved, err := resolvePath(path)
	if err != nil {
		return defaults
	}

	file, err := os.Open(resolved)
	if err != nil {
		return defaults // Graceful degradation
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return defaults
	}

	p := defaults
	if err := toml.Unmarshal(bytes, &p); err != nil {
		return defaults
	}
	return normalize(p)
}

// Save writes preferences to the given path, creating directories as needed.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	bytes, err := toml.Marshal(normalize(p))
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	if err := os.WriteFile(resolved, bytes, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}
	return nil
}

func normalize(p Prefs) Prefs {
	if p.PageSize <= 0 {
		p.PageSize = defaultPageSize
	}
	if p.StreamMode != StreamAll && p.StreamMode != StreamFiltered {
		p.StreamMode = StreamFiltered
	}
	if strings.TrimSpace(p.Theme) == "" {
		p.Theme = defaultTheme
	}
	return p
}

// Store is a mutable handle over the preferences file. Mutators persist
// immediately; save failures are logged but never block the caller, since a
// stale preference file is preferable to a stuck UI.
type Store struct {
	mu   sync.Mutex
	path string
	p    Prefs
}

// Open loads the preferences at path (or the default path when empty) and
// returns a handle bound to it.
func Open(path string) *Store {
	return &Store{path: path, p: Load(path)}
}

// Snapshot returns a copy of the current preferences.
func (s *Store) Snapshot() Prefs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p
}

// PageSize returns the persisted page size.
func (s *Store) PageSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.PageSize
}

// SetPageSize persists a new page size. Non-positive values are ignored.
func (s *Store) SetPageSize(n int) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.p.PageSize = n
	s.saveLocked()
	s.mu.Unlock()
}

// StreamMode returns the persisted label-stream sub-mode.
func (s *Store) StreamMode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.StreamMode
}

// SetStreamMode persists the label-stream sub-mode.
func (s *Store) SetStreamMode(mode string) {
	if mode != StreamAll && mode != StreamFiltered {
		return
	}
	s.mu.Lock()
	s.p.StreamMode = mode
	s.saveLocked()
	s.mu.Unlock()
}

// Theme returns the persisted theme name.
func (s *Store) Theme() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.p.Theme
}

// SetTheme persists the theme name.
func (s *Store) SetTheme(name string) {
	if strings.TrimSpace(name) == "" {
		return
	}
	s.mu.Lock()
	s.p.Theme = name
	s.saveLocked()
	s.mu.Unlock()
}

func (s *Store) saveLocked() {
	if err := Save(s.path, s.p); err != nil {
		log.Printf("save prefs: %v", err)
	}
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultPrefsPath)
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
