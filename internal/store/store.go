// Package store persists controller settings as a flat TOML table.
package store

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// DefaultPath is used when no state file is configured.
const DefaultPath = "state.toml"

// Store is a key/value settings file. Writes replace the whole file
// atomically and are skipped when the value is unchanged.
type Store struct {
	mu     sync.Mutex
	path   string
	values map[string]any
	writes int
	logger *slog.Logger
}

// Open loads the settings file at path. A missing file yields an empty store.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		path:   path,
		values: make(map[string]any),
		logger: logger,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	if err := toml.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if s.values == nil {
		s.values = make(map[string]any)
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Persist stores value under key. Supported values are strings, bools and
// integers.
func (s *Store) Persist(key string, value any) error {
	v, err := normalize(value)
	if err != nil {
		return fmt.Errorf("persist %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.values[key]; ok && old == v {
		return nil
	}
	prev, had := s.values[key]
	s.values[key] = v
	if err := s.save(); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	s.writes++
	s.logger.Debug("Setting saved", "key", key, "value", v)
	return nil
}

// String returns the string stored under key, or def.
func (s *Store) String(key, def string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.values[key].(string); ok {
		return v
	}
	return def
}

// Int returns the integer stored under key, or def.
func (s *Store) Int(key string, def int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.values[key].(int64); ok {
		return int(v)
	}
	return def
}

// Bool returns the bool stored under key, or def.
func (s *Store) Bool(key string, def bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.values[key].(bool); ok {
		return v
	}
	return def
}

// Writes returns how many times the file has been rewritten.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Entry is one stored setting.
type Entry struct {
	Key   string
	Value any
}

// Entries returns all settings sorted by key.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.values))
	for k, v := range s.values {
		out = append(out, Entry{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (s *Store) save() error {
	data, err := toml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

func normalize(value any) (any, error) {
	switch v := value.(type) {
	case string, bool, int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", value)
	}
}
