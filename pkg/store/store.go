// Package store persists the supervisor's state blob. The blob is opaque to
// the host: one JSON document written atomically after any state-affecting
// command.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wardenhq/warden/pkg/config"
	"github.com/wardenhq/warden/pkg/models"
)

// State is the persisted blob. Missing sub-fields load as documented
// defaults, so blobs written by older versions keep working.
type State struct {
	Agents         map[string]*models.Agent       `json:"agents"`
	UserMappings   map[string]map[string]string   `json:"userMappings"`
	ParentAccounts map[string][]string            `json:"parentAccounts"`
	Children       map[string]*models.ChildConfig `json:"children"`
	Settings       config.Settings                `json:"settings"`
	Violations     []models.Violation             `json:"violations"`
	ActivityLog    []models.ActivityEvent         `json:"activityLog"`
	LastSync       time.Time                      `json:"lastSync"`
}

// Empty returns a state with defaults applied.
func Empty() *State {
	s := &State{}
	s.applyDefaults()
	return s
}

func (s *State) applyDefaults() {
	if s.Agents == nil {
		s.Agents = make(map[string]*models.Agent)
	}
	if s.UserMappings == nil {
		s.UserMappings = make(map[string]map[string]string)
	}
	if s.ParentAccounts == nil {
		s.ParentAccounts = make(map[string][]string)
	}
	if s.Children == nil {
		s.Children = make(map[string]*models.ChildConfig)
	}
	if s.Settings.MonitorIntervalMs == 0 {
		s.Settings = config.DefaultSettings()
	}
}

// Store reads and writes the blob at a fixed path. Writes are serialized.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// New creates a store for the given file path.
func New(path string) *Store {
	return &Store{
		path:   path,
		logger: slog.Default().With("component", "store"),
	}
}

// Load reads the blob. A missing file yields an empty state with defaults;
// a corrupt file is an error so the caller can decide, not silently reset.
func (s *Store) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Info("No state file, starting fresh", "path", s.path)
		return Empty(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file %s: %w", s.path, err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", s.path, err)
	}
	state.applyDefaults()
	return &state, nil
}

// Save writes the blob atomically: temp file in the same directory, fsync,
// rename over the target.
func (s *Store) Save(state *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state.LastSync = time.Now()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace state file %s: %w", s.path, err)
	}
	return nil
}
