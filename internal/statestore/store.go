package statestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dommurphy155/Very-last-try/internal/types"
)

var (
	errUnsupportedVersion  = errors.New("unsupported state version")
	errTradeKeyMismatch    = errors.New("open trade key does not match trade id")
	errClosedTradeRetained = errors.New("closed trade retained in active set")
)

// Store persists BotState as a single JSON document with atomic-replace
// semantics: a crash mid-write leaves either the prior or the new file,
// never a mix.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore creates a store writing to the given path.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// Load reads the state document. A missing file is not an error: the
// engine starts with empty state on first boot. A document that fails to
// parse or violates invariants returns StateCorruptionError.
func (s *Store) Load(ctx context.Context) (*BotState, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("state file not found, initializing new state", "path", s.path)
		return NewBotState(), nil
	}
	if err != nil {
		return nil, &types.StateCorruptionError{Path: s.path, Err: err}
	}

	state := NewBotState()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, &types.StateCorruptionError{Path: s.path, Err: err}
	}
	if err := state.validate(); err != nil {
		return nil, &types.StateCorruptionError{Path: s.path, Err: err}
	}

	s.logger.Info("state loaded",
		"path", s.path,
		"open_trades", len(state.OpenTrades),
		"day", state.Day,
	)
	return state, nil
}

// Save writes the state document atomically: marshal, write to a temp
// file in the same directory, fsync, then rename over the target.
func (s *Store) Save(ctx context.Context, state *BotState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp state file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace state file: %w", err)
	}

	return nil
}

// Path returns the state file path.
func (s *Store) Path() string {
	return s.path
}
