package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/trhieu92/hyperliquid-risk-bot/internal/logger"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/position"
	"github.com/trhieu92/hyperliquid-risk-bot/internal/risk"
)

const stateVersion = "1.0.0"

// CycleState is the complete recoverable state of one engine session.
// Positions are serialized as a list (each record carries its own symbol
// key) and rebuilt into the keyed map on load.
type CycleState struct {
	Version      string    `json:"version"`
	SavedAt      time.Time `json:"saved_at"`
	SessionStart time.Time `json:"session_start"`

	Positions []position.Position    `json:"positions"`
	Trades    []position.TradeRecord `json:"trades"`
	Breaker   *risk.BreakerState     `json:"breaker"`

	Halted     bool   `json:"halted"`
	HaltReason string `json:"halt_reason,omitempty"`
}

// NewCycleState creates an empty session state.
func NewCycleState(now time.Time) *CycleState {
	return &CycleState{
		Version:      stateVersion,
		SessionStart: now,
		Breaker:      risk.NewBreakerState(now),
	}
}

// RestorePositions rebuilds a keyed store from the serialized list.
func (s *CycleState) RestorePositions(store *position.Store) {
	store.Restore(s.Positions)
}

// Store persists the cycle state to a single structured file with a
// write-to-temp-then-rename save and a backup of the previous snapshot.
type Store struct {
	dir  string
	name string
	log  *logger.Logger
}

// NewStore creates a state store rooted at dir.
func NewStore(dir, name string, log *logger.Logger) *Store {
	return &Store{dir: dir, name: name, log: log}
}

// Initialize creates the state directory.
func (s *Store) Initialize() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	return nil
}

func (s *Store) statePath() string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_state.json", s.name))
}

func (s *Store) backupPath() string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_state_backup.json", s.name))
}

// Load reads the snapshot from disk. A missing file is a valid "no prior
// state" condition and returns a fresh state, not an error.
func (s *Store) Load(now time.Time) (*CycleState, error) {
	path := s.statePath()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		s.log.Info("No existing state file found, starting with clean state")
		return NewCycleState(now), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state CycleState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}

	if err := s.validate(&state); err != nil {
		s.log.LogWarning("State Validation", "Loaded state has issues: %v, using clean state", err)
		return NewCycleState(now), nil
	}

	if state.Breaker == nil {
		state.Breaker = risk.NewBreakerState(now)
	}

	s.log.Info("State loaded successfully from %s (%d positions, %d trades)", path, len(state.Positions), len(state.Trades))
	return &state, nil
}

// Save writes the snapshot atomically: backup the current file, write a
// temp file, then rename over the target.
func (s *Store) Save(state *CycleState) error {
	state.Version = stateVersion
	state.SavedAt = time.Now()

	path := s.statePath()

	if _, err := os.Stat(path); err == nil {
		if err := copyFile(path, s.backupPath()); err != nil {
			s.log.LogWarning("State Backup", "Failed to create backup: %v", err)
		}
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp state file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to move state file: %w", err)
	}

	return nil
}

// validate rejects snapshots that cannot belong to this session.
func (s *Store) validate(state *CycleState) error {
	if state.Version == "" {
		return fmt.Errorf("state version is empty")
	}

	if time.Since(state.SavedAt) > 7*24*time.Hour {
		return fmt.Errorf("state is too old: %v", state.SavedAt)
	}

	seen := make(map[string]bool, len(state.Positions))
	for _, p := range state.Positions {
		if p.Symbol == "" {
			return fmt.Errorf("position with empty symbol")
		}
		if seen[p.Symbol] {
			return fmt.Errorf("duplicate position for %s", p.Symbol)
		}
		seen[p.Symbol] = true
	}

	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}
