// Package session persists the record of an active virtual display across
// process invocations. Connect writes it, a later argument-less disconnect
// reads it to learn what to restore.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/glintstream/vdisplay/internal/logging"
)

var log = logging.L("session")

// SchemaVersion is bumped whenever the on-disk layout changes. A mismatch
// is treated as corrupt rather than silently misparsed.
const SchemaVersion = 1

// ErrStateCorrupt means a state file exists but cannot be trusted.
var ErrStateCorrupt = errors.New("session: state file corrupt")

// State records what a connect did to the host. At most one exists at a
// time; its presence on disk is the source of truth for "session active".
type State struct {
	SchemaVersion      int       `json:"schemaVersion"`
	SessionID          string    `json:"sessionId"`
	Card               string    `json:"card"`
	VirtualConnector   string    `json:"virtualConnector"`
	RestoredConnectors []string  `json:"restoredConnectors"`
	Width              int       `json:"width"`
	Height             int       `json:"height"`
	RefreshHz          int       `json:"refreshHz"`
	CreatedAt          time.Time `json:"createdAt"`
}

// New returns a State for a freshly connected session.
func New(card, virtualConnector string, restored []string, width, height, refreshHz int) *State {
	return &State{
		SchemaVersion:      SchemaVersion,
		SessionID:          uuid.NewString(),
		Card:               card,
		VirtualConnector:   virtualConnector,
		RestoredConnectors: restored,
		Width:              width,
		Height:             height,
		RefreshHz:          refreshHz,
		CreatedAt:          time.Now().UTC(),
	}
}

// Store reads and writes the session record at a fixed path.
type Store struct {
	Path string
}

// NewStore returns a store over the given state file path.
func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Save writes the state atomically: temp file in the same directory, then
// rename. A crash mid-write never leaves a half-written record behind.
func (s *Store) Save(state *State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.Path), 0700); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmpPath := s.Path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write session state: %w", err)
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace session state: %w", err)
	}

	log.Debug("session state saved", "path", s.Path, logging.KeySessionID, state.SessionID)
	return nil
}

// Load reads the current state. A missing file returns (nil, nil): no
// active session. An unreadable or wrong-version file returns
// ErrStateCorrupt so the caller can decide how hard to recover.
func (s *Store) Load() (*State, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStateCorrupt, err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStateCorrupt, err)
	}
	if state.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: schema version %d, expected %d", ErrStateCorrupt, state.SchemaVersion, SchemaVersion)
	}
	if state.VirtualConnector == "" || state.Card == "" {
		return nil, fmt.Errorf("%w: missing connector fields", ErrStateCorrupt)
	}

	return &state, nil
}

// Clear removes the state file. Removing an already-absent file succeeds.
func (s *Store) Clear() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clear session state: %w", err)
	}
	return nil
}
