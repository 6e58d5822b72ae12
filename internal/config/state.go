package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/entrepeneur4lyf/spark/internal/domain"
)

// Views remembered between CLI invocations
const (
	ViewChat      = "chat"
	ViewBookmarks = "bookmarks"
	ViewApps      = "apps"
)

// State is the client state kept between CLI invocations
type State struct {
	ActiveSession string           `toml:"active_session"`
	ImageSize     domain.ImageSize `toml:"image_size"`
	LastView      string           `toml:"last_view"`
}

// NewState creates a new state with default values
func NewState() *State {
	return &State{
		ImageSize: domain.ImageSize1K,
		LastView:  ViewChat,
	}
}

// SaveState writes the state to a TOML file
func SaveState(filePath string, state *State) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory %s: %w", dir, err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create/open state file %s: %w", filePath, err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	encoder := toml.NewEncoder(writer)
	if err := encoder.Encode(state); err != nil {
		return fmt.Errorf("failed to encode state to TOML file %s: %w", filePath, err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer for state file %s: %w", filePath, err)
	}
	return nil
}

// LoadState loads the state from a TOML file. A missing file yields the
// default state.
func LoadState(filePath string) (*State, error) {
	state := NewState()
	if _, err := toml.DecodeFile(filePath, state); err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("failed to decode TOML from file %s: %w", filePath, err)
	}
	if state.ImageSize == "" {
		state.ImageSize = domain.ImageSize1K
	}
	return state, nil
}

// UpdateSession records the active session and saves the state
func (s *State) UpdateSession(filePath, sessionID string) error {
	s.ActiveSession = sessionID
	return SaveState(filePath, s)
}
