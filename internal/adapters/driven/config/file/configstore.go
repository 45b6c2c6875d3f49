package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/raptor/internal/core/domain"
)

// settingsFile is the TOML file name within the config directory.
const settingsFile = "raptor.toml"

// SettingsStore persists RaptorSettings as a TOML file.
type SettingsStore struct {
	mu       sync.Mutex
	filePath string
}

// NewSettingsStore creates a TOML-based settings store.
// If configDir is empty, defaults to ~/.raptor.
func NewSettingsStore(configDir string) (*SettingsStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configDir = filepath.Join(home, ".raptor")
	}

	// Ensure directory exists
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, err
	}

	return &SettingsStore{
		filePath: filepath.Join(configDir, settingsFile),
	}, nil
}

// Path returns the settings file path.
func (s *SettingsStore) Path() string {
	return s.filePath
}

// Load reads settings from disk. A missing file yields the defaults;
// a partial file keeps defaults for absent keys.
func (s *SettingsStore) Load() (domain.RaptorSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := domain.DefaultRaptorSettings()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return settings, nil
		}
		return settings, fmt.Errorf("reading settings file: %w", err)
	}

	if err := toml.Unmarshal(data, &settings); err != nil {
		return domain.DefaultRaptorSettings(), fmt.Errorf("parsing settings file: %w", err)
	}

	return settings.Normalised(), nil
}

// Save writes settings to disk, replacing the previous file.
func (s *SettingsStore) Save(settings domain.RaptorSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := toml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	if err := os.WriteFile(s.filePath, data, 0600); err != nil {
		return fmt.Errorf("writing settings file: %w", err)
	}
	return nil
}
