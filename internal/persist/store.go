package persist

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"pkt.systems/pslog"
	"pkt.systems/tabnap/schema"
)

// SettingsSnapshot is the on-disk form of user option overrides.
type SettingsSnapshot struct {
	Options schema.Settings `json:"options"`
}

// Store persists settings overrides to a single JSON file.
type Store struct {
	path string
	log  pslog.Logger
}

// NewStore constructs a store backed by the given file.
func NewStore(path string) (*Store, error) {
	return NewStoreWithLogger(path, nil)
}

// NewStoreWithLogger constructs a store with logging.
func NewStoreWithLogger(path string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("settings file is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("settings_file", path)
	}
	return &Store{path: path, log: logger}, nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the overrides from disk.
func (s *Store) Load() (SettingsSnapshot, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.log != nil {
				s.log.Debug("settings load miss")
			}
			return SettingsSnapshot{}, false, nil
		}
		if s.log != nil {
			s.log.Warn("settings load failed", "err", err)
		}
		return SettingsSnapshot{}, false, err
	}
	var snapshot SettingsSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		if s.log != nil {
			s.log.Warn("settings load failed", "err", err)
		}
		return SettingsSnapshot{}, false, err
	}
	if snapshot.Options == nil {
		snapshot.Options = schema.Settings{}
	}
	if s.log != nil {
		s.log.Debug("settings load ok", "options", len(snapshot.Options))
	}
	return snapshot, true, nil
}

// Save writes the overrides atomically.
func (s *Store) Save(snapshot SettingsSnapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		s.warn(err)
		return err
	}
	if err := writeAtomic(s.path, data); err != nil {
		s.warn(err)
		return err
	}
	if s.log != nil {
		s.log.Trace("settings save ok", "options", len(snapshot.Options))
	}
	return nil
}

func (s *Store) warn(err error) {
	if s.log != nil {
		s.log.Warn("settings save failed", "err", err)
	}
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "settings-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
