package settings

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Store guards the settings file. Reads return a snapshot; updates are
// validated, bounds-checked, and persisted before they become visible.
type Store struct {
	mu          sync.RWMutex
	path        string
	cur         Settings
	validate    *validator.Validate
	minDuration float64
	maxDuration float64
	logger      *slog.Logger
}

// NewStore opens the settings file at path, writing defaults if it does not
// exist yet. Duration updates are kept within [minDuration, maxDuration].
func NewStore(path string, defaults Settings, minDuration, maxDuration float64, log *slog.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("settings path is empty")
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Store{
		path:        path,
		validate:    validator.New(),
		minDuration: minDuration,
		maxDuration: maxDuration,
		logger:      log.With(slog.String("component", "settings_store")),
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var loaded Settings
		if err := json.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("decoding settings %s: %w", path, err)
		}
		if err := s.validate.Struct(&loaded); err != nil {
			return nil, fmt.Errorf("settings %s failed validation: %w", path, err)
		}
		s.cur = loaded
	case os.IsNotExist(err):
		if err := s.validate.Struct(&defaults); err != nil {
			return nil, fmt.Errorf("default settings failed validation: %w", err)
		}
		if err := saveSettings(path, defaults); err != nil {
			return nil, fmt.Errorf("writing default settings: %w", err)
		}
		s.cur = defaults
		s.logger.Info("wrote default settings", slog.String("path", path))
	default:
		return nil, fmt.Errorf("reading settings %s: %w", path, err)
	}

	return s, nil
}

// Get returns the current settings snapshot.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Apply merges a partial update into the current settings, persists the
// result, and returns the merged snapshot. The current settings are left
// untouched when validation or persistence fails.
func (s *Store) Apply(u Update) (Settings, error) {
	if err := s.validate.Struct(&u); err != nil {
		return Settings{}, fmt.Errorf("%w: %s", ErrInvalidSettings, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cur
	if u.Duration != nil {
		next.Duration = *u.Duration
	}
	if u.GuidanceScale != nil {
		next.GuidanceScale = *u.GuidanceScale
	}
	if u.Temperature != nil {
		next.Temperature = *u.Temperature
	}
	if u.ExportFormat != nil {
		next.ExportFormat = *u.ExportFormat
	}
	if u.Bitrate != nil {
		next.Bitrate = *u.Bitrate
	}

	if next.Duration < s.minDuration || next.Duration > s.maxDuration {
		return Settings{}, fmt.Errorf("%w: duration %.1fs outside [%.1fs, %.1fs]",
			ErrInvalidSettings, next.Duration, s.minDuration, s.maxDuration)
	}

	if err := saveSettings(s.path, next); err != nil {
		return Settings{}, err
	}
	s.cur = next

	s.logger.Info("settings updated",
		slog.Float64("duration", next.Duration),
		slog.String("export_format", next.ExportFormat))
	return next, nil
}

// saveSettings atomically replaces the settings file.
func saveSettings(path string, settings Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".settings-*")
	if err != nil {
		return fmt.Errorf("creating settings temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing settings temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing settings: %w", err)
	}
	return nil
}
