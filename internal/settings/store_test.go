package settings

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDefaults() Settings {
	return Settings{
		Duration:      30.0,
		GuidanceScale: 3.0,
		Temperature:   1.0,
		ExportFormat:  "mp3",
		Bitrate:       "320k",
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.json")
	s, err := NewStore(path, testDefaults(), 10.0, 120.0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

func f64(v float64) *float64 { return &v }
func str(v string) *string   { return &v }

func TestNewStoreWritesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.json")
	s, err := NewStore(path, testDefaults(), 10.0, 120.0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	assert.Equal(t, testDefaults(), s.Get())

	_, err = os.Stat(path)
	assert.NoError(t, err, "defaults must be persisted on first open")
}

func TestNewStoreLoadsExistingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.json")
	existing := `{"duration":45,"guidance_scale":2.5,"temperature":0.9,"export_format":"flac","bitrate":"256k"}`
	require.NoError(t, os.WriteFile(path, []byte(existing), 0o644))

	s, err := NewStore(path, testDefaults(), 10.0, 120.0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	got := s.Get()
	assert.Equal(t, 45.0, got.Duration)
	assert.Equal(t, "flac", got.ExportFormat)
	assert.Equal(t, "256k", got.Bitrate)
}

func TestNewStoreRejectsCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	_, err := NewStore(path, testDefaults(), 10.0, 120.0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding settings")
}

func TestNewStoreRejectsInvalidValues(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.json")
	bad := `{"duration":30,"guidance_scale":3,"temperature":1,"export_format":"wma","bitrate":"320k"}`
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	_, err := NewStore(path, testDefaults(), 10.0, 120.0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed validation")
}

func TestApplyPartialUpdate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "settings.json")
	s, err := NewStore(path, testDefaults(), 10.0, 120.0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	got, err := s.Apply(Update{Temperature: f64(0.7), ExportFormat: str("wav")})
	require.NoError(t, err)

	assert.Equal(t, 0.7, got.Temperature)
	assert.Equal(t, "wav", got.ExportFormat)
	assert.Equal(t, 30.0, got.Duration, "unset fields keep their value")
	assert.Equal(t, "320k", got.Bitrate)

	// The change survives a reload.
	reloaded, err := NewStore(path, testDefaults(), 10.0, 120.0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	assert.Equal(t, got, reloaded.Get())
}

func TestApplyRejectsUnknownFormat(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, err := s.Apply(Update{ExportFormat: str("wma")})
	assert.ErrorIs(t, err, ErrInvalidSettings)
	assert.Equal(t, "mp3", s.Get().ExportFormat)
}

func TestApplyEnforcesDurationBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		duration float64
	}{
		{name: "below minimum", duration: 5.0},
		{name: "above maximum", duration: 500.0},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := newTestStore(t)
			_, err := s.Apply(Update{Duration: f64(tc.duration)})
			assert.ErrorIs(t, err, ErrInvalidSettings)
			assert.Equal(t, 30.0, s.Get().Duration, "rejected update must not change settings")
		})
	}
}

func TestApplyRejectsNonPositiveValues(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	_, err := s.Apply(Update{GuidanceScale: f64(-1.0)})
	assert.ErrorIs(t, err, ErrInvalidSettings)
}
