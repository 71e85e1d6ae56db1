package training

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ManifestName is the manifest's file name inside the chunks directory.
const ManifestName = "manifest.json"

// ManifestEntry pairs one training chunk with its caption.
type ManifestEntry struct {
	ChunkPath string `json:"chunk_path"`
	Caption   string `json:"caption"`
}

// Manifest records the output of one dataset preprocessing run. Training
// reads it to locate chunks and labels.
type Manifest struct {
	Entries     []ManifestEntry `json:"entries"`
	SourceFiles int             `json:"source_files"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ManifestPath returns the manifest location for a chunks directory.
func ManifestPath(chunksDir string) string {
	return filepath.Join(chunksDir, ManifestName)
}

// WriteManifest atomically persists the manifest to path.
func WriteManifest(path string, m *Manifest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating manifest directory: %w", err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".manifest-*")
	if err != nil {
		return fmt.Errorf("creating manifest temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing manifest temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest from path.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return &m, nil
}
