package audio

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/cadenza-audio/cadenza-api/internal/platform/logger"
)

// ErrSeparatorUnavailable is returned when no stem separation binary is
// configured or it cannot be found.
var ErrSeparatorUnavailable = errors.New("stem separator unavailable")

// stemNames are the sources demucs separates a mix into.
var stemNames = []string{"vocals", "drums", "bass", "other"}

// StemSeparator splits a mix into stems by shelling out to demucs.
type StemSeparator struct {
	binary string
	runner Runner
	logger *slog.Logger
}

// NewStemSeparator creates a StemSeparator. The binary may be empty, in
// which case Separate reports ErrSeparatorUnavailable.
func NewStemSeparator(demucsBinary string, runner Runner, log *slog.Logger) *StemSeparator {
	if runner == nil {
		runner = NewExecRunner()
	}
	if log == nil {
		log = slog.Default()
	}
	return &StemSeparator{
		binary: demucsBinary,
		runner: runner,
		logger: log.With(slog.String("component", "stem_separator")),
	}
}

// Available reports whether a separator binary is configured.
func (s *StemSeparator) Available() bool {
	return s.binary != ""
}

// Separate runs demucs on inputPath, writing under outDir, and returns a
// map of stem name to the produced WAV path. Demucs nests its output as
// <outDir>/<model>/<track>/<stem>.wav, so results are located by walking.
func (s *StemSeparator) Separate(ctx context.Context, inputPath, outDir string) (map[string]string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !s.Available() {
		return nil, ErrSeparatorUnavailable
	}
	if _, err := os.Stat(inputPath); err != nil {
		return nil, fmt.Errorf("input file: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	args := []string{"-o", outDir, inputPath}
	result, err := s.runner.Run(ctx, s.binary, args...)
	if err != nil {
		log.Error("stem separation failed",
			slog.String("input", inputPath),
			slog.Int("exit_code", result.ExitCode))
		return nil, &ToolError{Tool: s.binary, Args: args, ExitCode: result.ExitCode, Stderr: result.Stderr, Err: err}
	}

	track := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	stems := make(map[string]string)
	walkErr := filepath.WalkDir(outDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.Contains(path, track) {
			return nil
		}
		name := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		for _, stem := range stemNames {
			if name == stem {
				stems[stem] = path
			}
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("locating stems: %w", walkErr)
	}
	if len(stems) == 0 {
		return nil, fmt.Errorf("separation of %s produced no stems", inputPath)
	}

	log.Info("separated stems",
		slog.String("input", inputPath),
		slog.Int("stems", len(stems)))
	return stems, nil
}
