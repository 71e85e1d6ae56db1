package audio

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/cadenza-audio/cadenza-api/internal/platform/logger"
)

// Slicer cuts long audio files into fixed-duration training chunks using
// ffmpeg's segment muxer.
type Slicer struct {
	ffmpeg string
	runner Runner
	logger *slog.Logger
}

// NewSlicer creates a Slicer. A nil runner gets the production ExecRunner;
// a nil logger gets the process default.
func NewSlicer(ffmpegBinary string, runner Runner, log *slog.Logger) *Slicer {
	if runner == nil {
		runner = NewExecRunner()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Slicer{
		ffmpeg: ffmpegBinary,
		runner: runner,
		logger: log.With(slog.String("component", "audio_slicer")),
	}
}

// SliceFile splits inputPath into chunks of chunkSeconds, written as 16-bit
// WAV files under outDir, and returns the chunk paths in time order. The
// final chunk may be shorter than chunkSeconds.
func (s *Slicer) SliceFile(ctx context.Context, inputPath, outDir string, chunkSeconds float64) ([]string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if chunkSeconds <= 0 {
		return nil, fmt.Errorf("chunk duration must be positive, got %v", chunkSeconds)
	}
	if _, err := os.Stat(inputPath); err != nil {
		return nil, fmt.Errorf("input file: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating chunk directory: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	pattern := filepath.Join(outDir, base+"_chunk_%03d.wav")

	args := []string{
		"-y", "-i", inputPath,
		"-f", "segment",
		"-segment_time", strconv.FormatFloat(chunkSeconds, 'f', -1, 64),
		"-codec:a", "pcm_s16le",
		pattern,
	}
	result, err := s.runner.Run(ctx, s.ffmpeg, args...)
	if err != nil {
		log.Error("slicing failed",
			slog.String("input", inputPath),
			slog.Int("exit_code", result.ExitCode))
		return nil, &ToolError{Tool: s.ffmpeg, Args: args, ExitCode: result.ExitCode, Stderr: result.Stderr, Err: err}
	}

	chunks, err := filepath.Glob(filepath.Join(outDir, base+"_chunk_*.wav"))
	if err != nil {
		return nil, fmt.Errorf("globbing chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("slicing %s produced no chunks", inputPath)
	}
	sort.Strings(chunks)

	log.Debug("sliced file into chunks",
		slog.String("input", inputPath),
		slog.Int("chunks", len(chunks)))
	return chunks, nil
}
