package musicgen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cadenza-audio/cadenza-api/internal/audio"
	"github.com/cadenza-audio/cadenza-api/internal/config"
	"github.com/cadenza-audio/cadenza-api/internal/generation"
	"github.com/cadenza-audio/cadenza-api/internal/platform/logger"
)

// CLIGenerator runs the MusicGen inference CLI once per request. The CLI
// loads the named base model, synthesizes audio for the prompt, and writes
// a WAV file at the path this adapter hands it.
type CLIGenerator struct {
	binary     string
	modelName  string
	sampleRate int
	runner     audio.Runner
	logger     *slog.Logger
}

var _ generation.Generator = (*CLIGenerator)(nil)

// NewCLIGenerator creates a CLIGenerator from generation config. A nil
// runner gets the production ExecRunner; a nil logger gets the process
// default.
func NewCLIGenerator(cfg config.GenerationConfig, runner audio.Runner, log *slog.Logger) *CLIGenerator {
	if runner == nil {
		runner = audio.NewExecRunner()
	}
	if log == nil {
		log = slog.Default()
	}
	return &CLIGenerator{
		binary:     cfg.ModelBinary,
		modelName:  cfg.ModelName,
		sampleRate: cfg.SampleRate,
		runner:     runner,
		logger:     log.With(slog.String("component", "musicgen_generator")),
	}
}

// Generate invokes the model CLI and decodes the WAV it produces. Requests
// naming a checkpoint or conditioning audio fail with ErrNotImplemented
// before the CLI is touched.
func (g *CLIGenerator) Generate(ctx context.Context, req generation.Request) (*generation.Waveform, error) {
	log := logger.FromContextOrDefault(ctx, g.logger)

	if req.CheckpointPath != "" {
		return nil, fmt.Errorf("%w: loading fine-tuned checkpoints", generation.ErrNotImplemented)
	}
	if req.ConditioningPath != "" {
		return nil, fmt.Errorf("%w: audio conditioning", generation.ErrNotImplemented)
	}

	tmpDir, err := os.MkdirTemp("", "musicgen-")
	if err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()
	outputPath := filepath.Join(tmpDir, "output.wav")

	args := []string{
		"--model", g.modelName,
		"--prompt", req.Prompt,
		"--duration", strconv.FormatFloat(req.Duration, 'f', -1, 64),
		"--guidance-scale", strconv.FormatFloat(req.GuidanceScale, 'f', -1, 64),
		"--temperature", strconv.FormatFloat(req.Temperature, 'f', -1, 64),
		"--sample-rate", strconv.Itoa(g.sampleRate),
		"--output", outputPath,
	}

	start := time.Now()
	result, runErr := g.runner.Run(ctx, g.binary, args...)
	if runErr != nil {
		if errors.Is(runErr, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", generation.ErrModelUnavailable, g.binary)
		}
		toolErr := &audio.ToolError{Tool: g.binary, Args: args, ExitCode: result.ExitCode, Stderr: result.Stderr, Err: runErr}
		return nil, fmt.Errorf("%w: %v", generation.ErrGenerationFailed, toolErr)
	}

	waveform, err := audio.ReadWAV(outputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrInvalidOutput, err)
	}

	log.Info("model produced audio",
		slog.String("model", g.modelName),
		slog.Float64("requested_duration", req.Duration),
		slog.Float64("actual_duration", waveform.DurationSeconds()),
		slog.Duration("elapsed", time.Since(start)))
	return waveform, nil
}
