package service

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/google/uuid"

	"github.com/cadenza-audio/cadenza-api/internal/domain"
	"github.com/cadenza-audio/cadenza-api/internal/platform/logger"
)

// Submitter accepts individual generation submissions. It is satisfied by
// GenerationService.
type Submitter interface {
	Enqueue(ctx context.Context, req GenerateRequest) (*domain.GenerationTask, error)
	Validate(req GenerateRequest) error
}

// PromptSource produces themed prompt strings for playlist expansion.
type PromptSource interface {
	RandomThemed(theme string) (string, error)
}

// BatchOptions are the shared parameters applied to every task in a batch.
// Zero values fall back to the current settings, as with a single submission.
type BatchOptions struct {
	Duration      float64
	GuidanceScale float64
	Temperature   float64
	ModelID       *uuid.UUID
}

// VariationOptions parameterize a variation run: the same prompt enqueued
// Count times with temperatures sampled uniformly from [TempMin, TempMax].
type VariationOptions struct {
	Count         int
	Duration      float64
	GuidanceScale float64
	ModelID       *uuid.UUID
	TempMin       float64
	TempMax       float64
}

// BatchService expands higher-level submissions (prompt lists, variations,
// themed playlists) into individual enqueues. It holds no state of its own;
// every task it creates is a plain queue entry.
type BatchService struct {
	submitter Submitter
	prompts   PromptSource
	logger    *slog.Logger
}

// NewBatchService wires a BatchService. Panics when submitter or prompts is
// nil.
func NewBatchService(submitter Submitter, prompts PromptSource, log *slog.Logger) *BatchService {
	if submitter == nil {
		panic("submitter cannot be nil")
	}
	if prompts == nil {
		panic("prompt source cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &BatchService{
		submitter: submitter,
		prompts:   prompts,
		logger:    log.With(slog.String("component", "batch_service")),
	}
}

// GenerateBatch validates every prompt up front, then enqueues them in input
// order. Validation failures reject the whole batch before anything is
// enqueued. A persistence failure mid-batch aborts the remainder; the ids
// already returned stand.
func (s *BatchService) GenerateBatch(ctx context.Context, promptList []string, opts BatchOptions) ([]uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(promptList) == 0 {
		return nil, fmt.Errorf("%w: no prompts given", ErrInvalidRequest)
	}

	reqs := make([]GenerateRequest, len(promptList))
	for i, prompt := range promptList {
		reqs[i] = GenerateRequest{
			Prompt:        prompt,
			Duration:      opts.Duration,
			GuidanceScale: opts.GuidanceScale,
			Temperature:   opts.Temperature,
			ModelID:       opts.ModelID,
		}
		if err := s.submitter.Validate(reqs[i]); err != nil {
			return nil, fmt.Errorf("prompt %d: %w", i+1, err)
		}
	}

	ids := make([]uuid.UUID, 0, len(reqs))
	for i, req := range reqs {
		t, err := s.submitter.Enqueue(ctx, req)
		if err != nil {
			log.Error("batch aborted",
				slog.Int("enqueued", len(ids)),
				slog.Int("total", len(reqs)),
				slog.String("error", err.Error()))
			return ids, fmt.Errorf("enqueuing prompt %d: %w", i+1, err)
		}
		ids = append(ids, t.ID)
	}

	log.Info("batch enqueued", slog.Int("count", len(ids)))
	return ids, nil
}

// GenerateVariations enqueues the same prompt opts.Count times, each with an
// independently sampled temperature from [TempMin, TempMax].
func (s *BatchService) GenerateVariations(ctx context.Context, basePrompt string, opts VariationOptions) ([]uuid.UUID, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if opts.Count < 1 {
		return nil, fmt.Errorf("%w: variation count must be at least 1", ErrInvalidRequest)
	}
	if opts.TempMin <= 0 || opts.TempMax < opts.TempMin {
		return nil, fmt.Errorf("%w: temperature range [%.2f, %.2f] is invalid",
			ErrInvalidRequest, opts.TempMin, opts.TempMax)
	}

	base := GenerateRequest{
		Prompt:        basePrompt,
		Duration:      opts.Duration,
		GuidanceScale: opts.GuidanceScale,
		Temperature:   opts.TempMin,
		ModelID:       opts.ModelID,
	}
	if err := s.submitter.Validate(base); err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, opts.Count)
	for i := 0; i < opts.Count; i++ {
		req := base
		req.Temperature = opts.TempMin + rand.Float64()*(opts.TempMax-opts.TempMin)
		t, err := s.submitter.Enqueue(ctx, req)
		if err != nil {
			return ids, fmt.Errorf("enqueuing variation %d: %w", i+1, err)
		}
		ids = append(ids, t.ID)
	}

	log.Info("variations enqueued",
		slog.Int("count", len(ids)),
		slog.Float64("temp_min", opts.TempMin),
		slog.Float64("temp_max", opts.TempMax))
	return ids, nil
}

// GenerateFromFile reads one prompt per line, skipping blank lines, and
// delegates to GenerateBatch.
func (s *BatchService) GenerateFromFile(ctx context.Context, r io.Reader, opts BatchOptions) ([]uuid.UUID, error) {
	var promptList []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		promptList = append(promptList, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading prompts: %w", err)
	}
	if len(promptList) == 0 {
		return nil, fmt.Errorf("%w: file contains no prompts", ErrInvalidRequest)
	}

	return s.GenerateBatch(ctx, promptList, opts)
}

// GenerateThemedPlaylist builds count themed prompts from the template
// library and delegates to GenerateBatch.
func (s *BatchService) GenerateThemedPlaylist(ctx context.Context, theme string, count int, opts BatchOptions) ([]uuid.UUID, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: track count must be at least 1", ErrInvalidRequest)
	}

	promptList := make([]string, 0, count)
	for i := 0; i < count; i++ {
		prompt, err := s.prompts.RandomThemed(theme)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
		}
		promptList = append(promptList, prompt)
	}

	return s.GenerateBatch(ctx, promptList, opts)
}
