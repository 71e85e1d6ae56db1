package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/cadenza-audio/cadenza-api/internal/config"
	"github.com/cadenza-audio/cadenza-api/internal/platform/logger"
	"google.golang.org/genai"
)

const (
	defaultMaxRetries   = 3
	defaultRetryDelay   = 2 * time.Second
	maxCaptionLength    = 300
	captionTemperature  = float32(0.8)
	captionOutputTokens = int32(120)
)

// contentCaller is the slice of the genai client the captioner uses,
// separated so retry and response handling can be tested without the API.
type contentCaller interface {
	call(ctx context.Context, model, prompt string) (*genai.GenerateContentResponse, error)
}

// genaiCaller backs contentCaller with a real genai client.
type genaiCaller struct {
	client *genai.Client
}

func (g *genaiCaller) call(ctx context.Context, model, prompt string) (*genai.GenerateContentResponse, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(captionTemperature),
		MaxOutputTokens: captionOutputTokens,
	}
	return g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
}

// ChunkCaptioner writes text-to-music training labels for audio chunks.
type ChunkCaptioner struct {
	caller     contentCaller
	model      string
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger

	// sleepFn waits between retries, honoring ctx. Replaced in tests.
	sleepFn func(ctx context.Context, d time.Duration) error
}

// NewChunkCaptioner creates a ChunkCaptioner from LLM config. The API key
// and model name must be set; callers without a key should use a static
// captioner instead.
func NewChunkCaptioner(ctx context.Context, cfg config.LLMConfig, log *slog.Logger) (*ChunkCaptioner, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini api key is empty", ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name is empty", ErrInvalidConfig)
	}
	if log == nil {
		log = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: creating gemini client: %v", ErrInvalidConfig, err)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	baseDelay := time.Duration(cfg.RetryDelaySeconds) * time.Second
	if baseDelay <= 0 {
		baseDelay = defaultRetryDelay
	}

	return &ChunkCaptioner{
		caller:     &genaiCaller{client: client},
		model:      cfg.ModelName,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     log.With(slog.String("component", "gemini_captioner")),
		sleepFn:    sleepContext,
	}, nil
}

// Caption produces a one-sentence training label for one chunk of the named
// source track.
func (c *ChunkCaptioner) Caption(ctx context.Context, sourceName string, chunkIndex, chunkCount int) (string, error) {
	log := logger.FromContextOrDefault(ctx, c.logger)

	prompt := captionPrompt(sourceName, chunkIndex, chunkCount)
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		resp, err := c.caller.call(ctx, c.model, prompt)
		if err != nil {
			// API-level failures are assumed transient.
			lastErr = err
			log.Warn("caption call failed",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", c.maxRetries+1),
				slog.String("error", err.Error()))

			if attempt == c.maxRetries {
				break
			}
			// delay = base * 2^attempt * jitter in [0.5, 1.0)
			backoff := float64(c.baseDelay) * math.Pow(2, float64(attempt))
			delay := time.Duration(backoff * (0.5 + rng.Float64()*0.5))
			if sleepErr := c.sleepFn(ctx, delay); sleepErr != nil {
				return "", fmt.Errorf("%w: %v", ErrTransientFailure, sleepErr)
			}
			continue
		}

		caption, err := captionFromResponse(resp)
		if err != nil {
			return "", err
		}
		log.Debug("captioned chunk",
			slog.String("source", sourceName),
			slog.Int("chunk", chunkIndex),
			slog.Int("caption_chars", len(caption)))
		return caption, nil
	}

	return "", fmt.Errorf("%w: exhausted %d attempts: %v", ErrTransientFailure, c.maxRetries+1, lastErr)
}

// captionFromResponse extracts and normalizes the caption text, mapping
// unusable responses to permanent errors.
func captionFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrInvalidCaption)
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", ErrCaptionBlocked
	}

	caption := normalizeCaption(resp.Text())
	if caption == "" {
		return "", fmt.Errorf("%w: no text in response", ErrInvalidCaption)
	}
	return caption, nil
}

// captionPrompt asks for a single training label, caption text only.
func captionPrompt(sourceName string, chunkIndex, chunkCount int) string {
	return fmt.Sprintf(
		"Write one sentence describing an instrumental music excerpt for use as a "+
			"text-to-music training label. The excerpt is segment %d of %d from a track "+
			"titled %q. Mention plausible genre, mood, instrumentation, and tempo. "+
			"Reply with the caption only, no quotes and no preamble.",
		chunkIndex+1, chunkCount, titleFromFilename(sourceName))
}

// titleFromFilename turns "lofi_jam-take2.wav" into "lofi jam take2".
func titleFromFilename(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.NewReplacer("_", " ", "-", " ").Replace(base)
	return strings.Join(strings.Fields(base), " ")
}

// normalizeCaption collapses whitespace, strips wrapping quotes, and caps
// the label length.
func normalizeCaption(text string) string {
	caption := strings.Join(strings.Fields(text), " ")
	caption = strings.Trim(caption, `"'`)
	if len(caption) > maxCaptionLength {
		caption = strings.TrimSpace(caption[:maxCaptionLength])
	}
	return caption
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
