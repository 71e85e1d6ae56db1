package audio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/cadenza-audio/cadenza-api/internal/platform/logger"
)

// ErrUnsupportedFormat is returned for export formats ffmpeg is not
// configured to produce here.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// loudnormFilter is the EBU R128 normalization applied when requested:
// -16 LUFS integrated, -1.5 dBTP ceiling, 11 LU loudness range.
const loudnormFilter = "loudnorm=I=-16:TP=-1.5:LRA=11"

// ExportOptions controls one conversion.
type ExportOptions struct {
	Format    string
	Bitrate   string
	Normalize bool
}

// ProbeInfo is the subset of ffprobe output the API exposes.
type ProbeInfo struct {
	Format     string  `json:"format"`
	Codec      string  `json:"codec"`
	Duration   float64 `json:"duration"`
	Bitrate    int     `json:"bitrate"`
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
}

// VolumeStats is ffmpeg's volumedetect summary in dB.
type VolumeStats struct {
	MeanVolume float64 `json:"mean_volume"`
	MaxVolume  float64 `json:"max_volume"`
}

// Exporter converts and inspects audio files through ffmpeg/ffprobe.
type Exporter struct {
	ffmpeg  string
	ffprobe string
	runner  Runner
	logger  *slog.Logger
}

// NewExporter creates an Exporter using the given binaries. A nil runner
// gets the production ExecRunner; a nil logger gets the process default.
func NewExporter(ffmpegBinary, ffprobeBinary string, runner Runner, log *slog.Logger) *Exporter {
	if runner == nil {
		runner = NewExecRunner()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Exporter{
		ffmpeg:  ffmpegBinary,
		ffprobe: ffprobeBinary,
		runner:  runner,
		logger:  log.With(slog.String("component", "audio_exporter")),
	}
}

// codecArgs returns the encoder arguments for a format. Lossless formats
// ignore the bitrate.
func codecArgs(format, bitrate string) ([]string, error) {
	switch strings.ToLower(format) {
	case "mp3":
		return []string{"-codec:a", "libmp3lame", "-b:a", bitrate}, nil
	case "ogg":
		return []string{"-codec:a", "libvorbis", "-b:a", bitrate}, nil
	case "aac":
		return []string{"-codec:a", "aac", "-b:a", bitrate}, nil
	case "flac":
		return []string{"-codec:a", "flac"}, nil
	case "wav":
		return []string{"-codec:a", "pcm_s16le"}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// Convert transcodes inputPath into outputPath according to opts.
func (e *Exporter) Convert(ctx context.Context, inputPath, outputPath string, opts ExportOptions) error {
	log := logger.FromContextOrDefault(ctx, e.logger)

	if _, err := os.Stat(inputPath); err != nil {
		return fmt.Errorf("input file: %w", err)
	}
	encoder, err := codecArgs(opts.Format, opts.Bitrate)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	args := []string{"-y", "-i", inputPath}
	if opts.Normalize {
		args = append(args, "-af", loudnormFilter)
	}
	args = append(args, encoder...)
	args = append(args, outputPath)

	result, err := e.runner.Run(ctx, e.ffmpeg, args...)
	if err != nil {
		log.Error("export failed",
			slog.String("input", inputPath),
			slog.String("format", opts.Format),
			slog.Int("exit_code", result.ExitCode))
		return &ToolError{Tool: e.ffmpeg, Args: args, ExitCode: result.ExitCode, Stderr: result.Stderr, Err: err}
	}

	log.Info("exported audio",
		slog.String("input", inputPath),
		slog.String("output", outputPath),
		slog.String("format", opts.Format),
		slog.Bool("normalized", opts.Normalize))
	return nil
}

// ffprobe JSON layout, reduced to the fields ProbeInfo needs.
type probeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

// Probe inspects a file with ffprobe.
func (e *Exporter) Probe(ctx context.Context, path string) (*ProbeInfo, error) {
	args := []string{"-v", "quiet", "-print_format", "json", "-show_format", "-show_streams", path}
	result, err := e.runner.Run(ctx, e.ffprobe, args...)
	if err != nil {
		return nil, &ToolError{Tool: e.ffprobe, Args: args, ExitCode: result.ExitCode, Stderr: result.Stderr, Err: err}
	}

	var out probeOutput
	if err := json.Unmarshal([]byte(result.Stdout), &out); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output: %w", err)
	}

	info := &ProbeInfo{Format: out.Format.FormatName}
	info.Duration, _ = strconv.ParseFloat(out.Format.Duration, 64)
	info.Bitrate, _ = strconv.Atoi(out.Format.BitRate)
	for _, s := range out.Streams {
		if s.CodecType != "audio" {
			continue
		}
		info.Codec = s.CodecName
		info.SampleRate, _ = strconv.Atoi(s.SampleRate)
		info.Channels = s.Channels
		break
	}
	return info, nil
}

var volumeRe = regexp.MustCompile(`(mean|max)_volume:\s*(-?[0-9.]+)\s*dB`)

// MeasureVolume runs ffmpeg's volumedetect filter over a file and parses
// the mean and max volume from its report.
func (e *Exporter) MeasureVolume(ctx context.Context, path string) (*VolumeStats, error) {
	args := []string{"-i", path, "-af", "volumedetect", "-f", "null", "-"}
	result, err := e.runner.Run(ctx, e.ffmpeg, args...)
	if err != nil {
		return nil, &ToolError{Tool: e.ffmpeg, Args: args, ExitCode: result.ExitCode, Stderr: result.Stderr, Err: err}
	}

	// volumedetect reports on stderr.
	stats := &VolumeStats{}
	found := false
	for _, m := range volumeRe.FindAllStringSubmatch(result.Stderr, -1) {
		v, parseErr := strconv.ParseFloat(m[2], 64)
		if parseErr != nil {
			continue
		}
		switch m[1] {
		case "mean":
			stats.MeanVolume = v
			found = true
		case "max":
			stats.MaxVolume = v
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("volumedetect produced no measurements for %s", path)
	}
	return stats, nil
}
