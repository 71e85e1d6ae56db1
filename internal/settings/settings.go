package settings

import (
	"errors"

	"github.com/cadenza-audio/cadenza-api/internal/config"
)

// ErrInvalidSettings is returned when an update fails validation.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings are the tunable generation defaults. Every field is applied to
// incoming generation requests that leave the matching field unset.
type Settings struct {
	Duration      float64 `json:"duration" validate:"required,gt=0"`
	GuidanceScale float64 `json:"guidance_scale" validate:"required,gt=0"`
	Temperature   float64 `json:"temperature" validate:"required,gt=0"`
	ExportFormat  string  `json:"export_format" validate:"required,oneof=mp3 wav flac ogg aac"`
	Bitrate       string  `json:"bitrate" validate:"required"`
}

// Update is a partial settings change. Nil fields keep their current value.
type Update struct {
	Duration      *float64 `json:"duration" validate:"omitempty,gt=0"`
	GuidanceScale *float64 `json:"guidance_scale" validate:"omitempty,gt=0"`
	Temperature   *float64 `json:"temperature" validate:"omitempty,gt=0"`
	ExportFormat  *string  `json:"export_format" validate:"omitempty,oneof=mp3 wav flac ogg aac"`
	Bitrate       *string  `json:"bitrate" validate:"omitempty,min=1"`
}

// DefaultsFromConfig derives the initial settings from application
// configuration.
func DefaultsFromConfig(gen config.GenerationConfig, audio config.AudioConfig) Settings {
	return Settings{
		Duration:      gen.DefaultDuration,
		GuidanceScale: gen.DefaultGuidanceScale,
		Temperature:   gen.DefaultTemperature,
		ExportFormat:  audio.DefaultFormat,
		Bitrate:       audio.DefaultBitrate,
	}
}
