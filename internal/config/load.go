package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from defaults, an optional config file, and
// environment variables, in increasing order of precedence.
//
// The config file is looked up as config.yaml in the working directory and
// ./config; a missing file is not an error. Environment variables use the
// CADENZA_ prefix with underscores separating nested keys, e.g.
// CADENZA_SERVER_PORT or CADENZA_DATABASE_URL.
//
// Returns a validated Config or an error describing what failed.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("CADENZA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers a default for every key so AutomaticEnv picks up
// env-only overrides during Unmarshal. Database URL defaults to empty and is
// caught by validation when left unset.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.shutdown_timeout", 10)

	v.SetDefault("database.url", "")

	v.SetDefault("generation.min_duration", 10.0)
	v.SetDefault("generation.max_duration", 120.0)
	v.SetDefault("generation.default_duration", 30.0)
	v.SetDefault("generation.default_guidance_scale", 3.0)
	v.SetDefault("generation.default_temperature", 1.0)
	v.SetDefault("generation.sample_rate", 32000)
	v.SetDefault("generation.output_dir", "data/outputs")
	v.SetDefault("generation.model_binary", "musicgen")
	v.SetDefault("generation.model_name", "facebook/musicgen-medium")

	v.SetDefault("training.dataset_dir", "data/dataset")
	v.SetDefault("training.chunks_dir", "data/chunks")
	v.SetDefault("training.models_dir", "data/models")
	v.SetDefault("training.chunk_duration", 30.0)
	v.SetDefault("training.default_epochs", 10)
	v.SetDefault("training.max_epochs", 100)
	v.SetDefault("training.default_learning_rate", 1e-4)
	v.SetDefault("training.default_batch_size", 4)
	v.SetDefault("training.epoch_duration", "1s")

	v.SetDefault("audio.ffmpeg_binary", "ffmpeg")
	v.SetDefault("audio.ffprobe_binary", "ffprobe")
	v.SetDefault("audio.demucs_binary", "")
	v.SetDefault("audio.default_bitrate", "320k")
	v.SetDefault("audio.default_format", "mp3")

	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay_seconds", 2)

	v.SetDefault("templates.path", "data/templates.json")
	v.SetDefault("settings.path", "data/settings.json")
}
