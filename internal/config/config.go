package config

import "time"

// Config holds all application configuration, grouped by concern.
type Config struct {
	Server     ServerConfig     `mapstructure:"server" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	Generation GenerationConfig `mapstructure:"generation" validate:"required"`
	Training   TrainingConfig   `mapstructure:"training" validate:"required"`
	Audio      AudioConfig      `mapstructure:"audio" validate:"required"`
	LLM        LLMConfig        `mapstructure:"llm" validate:"required"`
	Templates  TemplatesConfig  `mapstructure:"templates" validate:"required"`
	Settings   SettingsConfig   `mapstructure:"settings" validate:"required"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// GenerationConfig bounds and defaults for music generation requests, plus
// the location of the model CLI and the directory completed tracks land in.
type GenerationConfig struct {
	MinDuration          float64 `mapstructure:"min_duration" validate:"required,gt=0"`
	MaxDuration          float64 `mapstructure:"max_duration" validate:"required,gtfield=MinDuration"`
	DefaultDuration      float64 `mapstructure:"default_duration" validate:"required,gtefield=MinDuration,ltefield=MaxDuration"`
	DefaultGuidanceScale float64 `mapstructure:"default_guidance_scale" validate:"required,gt=0"`
	DefaultTemperature   float64 `mapstructure:"default_temperature" validate:"required,gt=0"`
	SampleRate           int     `mapstructure:"sample_rate" validate:"required,gt=0"`
	OutputDir            string  `mapstructure:"output_dir" validate:"required"`
	ModelBinary          string  `mapstructure:"model_binary" validate:"required"`
	ModelName            string  `mapstructure:"model_name" validate:"required"`
}

// TrainingConfig controls the fine-tuning pipeline: dataset locations,
// chunking, and epoch-loop defaults.
type TrainingConfig struct {
	DatasetDir          string        `mapstructure:"dataset_dir" validate:"required"`
	ChunksDir           string        `mapstructure:"chunks_dir" validate:"required"`
	ModelsDir           string        `mapstructure:"models_dir" validate:"required"`
	ChunkDuration       float64       `mapstructure:"chunk_duration" validate:"required,gt=0"`
	DefaultEpochs       int           `mapstructure:"default_epochs" validate:"required,gte=1,ltefield=MaxEpochs"`
	MaxEpochs           int           `mapstructure:"max_epochs" validate:"required,gte=1"`
	DefaultLearningRate float64       `mapstructure:"default_learning_rate" validate:"required,gt=0"`
	DefaultBatchSize    int           `mapstructure:"default_batch_size" validate:"required,gte=1"`
	EpochDuration       time.Duration `mapstructure:"epoch_duration" validate:"required"`
}

// AudioConfig locates the external audio tools and sets export defaults.
// DemucsBinary may be empty; stem separation reports itself unavailable then.
type AudioConfig struct {
	FFmpegBinary   string `mapstructure:"ffmpeg_binary" validate:"required"`
	FFprobeBinary  string `mapstructure:"ffprobe_binary" validate:"required"`
	DemucsBinary   string `mapstructure:"demucs_binary"`
	DefaultBitrate string `mapstructure:"default_bitrate" validate:"required"`
	DefaultFormat  string `mapstructure:"default_format" validate:"required,oneof=mp3 wav flac ogg aac"`
}

// LLMConfig contains settings for the caption model used during dataset
// preprocessing. An empty API key disables the remote captioner; a static
// fallback is used instead.
type LLMConfig struct {
	GeminiAPIKey      string `mapstructure:"gemini_api_key"`
	ModelName         string `mapstructure:"model_name" validate:"required"`
	MaxRetries        int    `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=0,lte=60"`
}

// TemplatesConfig locates the prompt template library file.
type TemplatesConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// SettingsConfig locates the runtime-tunable generation defaults file.
type SettingsConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}
