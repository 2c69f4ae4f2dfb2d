package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/lexiqai/voice-capture/internal/capture"
	"github.com/lexiqai/voice-capture/internal/resilience"
	"github.com/lexiqai/voice-capture/internal/source"
	"github.com/lexiqai/voice-capture/internal/stt"
)

// Config holds all configuration for the voice capture service
type Config struct {
	// Server configuration
	Port           string `envconfig:"PORT" default:"8080"`
	GRPCHealthPort string `envconfig:"GRPC_HEALTH_PORT" default:""` // Empty disables the gRPC health server

	// Audio input
	AudioBackend     string `envconfig:"AUDIO_BACKEND" default:"device"`    // device or file
	AudioInputFile   string `envconfig:"AUDIO_INPUT_FILE" default:""`       // WAV replayed by the file backend
	AudioFormat      string `envconfig:"AUDIO_SAMPLE_FORMAT" default:"s16"` // Device sample format: s16 or f32
	AudioQueueFrames int    `envconfig:"AUDIO_QUEUE_FRAMES" default:"16"`

	// Audio format
	SampleRate      int `envconfig:"SAMPLE_RATE" default:"16000"`
	FrameDurationMs int `envconfig:"FRAME_DURATION_MS" default:"30"` // 10, 20 or 30
	Channels        int `envconfig:"CHANNELS" default:"1"`

	// Speech classifier
	VADEngine          string  `envconfig:"VAD_ENGINE" default:"webrtc"`      // webrtc or energy
	VADAggressiveness  int     `envconfig:"VAD_AGGRESSIVENESS" default:"3"`   // 0-3
	VADEnergyThreshold float64 `envconfig:"VAD_ENERGY_THRESHOLD" default:"0"` // Explicit RMS threshold, 0 derives it

	// Segmentation
	PreRollFrames    int `envconfig:"PREROLL_FRAMES" default:"15"`     // Frames kept before speech onset
	SilenceFrames    int `envconfig:"SILENCE_FRAMES" default:"15"`     // Trailing silent frames tolerated
	MaxRecordSeconds int `envconfig:"MAX_RECORD_SECONDS" default:"10"` // Absolute recording ceiling
	MinClipMs        int `envconfig:"MIN_CLIP_MS" default:"1000"`      // Shortest accepted clip

	// Output
	OutputDir  string `envconfig:"OUTPUT_DIR" default:""` // Empty uses the OS temp directory
	KeepClips  bool   `envconfig:"KEEP_CLIPS" default:"false"`
	ListenOnce bool   `envconfig:"LISTEN_ONCE" default:"false"`

	// Deepgram transcription
	TranscribeEnabled bool   `envconfig:"TRANSCRIBE_ENABLED" default:"true"`
	DeepgramAPIKey    string `envconfig:"DEEPGRAM_API_KEY"`
	DeepgramModel     string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"` // nova-2, enhanced, base
	DeepgramLanguage  string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`  // Language code (en, es, fr, etc.)

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`         // Device reacquire attempts
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"`           // Reacquire backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express
func (c *Config) Validate() error {
	if c.TranscribeEnabled && c.DeepgramAPIKey == "" {
		return errors.New("DEEPGRAM_API_KEY is required when transcription is enabled")
	}

	src := c.Source()
	if err := src.Validate(); err != nil {
		return fmt.Errorf("invalid audio input: %w", err)
	}
	if src.Backend == source.BackendWebSocket {
		return fmt.Errorf("AUDIO_BACKEND must be device or file, got %s", c.AudioBackend)
	}

	capCfg := c.Capture()
	if err := capCfg.Validate(); err != nil {
		return fmt.Errorf("invalid capture settings: %w", err)
	}
	return nil
}

// FrameDuration returns the frame duration
func (c *Config) FrameDuration() time.Duration {
	return time.Duration(c.FrameDurationMs) * time.Millisecond
}

// Capture returns the segmentation settings
func (c *Config) Capture() capture.Config {
	return capture.Config{
		SampleRate:      c.SampleRate,
		FrameDuration:   c.FrameDuration(),
		Channels:        c.Channels,
		PreRollFrames:   c.PreRollFrames,
		SilenceFrames:   c.SilenceFrames,
		MaxRecord:       time.Duration(c.MaxRecordSeconds) * time.Second,
		MinClip:         time.Duration(c.MinClipMs) * time.Millisecond,
		VADEngine:       c.VADEngine,
		Aggressiveness:  c.VADAggressiveness,
		EnergyThreshold: c.VADEnergyThreshold,
		OutputDir:       c.OutputDir,
	}
}

// Source returns the audio input settings
func (c *Config) Source() source.Config {
	return source.Config{
		Backend:       source.Backend(c.AudioBackend),
		SampleRate:    c.SampleRate,
		FrameDuration: c.FrameDuration(),
		Format:        source.SampleFormat(c.AudioFormat),
		QueueFrames:   c.AudioQueueFrames,
		InputFile:     c.AudioInputFile,
		Realtime:      true,
	}
}

// Deepgram returns the transcription settings
func (c *Config) Deepgram() stt.DeepgramConfig {
	return stt.DeepgramConfig{
		APIKey:                     c.DeepgramAPIKey,
		Model:                      c.DeepgramModel,
		Language:                   c.DeepgramLanguage,
		CircuitBreakerMaxFailures:  c.CircuitBreakerMaxFailures,
		CircuitBreakerResetTimeout: time.Duration(c.CircuitBreakerResetTimeout) * time.Second,
		Retry: &resilience.RetryConfig{
			MaxAttempts:       c.RetryMaxAttempts,
			InitialBackoff:    time.Duration(c.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            true,
		},
	}
}

// Reconnect returns the device reacquire policy
func (c *Config) Reconnect() *resilience.ReconnectConfig {
	return &resilience.ReconnectConfig{
		MaxAttempts: c.ReconnectMaxAttempts,
		Backoff:     time.Duration(c.ReconnectBackoff) * time.Millisecond,
		Multiplier:  2.0,
		MaxBackoff:  30 * time.Second,
	}
}
