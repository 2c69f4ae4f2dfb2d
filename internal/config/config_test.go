package config

import (
	"testing"
	"time"

	"github.com/lexiqai/voice-capture/internal/source"
)

func TestLoad(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.DeepgramAPIKey != "test-deepgram-key" {
		t.Errorf("Expected DeepgramAPIKey 'test-deepgram-key', got '%s'", cfg.DeepgramAPIKey)
	}
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "")
	t.Setenv("TRANSCRIBE_ENABLED", "true")

	_, err := LoadFromEnv()
	if err == nil {
		t.Error("Expected error when the Deepgram key is missing")
	}
}

func TestLoad_TranscriptionDisabled(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "")
	t.Setenv("TRANSCRIBE_ENABLED", "false")

	if _, err := LoadFromEnv(); err != nil {
		t.Errorf("Expected no key requirement without transcription, got %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}
	if cfg.AudioBackend != "device" {
		t.Errorf("Expected default backend 'device', got '%s'", cfg.AudioBackend)
	}
	if cfg.SampleRate != 16000 {
		t.Errorf("Expected default SampleRate 16000, got %d", cfg.SampleRate)
	}
	if cfg.FrameDurationMs != 30 {
		t.Errorf("Expected default FrameDurationMs 30, got %d", cfg.FrameDurationMs)
	}
	if cfg.PreRollFrames != 15 || cfg.SilenceFrames != 15 {
		t.Errorf("Expected 15/15 pre-roll and silence frames, got %d/%d", cfg.PreRollFrames, cfg.SilenceFrames)
	}
	if cfg.MaxRecordSeconds != 10 {
		t.Errorf("Expected default MaxRecordSeconds 10, got %d", cfg.MaxRecordSeconds)
	}
	if cfg.MinClipMs != 1000 {
		t.Errorf("Expected default MinClipMs 1000, got %d", cfg.MinClipMs)
	}
	if cfg.VADAggressiveness != 3 {
		t.Errorf("Expected default VADAggressiveness 3, got %d", cfg.VADAggressiveness)
	}
	if cfg.DeepgramModel != "nova-2" {
		t.Errorf("Expected default DeepgramModel 'nova-2', got '%s'", cfg.DeepgramModel)
	}
	if cfg.DeepgramLanguage != "en" {
		t.Errorf("Expected default DeepgramLanguage 'en', got '%s'", cfg.DeepgramLanguage)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}
	if !cfg.MetricsEnabled {
		t.Error("Expected metrics to be enabled by default")
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	t.Setenv("PORT", "9090")
	t.Setenv("FRAME_DURATION_MS", "20")
	t.Setenv("PREROLL_FRAMES", "10")
	t.Setenv("SILENCE_FRAMES", "25")
	t.Setenv("LISTEN_ONCE", "true")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Expected Port '9090', got '%s'", cfg.Port)
	}
	if !cfg.ListenOnce {
		t.Error("Expected ListenOnce to be true")
	}

	capCfg := cfg.Capture()
	if capCfg.FrameDuration != 20*time.Millisecond {
		t.Errorf("Expected 20ms frames, got %v", capCfg.FrameDuration)
	}
	if capCfg.PreRollFrames != 10 || capCfg.SilenceFrames != 25 {
		t.Errorf("Expected independent pre-roll and silence settings, got %d/%d", capCfg.PreRollFrames, capCfg.SilenceFrames)
	}
}

func TestLoad_InvalidFrameDuration(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	t.Setenv("FRAME_DURATION_MS", "25")

	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error for 25ms frames")
	}
}

func TestLoad_FileBackendRequiresInput(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	t.Setenv("AUDIO_BACKEND", "file")
	t.Setenv("AUDIO_INPUT_FILE", "")

	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error for file backend without input")
	}
}

func TestLoad_RejectsWebSocketBackend(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	t.Setenv("AUDIO_BACKEND", "websocket")

	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error for websocket backend")
	}
}

func TestConfig_Conversions(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	t.Setenv("AUDIO_BACKEND", "file")
	t.Setenv("AUDIO_INPUT_FILE", "speech.wav")
	t.Setenv("RECONNECT_BACKOFF", "250")
	t.Setenv("CIRCUIT_BREAKER_RESET_TIMEOUT", "45")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	src := cfg.Source()
	if src.Backend != source.BackendFile || src.InputFile != "speech.wav" {
		t.Errorf("Unexpected source config: %+v", src)
	}

	if cfg.Capture().MaxRecord != 10*time.Second {
		t.Errorf("Expected 10s ceiling, got %v", cfg.Capture().MaxRecord)
	}

	if cfg.Reconnect().Backoff != 250*time.Millisecond {
		t.Errorf("Expected 250ms reconnect backoff, got %v", cfg.Reconnect().Backoff)
	}

	dg := cfg.Deepgram()
	if dg.CircuitBreakerResetTimeout != 45*time.Second {
		t.Errorf("Expected 45s reset timeout, got %v", dg.CircuitBreakerResetTimeout)
	}
	if dg.Retry.InitialBackoff != 100*time.Millisecond {
		t.Errorf("Expected 100ms initial backoff, got %v", dg.Retry.InitialBackoff)
	}
}

func TestLoad_VADEngine(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}
	if cfg.Capture().VADEngine != "webrtc" {
		t.Errorf("Expected default engine 'webrtc', got '%s'", cfg.Capture().VADEngine)
	}

	t.Setenv("VAD_ENGINE", "silero")
	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error for unknown engine")
	}

	t.Setenv("VAD_ENGINE", "webrtc")
	t.Setenv("SAMPLE_RATE", "44100")
	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error for webrtc at 44.1 kHz")
	}

	t.Setenv("VAD_ENGINE", "energy")
	if _, err := LoadFromEnv(); err != nil {
		t.Errorf("Expected energy engine at 44.1 kHz to load, got %v", err)
	}
}

func TestLoad_SampleFormat(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	t.Setenv("AUDIO_SAMPLE_FORMAT", "f32")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}
	if cfg.Source().Format != source.FormatF32 {
		t.Errorf("Expected f32 device format, got %s", cfg.Source().Format)
	}

	t.Setenv("AUDIO_SAMPLE_FORMAT", "u8")
	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error for unsupported format")
	}
}

func TestLoad_RejectsEmptyFrames(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	t.Setenv("VAD_ENGINE", "energy")
	t.Setenv("SAMPLE_RATE", "50")
	t.Setenv("FRAME_DURATION_MS", "10")

	if _, err := LoadFromEnv(); err == nil {
		t.Error("Expected error for a sample rate that gives empty frames")
	}
}
