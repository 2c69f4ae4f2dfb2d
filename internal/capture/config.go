package capture

import (
	"fmt"
	"time"

	"github.com/lexiqai/voice-capture/internal/audio"
)

// Config holds the parameters of one capture. It is immutable once handed to NewCapturer.
type Config struct {
	SampleRate    int
	FrameDuration time.Duration
	Channels      int

	// PreRollFrames is the ring buffer depth kept while idle
	PreRollFrames int

	// SilenceFrames is the number of consecutive silent frames tolerated after speech
	SilenceFrames int

	// MaxRecord is the absolute recording ceiling, measured from the first frame
	MaxRecord time.Duration

	// MinClip is the shortest clip that is accepted
	MinClip time.Duration

	// VADEngine selects the speech classifier (energy or webrtc)
	VADEngine       string
	Aggressiveness  int
	EnergyThreshold float64

	// OutputDir receives accepted clips; empty means the OS temp directory
	OutputDir string
}

// DefaultConfig returns the standard capture configuration
func DefaultConfig() Config {
	return Config{
		SampleRate:     16000,
		FrameDuration:  30 * time.Millisecond,
		Channels:       1,
		PreRollFrames:  15,
		SilenceFrames:  15,
		MaxRecord:      10 * time.Second,
		MinClip:        time.Second,
		VADEngine:      audio.EngineWebRTC,
		Aggressiveness: 3,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate)
	}
	if err := audio.ValidateFrameDuration(c.FrameDuration); err != nil {
		return err
	}
	if err := audio.ValidateFrameSize(c.SampleRate, c.FrameDuration); err != nil {
		return err
	}
	if c.Channels != 1 {
		return fmt.Errorf("only mono capture is supported, got %d channels", c.Channels)
	}
	if c.PreRollFrames < 0 {
		return fmt.Errorf("preroll_frames must not be negative, got %d", c.PreRollFrames)
	}
	if c.SilenceFrames < 1 {
		return fmt.Errorf("silence_frames must be at least 1, got %d", c.SilenceFrames)
	}
	if c.MaxRecord < c.FrameDuration {
		return fmt.Errorf("max_record must be at least one frame, got %v", c.MaxRecord)
	}
	if c.MinClip < 0 {
		return fmt.Errorf("min_clip must not be negative, got %v", c.MinClip)
	}
	if c.MinClip > c.MaxRecord {
		return fmt.Errorf("min_clip %v exceeds max_record %v", c.MinClip, c.MaxRecord)
	}
	vad := c.VADConfig()
	return vad.Validate()
}

// FrameSamples returns the number of samples in one frame
func (c *Config) FrameSamples() int {
	return audio.FrameSamples(c.SampleRate, c.FrameDuration)
}

// CeilingFrames returns the number of frame periods after which recording is force-stopped
func (c *Config) CeilingFrames() int {
	n := int(c.MaxRecord / c.FrameDuration)
	if c.MaxRecord%c.FrameDuration != 0 {
		n++
	}
	return n
}

// WallClockLimit bounds the whole call even if the source stops delivering frames
func (c *Config) WallClockLimit() time.Duration {
	return time.Duration(c.CeilingFrames()+3) * c.FrameDuration
}

// VADConfig returns the classifier settings
func (c *Config) VADConfig() *audio.VADConfig {
	return &audio.VADConfig{
		Engine:          c.VADEngine,
		SampleRate:      c.SampleRate,
		Aggressiveness:  c.Aggressiveness,
		EnergyThreshold: c.EnergyThreshold,
	}
}
