package audio

import (
	"errors"
	"fmt"
)

// Decision is the per-frame output of a speech classifier
type Decision int

const (
	Silence Decision = iota
	Speech
)

func (d Decision) String() string {
	if d == Speech {
		return "speech"
	}
	return "silence"
}

// Classifier decides whether a single frame contains speech.
// Implementations must be deterministic for a fixed configuration and frame content;
// any adaptive state stays private to the implementation.
type Classifier interface {
	Classify(f Frame) Decision
}

// ClassifierFunc adapts a plain function to the Classifier interface
type ClassifierFunc func(f Frame) Decision

// Classify calls fn(f)
func (fn ClassifierFunc) Classify(f Frame) Decision {
	return fn(f)
}

// Classifier engines
const (
	EngineEnergy = "energy"
	EngineWebRTC = "webrtc"
)

// webrtcSampleRate is the only rate the WebRTC detector is opened at
const webrtcSampleRate = 16000

// ErrEngineUnavailable is returned when a classifier engine is not compiled in
var ErrEngineUnavailable = errors.New("vad engine unavailable")

// RMS thresholds per aggressiveness level; higher levels reject more background noise
var aggressivenessThresholds = [...]float64{
	200.0, // 0: most sensitive
	350.0,
	500.0,
	800.0, // 3: most aggressive
}

// VADConfig holds configuration for the speech classifiers
type VADConfig struct {
	Engine          string  // energy or webrtc
	SampleRate      int     // Rate of the classified frames
	Aggressiveness  int     // 0-3: WebRTC mode, or an RMS threshold for the energy engine
	EnergyThreshold float64 // Explicit RMS threshold; overrides Aggressiveness when > 0
}

// DefaultVADConfig returns a default VAD configuration
func DefaultVADConfig() *VADConfig {
	return &VADConfig{
		Engine:          EngineEnergy,
		SampleRate:      16000,
		Aggressiveness:  3,
		EnergyThreshold: 0,
	}
}

// Threshold returns the effective RMS threshold
func (c *VADConfig) Threshold() float64 {
	if c.EnergyThreshold > 0 {
		return c.EnergyThreshold
	}
	return aggressivenessThresholds[c.Aggressiveness]
}

// Validate checks the configuration
func (c *VADConfig) Validate() error {
	if c.Aggressiveness < 0 || c.Aggressiveness >= len(aggressivenessThresholds) {
		return fmt.Errorf("vad aggressiveness must be between 0 and %d, got %d", len(aggressivenessThresholds)-1, c.Aggressiveness)
	}
	if c.EnergyThreshold < 0 {
		return fmt.Errorf("vad energy threshold must not be negative, got %f", c.EnergyThreshold)
	}
	switch c.Engine {
	case "", EngineEnergy:
	case EngineWebRTC:
		if c.SampleRate != webrtcSampleRate {
			return fmt.Errorf("webrtc vad needs %d Hz audio, got %d", webrtcSampleRate, c.SampleRate)
		}
	default:
		return fmt.Errorf("unknown vad engine: %s", c.Engine)
	}
	return nil
}

// NewClassifier creates the classifier selected by config.Engine.
// Returns an error wrapping ErrEngineUnavailable when the engine is not compiled in.
func NewClassifier(config *VADConfig) (Classifier, error) {
	if config == nil {
		config = DefaultVADConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Engine == EngineWebRTC {
		return newWebRTCClassifier(config)
	}
	return NewEnergyClassifier(config)
}

// EnergyClassifier marks a frame as speech when its RMS energy exceeds a threshold.
// It keeps no state between frames and is safe for concurrent use.
type EnergyClassifier struct {
	threshold float64
}

// NewEnergyClassifier creates a classifier from the given configuration
func NewEnergyClassifier(config *VADConfig) (*EnergyClassifier, error) {
	if config == nil {
		config = DefaultVADConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &EnergyClassifier{threshold: config.Threshold()}, nil
}

// Classify returns Speech when the frame energy is above the threshold
func (c *EnergyClassifier) Classify(f Frame) Decision {
	if CalculateRMS(f.Samples) > c.threshold {
		return Speech
	}
	return Silence
}

// Threshold returns the RMS threshold in use
func (c *EnergyClassifier) Threshold() float64 {
	return c.threshold
}
