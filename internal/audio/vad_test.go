package audio

import (
	"errors"
	"io"
	"testing"
)

func constantFrame(value int16, n int) Frame {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = value
	}
	return Frame{Samples: samples, SampleRate: 16000}
}

func TestEnergyClassifier_Speech(t *testing.T) {
	vad, err := NewEnergyClassifier(&VADConfig{EnergyThreshold: 500.0})
	if err != nil {
		t.Fatalf("NewEnergyClassifier failed: %v", err)
	}

	// High amplitude should be detected as speech
	if d := vad.Classify(constantFrame(5000, 480)); d != Speech {
		t.Errorf("Expected speech, got %s", d)
	}
}

func TestEnergyClassifier_Silence(t *testing.T) {
	vad, err := NewEnergyClassifier(&VADConfig{EnergyThreshold: 500.0})
	if err != nil {
		t.Fatalf("NewEnergyClassifier failed: %v", err)
	}

	if d := vad.Classify(constantFrame(10, 480)); d != Silence {
		t.Errorf("Expected silence, got %s", d)
	}
	if d := vad.Classify(Frame{}); d != Silence {
		t.Errorf("Expected empty frame to be silence, got %s", d)
	}
}

func TestEnergyClassifier_Deterministic(t *testing.T) {
	vad, _ := NewEnergyClassifier(nil)
	frame := constantFrame(700, 480)

	first := vad.Classify(frame)
	for i := 0; i < 10; i++ {
		if d := vad.Classify(frame); d != first {
			t.Fatalf("Expected identical decision on repeat %d, got %s then %s", i, first, d)
		}
	}
}

func TestEnergyClassifier_Aggressiveness(t *testing.T) {
	sensitive, err := NewEnergyClassifier(&VADConfig{Aggressiveness: 0})
	if err != nil {
		t.Fatalf("NewEnergyClassifier failed: %v", err)
	}
	aggressive, err := NewEnergyClassifier(&VADConfig{Aggressiveness: 3})
	if err != nil {
		t.Fatalf("NewEnergyClassifier failed: %v", err)
	}

	// Medium energy: passes the sensitive threshold, fails the aggressive one
	frame := constantFrame(400, 480)
	if sensitive.Classify(frame) != Speech {
		t.Error("Expected sensitive classifier to detect speech")
	}
	if aggressive.Classify(frame) != Silence {
		t.Error("Expected aggressive classifier to reject medium energy")
	}
}

func TestEnergyClassifier_ExplicitThresholdOverrides(t *testing.T) {
	vad, err := NewEnergyClassifier(&VADConfig{Aggressiveness: 3, EnergyThreshold: 100.0})
	if err != nil {
		t.Fatalf("NewEnergyClassifier failed: %v", err)
	}
	if vad.Threshold() != 100.0 {
		t.Errorf("Expected threshold 100.0, got %f", vad.Threshold())
	}
}

func TestVADConfig_Validate(t *testing.T) {
	if err := (&VADConfig{Aggressiveness: 4}).Validate(); err == nil {
		t.Error("Expected error for aggressiveness 4")
	}
	if err := (&VADConfig{Aggressiveness: -1}).Validate(); err == nil {
		t.Error("Expected error for aggressiveness -1")
	}
	if err := (&VADConfig{EnergyThreshold: -5}).Validate(); err == nil {
		t.Error("Expected error for negative threshold")
	}
	if _, err := NewEnergyClassifier(&VADConfig{Aggressiveness: 9}); err == nil {
		t.Error("Expected NewEnergyClassifier to reject invalid config")
	}
}

func TestDefaultVADConfig(t *testing.T) {
	config := DefaultVADConfig()
	if config.Aggressiveness != 3 {
		t.Errorf("Expected default Aggressiveness 3, got %d", config.Aggressiveness)
	}
	if config.Threshold() != 800.0 {
		t.Errorf("Expected default threshold 800.0, got %f", config.Threshold())
	}
}

func TestClassifierFunc(t *testing.T) {
	calls := 0
	var c Classifier = ClassifierFunc(func(f Frame) Decision {
		calls++
		return Speech
	})

	if c.Classify(Frame{}) != Speech {
		t.Error("Expected ClassifierFunc to return its function's decision")
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestCalculateRMS(t *testing.T) {
	// Test with known values
	samples := []int16{1000, -1000, 2000, -2000}
	rms := CalculateRMS(samples)

	// Expected RMS: sqrt((1000^2 + 1000^2 + 2000^2 + 2000^2) / 4)
	expected := 1581.14 // Approximate
	tolerance := 1.0

	if rms < expected-tolerance || rms > expected+tolerance {
		t.Errorf("Expected RMS around %.2f, got %.2f", expected, rms)
	}
}

func TestNewClassifier_Energy(t *testing.T) {
	c, err := NewClassifier(&VADConfig{Engine: EngineEnergy, Aggressiveness: 3})
	if err != nil {
		t.Fatalf("NewClassifier failed: %v", err)
	}
	if _, ok := c.(*EnergyClassifier); !ok {
		t.Errorf("Expected energy classifier, got %T", c)
	}
}

func TestNewClassifier_WebRTC(t *testing.T) {
	c, err := NewClassifier(&VADConfig{Engine: EngineWebRTC, SampleRate: 16000, Aggressiveness: 3})
	if errors.Is(err, ErrEngineUnavailable) {
		t.Skip("webrtc vad not compiled in")
	}
	if err != nil {
		t.Fatalf("NewClassifier failed: %v", err)
	}
	if closer, ok := c.(io.Closer); ok {
		defer closer.Close()
	}

	if d := c.Classify(constantFrame(0, 480)); d != Silence {
		t.Errorf("Expected digital silence to be silence, got %s", d)
	}
	if d := c.Classify(Frame{}); d != Silence {
		t.Errorf("Expected empty frame to be silence, got %s", d)
	}
}

func TestVADConfig_ValidateEngine(t *testing.T) {
	if err := (&VADConfig{Engine: "silero"}).Validate(); err == nil {
		t.Error("Expected error for unknown engine")
	}
	if err := (&VADConfig{Engine: EngineWebRTC, SampleRate: 44100}).Validate(); err == nil {
		t.Error("Expected error for webrtc at 44.1 kHz")
	}
	if err := (&VADConfig{Engine: EngineEnergy, SampleRate: 44100}).Validate(); err != nil {
		t.Errorf("Expected energy engine to accept any rate, got %v", err)
	}
}
