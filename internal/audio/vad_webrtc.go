//go:build libfvad

package audio

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/xaionaro-go/audio/pkg/vad"
	"github.com/xaionaro-go/audio/pkg/vad/implementations/libfvad"
)

// webrtcConfidence is the detector confidence at which a frame counts as speech
const webrtcConfidence = 0.5

// WebRTCClassifier runs the WebRTC voice activity detector (libfvad) on each frame.
// The detector adapts to the noise floor between calls, so calls are serialized.
type WebRTCClassifier struct {
	mu       sync.Mutex
	detector vad.VAD
}

func newWebRTCClassifier(config *VADConfig) (Classifier, error) {
	var (
		detector vad.VAD
		err      error
	)
	switch config.Aggressiveness {
	case 0:
		detector, err = libfvad.NewVAD(webrtcSampleRate, 0)
	case 1:
		detector, err = libfvad.NewVAD(webrtcSampleRate, 1)
	case 2:
		detector, err = libfvad.NewVAD(webrtcSampleRate, 2)
	default:
		detector, err = libfvad.NewVAD(webrtcSampleRate, 3)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open webrtc vad: %w", err)
	}
	return &WebRTCClassifier{detector: detector}, nil
}

// Classify returns Speech when the detector finds voice across the whole frame.
// Detector errors count as silence.
func (c *WebRTCClassifier) Classify(f Frame) Decision {
	if len(f.Samples) == 0 {
		return Silence
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	confidence, _, err := c.detector.FindNextVoice(context.Background(), f.Bytes(), webrtcConfidence, f.Duration())
	if err != nil || confidence < webrtcConfidence {
		return Silence
	}
	return Speech
}

// Close releases the detector
func (c *WebRTCClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if closer, ok := c.detector.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
