package audio

import (
	"fmt"
	"time"
)

// Frame is a fixed-length block of mono 16-bit PCM samples.
// Producers allocate a fresh Samples slice per frame; consumers must treat it as read-only.
type Frame struct {
	// Samples holds signed 16-bit PCM, one channel
	Samples []int16

	// SampleRate is the rate the samples were captured at, in Hz
	SampleRate int

	// Lost is the number of frames the producer dropped immediately before this one
	Lost int
}

// Duration returns the playable duration of the frame
func (f Frame) Duration() time.Duration {
	if f.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}

// Bytes returns the frame as little-endian PCM16
func (f Frame) Bytes() []byte {
	return SamplesToBytes(f.Samples)
}

// FrameSamples returns the number of samples in one frame of the given duration
func FrameSamples(sampleRate int, frameDuration time.Duration) int {
	return int(int64(sampleRate) * int64(frameDuration) / int64(time.Second))
}

// ValidateFrameSize checks that a frame holds at least one sample
func ValidateFrameSize(sampleRate int, frameDuration time.Duration) error {
	if FrameSamples(sampleRate, frameDuration) < 1 {
		return fmt.Errorf("sample rate %d Hz gives empty %v frames", sampleRate, frameDuration)
	}
	return nil
}

// ValidateFrameDuration checks that the frame duration is one the classifiers support
func ValidateFrameDuration(frameDuration time.Duration) error {
	switch frameDuration {
	case 10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond:
		return nil
	default:
		return fmt.Errorf("frame duration must be 10, 20 or 30 ms, got %v", frameDuration)
	}
}

// Framer re-chunks arbitrarily sized PCM input into fixed-size frames.
// It is not safe for concurrent use; each producer owns its own Framer.
type Framer struct {
	sampleRate int
	size       int
	pending    []int16
}

// NewFramer creates a framer emitting frames of frameDuration at sampleRate.
// A rate too low for one sample per frame yields a framer that never emits.
func NewFramer(sampleRate int, frameDuration time.Duration) *Framer {
	size := FrameSamples(sampleRate, frameDuration)
	return &Framer{
		sampleRate: sampleRate,
		size:       size,
		pending:    make([]int16, 0, size*2),
	}
}

// FrameSize returns the number of samples per emitted frame
func (fr *Framer) FrameSize() int {
	return fr.size
}

// WriteBytes appends little-endian PCM16 data and calls emit for every complete frame.
// A trailing odd byte is ignored.
func (fr *Framer) WriteBytes(data []byte, emit func(Frame)) {
	fr.pending = append(fr.pending, BytesToSamples(data)...)
	fr.flush(emit)
}

// WriteSamples appends samples and calls emit for every complete frame
func (fr *Framer) WriteSamples(samples []int16, emit func(Frame)) {
	fr.pending = append(fr.pending, samples...)
	fr.flush(emit)
}

// Pending returns the number of buffered samples not yet emitted
func (fr *Framer) Pending() int {
	return len(fr.pending)
}

func (fr *Framer) flush(emit func(Frame)) {
	if fr.size < 1 {
		return
	}
	n := 0
	for len(fr.pending)-n >= fr.size {
		samples := make([]int16, fr.size)
		copy(samples, fr.pending[n:n+fr.size])
		n += fr.size
		emit(Frame{Samples: samples, SampleRate: fr.sampleRate})
	}
	if n > 0 {
		fr.pending = append(fr.pending[:0], fr.pending[n:]...)
	}
}
