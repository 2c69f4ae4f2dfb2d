// Package source delivers live or recorded audio as a sequence of fixed-size PCM frames.
//
// Backends:
//   - device: the OS default capture device through miniaudio (requires cgo)
//   - file: a mono 16-bit WAV file replayed frame by frame
//   - websocket: binary PCM16LE messages pushed by a remote client
//
// Every backend runs a single producer goroutine (or device callback) that hands
// immutable frames to the consumer through a bounded queue.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/lexiqai/voice-capture/internal/audio"
)

// ErrDevice is returned (wrapped) when the audio input is unavailable or fails mid-stream
var ErrDevice = errors.New("audio device failure")

// Backend selects the frame source implementation
type Backend string

const (
	BackendDevice    Backend = "device"
	BackendFile      Backend = "file"
	BackendWebSocket Backend = "websocket"
)

// SampleFormat is the sample encoding requested from the capture device
type SampleFormat string

const (
	FormatS16 SampleFormat = "s16"
	FormatF32 SampleFormat = "f32"
)

// BytesPerSample returns the size of one mono sample in bytes
func (f SampleFormat) BytesPerSample() int {
	if f == FormatF32 {
		return 4
	}
	return 2
}

// decodeSamples converts raw device bytes to PCM16; float input is clipped to [-1, 1]
func decodeSamples(format SampleFormat, data []byte) []int16 {
	if format == FormatF32 {
		return audio.FloatToPCM(audio.BytesToFloats(data))
	}
	return audio.BytesToSamples(data)
}

// Source produces fixed-duration frames at a fixed sample rate.
type Source interface {
	// Start acquires the underlying input and begins producing frames.
	Start(ctx context.Context) error

	// Read returns the next frame, blocking until one is available.
	// Returns io.EOF when the stream ends normally and an error wrapping
	// ErrDevice when the input fails.
	Read(ctx context.Context) (audio.Frame, error)

	// Close releases the underlying input. It is safe to call Close multiple times.
	io.Closer
}

// Stats contains statistics about a source.
type Stats struct {
	// FramesDelivered is the number of frames handed to the consumer
	FramesDelivered int64 `json:"frames_delivered"`

	// FramesLost is the number of frames dropped because the consumer fell behind
	FramesLost int64 `json:"frames_lost"`

	// Backend is the name of the backend
	Backend Backend `json:"backend"`
}

// SourceWithStats extends Source with statistics.
type SourceWithStats interface {
	Source
	Stats() Stats
}

// Config holds source configuration.
type Config struct {
	Backend       Backend
	SampleRate    int
	FrameDuration time.Duration

	// Format is the device sample encoding; frames are always PCM16
	Format SampleFormat

	// QueueFrames bounds the producer to consumer hand-off
	QueueFrames int

	// InputFile is the WAV file replayed by the file backend
	InputFile string

	// Realtime paces the file backend at one frame per frame duration
	Realtime bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendDevice,
		SampleRate:    16000,
		FrameDuration: 30 * time.Millisecond,
		Format:        FormatS16,
		QueueFrames:   16,
		Realtime:      true,
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
	switch c.Format {
	case "", FormatS16, FormatF32:
	default:
		return fmt.Errorf("unsupported sample format: %s", c.Format)
	}
	if c.QueueFrames <= 0 {
		return fmt.Errorf("queue_frames must be positive, got %d", c.QueueFrames)
	}
	if c.Backend == BackendFile && c.InputFile == "" {
		return fmt.Errorf("input file is required for the file backend")
	}
	return nil
}

// FrameSize returns the number of samples per frame
func (c *Config) FrameSize() int {
	return audio.FrameSamples(c.SampleRate, c.FrameDuration)
}
