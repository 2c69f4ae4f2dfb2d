package source

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/lexiqai/voice-capture/internal/audio"
)

// Scripted replays a fixed list of frames. It is deterministic and used by tests
// and by the capture benchmarks.
type Scripted struct {
	mu       sync.Mutex
	frames   []audio.Frame
	pos      int
	started  bool
	closes   int
	endErr   error
	startErr error
	stall    bool
	closed   chan struct{}
}

// ScriptedOption configures a Scripted source.
type ScriptedOption func(*Scripted)

// WithError ends the stream with err instead of io.EOF.
func WithError(err error) ScriptedOption {
	return func(s *Scripted) {
		s.endErr = err
	}
}

// WithStartError makes Start fail with err.
func WithStartError(err error) ScriptedOption {
	return func(s *Scripted) {
		s.startErr = err
	}
}

// WithStall blocks Read after the last frame until the context ends or the source is closed.
func WithStall() ScriptedOption {
	return func(s *Scripted) {
		s.stall = true
	}
}

// NewScripted creates a source that delivers frames in order.
func NewScripted(frames []audio.Frame, opts ...ScriptedOption) *Scripted {
	s := &Scripted{
		frames: frames,
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start fails with the configured start error, if any.
func (s *Scripted) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.startErr != nil {
		return fmt.Errorf("%w: %v", ErrDevice, s.startErr)
	}
	s.started = true
	return nil
}

// Read returns the next scripted frame.
func (s *Scripted) Read(ctx context.Context) (audio.Frame, error) {
	if err := ctx.Err(); err != nil {
		return audio.Frame{}, err
	}

	s.mu.Lock()
	if s.closes > 0 {
		s.mu.Unlock()
		return audio.Frame{}, io.EOF
	}
	if s.pos < len(s.frames) {
		f := s.frames[s.pos]
		s.pos++
		s.mu.Unlock()
		return f, nil
	}
	stall, endErr := s.stall, s.endErr
	s.mu.Unlock()

	if stall {
		select {
		case <-ctx.Done():
			return audio.Frame{}, ctx.Err()
		case <-s.closed:
			return audio.Frame{}, io.EOF
		}
	}
	if endErr != nil {
		return audio.Frame{}, fmt.Errorf("%w: %v", ErrDevice, endErr)
	}
	return audio.Frame{}, io.EOF
}

// Close records the call. Only the first call releases a stalled reader.
func (s *Scripted) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closes++
	if s.closes == 1 {
		close(s.closed)
	}
	return nil
}

// Closes returns how many times Close was called.
func (s *Scripted) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// Started reports whether Start succeeded.
func (s *Scripted) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Consumed returns the number of frames read so far.
func (s *Scripted) Consumed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// Stats returns the source statistics.
func (s *Scripted) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{FramesDelivered: int64(s.pos)}
}

// ConstantFrames builds n frames whose samples all equal amplitude.
func ConstantFrames(n, sampleRate, frameSize int, amplitude int16) []audio.Frame {
	frames := make([]audio.Frame, n)
	for i := range frames {
		samples := make([]int16, frameSize)
		for j := range samples {
			samples[j] = amplitude
		}
		frames[i] = audio.Frame{Samples: samples, SampleRate: sampleRate}
	}
	return frames
}
