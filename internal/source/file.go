package source

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-audio/wav"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-capture/internal/audio"
)

// FileSource replays a mono 16-bit WAV file as a frame stream.
// A trailing partial frame is discarded.
type FileSource struct {
	cfg    Config
	logger zerolog.Logger

	mu      sync.Mutex
	started bool
	closed  bool

	queue *frameQueue
	done  chan struct{}
}

// NewFileSource creates a file source; the file is opened and validated on Start.
func NewFileSource(cfg Config, logger zerolog.Logger) *FileSource {
	return &FileSource{
		cfg:    cfg,
		logger: logger.With().Str("backend", string(BackendFile)).Str("file", cfg.InputFile).Logger(),
		queue:  newFrameQueue(cfg.QueueFrames),
		done:   make(chan struct{}),
	}
}

// Start decodes the file and begins producing frames.
func (s *FileSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: source is closed", ErrDevice)
	}
	if s.started {
		return nil
	}

	samples, err := readWAV(s.cfg.InputFile, s.cfg.SampleRate)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDevice, err)
	}

	s.started = true
	go s.produce(samples)

	s.logger.Info().
		Int("samples", len(samples)).
		Bool("realtime", s.cfg.Realtime).
		Msg("File source started")
	return nil
}

func (s *FileSource) produce(samples []int16) {
	defer close(s.done)

	var ticker *time.Ticker
	if s.cfg.Realtime {
		ticker = time.NewTicker(s.cfg.FrameDuration)
		defer ticker.Stop()
	}

	framer := audio.NewFramer(s.cfg.SampleRate, s.cfg.FrameDuration)
	var frames []audio.Frame
	framer.WriteSamples(samples, func(f audio.Frame) {
		frames = append(frames, f)
	})

	for _, f := range frames {
		if ticker != nil {
			select {
			case <-ticker.C:
			case <-s.queue.stop:
				return
			}
		}
		if !s.queue.send(f) {
			return
		}
	}
	s.queue.finish(nil)
}

// Read returns the next frame of the file.
func (s *FileSource) Read(ctx context.Context) (audio.Frame, error) {
	return s.queue.read(ctx)
}

// Close stops playback.
func (s *FileSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	started := s.started
	s.mu.Unlock()

	s.queue.finish(nil)
	if started {
		<-s.done
	}
	return nil
}

// Stats returns the source statistics.
func (s *FileSource) Stats() Stats {
	return Stats{
		FramesDelivered: s.queue.delivered.Load(),
		FramesLost:      s.queue.dropped.Load(),
		Backend:         BackendFile,
	}
}

// readWAV decodes a mono PCM16 WAV file recorded at sampleRate
func readWAV(path string, sampleRate int) ([]int16, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}
	if int(d.SampleRate) != sampleRate {
		return nil, fmt.Errorf("input sample rate %d does not match configured %d", d.SampleRate, sampleRate)
	}
	if d.NumChans != 1 {
		return nil, fmt.Errorf("input must be mono, got %d channels", d.NumChans)
	}
	if d.BitDepth != 16 {
		return nil, fmt.Errorf("input must be 16-bit, got %d", d.BitDepth)
	}

	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode input file: %w", err)
	}
	return audio.IntsToSamples(buf.Data), nil
}
