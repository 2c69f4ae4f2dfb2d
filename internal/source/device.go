//go:build cgo

package source

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-capture/internal/audio"
)

// DeviceSource captures mono PCM16 from the default OS input device through miniaudio.
// The device callback is the producer: it re-chunks device periods into frames and
// offers them to the queue without blocking, so a slow consumer loses frames rather
// than stalling the audio thread.
type DeviceSource struct {
	cfg    Config
	logger zerolog.Logger

	mu      sync.Mutex
	started bool
	closed  bool
	closing bool

	mctx   *malgo.AllocatedContext
	device *malgo.Device
	framer *audio.Framer
	queue  *frameQueue
}

func newDeviceSource(cfg Config, logger zerolog.Logger) (Source, error) {
	return &DeviceSource{
		cfg:    cfg,
		logger: logger.With().Str("backend", string(BackendDevice)).Logger(),
		framer: audio.NewFramer(cfg.SampleRate, cfg.FrameDuration),
		queue:  newFrameQueue(cfg.QueueFrames),
	}, nil
}

// Start opens the capture device and begins streaming.
func (s *DeviceSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: source is closed", ErrDevice)
	}
	if s.started {
		return nil
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		// Device status is informational; failures surface through the stop callback
		s.logger.Warn().Str("status", strings.TrimSpace(message)).Msg("Audio device status")
	})
	if err != nil {
		return fmt.Errorf("%w: init audio context: %v", ErrDevice, err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	if s.cfg.Format == FormatF32 {
		deviceConfig.Capture.Format = malgo.FormatF32
	}
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(s.cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(s.framer.FrameSize())
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: s.onData,
		Stop: s.onStop,
	})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("%w: init capture device: %v", ErrDevice, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return fmt.Errorf("%w: start capture device: %v", ErrDevice, err)
	}

	s.mctx = mctx
	s.device = device
	s.started = true

	s.logger.Info().
		Int("sample_rate", s.cfg.SampleRate).
		Int("frame_samples", s.framer.FrameSize()).
		Str("format", string(s.cfg.Format)).
		Msg("Capture device started")
	return nil
}

// onData runs on the audio thread
func (s *DeviceSource) onData(_, input []byte, frameCount uint32) {
	if frameCount == 0 {
		return
	}
	n := int(frameCount) * s.cfg.Format.BytesPerSample()
	if n > len(input) {
		n = len(input)
	}
	s.framer.WriteSamples(decodeSamples(s.cfg.Format, input[:n]), func(f audio.Frame) {
		if !s.queue.offer(f) {
			s.logger.Debug().Msg("Frame queue full, dropping frame")
		}
	})
}

func (s *DeviceSource) onStop() {
	s.mu.Lock()
	closing := s.closing
	s.mu.Unlock()

	if closing {
		return
	}
	s.logger.Error().Msg("Capture device stopped unexpectedly")
	s.queue.finish(fmt.Errorf("%w: capture device stopped", ErrDevice))
}

// Read returns the next captured frame.
func (s *DeviceSource) Read(ctx context.Context) (audio.Frame, error) {
	return s.queue.read(ctx)
}

// Close stops the device and releases the audio context.
func (s *DeviceSource) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.closing = true
	device, mctx := s.device, s.mctx
	s.device, s.mctx = nil, nil
	s.mu.Unlock()

	var err error
	if device != nil {
		device.Uninit()
	}
	if mctx != nil {
		err = mctx.Uninit()
		mctx.Free()
	}
	s.queue.finish(nil)

	s.logger.Info().
		Int64("frames_delivered", s.queue.delivered.Load()).
		Int64("frames_lost", s.queue.dropped.Load()).
		Msg("Capture device released")
	return err
}

// Stats returns the source statistics.
func (s *DeviceSource) Stats() Stats {
	return Stats{
		FramesDelivered: s.queue.delivered.Load(),
		FramesLost:      s.queue.dropped.Load(),
		Backend:         BackendDevice,
	}
}

// CheckDevice checks that at least one capture device is available.
func CheckDevice() error {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("%w: init audio context: %v", ErrDevice, err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	devices, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return fmt.Errorf("%w: enumerate capture devices: %v", ErrDevice, err)
	}
	if len(devices) == 0 {
		return fmt.Errorf("%w: no capture devices found", ErrDevice)
	}
	return nil
}
