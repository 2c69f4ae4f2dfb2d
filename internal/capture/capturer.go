// Package capture segments a live audio stream into single utterance clips.
//
// A Capturer opens a fresh frame source per call, classifies every frame,
// and drives a Session through Idle, Triggered and a terminal state. Speech
// onset keeps a short pre-roll of audio heard just before it; recording stops
// after a run of trailing silence, at the absolute ceiling, at end of stream,
// or on cancellation. Accepted clips are written as mono 16-bit PCM WAV.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-capture/internal/audio"
	"github.com/lexiqai/voice-capture/internal/observability"
	"github.com/lexiqai/voice-capture/internal/source"
)

// SourceFactory opens a new frame source for one capture call
type SourceFactory func() (source.Source, error)

// Capturer records one utterance per Capture call. It holds no per-call state,
// so calls may run back to back; concurrent calls each need their own source.
type Capturer struct {
	cfg        Config
	newSource  SourceFactory
	classifier audio.Classifier
	logger     zerolog.Logger
	persist    bool
}

// Option configures a Capturer
type Option func(*Capturer)

// WithLogger sets the base logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Capturer) {
		c.logger = logger
	}
}

// WithoutPersist keeps accepted clips in memory only
func WithoutPersist() Option {
	return func(c *Capturer) {
		c.persist = false
	}
}

// NewCapturer creates a capturer. The classifier must be safe to reuse across calls.
func NewCapturer(cfg Config, newSource SourceFactory, classifier audio.Classifier, opts ...Option) (*Capturer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid capture config: %w", err)
	}
	if newSource == nil {
		return nil, errors.New("source factory is required")
	}
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}

	c := &Capturer{
		cfg:        cfg,
		newSource:  newSource,
		classifier: classifier,
		logger:     observability.WithComponent("capture"),
		persist:    true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the capture configuration
func (c *Capturer) Config() Config {
	return c.cfg
}

// Capture listens until one utterance has been recorded and returns it.
// The clip is saved to the configured output directory unless persistence is disabled.
//
// Errors: ErrDeviceFailure (wrapping the cause), ErrNoSpeechDetected,
// ErrCaptureAborted when ctx is cancelled, ErrNoValidSpeech for clips below MinClip.
func (c *Capturer) Capture(ctx context.Context) (*Clip, error) {
	captureID := observability.NewCorrelationID()
	logger := c.logger.With().Str("capture_id", captureID).Logger()

	metrics := observability.NewCaptureMetrics(captureID)
	metrics.RecordCaptureStart()

	clip, err := c.capture(ctx, logger, metrics)

	clipDuration := clip.duration()
	metrics.RecordCaptureEnd(outcome(err), clipDuration)

	var event *zerolog.Event
	switch {
	case err == nil:
		event = logger.Info()
	case IsRetryable(err):
		event = logger.Info().Str("result", err.Error())
	default:
		event = logger.Error().Err(err)
	}
	event.
		Int64("frames", metrics.Frames()).
		Int64("frames_lost", metrics.Lost()).
		Dur("clip_duration", clipDuration).
		Dur("elapsed", metrics.Elapsed()).
		Msg("Capture finished")

	return clip, err
}

func (c *Capturer) capture(ctx context.Context, logger zerolog.Logger, metrics *observability.CaptureMetrics) (*Clip, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCaptureAborted, err)
	}

	src, err := c.newSource()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceFailure, err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to release audio source")
		}
		// Frames dropped after the last delivered one only show up in the source stats
		if withStats, ok := src.(source.SourceWithStats); ok {
			if unseen := metrics.ReconcileLost(withStats.Stats().FramesLost); unseen > 0 {
				logger.Debug().Int64("frames_lost", unseen).Msg("Frames dropped at end of stream")
			}
		}
	}()

	if err := src.Start(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceFailure, err)
	}

	session := NewSession(c.cfg)
	if err := c.run(ctx, src, session, logger, metrics); err != nil {
		return nil, err
	}

	if session.Reason() == StopCeiling {
		metrics.RecordCeilingStop()
	}

	clip, err := Assemble(session, c.cfg)
	if err != nil {
		return nil, err
	}

	if c.persist {
		path, err := clip.Save(c.cfg.OutputDir)
		if err != nil {
			observability.RecordError("clip_save_error", "capture")
			return nil, err
		}
		logger.Debug().Str("path", path).Msg("Clip saved")
	}
	return clip, nil
}

// run feeds frames into the session until it is terminal
func (c *Capturer) run(ctx context.Context, src source.Source, session *Session, logger zerolog.Logger, metrics *observability.CaptureMetrics) error {
	// The guard bounds the call even if the source stalls
	guardCtx, cancel := context.WithTimeout(ctx, c.cfg.WallClockLimit())
	defer cancel()

	logger.Info().
		Int("preroll_frames", c.cfg.PreRollFrames).
		Int("silence_frames", c.cfg.SilenceFrames).
		Int("ceiling_frames", c.cfg.CeilingFrames()).
		Msg("Listening for speech")

	for {
		f, err := src.Read(guardCtx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				session.Finish()
			case ctx.Err() != nil:
				session.Abort()
			case guardCtx.Err() != nil:
				logger.Warn().
					Int("elapsed_frames", session.Elapsed()).
					Msg("Audio source stalled, stopping at ceiling")
				session.ForceComplete()
			default:
				session.Abort()
				observability.RecordError("source_read_error", "capture")
				return fmt.Errorf("%w: %w", ErrDeviceFailure, err)
			}
			return nil
		}

		// Cancellation takes effect at the next frame boundary
		if ctx.Err() != nil {
			session.Abort()
			return nil
		}

		metrics.RecordFrame(f.Lost)
		if f.Lost > 0 {
			logger.Debug().Int("lost", f.Lost).Msg("Frames dropped before classification")
		}

		wasIdle := session.State() == StateIdle
		done := session.Process(f, c.classifier.Classify(f))
		if wasIdle && session.Triggered() {
			logger.Info().
				Int("trigger_frame", session.TriggerFrame()).
				Int("preroll", len(session.Frames())-1).
				Msg("Speech detected, recording")
		}
		if done {
			logger.Info().
				Str("reason", string(session.Reason())).
				Int("elapsed_frames", session.Elapsed()).
				Msg("Recording stopped")
			return nil
		}
	}
}

func (c *Clip) duration() time.Duration {
	if c == nil {
		return 0
	}
	return c.Duration
}

func outcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeClip
	case errors.Is(err, ErrDeviceFailure):
		return observability.OutcomeDeviceFailure
	case errors.Is(err, ErrNoSpeechDetected):
		return observability.OutcomeNoSpeech
	case errors.Is(err, ErrNoValidSpeech):
		return observability.OutcomeNoValidSpeech
	case errors.Is(err, ErrCaptureAborted):
		return observability.OutcomeAborted
	default:
		return observability.OutcomeError
	}
}
