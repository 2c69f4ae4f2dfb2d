// Package listener turns single utterance captures into a hands-free loop:
// capture a clip, transcribe it, clean up, and listen again.
package listener

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-capture/internal/capture"
	"github.com/lexiqai/voice-capture/internal/observability"
	"github.com/lexiqai/voice-capture/internal/resilience"
	"github.com/lexiqai/voice-capture/internal/stt"
)

// Capturer records one utterance per call
type Capturer interface {
	Capture(ctx context.Context) (*capture.Clip, error)
}

// Result is the outcome of one successful listen
type Result struct {
	// ClipPath is empty once the clip has been cleaned up
	ClipPath   string
	Duration   time.Duration
	Transcript *stt.Transcript
}

// Listener runs captures and hands the clips to a transcriber
type Listener struct {
	capturer    Capturer
	transcriber stt.Transcriber
	keepClips   bool

	reconnect *resilience.ReconnectConfig
	reacquire resilience.ReconnectFunc
	onResult  func(*Result)

	logger zerolog.Logger
}

// Option configures a Listener
type Option func(*Listener)

// WithTranscriber transcribes every captured clip
func WithTranscriber(t stt.Transcriber) Option {
	return func(l *Listener) {
		l.transcriber = t
	}
}

// WithKeepClips keeps clip files after transcription
func WithKeepClips(keep bool) Option {
	return func(l *Listener) {
		l.keepClips = keep
	}
}

// WithReconnect sets the device failure policy. reacquire, when set, must succeed
// before the next capture is attempted.
func WithReconnect(cfg *resilience.ReconnectConfig, reacquire resilience.ReconnectFunc) Option {
	return func(l *Listener) {
		if cfg != nil {
			l.reconnect = cfg
		}
		l.reacquire = reacquire
	}
}

// WithResultHandler is called by Run for every successful listen
func WithResultHandler(fn func(*Result)) Option {
	return func(l *Listener) {
		l.onResult = fn
	}
}

// WithLogger sets the base logger
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Listener) {
		l.logger = logger
	}
}

// New creates a listener
func New(capturer Capturer, opts ...Option) *Listener {
	l := &Listener{
		capturer:  capturer,
		reconnect: resilience.DefaultReconnectConfig(),
		logger:    observability.WithComponent("listener"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ListenOnce captures one utterance and transcribes it when a transcriber is set.
// Without a transcriber the clip is left on disk for the caller.
func (l *Listener) ListenOnce(ctx context.Context) (*Result, error) {
	l.logger.Info().Msg("Prepared to listen")

	clip, err := l.capturer.Capture(ctx)
	if err != nil {
		switch {
		case errors.Is(err, capture.ErrNoSpeechDetected):
			l.logger.Info().Msg("No speech detected")
		case errors.Is(err, capture.ErrNoValidSpeech):
			l.logger.Info().Msg("Speech too short")
		}
		return nil, err
	}

	l.logger.Info().
		Str("path", clip.Path).
		Dur("duration", clip.Duration).
		Msg("Voice captured")

	res := &Result{
		ClipPath: clip.Path,
		Duration: clip.Duration,
	}
	if l.transcriber == nil || clip.Path == "" {
		return res, nil
	}

	transcript, err := l.transcriber.Transcribe(ctx, clip.Path)
	l.cleanup(clip, res)
	if err != nil {
		observability.RecordError("transcription_error", "listener")
		return nil, fmt.Errorf("failed to transcribe clip: %w", err)
	}

	res.Transcript = transcript
	l.logger.Info().
		Str("transcript", transcript.Text).
		Int("segments", len(transcript.Segments)).
		Msg("Transcription received")
	return res, nil
}

func (l *Listener) cleanup(clip *capture.Clip, res *Result) {
	if l.keepClips {
		return
	}
	if err := clip.Remove(); err != nil {
		l.logger.Warn().Err(err).Msg("Failed to remove clip")
		return
	}
	res.ClipPath = ""
}

// Run listens until ctx is done. Each result is handed to the result handler,
// after which its clip is removed unless clips are kept. Outcomes a caller
// could simply retry are skipped, transcription failures are logged, and device failures back off
// exponentially before the device is reacquired. Run gives up after
// MaxAttempts consecutive device failures.
func (l *Listener) Run(ctx context.Context) error {
	failures := 0

	for {
		if ctx.Err() != nil {
			return nil
		}

		res, err := l.ListenOnce(ctx)
		switch {
		case err == nil:
			failures = 0
			if l.onResult != nil {
				l.onResult(res)
			}
			// Untranscribed clips only live for the handler
			if res.ClipPath != "" {
				l.cleanup(&capture.Clip{Path: res.ClipPath}, res)
			}

		case ctx.Err() != nil:
			return nil

		case capture.IsRetryable(err):
			failures = 0

		case errors.Is(err, capture.ErrDeviceFailure):
			failures++
			if failures >= l.reconnect.MaxAttempts {
				return fmt.Errorf("giving up after %d consecutive device failures: %w", failures, err)
			}
			if err := l.recover(ctx, failures, err); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}

		default:
			failures = 0
			l.logger.Error().Err(err).Msg("Listen failed")
		}
	}
}

// recover waits out the backoff for the given failure count, then reacquires the device
func (l *Listener) recover(ctx context.Context, failures int, cause error) error {
	backoff := resilience.CalculateBackoff(failures-1, l.reconnect.Backoff, l.reconnect.MaxBackoff, l.reconnect.Multiplier)
	l.logger.Warn().
		Err(cause).
		Int("failures", failures).
		Int("max_attempts", l.reconnect.MaxAttempts).
		Dur("retry_in", backoff).
		Msg("Audio device failed, reacquiring")

	timer := time.NewTimer(backoff)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
	}

	if l.reacquire == nil {
		return nil
	}
	if err := resilience.Reconnect(ctx, l.reacquire, l.reconnect, l.logger); err != nil {
		return fmt.Errorf("%w: %w", capture.ErrDeviceFailure, err)
	}
	return nil
}
