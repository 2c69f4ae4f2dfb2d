package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/rest"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-capture/internal/observability"
	"github.com/lexiqai/voice-capture/internal/resilience"
)

const breakerName = "deepgram"

// DeepgramConfig holds the settings for prerecorded transcription
type DeepgramConfig struct {
	APIKey   string
	Model    string
	Language string

	CircuitBreakerMaxFailures  int
	CircuitBreakerResetTimeout time.Duration
	Retry                      *resilience.RetryConfig
}

// deepgramResponse is the subset of the prerecorded response we read
type deepgramResponse struct {
	Metadata struct {
		RequestID string `json:"request_id"`
	} `json:"metadata"`
	Results struct {
		Channels []struct {
			Alternatives []struct {
				Transcript string  `json:"transcript"`
				Confidence float64 `json:"confidence"`
			} `json:"alternatives"`
		} `json:"channels"`
		Utterances []struct {
			Start      float64 `json:"start"`
			End        float64 `json:"end"`
			Confidence float64 `json:"confidence"`
			Transcript string  `json:"transcript"`
		} `json:"utterances"`
	} `json:"results"`
}

// recognizeFunc sends one clip to the service
type recognizeFunc func(ctx context.Context, path string) (*deepgramResponse, error)

// DeepgramTranscriber transcribes saved clips with Deepgram's prerecorded API.
// Calls go through a circuit breaker and are retried on transient failures.
type DeepgramTranscriber struct {
	cfg            DeepgramConfig
	recognize      recognizeFunc
	circuitBreaker *resilience.CircuitBreaker
	logger         zerolog.Logger
}

// NewDeepgramTranscriber creates a Deepgram transcriber
func NewDeepgramTranscriber(cfg DeepgramConfig, logger zerolog.Logger) (*DeepgramTranscriber, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("deepgram api key is required")
	}

	options := &interfaces.PreRecordedTranscriptionOptions{
		Model:      cfg.Model,
		Language:   cfg.Language,
		Punctuate:  true,
		Utterances: true,
	}

	client := listenClient.NewREST(cfg.APIKey, &interfaces.ClientOptions{})
	dg := api.New(client)

	recognize := func(ctx context.Context, path string) (*deepgramResponse, error) {
		res, err := dg.FromFile(ctx, path, options)
		if err != nil {
			return nil, err
		}
		return decodeResponse(res)
	}

	return newDeepgramTranscriber(cfg, recognize, logger), nil
}

func newDeepgramTranscriber(cfg DeepgramConfig, recognize recognizeFunc, logger zerolog.Logger) *DeepgramTranscriber {
	if cfg.CircuitBreakerMaxFailures <= 0 {
		cfg.CircuitBreakerMaxFailures = 5
	}
	if cfg.CircuitBreakerResetTimeout <= 0 {
		cfg.CircuitBreakerResetTimeout = 60 * time.Second
	}
	if cfg.Retry == nil {
		cfg.Retry = resilience.DefaultRetryConfig()
	}

	cb := resilience.NewCircuitBreaker(breakerName, cfg.CircuitBreakerMaxFailures, cfg.CircuitBreakerResetTimeout)
	cb.OnStateChange(func(name string, from, to resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(to))
		logger.Warn().
			Str("service", name).
			Str("from", from.String()).
			Str("to", to.String()).
			Msg("Circuit breaker state changed")
	})

	return &DeepgramTranscriber{
		cfg:            cfg,
		recognize:      recognize,
		circuitBreaker: cb,
		logger:         logger.With().Str("component", "stt").Logger(),
	}
}

// Transcribe sends the clip to Deepgram and joins every returned segment
func (d *DeepgramTranscriber) Transcribe(ctx context.Context, path string) (*Transcript, error) {
	start := time.Now()

	var res *deepgramResponse
	err := d.circuitBreaker.Call(func() error {
		return resilience.Retry(ctx, func() error {
			r, err := d.recognize(ctx, path)
			if err != nil {
				if resilience.IsRetryableNetworkError(err) {
					return resilience.NewRetryableError(err)
				}
				return err
			}
			res = r
			return nil
		}, d.cfg.Retry, resilience.IsRetryable)
	})

	latency := time.Since(start)
	if err != nil {
		observability.RecordTranscription(false, latency)
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			observability.IncrementCircuitBreakerFailures(breakerName)
		}
		return nil, fmt.Errorf("deepgram transcription failed: %w", err)
	}
	observability.RecordTranscription(true, latency)

	transcript := res.transcript()
	d.logger.Debug().
		Str("request_id", transcript.RequestID).
		Int("segments", len(transcript.Segments)).
		Dur("latency", latency).
		Msg("Transcription complete")
	return transcript, nil
}

// HealthCheck reports unhealthy while the circuit is open
func (d *DeepgramTranscriber) HealthCheck(ctx context.Context) (bool, error) {
	if d.circuitBreaker.GetState() == resilience.StateOpen {
		return false, resilience.ErrCircuitOpen
	}
	return true, nil
}

// decodeResponse converts an SDK response into the fields we read
func decodeResponse(res any) (*deepgramResponse, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to encode deepgram response: %w", err)
	}
	var out deepgramResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode deepgram response: %w", err)
	}
	return &out, nil
}

// transcript joins all utterances; without utterances it falls back to the
// best alternative of every channel
func (r *deepgramResponse) transcript() *Transcript {
	t := &Transcript{RequestID: r.Metadata.RequestID}

	for _, u := range r.Results.Utterances {
		t.Segments = append(t.Segments, Segment{
			Text:       u.Transcript,
			Start:      u.Start,
			End:        u.End,
			Confidence: u.Confidence,
		})
	}
	if len(t.Segments) == 0 {
		for _, ch := range r.Results.Channels {
			if len(ch.Alternatives) == 0 {
				continue
			}
			alt := ch.Alternatives[0]
			t.Segments = append(t.Segments, Segment{
				Text:       alt.Transcript,
				Confidence: alt.Confidence,
			})
		}
	}

	t.Text = JoinSegments(t.Segments)
	return t
}
