package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lexiqai/voice-capture/internal/audio"
	"github.com/lexiqai/voice-capture/internal/capture"
	"github.com/lexiqai/voice-capture/internal/config"
	"github.com/lexiqai/voice-capture/internal/listener"
	"github.com/lexiqai/voice-capture/internal/observability"
	"github.com/lexiqai/voice-capture/internal/resilience"
	"github.com/lexiqai/voice-capture/internal/source"
	"github.com/lexiqai/voice-capture/internal/stt"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("audio_backend", cfg.AudioBackend).
		Int("sample_rate", cfg.SampleRate).
		Int("frame_ms", cfg.FrameDurationMs).
		Bool("transcribe", cfg.TranscribeEnabled).
		Bool("listen_once", cfg.ListenOnce).
		Str("log_level", cfg.LogLevel).
		Msg("Voice Capture Service starting")

	capCfg := cfg.Capture()
	srcCfg := cfg.Source()

	vadCfg := capCfg.VADConfig()
	classifier, err := audio.NewClassifier(vadCfg)
	if errors.Is(err, audio.ErrEngineUnavailable) {
		logger.Warn().Err(err).Str("vad_engine", vadCfg.Engine).Msg("Speech classifier unavailable, falling back to energy")
		vadCfg.Engine = audio.EngineEnergy
		classifier, err = audio.NewClassifier(vadCfg)
	}
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create speech classifier")
	}
	if closer, ok := classifier.(io.Closer); ok {
		defer closer.Close()
	}

	sourceLogger := observability.WithComponent("source")
	capturer, err := capture.NewCapturer(capCfg, func() (source.Source, error) {
		return source.New(srcCfg, sourceLogger)
	}, classifier)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create capturer")
	}

	var transcriber *stt.DeepgramTranscriber
	if cfg.TranscribeEnabled {
		transcriber, err = stt.NewDeepgramTranscriber(cfg.Deepgram(), observability.WithComponent("stt"))
		if err != nil {
			logger.Fatal().Err(err).Msg("Failed to create Deepgram transcriber")
		}
	}

	// Readiness checks
	var checks []observability.DependencyCheck
	var reacquire resilience.ReconnectFunc
	if srcCfg.Backend == source.BackendDevice {
		reacquire = source.CheckDevice
		checks = append(checks, observability.DependencyCheck{
			Name: "audio_device",
			Check: func(ctx context.Context) (bool, error) {
				if err := source.CheckDevice(); err != nil {
					return false, err
				}
				return true, nil
			},
		})
	}
	if transcriber != nil {
		checks = append(checks, observability.DependencyCheck{Name: "deepgram", Check: transcriber.HealthCheck})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create HTTP server
	mux := http.NewServeMux()
	mux.HandleFunc("/health", observability.HealthCheckHandler())
	mux.HandleFunc("/ready", observability.ReadinessHandler(checks...))

	streamCfg := listener.StreamConfig{
		Capture:    capCfg,
		Source:     srcCfg,
		Classifier: classifier,
		KeepClips:  cfg.KeepClips,
	}
	if transcriber != nil {
		streamCfg.Transcriber = transcriber
	}
	mux.HandleFunc("/streams/capture", listener.HandleCaptureWS(streamCfg, observability.WithComponent("stream")))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/streams/capture", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	if cfg.GRPCHealthPort != "" {
		grpcHealth := observability.NewGRPCHealth(10*time.Second, checks...)
		go func() {
			if err := grpcHealth.Serve(ctx, fmt.Sprintf(":%s", cfg.GRPCHealthPort)); err != nil {
				logger.Error().Err(err).Msg("gRPC health server failed")
			}
		}()
	}

	opts := []listener.Option{
		listener.WithKeepClips(cfg.KeepClips),
		listener.WithReconnect(cfg.Reconnect(), reacquire),
		listener.WithResultHandler(func(res *listener.Result) {
			event := logger.Info().Dur("duration", res.Duration)
			if res.Transcript != nil {
				event = event.Str("transcript", res.Transcript.Text)
			}
			if res.ClipPath != "" {
				event = event.Str("clip_path", res.ClipPath)
			}
			event.Msg("Utterance ready")
		}),
	}
	if transcriber != nil {
		opts = append(opts, listener.WithTranscriber(transcriber))
	}
	l := listener.New(capturer, opts...)

	exitCode := 0
	if cfg.ListenOnce {
		res, err := l.ListenOnce(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Listen failed")
			exitCode = 1
		} else {
			if res.ClipPath != "" {
				fmt.Println(res.ClipPath)
			}
			if res.Transcript != nil {
				fmt.Println(res.Transcript.Text)
			}
		}
	} else if err := l.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Listener stopped")
		exitCode = 1
	}

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
	if exitCode != 0 {
		stop()
		cancel()
		os.Exit(exitCode)
	}
}
