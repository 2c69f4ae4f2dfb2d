package listener

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-capture/internal/audio"
	"github.com/lexiqai/voice-capture/internal/capture"
	"github.com/lexiqai/voice-capture/internal/observability"
	"github.com/lexiqai/voice-capture/internal/source"
	"github.com/lexiqai/voice-capture/internal/stt"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Clients are local tools; origin is not enforced
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Reply statuses
const (
	StatusCaptured = "captured"
	StatusRetry    = "retry"
	StatusError    = "error"
)

// CaptureReply is the JSON message sent back once the capture ends
type CaptureReply struct {
	Status     string          `json:"status"`
	ClipPath   string          `json:"clip_path,omitempty"`
	DurationMs int64           `json:"duration_ms,omitempty"`
	Transcript *stt.Transcript `json:"transcript,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// StreamConfig holds what a websocket capture needs
type StreamConfig struct {
	Capture     capture.Config
	Source      source.Config
	Classifier  audio.Classifier
	Transcriber stt.Transcriber // optional
	KeepClips   bool
}

// HandleCaptureWS runs one capture per websocket connection. The client streams
// PCM16LE audio as binary messages and may send {"event":"stop"} to end early.
// One CaptureReply is written before the connection is closed.
func HandleCaptureWS(cfg StreamConfig, logger zerolog.Logger) http.HandlerFunc {
	srcCfg := cfg.Source
	srcCfg.Backend = source.BackendWebSocket

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to upgrade connection to WebSocket")
			return
		}
		defer conn.Close()

		connLogger := observability.WithCorrelationID(observability.NewCorrelationID()).
			With().
			Str("remote_addr", conn.RemoteAddr().String()).
			Logger()
		connLogger.Info().Msg("New capture stream connected")

		factory := func() (source.Source, error) {
			return source.NewWebSocketSource(conn, srcCfg, connLogger), nil
		}

		reply := CaptureReply{Status: StatusError}
		capturer, err := capture.NewCapturer(cfg.Capture, factory, cfg.Classifier, capture.WithLogger(connLogger))
		if err != nil {
			reply.Error = err.Error()
			writeReply(conn, reply, connLogger)
			return
		}

		opts := []Option{WithLogger(connLogger), WithKeepClips(cfg.KeepClips)}
		if cfg.Transcriber != nil {
			opts = append(opts, WithTranscriber(cfg.Transcriber))
		}
		l := New(capturer, opts...)

		res, err := l.ListenOnce(r.Context())
		switch {
		case err == nil:
			reply = CaptureReply{
				Status:     StatusCaptured,
				ClipPath:   res.ClipPath,
				DurationMs: res.Duration.Milliseconds(),
				Transcript: res.Transcript,
			}
		case capture.IsRetryable(err):
			reply = CaptureReply{Status: StatusRetry, Error: err.Error()}
		default:
			reply.Error = err.Error()
		}
		writeReply(conn, reply, connLogger)
	}
}

func writeReply(conn *websocket.Conn, reply CaptureReply, logger zerolog.Logger) {
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteJSON(reply); err != nil {
		logger.Warn().Err(err).Msg("Failed to send capture reply")
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reply.Status)
	_ = conn.WriteMessage(websocket.CloseMessage, msg)
}
