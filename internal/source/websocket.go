package source

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/lexiqai/voice-capture/internal/audio"
)

// ControlMessage is a text message sent by a remote client alongside the audio
type ControlMessage struct {
	Event string `json:"event"`
}

// Control events
const (
	EventStop = "stop"
)

// WebSocketSource reads PCM16LE audio pushed by a remote client.
// Binary messages carry audio of any length; they are re-chunked into frames.
// A text {"event":"stop"} message or a normal close ends the stream.
type WebSocketSource struct {
	conn   *websocket.Conn
	cfg    Config
	logger zerolog.Logger

	mu      sync.Mutex
	started bool
	closed  bool

	framer *audio.Framer
	queue  *frameQueue
	done   chan struct{}
}

// NewWebSocketSource wraps an upgraded connection. The caller keeps ownership of
// conn and may still write to it after the source is closed.
func NewWebSocketSource(conn *websocket.Conn, cfg Config, logger zerolog.Logger) *WebSocketSource {
	return &WebSocketSource{
		conn:   conn,
		cfg:    cfg,
		logger: logger.With().Str("backend", string(BackendWebSocket)).Logger(),
		framer: audio.NewFramer(cfg.SampleRate, cfg.FrameDuration),
		queue:  newFrameQueue(cfg.QueueFrames),
		done:   make(chan struct{}),
	}
}

// Start begins reading from the connection.
func (s *WebSocketSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: source is closed", ErrDevice)
	}
	if s.started {
		return nil
	}
	s.started = true
	go s.readLoop()

	s.logger.Info().
		Str("remote_addr", s.conn.RemoteAddr().String()).
		Msg("WebSocket source started")
	return nil
}

func (s *WebSocketSource) readLoop() {
	defer close(s.done)

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()

			switch {
			case closed:
				s.queue.finish(nil)
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
				s.logger.Debug().Msg("WebSocket closed by client")
				s.queue.finish(nil)
			default:
				s.logger.Warn().Err(err).Msg("WebSocket read error")
				s.queue.finish(fmt.Errorf("%w: websocket read: %v", ErrDevice, err))
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			ok := true
			s.framer.WriteBytes(data, func(f audio.Frame) {
				if ok {
					ok = s.queue.send(f)
				}
			})
			if !ok {
				return
			}

		case websocket.TextMessage:
			var msg ControlMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				s.logger.Error().Err(err).Msg("Failed to parse control message")
				continue
			}
			if msg.Event == EventStop {
				s.logger.Debug().Msg("Stop event received")
				s.queue.finish(nil)
				return
			}
			s.logger.Warn().Str("event", msg.Event).Msg("Unknown control event")
		}
	}
}

// Read returns the next frame received from the client.
func (s *WebSocketSource) Read(ctx context.Context) (audio.Frame, error) {
	return s.queue.read(ctx)
}

// Close stops reading. The connection itself is left open for the caller.
func (s *WebSocketSource) Close() error {
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
		// Unblock a pending ReadMessage
		_ = s.conn.SetReadDeadline(time.Now())
		<-s.done
	}

	s.logger.Debug().
		Int64("frames_delivered", s.queue.delivered.Load()).
		Msg("WebSocket source closed")
	return nil
}

// Stats returns the source statistics.
func (s *WebSocketSource) Stats() Stats {
	return Stats{
		FramesDelivered: s.queue.delivered.Load(),
		FramesLost:      s.queue.dropped.Load(),
		Backend:         BackendWebSocket,
	}
}
