package capture

import (
	"github.com/lexiqai/voice-capture/internal/audio"
)

// State is the segmentation state of a session
type State int

const (
	StateIdle      State = iota // Waiting for speech, filling the pre-roll buffer
	StateTriggered              // Recording speech
	StateCompleted              // Finished normally, by silence, ceiling or end of stream
	StateAborted                // Cancelled; audio is discarded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTriggered:
		return "triggered"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further frames are accepted
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}

// StopReason records why a session reached its terminal state
type StopReason string

const (
	StopNone        StopReason = ""
	StopSilence     StopReason = "silence"
	StopCeiling     StopReason = "ceiling"
	StopEndOfStream StopReason = "end_of_stream"
	StopAborted     StopReason = "aborted"
)

// Session is the per-call segmentation state machine.
// It performs no I/O and is driven by a single goroutine.
type Session struct {
	state  State
	reason StopReason

	ring   *audio.RingBuffer
	voiced []audio.Frame

	silence      int
	silenceLimit int
	elapsed      int
	ceiling      int
	triggeredAt  int
}

// NewSession creates an idle session for one capture
func NewSession(cfg Config) *Session {
	return &Session{
		state:        StateIdle,
		ring:         audio.NewRingBuffer(cfg.PreRollFrames),
		silenceLimit: cfg.SilenceFrames,
		ceiling:      cfg.CeilingFrames(),
	}
}

// Process feeds one classified frame. Returns true once the session is terminal.
// Frames offered after that are ignored.
func (s *Session) Process(f audio.Frame, d audio.Decision) bool {
	if s.state.Terminal() {
		return true
	}

	// Frames dropped upstream still count toward the ceiling
	s.elapsed += 1 + f.Lost

	switch s.state {
	case StateIdle:
		if d == audio.Speech {
			s.state = StateTriggered
			s.triggeredAt = s.elapsed
			s.voiced = s.ring.DrainTo(make([]audio.Frame, 0, s.ring.Len()+s.silenceLimit+1))
			s.silence = 0
			s.voiced = append(s.voiced, f)
		} else {
			s.ring.Push(f)
		}

	case StateTriggered:
		s.voiced = append(s.voiced, f)
		if d == audio.Speech {
			s.silence = 0
		} else {
			s.silence++
			if s.silence > s.silenceLimit {
				s.complete(StopSilence)
			}
		}
	}

	if !s.state.Terminal() && s.elapsed >= s.ceiling {
		s.complete(StopCeiling)
	}
	return s.state.Terminal()
}

// Finish ends the session because the stream ended
func (s *Session) Finish() {
	if !s.state.Terminal() {
		s.complete(StopEndOfStream)
	}
}

// ForceComplete ends the session as if the ceiling had been reached
func (s *Session) ForceComplete() {
	if !s.state.Terminal() {
		s.complete(StopCeiling)
	}
}

// Abort discards the session
func (s *Session) Abort() {
	if s.state.Terminal() {
		return
	}
	s.state = StateAborted
	s.reason = StopAborted
	s.voiced = nil
	s.ring.DrainTo(nil)
}

func (s *Session) complete(reason StopReason) {
	s.state = StateCompleted
	s.reason = reason
}

// State returns the current state
func (s *Session) State() State {
	return s.state
}

// Reason returns why the session stopped
func (s *Session) Reason() StopReason {
	return s.reason
}

// Triggered reports whether speech onset was observed
func (s *Session) Triggered() bool {
	return len(s.voiced) > 0
}

// TriggerFrame returns the 1-based frame position of speech onset, or 0
func (s *Session) TriggerFrame() int {
	return s.triggeredAt
}

// Frames returns the accumulated frames, pre-roll included
func (s *Session) Frames() []audio.Frame {
	return s.voiced
}

// Elapsed returns the number of frame periods observed, lost frames included
func (s *Session) Elapsed() int {
	return s.elapsed
}

// PreRoll returns the number of frames currently held in the pre-roll buffer
func (s *Session) PreRoll() int {
	return s.ring.Len()
}
