package capture

import (
	"testing"
	"time"

	"github.com/lexiqai/voice-capture/internal/audio"
)

// frame tags a frame with its 1-based position in the stream
func frame(id int) audio.Frame {
	return audio.Frame{Samples: []int16{int16(id)}, SampleRate: 16000}
}

func frameIDs(frames []audio.Frame) []int {
	ids := make([]int, len(frames))
	for i, f := range frames {
		ids[i] = int(f.Samples[0])
	}
	return ids
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.OutputDir = ""
	return cfg
}

func TestSession_StartsIdle(t *testing.T) {
	s := NewSession(testConfig())
	if s.State() != StateIdle {
		t.Errorf("Expected idle, got %s", s.State())
	}
	if s.Triggered() {
		t.Error("Expected session not to be triggered")
	}
}

func TestSession_RingBufferBound(t *testing.T) {
	cfg := testConfig()
	s := NewSession(cfg)

	for i := 1; i <= 40; i++ {
		s.Process(frame(i), audio.Silence)
	}

	if s.PreRoll() != cfg.PreRollFrames {
		t.Errorf("Expected %d buffered frames, got %d", cfg.PreRollFrames, s.PreRoll())
	}

	// Trigger to observe what the buffer held
	s.Process(frame(41), audio.Speech)
	ids := frameIDs(s.Frames())
	for i := 0; i < 15; i++ {
		if ids[i] != 26+i {
			t.Fatalf("Expected frames 26..40 before trigger, got %v", ids)
		}
	}
}

func TestSession_PreRollPreservation(t *testing.T) {
	cfg := testConfig()
	cfg.PreRollFrames = 3
	s := NewSession(cfg)

	s.Process(frame(1), audio.Silence)
	s.Process(frame(2), audio.Silence)
	s.Process(frame(3), audio.Silence)
	s.Process(frame(4), audio.Speech)

	if s.State() != StateTriggered {
		t.Fatalf("Expected triggered, got %s", s.State())
	}
	ids := frameIDs(s.Frames())
	want := []int{1, 2, 3, 4}
	if len(ids) != len(want) {
		t.Fatalf("Expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("Expected %v, got %v", want, ids)
			break
		}
	}
	if s.PreRoll() != 0 {
		t.Errorf("Expected ring buffer to be drained, got %d", s.PreRoll())
	}
	if s.TriggerFrame() != 4 {
		t.Errorf("Expected trigger at frame 4, got %d", s.TriggerFrame())
	}
}

func TestSession_SilenceStopThreshold(t *testing.T) {
	cfg := testConfig()
	s := NewSession(cfg)
	s.Process(frame(1), audio.Speech)

	// K silent frames do not stop the session
	for i := 0; i < cfg.SilenceFrames; i++ {
		if s.Process(frame(2+i), audio.Silence) {
			t.Fatalf("Session stopped after %d silent frames", i+1)
		}
	}
	if s.silence != cfg.SilenceFrames {
		t.Errorf("Expected silence counter %d, got %d", cfg.SilenceFrames, s.silence)
	}

	// One voiced frame resets the counter
	if s.Process(frame(17), audio.Speech) {
		t.Fatal("Session stopped on a voiced frame")
	}
	if s.silence != 0 {
		t.Errorf("Expected silence counter reset, got %d", s.silence)
	}

	// K+1 consecutive silent frames stop it
	for i := 0; i < cfg.SilenceFrames; i++ {
		if s.Process(frame(18+i), audio.Silence) {
			t.Fatalf("Session stopped early after %d silent frames", i+1)
		}
	}
	if !s.Process(frame(33), audio.Silence) {
		t.Fatal("Expected session to stop on silent frame K+1")
	}
	if s.State() != StateCompleted {
		t.Errorf("Expected completed, got %s", s.State())
	}
	if s.Reason() != StopSilence {
		t.Errorf("Expected silence stop, got %s", s.Reason())
	}
	if len(s.Frames()) != 33 {
		t.Errorf("Expected trailing silence to be kept, got %d frames", len(s.Frames()))
	}
}

func TestSession_CeilingEnforcement(t *testing.T) {
	cfg := testConfig()
	s := NewSession(cfg)

	n := 0
	for !s.Process(frame(n+1), audio.Speech) {
		n++
		if n > 10000 {
			t.Fatal("Session never stopped")
		}
	}
	n++

	recorded := time.Duration(n) * cfg.FrameDuration
	if recorded < cfg.MaxRecord {
		t.Errorf("Stopped before the ceiling: %v", recorded)
	}
	if recorded-cfg.FrameDuration >= cfg.MaxRecord {
		t.Errorf("Stopped more than one frame after the ceiling: %v", recorded)
	}
	if s.Reason() != StopCeiling {
		t.Errorf("Expected ceiling stop, got %s", s.Reason())
	}
}

func TestSession_LostFramesCountTowardCeiling(t *testing.T) {
	cfg := testConfig()
	s := NewSession(cfg)

	// 334 frame periods: 34 delivered frames each preceded by 9 dropped ones
	stopped := 0
	for i := 1; i <= 40; i++ {
		f := frame(i)
		f.Lost = 9
		if s.Process(f, audio.Speech) {
			stopped = i
			break
		}
	}

	if stopped != 34 {
		t.Errorf("Expected stop at delivered frame 34, got %d", stopped)
	}
	if s.Elapsed() != 340 {
		t.Errorf("Expected 340 elapsed frame periods, got %d", s.Elapsed())
	}
}

func TestSession_NoSpeech(t *testing.T) {
	cfg := testConfig()
	s := NewSession(cfg)

	ceiling := cfg.CeilingFrames()
	for i := 1; i <= ceiling; i++ {
		done := s.Process(frame(i), audio.Silence)
		if done != (i == ceiling) {
			t.Fatalf("Frame %d: unexpected done=%v", i, done)
		}
	}

	if s.Triggered() {
		t.Error("Expected no trigger")
	}
	if s.PreRoll() != cfg.PreRollFrames {
		t.Errorf("Expected ring buffer to stay full, got %d", s.PreRoll())
	}
	if _, err := Assemble(s, cfg); err != ErrNoSpeechDetected {
		t.Errorf("Expected ErrNoSpeechDetected, got %v", err)
	}
}

func TestSession_EndToEndSegmentation(t *testing.T) {
	cfg := testConfig()
	s := NewSession(cfg)

	var decisions []audio.Decision
	for i := 0; i < 5; i++ {
		decisions = append(decisions, audio.Silence)
	}
	for i := 0; i < 40; i++ {
		decisions = append(decisions, audio.Speech)
	}
	for i := 0; i < 20; i++ {
		decisions = append(decisions, audio.Silence)
	}

	stoppedAt := 0
	for i, d := range decisions {
		if s.Process(frame(i+1), d) {
			stoppedAt = i + 1
			break
		}
	}

	if s.TriggerFrame() != 6 {
		t.Errorf("Expected trigger at frame 6, got %d", s.TriggerFrame())
	}
	// The 16th consecutive silent frame follows frame 45
	if stoppedAt != 61 {
		t.Errorf("Expected stop at frame 61, got %d", stoppedAt)
	}
	if len(s.Frames()) != 61 {
		t.Errorf("Expected 61 accumulated frames, got %d", len(s.Frames()))
	}
}

func TestSession_Abort(t *testing.T) {
	s := NewSession(testConfig())
	s.Process(frame(1), audio.Speech)
	s.Abort()

	if s.State() != StateAborted {
		t.Errorf("Expected aborted, got %s", s.State())
	}
	if len(s.Frames()) != 0 {
		t.Error("Expected audio to be discarded")
	}
	if !s.Process(frame(2), audio.Speech) {
		t.Error("Expected terminal session to report done")
	}
	if s.Elapsed() != 1 {
		t.Errorf("Expected frames after abort to be ignored, got elapsed %d", s.Elapsed())
	}

	s.Finish()
	if s.State() != StateAborted {
		t.Error("Expected Finish not to override abort")
	}
}

func TestSession_FinishWhileIdle(t *testing.T) {
	s := NewSession(testConfig())
	s.Process(frame(1), audio.Silence)
	s.Finish()

	if s.State() != StateCompleted {
		t.Errorf("Expected completed, got %s", s.State())
	}
	if s.Reason() != StopEndOfStream {
		t.Errorf("Expected end of stream, got %s", s.Reason())
	}
	if s.Triggered() {
		t.Error("Expected no trigger")
	}
}

func TestSession_ForceComplete(t *testing.T) {
	s := NewSession(testConfig())
	s.Process(frame(1), audio.Speech)
	s.ForceComplete()

	if s.State() != StateCompleted || s.Reason() != StopCeiling {
		t.Errorf("Expected completed at ceiling, got %s/%s", s.State(), s.Reason())
	}
}

func TestState_String(t *testing.T) {
	if StateTriggered.String() != "triggered" {
		t.Errorf("Expected triggered, got %s", StateTriggered.String())
	}
	if StateIdle.Terminal() || StateTriggered.Terminal() {
		t.Error("Expected idle and triggered to be non-terminal")
	}
	if !StateCompleted.Terminal() || !StateAborted.Terminal() {
		t.Error("Expected completed and aborted to be terminal")
	}
}
