package capture

import "errors"

var (
	// ErrDeviceFailure means the audio input could not be opened or failed mid-capture.
	// It is fatal for the call and wraps the underlying cause.
	ErrDeviceFailure = errors.New("audio device failure")

	// ErrNoSpeechDetected means the capture ended without ever hearing speech
	ErrNoSpeechDetected = errors.New("no speech detected")

	// ErrCaptureAborted means the capture was cancelled and its audio discarded
	ErrCaptureAborted = errors.New("capture aborted")

	// ErrNoValidSpeech means speech was heard but the clip was shorter than the minimum
	ErrNoValidSpeech = errors.New("no valid speech")
)

// IsRetryable reports whether the caller may simply capture again
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNoSpeechDetected) ||
		errors.Is(err, ErrCaptureAborted) ||
		errors.Is(err, ErrNoValidSpeech)
}
