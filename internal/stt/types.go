package stt

import (
	"context"
	"strings"
)

// Segment is one recognized stretch of speech
type Segment struct {
	// Text is the transcribed text
	Text string `json:"text"`

	// Start and End are offsets into the clip in seconds
	Start float64 `json:"start"`
	End   float64 `json:"end"`

	// Confidence is the confidence score (0.0 to 1.0) if available
	Confidence float64 `json:"confidence"`
}

// Transcript is the transcription of one clip
type Transcript struct {
	// Text joins every segment in order
	Text string `json:"text"`

	Segments  []Segment `json:"segments,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// Transcriber converts a saved clip into text
type Transcriber interface {
	// Transcribe transcribes the WAV file at path
	Transcribe(ctx context.Context, path string) (*Transcript, error)
}

// JoinSegments concatenates segment texts, skipping blanks
func JoinSegments(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		if text := strings.TrimSpace(s.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}
