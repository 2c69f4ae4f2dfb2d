package capture

import (
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/lexiqai/voice-capture/internal/audio"
)

const (
	clipBitDepth    = 16
	wavFormatPCM    = 1
	clipFilePattern = "utterance-*.wav"
)

// Clip is one accepted utterance
type Clip struct {
	Samples    []int16
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration

	// Frames is the number of frames the clip was assembled from
	Frames int

	// Reason is why recording stopped
	Reason StopReason

	// Path is set once the clip has been saved
	Path string
}

// Assemble turns a terminal session into a clip, or the error describing why there is none.
func Assemble(s *Session, cfg Config) (*Clip, error) {
	switch {
	case s.State() == StateAborted:
		return nil, ErrCaptureAborted
	case !s.State().Terminal():
		return nil, fmt.Errorf("session is still %s", s.State())
	case !s.Triggered():
		return nil, ErrNoSpeechDetected
	}

	frames := s.Frames()
	n := 0
	for _, f := range frames {
		n += len(f.Samples)
	}
	samples := make([]int16, 0, n)
	for _, f := range frames {
		samples = append(samples, f.Samples...)
	}

	duration := time.Duration(len(samples)) * time.Second / time.Duration(cfg.SampleRate)
	if duration < cfg.MinClip {
		return nil, fmt.Errorf("%w: clip of %v is shorter than %v", ErrNoValidSpeech, duration, cfg.MinClip)
	}

	return &Clip{
		Samples:    samples,
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
		BitDepth:   clipBitDepth,
		Duration:   duration,
		Frames:     len(frames),
		Reason:     s.Reason(),
	}, nil
}

// WriteWAV encodes the clip as a PCM WAV stream
func (c *Clip) WriteWAV(w io.WriteSeeker) error {
	enc := wav.NewEncoder(w, c.SampleRate, c.BitDepth, c.Channels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: c.Channels,
			SampleRate:  c.SampleRate,
		},
		Data:           audio.SamplesToInts(c.Samples),
		SourceBitDepth: c.BitDepth,
	}

	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to encode clip: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize clip: %w", err)
	}
	return nil
}

// Save writes the clip to a new uniquely named file in dir and records its path.
// An empty dir means the OS temp directory.
func (c *Clip) Save(dir string) (string, error) {
	f, err := os.CreateTemp(dir, clipFilePattern)
	if err != nil {
		return "", fmt.Errorf("failed to create clip file: %w", err)
	}

	if err := c.WriteWAV(f); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close clip file: %w", err)
	}

	c.Path = f.Name()
	return c.Path, nil
}

// Remove deletes the saved clip file, if any
func (c *Clip) Remove() error {
	if c.Path == "" {
		return nil
	}
	if err := os.Remove(c.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove clip: %w", err)
	}
	c.Path = ""
	return nil
}

// LoadClip reads a clip previously written by Save
func LoadClip(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open clip: %w", err)
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to decode clip: %w", err)
	}

	samples := audio.IntsToSamples(buf.Data)
	rate := int(d.SampleRate)
	return &Clip{
		Samples:    samples,
		SampleRate: rate,
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
		Duration:   time.Duration(len(samples)) * time.Second / time.Duration(rate),
		Path:       path,
	}, nil
}
