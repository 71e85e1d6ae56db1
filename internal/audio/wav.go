package audio

import (
	"fmt"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/cadenza-audio/cadenza-api/internal/generation"
)

// wavBitDepth is the depth generated tracks are written at.
const wavBitDepth = 16

// WriteWAV encodes the waveform as 16-bit PCM WAV at path. The file is
// written to a temp name in the same directory and renamed into place, so a
// crash mid-write never leaves a half-written track behind.
func WriteWAV(path string, w *generation.Waveform) error {
	if w == nil || len(w.Samples) == 0 {
		return fmt.Errorf("waveform is empty")
	}
	if w.SampleRate <= 0 || w.Channels <= 0 {
		return fmt.Errorf("waveform has invalid format: rate=%d channels=%d", w.SampleRate, w.Channels)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".wav-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	enc := wav.NewEncoder(tmp, w.SampleRate, wavBitDepth, w.Channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: w.Channels, SampleRate: w.SampleRate},
		Data:           w.Samples,
		SourceBitDepth: wavBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("encoding wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("finalizing wav: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("moving wav into place: %w", err)
	}
	return nil
}

// ReadWAV decodes a WAV file into a waveform.
func ReadWAV(path string) (*generation.Waveform, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening wav: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a valid wav file: %s", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding wav: %w", err)
	}
	if buf.Format == nil {
		return nil, fmt.Errorf("wav has no format information: %s", path)
	}

	return &generation.Waveform{
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		Samples:    buf.Data,
	}, nil
}
