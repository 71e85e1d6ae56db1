package audio

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/wav"
)

// Analysis summarizes the PCM content of a track.
type Analysis struct {
	Duration         float64 `json:"duration"`
	SampleRate       int     `json:"sample_rate"`
	Channels         int     `json:"channels"`
	Peak             float64 `json:"peak"`
	RMSEnergy        float64 `json:"rms_energy"`
	ZeroCrossingRate float64 `json:"zero_crossing_rate"`
}

// Analyze decodes a WAV file and computes its summary statistics. Peak and
// RMS are normalized to [0,1] against the file's bit depth; the zero
// crossing rate is per frame over the mono mix.
func Analyze(path string) (*Analysis, error) {
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
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("wav has no usable format information: %s", path)
	}

	channels := buf.Format.NumChannels
	rate := buf.Format.SampleRate
	frames := len(buf.Data) / channels
	if frames == 0 {
		return nil, fmt.Errorf("wav contains no audio frames: %s", path)
	}

	fullScale := fullScaleFor(buf.SourceBitDepth)

	var peak, sumSquares float64
	for _, s := range buf.Data {
		v := math.Abs(float64(s))
		if v > peak {
			peak = v
		}
		sumSquares += float64(s) * float64(s)
	}

	mono := monoMix(buf.Data, channels)
	crossings := 0
	for i := 1; i < len(mono); i++ {
		if (mono[i-1] >= 0) != (mono[i] >= 0) {
			crossings++
		}
	}
	zcr := 0.0
	if len(mono) > 1 {
		zcr = float64(crossings) / float64(len(mono)-1)
	}

	return &Analysis{
		Duration:         float64(frames) / float64(rate),
		SampleRate:       rate,
		Channels:         channels,
		Peak:             peak / fullScale,
		RMSEnergy:        math.Sqrt(sumSquares/float64(len(buf.Data))) / fullScale,
		ZeroCrossingRate: zcr,
	}, nil
}

// Envelope decodes a WAV file and returns the normalized peak amplitude of
// the mono mix in the requested number of equal time buckets, suitable for
// waveform displays.
func Envelope(path string, buckets int) ([]float64, error) {
	if buckets <= 0 {
		return nil, fmt.Errorf("buckets must be positive, got %d", buckets)
	}

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
	if buf.Format == nil || buf.Format.NumChannels <= 0 {
		return nil, fmt.Errorf("wav has no usable format information: %s", path)
	}

	mono := monoMix(buf.Data, buf.Format.NumChannels)
	if len(mono) == 0 {
		return nil, fmt.Errorf("wav contains no audio frames: %s", path)
	}

	fullScale := fullScaleFor(buf.SourceBitDepth)
	envelope := make([]float64, buckets)
	for i := range envelope {
		start := i * len(mono) / buckets
		end := (i + 1) * len(mono) / buckets
		var peak float64
		for _, v := range mono[start:end] {
			if a := math.Abs(v); a > peak {
				peak = a
			}
		}
		envelope[i] = peak / fullScale
	}
	return envelope, nil
}

// monoMix averages interleaved samples down to one channel.
func monoMix(samples []int, channels int) []float64 {
	if channels <= 1 {
		mono := make([]float64, len(samples))
		for i, s := range samples {
			mono[i] = float64(s)
		}
		return mono
	}
	frames := len(samples) / channels
	mono := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(samples[i*channels+c])
		}
		mono[i] = sum / float64(channels)
	}
	return mono
}

// fullScaleFor returns the absolute full-scale value for a bit depth,
// defaulting to 16-bit when the decoder reports none.
func fullScaleFor(bitDepth int) float64 {
	if bitDepth <= 0 {
		bitDepth = 16
	}
	return math.Pow(2, float64(bitDepth-1))
}
