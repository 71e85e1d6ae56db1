package generation

import "context"

// Request carries everything the model needs for one generation call.
type Request struct {
	Prompt        string
	Duration      float64
	GuidanceScale float64
	Temperature   float64

	// CheckpointPath names fine-tuned weights to generate with. No generator
	// currently supports it; see ErrNotImplemented.
	CheckpointPath string

	// ConditioningPath names an audio file to condition the generation on.
	// No generator currently supports it; see ErrNotImplemented.
	ConditioningPath string
}

// Waveform is decoded PCM audio produced by a generator. Samples are
// interleaved across channels.
type Waveform struct {
	SampleRate int
	Channels   int
	Samples    []int
}

// DurationSeconds returns the waveform's play time.
func (w *Waveform) DurationSeconds() float64 {
	if w.SampleRate <= 0 || w.Channels <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate*w.Channels)
}

// Generator produces audio from a text prompt. Implementations own the
// model runtime (typically an external process holding the accelerator) and
// make no concurrency guarantees; the worker serializes calls.
//
// Generate blocks until the model finishes or ctx is done. A generator call
// is the run-to-completion unit of the scheduling layer: cancellation
// between calls is cooperative, an in-flight call is not interruptible from
// this layer.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Waveform, error)
}
