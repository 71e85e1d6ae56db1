// Package musicgen adapts an external MusicGen command line runtime to the
// generation.Generator interface. The model process owns the accelerator;
// this package only builds its invocation, waits for it, and decodes the
// WAV file it writes.
package musicgen
