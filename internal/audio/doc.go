// Package audio holds the post-processing toolkit around generated tracks:
// WAV encode/decode for model waveforms, PCM analysis, and adapters over the
// external tools (ffmpeg for export, probing, and dataset slicing; demucs
// for stem separation). External processes run through a Runner seam so
// tests never shell out.
package audio
