// Package gemini captions training chunks with Google's Gemini API.
//
// The model cannot hear the audio; it writes a plausible training label
// from the source track's title and the chunk's position. Calls retry
// transient API failures with exponential backoff and jitter, while
// permanent failures (blocked or empty responses) surface immediately so
// the caller can fall back to a static caption.
package gemini
