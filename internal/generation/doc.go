// Package generation defines the contract between the scheduling layer and
// the music model: the request parameters, the decoded waveform result, and
// the error vocabulary. Concrete generators live under internal/platform;
// the worker and tests depend only on this package.
package generation
