package training

import "errors"

var (
	// ErrAlreadyInProgress is returned when a run is requested while
	// another (of either kind) is active.
	ErrAlreadyInProgress = errors.New("a training run is already in progress")

	// ErrDatasetNotReady is returned when training starts without a
	// dataset manifest from a prior preprocessing run.
	ErrDatasetNotReady = errors.New("dataset is not ready, run dataset processing first")

	// ErrNoInputFiles is returned when the dataset directory holds no
	// audio files to process.
	ErrNoInputFiles = errors.New("no audio files found in dataset directory")
)
