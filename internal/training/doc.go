// Package training runs the fine-tuning pipeline: dataset preprocessing
// (slice source audio into chunks, caption each chunk, write a manifest)
// and the epoch loop that produces a model checkpoint.
//
// One controller guards both phases with a single in-progress flag, so at
// most one run of either kind is active. Cancellation is cooperative: Stop
// raises a flag the loops poll between files and between epochs, never
// mid-unit. Callers observe a run only through Status snapshots.
package training
