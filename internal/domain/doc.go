// Package domain contains the core entities of the system: generation tasks,
// model checkpoints, and their lifecycle rules. It has no knowledge of
// storage, transport, or the model runtime.
package domain
