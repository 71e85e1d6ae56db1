// Package task schedules music generation jobs.
//
// Submission appends a job descriptor to an unbounded in-memory FIFO and
// returns immediately; a single worker goroutine drains the queue and runs
// one generation at a time, persisting progress checkpoints to the task
// store as it goes. The queue lives only in process memory: on restart the
// backlog is gone while the persisted records remain, which the startup
// path surfaces as a warning rather than attempting recovery.
package task
