package training

import "sync"

// State is the training pipeline's lifecycle state.
type State string

// Pipeline states. Completed and Failed describe the most recent training
// run; dataset preprocessing returns to Idle when it finishes.
const (
	StateIdle              State = "idle"
	StateProcessingDataset State = "processing_dataset"
	StateTraining          State = "training"
	StateCompleted         State = "completed"
	StateFailed            State = "failed"
)

// Status is a point-in-time snapshot of the pipeline. Loss is only set
// while a training run has completed at least one epoch.
type Status struct {
	State       State    `json:"status"`
	Progress    float64  `json:"progress"`
	Epoch       int      `json:"epoch"`
	TotalEpochs int      `json:"total_epochs"`
	Loss        *float64 `json:"loss,omitempty"`
	Message     string   `json:"message"`
}

// statusBoard owns the single mutable status record. All writes go through
// update and all reads return a copy, so callers never observe a torn
// record.
type statusBoard struct {
	mu  sync.Mutex
	cur Status
}

func newStatusBoard() *statusBoard {
	return &statusBoard{cur: Status{State: StateIdle, Message: "Ready"}}
}

// snapshot returns a copy of the current status.
func (b *statusBoard) snapshot() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := b.cur
	if b.cur.Loss != nil {
		loss := *b.cur.Loss
		snap.Loss = &loss
	}
	return snap
}

// update applies fn to the status under the lock.
func (b *statusBoard) update(fn func(*Status)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(&b.cur)
}
