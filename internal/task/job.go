package task

import (
	"github.com/cadenza-audio/cadenza-api/internal/domain"
	"github.com/google/uuid"
)

// Job is the in-memory work descriptor for one queued generation. It
// carries the resolved parameters so the worker can build the model request
// without re-reading them; all observable task state lives in the store.
type Job struct {
	TaskID        uuid.UUID
	Prompt        string
	Duration      float64
	GuidanceScale float64
	Temperature   float64

	// ModelID names a fine-tuned checkpoint the request asked for. The
	// worker fails such jobs explicitly; see the generation package.
	ModelID *uuid.UUID

	// ConditioningPath names melody audio the request asked to condition
	// on. The worker fails such jobs explicitly.
	ConditioningPath string
}

// NewJob builds the queue descriptor for a persisted task record.
func NewJob(t *domain.GenerationTask) Job {
	return Job{
		TaskID:           t.ID,
		Prompt:           t.Prompt,
		Duration:         t.Duration,
		GuidanceScale:    t.GuidanceScale,
		Temperature:      t.Temperature,
		ModelID:          t.ModelID,
		ConditioningPath: t.ConditioningPath,
	}
}
