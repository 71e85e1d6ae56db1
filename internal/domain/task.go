package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the lifecycle state of a generation task.
type TaskStatus string

// Possible task status values. Completed and failed are terminal; a task
// never leaves either.
const (
	TaskStatusQueued     TaskStatus = "queued"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// IsTerminal reports whether the status permits no further transitions.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// Common validation errors for GenerationTask.
var (
	ErrEmptyTaskID        = errors.New("task ID cannot be empty")
	ErrEmptyPrompt        = errors.New("prompt cannot be empty")
	ErrInvalidDuration    = errors.New("duration must be positive")
	ErrInvalidTaskStatus  = errors.New("invalid task status")
	ErrProgressOutOfRange = errors.New("progress must be between 0 and 1")
	ErrTaskFinalized      = errors.New("task is in a terminal status")
)

// GenerationTask is one music generation request and its lifecycle record.
// Created queued by the submission path, mutated only by the worker while
// processing, readable by any caller at any time.
type GenerationTask struct {
	ID            uuid.UUID  `json:"id"`
	Prompt        string     `json:"prompt"`
	Status        TaskStatus `json:"status"`
	Progress      float64    `json:"progress"`
	Duration      float64    `json:"duration"`
	GuidanceScale float64    `json:"guidance_scale"`
	Temperature   float64    `json:"temperature"`

	// ModelID optionally references a fine-tuned checkpoint to generate with.
	ModelID *uuid.UUID `json:"model_id,omitempty"`

	// ConditioningPath optionally points at an audio file to condition on.
	ConditioningPath string `json:"conditioning_path,omitempty"`

	// FilePath is set only when the task completes.
	FilePath     string     `json:"file_path,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// NewGenerationTask creates a queued task for the given prompt and
// parameters. It assigns a fresh UUID and the creation timestamp.
// Returns an error if validation fails.
func NewGenerationTask(prompt string, duration, guidanceScale, temperature float64) (*GenerationTask, error) {
	task := &GenerationTask{
		ID:            uuid.New(),
		Prompt:        prompt,
		Status:        TaskStatusQueued,
		Progress:      0,
		Duration:      duration,
		GuidanceScale: guidanceScale,
		Temperature:   temperature,
		CreatedAt:     time.Now().UTC(),
	}

	if err := task.Validate(); err != nil {
		return nil, err
	}

	return task, nil
}

// Validate checks the task's fields against the entity rules.
func (t *GenerationTask) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}
	if t.Prompt == "" {
		return ErrEmptyPrompt
	}
	if t.Duration <= 0 {
		return ErrInvalidDuration
	}
	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskStatus
	}
	if t.Progress < 0 || t.Progress > 1 {
		return ErrProgressOutOfRange
	}
	return nil
}

// MarkProcessing moves the task into processing at the given progress.
// Fails if the task already reached a terminal status.
func (t *GenerationTask) MarkProcessing(progress float64) error {
	if t.Status.IsTerminal() {
		return ErrTaskFinalized
	}
	if progress < 0 || progress > 1 {
		return ErrProgressOutOfRange
	}
	t.Status = TaskStatusProcessing
	t.Progress = progress
	return nil
}

// MarkCompleted finalizes the task as completed: progress 1.0, output path
// recorded, completion timestamp set.
func (t *GenerationTask) MarkCompleted(filePath string) error {
	if t.Status.IsTerminal() {
		return ErrTaskFinalized
	}
	now := time.Now().UTC()
	t.Status = TaskStatusCompleted
	t.Progress = 1.0
	t.FilePath = filePath
	t.ErrorMessage = ""
	t.CompletedAt = &now
	return nil
}

// MarkFailed finalizes the task as failed: progress reset to 0, error
// message recorded, completion timestamp set. No file path is ever kept on
// a failed task.
func (t *GenerationTask) MarkFailed(message string) error {
	if t.Status.IsTerminal() {
		return ErrTaskFinalized
	}
	now := time.Now().UTC()
	t.Status = TaskStatusFailed
	t.Progress = 0
	t.FilePath = ""
	t.ErrorMessage = message
	t.CompletedAt = &now
	return nil
}

func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusQueued, TaskStatusProcessing, TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}
