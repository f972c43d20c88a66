package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/zero-day-ai/itinerary/grading"
)

// Kinds of work item, matching the grading report kinds.
const (
	KindMeeting = grading.KindMeeting
	KindTrip    = grading.KindTrip
)

// WorkItem is one example submitted for grading.
type WorkItem struct {
	// JobID is a UUID that correlates all work items in a batch
	JobID string `json:"job_id"`

	// Index is the position of this item in the batch (0-based)
	Index int `json:"index"`

	// Total is the total number of items in the batch
	Total int `json:"total"`

	// Kind is KindMeeting or KindTrip
	Kind string `json:"kind"`

	// ExampleID is the dataset key of the example
	ExampleID string `json:"example_id"`

	// Example is the dataset entry serialized as JSON
	Example json.RawMessage `json:"example"`

	// TraceID is the trace of the submitting run, if any
	TraceID string `json:"trace_id,omitempty"`

	// SubmittedAt is the Unix timestamp in milliseconds when work was submitted
	SubmittedAt int64 `json:"submitted_at"`
}

// Result is the outcome of grading a WorkItem. It is published to the
// job's result channel.
type Result struct {
	// JobID correlates this result with the original work item
	JobID string `json:"job_id"`

	// Index is the position of this result in the batch
	Index int `json:"index"`

	// Grade is the verdict; zero if Error is set
	Grade grading.Grade `json:"grade"`

	// Error is the error message if grading failed
	Error string `json:"error,omitempty"`

	// WorkerID is the unique identifier of the worker that processed this item
	WorkerID string `json:"worker_id"`

	// StartedAt is the Unix timestamp in milliseconds when grading started
	StartedAt int64 `json:"started_at"`

	// CompletedAt is the Unix timestamp in milliseconds when grading completed
	CompletedAt int64 `json:"completed_at"`
}

// IsValid checks if the WorkItem has all required fields populated correctly.
func (w *WorkItem) IsValid() error {
	if w.JobID == "" {
		return fmt.Errorf("job_id is required")
	}
	if w.Index < 0 {
		return fmt.Errorf("index must be non-negative, got %d", w.Index)
	}
	if w.Total <= 0 {
		return fmt.Errorf("total must be positive, got %d", w.Total)
	}
	if w.Index >= w.Total {
		return fmt.Errorf("index %d is out of bounds for total %d", w.Index, w.Total)
	}
	if w.Kind != KindMeeting && w.Kind != KindTrip {
		return fmt.Errorf("unknown kind %q", w.Kind)
	}
	if len(w.Example) == 0 {
		return fmt.Errorf("example is required")
	}
	if w.SubmittedAt <= 0 {
		return fmt.Errorf("submitted_at must be positive, got %d", w.SubmittedAt)
	}
	return nil
}

// Age returns the duration since this work item was submitted.
func (w *WorkItem) Age() time.Duration {
	if w.SubmittedAt <= 0 {
		return 0
	}
	return time.Duration(time.Now().UnixMilli()-w.SubmittedAt) * time.Millisecond
}

// HasError returns true if grading failed.
func (r *Result) HasError() bool {
	return r.Error != ""
}

// Duration returns the wall-clock time the worker spent on this item.
func (r *Result) Duration() time.Duration {
	if r.StartedAt <= 0 || r.CompletedAt <= 0 {
		return 0
	}
	return time.Duration(r.CompletedAt-r.StartedAt) * time.Millisecond
}

// QueueName is the list holding work items of kind.
func QueueName(kind string) string {
	return formatKeyName("itinerary", kind, "queue")
}

// ResultChannel is the pub/sub channel carrying results of jobID.
func ResultChannel(jobID string) string {
	return formatKeyName("results", jobID)
}

func workersKey(kind string) string {
	return formatKeyName("itinerary", kind, "workers")
}

func healthKey(workerID string) string {
	return formatKeyName("itinerary", "worker", workerID, "health")
}
