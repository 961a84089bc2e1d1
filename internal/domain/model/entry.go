package model

import (
	"time"
)

type EntryStatus string

const (
	EntryStatusUploaded   EntryStatus = "uploaded"
	EntryStatusInQueue    EntryStatus = "in_queue"
	EntryStatusProcessing EntryStatus = "processing"
	EntryStatusCompleted  EntryStatus = "completed"
	EntryStatusFailed     EntryStatus = "failed"
	EntryStatusDeleted    EntryStatus = "deleted"
)

// Terminal reports whether no further status transitions are expected.
func (s EntryStatus) Terminal() bool {
	return s == EntryStatusCompleted || s == EntryStatusFailed
}

// Active reports whether the entry occupies a queue or worker slot.
func (s EntryStatus) Active() bool {
	return s == EntryStatusInQueue || s == EntryStatusProcessing
}

// Progress carries fine-grained render progress pushed by workers.
type Progress struct {
	Percentage          int    `json:"percentage"`
	CompletedNodes      int    `json:"completed_nodes"`
	TotalNodes          int    `json:"total_nodes"`
	CurrentNode         string `json:"current_node"`
	CurrentNodeProgress int    `json:"current_node_progress"`
}

// Entry is one user-submitted generation request and its lifecycle state.
//
// Workflow-selection fields are captured at submission time and never change,
// so a retry can reconstruct an equivalent job without asking the user to
// resubmit.
type Entry struct {
	ID      string
	OwnerID string
	Status  EntryStatus
	Route   Route

	ProcessingStartedAt *time.Time
	FinalVideoURL       string

	ProgressPercentage *int
	ProgressDetails    *Progress

	WorkflowID      string
	IterationSteps  int
	VideoDuration   int
	VideoResolution string
	LoraWeights     string
	Seed            int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClearProgress drops push-reported progress, used on terminal transitions.
func (e *Entry) ClearProgress() {
	e.ProgressPercentage = nil
	e.ProgressDetails = nil
}

// QueueStats is a by-status count of the local queue.
type QueueStats struct {
	InQueue    int `json:"in_queue"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Depth is the number of jobs the local pool has yet to finish.
func (s QueueStats) Depth() int { return s.InQueue + s.Processing }
