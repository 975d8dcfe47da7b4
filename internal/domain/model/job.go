package model

import (
	"encoding/json"
	"fmt"
	"time"
)

type JobType string

const (
	JobTypeLLMInfer JobType = "LLM_INFER"
	JobTypeTask     JobType = "TASK"
)

type TaskType string

const (
	TaskSummarize   TaskType = "summarize"
	TaskClassify    TaskType = "classify"
	TaskExtractJSON TaskType = "extract_json"
)

type Policy string

const (
	PolicyFast  Policy = "FAST"
	PolicyCheap Policy = "CHEAP"
	PolicyAuto  Policy = "AUTO"
)

type PrivacyClass string

const (
	PrivacyPublic  PrivacyClass = "PUBLIC"
	PrivacyPrivate PrivacyClass = "PRIVATE"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusAssigned  JobStatus = "assigned"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further transition may leave s.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// JobPayload is the tagged union carried by a job, discriminated by
// the job_type field. Exactly one of LLM/Task is set.
type JobPayload struct {
	JobType JobType `json:"job_type"`

	// LLM_INFER
	Prompt    string `json:"prompt,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`

	// TASK
	TaskType TaskType `json:"task_type,omitempty"`
	Input    string   `json:"input,omitempty"`
}

// Validate checks the payload against its discriminator.
func (p JobPayload) Validate() error {
	switch p.JobType {
	case JobTypeLLMInfer:
		if p.Prompt == "" {
			return fmt.Errorf("llm payload: empty prompt")
		}
		if p.MaxTokens < 0 {
			return fmt.Errorf("llm payload: negative max_tokens")
		}
	case JobTypeTask:
		switch p.TaskType {
		case TaskSummarize, TaskClassify, TaskExtractJSON:
		default:
			return fmt.Errorf("task payload: unknown task_type %q", p.TaskType)
		}
		if p.Input == "" {
			return fmt.Errorf("task payload: empty input")
		}
	default:
		return fmt.Errorf("payload: unknown job_type %q", p.JobType)
	}
	return nil
}

type Job struct {
	ID           string
	Type         JobType
	Policy       Policy // FAST or CHEAP after AUTO resolution
	PrivacyClass PrivacyClass
	RequesterID  string
	Status       JobStatus
	Payload      JobPayload
	Result       json.RawMessage // opaque worker output
	WorkerPubkey string          // empty while unassigned
	FailReason   string
	AssignedAt   time.Time
	StartedAt    time.Time
	CreatedAt    time.Time
	CompletedAt  time.Time
	Archived     bool
}

// Assigned reports whether a worker currently holds this job.
func (j *Job) Assigned() bool {
	return j.WorkerPubkey != "" && !j.Status.Terminal()
}

// CanTransition enforces the monotonic lifecycle
// PENDING → ASSIGNED → RUNNING → {COMPLETED, FAILED}, with the one
// backward edge ASSIGNED → PENDING used when an assignment is revoked.
func (j *Job) CanTransition(to JobStatus) bool {
	from := j.Status
	switch to {
	case JobStatusPending:
		return from == JobStatusAssigned
	case JobStatusAssigned:
		return from == JobStatusPending
	case JobStatusRunning:
		return from == JobStatusAssigned
	case JobStatusCompleted:
		return from == JobStatusRunning
	case JobStatusFailed:
		return !from.Terminal()
	}
	return false
}
