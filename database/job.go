package database

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// JobStatus represents the status of a conversion job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Finished reports whether the job has reached a terminal status
func (s JobStatus) Finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job is one conversion submitted to the service
type Job struct {
	ID           ulid.ULID  `json:"id"`
	SourceName   string     `json:"sourceName"`
	SourceFormat string     `json:"sourceFormat"`
	TargetFormat string     `json:"targetFormat"`
	Status       JobStatus  `json:"status"`
	Progress     int        `json:"progress"`    // 0-100
	CurrentStep  string     `json:"currentStep"` // Human-readable current step
	Message      string     `json:"message"`
	Error        string     `json:"error,omitempty"`
	ErrorKind    string     `json:"errorKind,omitempty"` // unsupported, library, decode, render, encode
	ResultName   string     `json:"resultName,omitempty"`
	ResultMIME   string     `json:"resultMime,omitempty"`
	ResultKey    string     `json:"-"` // location in the result store
	ResultSize   int64      `json:"resultSize,omitempty"`
	Fallback     string     `json:"fallback,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// JobResult describes the stored output of a completed job
type JobResult struct {
	Name     string
	MIMEType string
	Key      string
	Size     int64
	Fallback string
}
