package database

import (
	"errors"
	"time"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []JobStatus{StatusQueued, StatusRunning, StatusSucceeded, StatusFailed, StatusCancelled}

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusCancelled
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

var (
	// ErrNotFound is returned when no job has the requested ID.
	ErrNotFound = errors.New("job not found")
	// ErrInvalidTransition is returned when a job is not in a state that
	// allows the requested update.
	ErrInvalidTransition = errors.New("invalid job state transition")
)

// Job is one transcode request and its outcome.
type Job struct {
	ID          string     `json:"id"`
	Source      string     `json:"source"`
	Destination string     `json:"destination"`
	Filter      string     `json:"filter"`
	Volume      float64    `json:"volume"`
	Status      JobStatus  `json:"status"`
	Progress    float64    `json:"progress"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
}

// ListOptions filters and pages ListJobs.
type ListOptions struct {
	// Status limits the result to one status when non-empty.
	Status JobStatus
	Limit  int
	Offset int
}
