package domain

import (
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of a knowledge job
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// KnowledgeJob tracks the ingestion of one source.
type KnowledgeJob struct {
	ID        string
	SourceID  string
	Source    *Source // populated when loaded for processing
	Status    JobStatus
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewKnowledgeJob creates a queued job for the given source
func NewKnowledgeJob(sourceID string) *KnowledgeJob {
	return &KnowledgeJob{
		SourceID: sourceID,
		Status:   JobStatusQueued,
	}
}

// IsTerminal reports whether the status ends a processing run
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransition reports whether a job may move from one status to another.
// Pipeline runs go queued -> processing -> completed|failed. Re-queueing is
// allowed from failed, and from processing for jobs abandoned mid-run.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusQueued:
		return to == JobStatusProcessing
	case JobStatusProcessing:
		return to == JobStatusCompleted || to == JobStatusFailed || to == JobStatusQueued
	case JobStatusFailed:
		return to == JobStatusQueued
	}
	return false
}

// ValidateKnowledgeJob validates a KnowledgeJob instance
func ValidateKnowledgeJob(j *KnowledgeJob) error {
	if j == nil {
		return fmt.Errorf("knowledge job cannot be nil")
	}

	if j.SourceID == "" {
		return fmt.Errorf("%w: job SourceID", ErrMissingRequiredField)
	}

	if !IsValidJobStatus(j.Status) {
		return fmt.Errorf("%w: %q", ErrInvalidJobStatus, j.Status)
	}

	return nil
}

// IsValidJobStatus checks if a JobStatus is valid
func IsValidJobStatus(s JobStatus) bool {
	switch s {
	case JobStatusQueued, JobStatusProcessing,
		JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}
