package handlers

import (
	"time"

	"github.com/cloo-solutions/otter/internal/domain"
)

const timeFormat = time.RFC3339

type SourceResponse struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	FileName  string `json:"file_name"`
	MediaType string `json:"media_type"`
	CreatedAt string `json:"created_at"`
}

type JobResponse struct {
	ID        string          `json:"id"`
	SourceID  string          `json:"source_id"`
	Status    string          `json:"status"`
	Error     string          `json:"error,omitempty"`
	Source    *SourceResponse `json:"source,omitempty"`
	CreatedAt string          `json:"created_at"`
	UpdatedAt string          `json:"updated_at"`
}

type ChunkResponse struct {
	ChunkID         string  `json:"chunk_id"`
	KnowledgeItemID string  `json:"knowledge_item_id"`
	Text            string  `json:"text"`
	Score           float64 `json:"score"`
}

func sourceToResponse(s *domain.Source) *SourceResponse {
	if s == nil {
		return nil
	}
	return &SourceResponse{
		ID:        s.ID,
		Kind:      string(s.Kind),
		FileName:  s.FileName,
		MediaType: s.MediaType,
		CreatedAt: s.CreatedAt.UTC().Format(timeFormat),
	}
}

func jobToResponse(j *domain.KnowledgeJob) *JobResponse {
	return &JobResponse{
		ID:        j.ID,
		SourceID:  j.SourceID,
		Status:    string(j.Status),
		Error:     j.Error,
		Source:    sourceToResponse(j.Source),
		CreatedAt: j.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt: j.UpdatedAt.UTC().Format(timeFormat),
	}
}
