package domain

import (
	"fmt"
	"time"
)

// Chunk is a contiguous slice of a document's text. IDs are assigned by the
// chunker so embeddings can reference them before anything is stored.
type Chunk struct {
	ID              string
	KnowledgeItemID string
	Position        int
	Text            string
}

// EmbeddedChunk pairs a chunk with its vector and the tokens it consumed.
type EmbeddedChunk struct {
	Chunk
	Vector     []float32
	TokenCount int
}

// Embedding is the stored vector for exactly one chunk.
type Embedding struct {
	ID         string
	ChunkID    string
	Vector     []float32
	TokenCount int
	CreatedAt  time.Time
}

// EmbeddingResult is what a provider returns for a single text.
type EmbeddingResult struct {
	Vector     []float32
	TokenCount int
}

// KnowledgeItem is the persisted outcome of a successful ingestion run.
type KnowledgeItem struct {
	ID                string
	SourceID          string
	KnowledgeJobID    *string
	ChunksCount       int
	ChunkSize         int
	ChunkOverlap      int
	Splitter          string
	EmbeddingModel    string
	EmbeddingProvider string
	TotalTokens       int
	CreatedAt         time.Time
}

// ScoredChunk is a retrieval hit. Score is the raw cosine distance, so lower
// is more similar.
type ScoredChunk struct {
	ChunkID         string
	KnowledgeItemID string
	Text            string
	Score           float64
}

// CorpusModel identifies the embedding model a stored corpus was built with.
type CorpusModel struct {
	Model    string
	Provider string
}

// ParsedJob is a job together with the extracted document text.
type ParsedJob struct {
	Job  *KnowledgeJob
	Text string
}

// ChunkedJob carries the chunks of a parsed job and the parameters used.
type ChunkedJob struct {
	Job          *KnowledgeJob
	Chunks       []Chunk
	ChunkSize    int
	ChunkOverlap int
	Splitter     string
}

// EmbeddedJob carries everything needed to persist a knowledge item.
type EmbeddedJob struct {
	Job               *KnowledgeJob
	Chunks            []EmbeddedChunk
	ChunkSize         int
	ChunkOverlap      int
	Splitter          string
	EmbeddingModel    string
	EmbeddingProvider string
	TotalTokens       int
}

// NewKnowledgeItem builds the item row for an embedded job
func NewKnowledgeItem(ej *EmbeddedJob) *KnowledgeItem {
	jobID := ej.Job.ID
	return &KnowledgeItem{
		SourceID:          ej.Job.SourceID,
		KnowledgeJobID:    &jobID,
		ChunksCount:       len(ej.Chunks),
		ChunkSize:         ej.ChunkSize,
		ChunkOverlap:      ej.ChunkOverlap,
		Splitter:          ej.Splitter,
		EmbeddingModel:    ej.EmbeddingModel,
		EmbeddingProvider: ej.EmbeddingProvider,
		TotalTokens:       ej.TotalTokens,
	}
}

// ValidateEmbeddedJob checks that an embedded job is complete enough to store
func ValidateEmbeddedJob(ej *EmbeddedJob) error {
	if ej == nil || ej.Job == nil {
		return fmt.Errorf("embedded job cannot be nil")
	}

	if ej.Job.SourceID == "" {
		return fmt.Errorf("%w: job SourceID", ErrMissingRequiredField)
	}

	if ej.EmbeddingModel == "" || ej.EmbeddingProvider == "" {
		return fmt.Errorf("%w: embedding model and provider", ErrMissingRequiredField)
	}

	for i, c := range ej.Chunks {
		if c.ID == "" {
			return fmt.Errorf("%w: chunk %d ID", ErrMissingRequiredField, i)
		}
		if len(c.Vector) == 0 {
			return fmt.Errorf("%w: chunk %d vector", ErrMissingRequiredField, i)
		}
	}

	return nil
}
