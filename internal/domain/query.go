package domain

import "time"

// Query is a recorded retrieval request.
type Query struct {
	ID          string
	PrincipalID string
	Text        string
	CreatedAt   time.Time
}

// QueryResult links a recorded query to one returned chunk.
type QueryResult struct {
	ID        string
	QueryID   string
	ChunkID   string
	Score     float64
	CreatedAt time.Time
}
