package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/otter/internal/domain"
	"github.com/cloo-solutions/otter/internal/pagination"
)

type KnowledgeJobRepository struct {
	db dbtx
}

func NewKnowledgeJobRepository(pool *pgxpool.Pool) *KnowledgeJobRepository {
	return &KnowledgeJobRepository{db: pool}
}

func NewKnowledgeJobRepositoryWithTx(tx pgx.Tx) *KnowledgeJobRepository {
	return &KnowledgeJobRepository{db: tx}
}

const jobColumns = `j.id, j.source_id, j.status, j.error, j.created_at, j.updated_at`

// Create inserts job and fills in its generated ID and timestamps.
func (r *KnowledgeJobRepository) Create(ctx context.Context, job *domain.KnowledgeJob) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO knowledge_jobs (source_id, status, error)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		job.SourceID, job.Status, nullableString(job.Error),
	).Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
}

func (r *KnowledgeJobRepository) GetByID(ctx context.Context, id string) (*domain.KnowledgeJob, error) {
	var job domain.KnowledgeJob
	var errMsg pgtype.Text
	var src domain.Source
	err := r.db.QueryRow(ctx,
		`SELECT `+jobColumns+`,
		        s.id, s.kind, s.location, s.file_name, s.media_type, s.principal_id, s.created_at
		 FROM knowledge_jobs j
		 JOIN sources s ON s.id = j.source_id
		 WHERE j.id = $1`,
		id,
	).Scan(&job.ID, &job.SourceID, &job.Status, &errMsg, &job.CreatedAt, &job.UpdatedAt,
		&src.ID, &src.Kind, &src.Location, &src.FileName, &src.MediaType, &src.PrincipalID, &src.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, err
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	job.Source = &src
	return &job, nil
}

// Transition applies from -> to only if the row is still in from. Concurrent
// callers racing on the same job see exactly one success.
func (r *KnowledgeJobRepository) Transition(ctx context.Context, id string, from, to domain.JobStatus, errMsg string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_jobs
		 SET status = $3, error = $4, updated_at = now()
		 WHERE id = $1 AND status = $2`,
		id, from, to, nullableString(errMsg),
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 1 {
		return nil
	}

	var current domain.JobStatus
	err = r.db.QueryRow(ctx, `SELECT status FROM knowledge_jobs WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrJobNotFound
		}
		return err
	}
	return fmt.Errorf("%w: job %s is %s, expected %s", domain.ErrInvalidJobState, id, current, from)
}

// ListQueued returns the oldest queued jobs. It does not claim them; callers
// claim through Transition.
func (r *KnowledgeJobRepository) ListQueued(ctx context.Context, limit int) ([]*domain.KnowledgeJob, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+jobColumns+`
		 FROM knowledge_jobs j
		 WHERE j.status = $1
		 ORDER BY j.created_at ASC, j.id ASC
		 LIMIT $2`,
		domain.JobStatusQueued, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobRows(rows)
}

// ListByPrincipalWithCursor lists a principal's jobs newest first.
func (r *KnowledgeJobRepository) ListByPrincipalWithCursor(ctx context.Context, principalID string, cursor *pagination.Cursor, limit int) ([]*domain.KnowledgeJob, error) {
	var rows pgx.Rows
	var err error
	if cursor == nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+jobColumns+`
			 FROM knowledge_jobs j
			 JOIN sources s ON s.id = j.source_id
			 WHERE s.principal_id = $1
			 ORDER BY j.created_at DESC, j.id DESC
			 LIMIT $2`,
			principalID, limit,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+jobColumns+`
			 FROM knowledge_jobs j
			 JOIN sources s ON s.id = j.source_id
			 WHERE s.principal_id = $1
			   AND (j.created_at, j.id) < ($2, $3::uuid)
			 ORDER BY j.created_at DESC, j.id DESC
			 LIMIT $4`,
			principalID, cursor.Timestamp, cursor.LastID, limit,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobRows(rows)
}

func scanJobRows(rows pgx.Rows) ([]*domain.KnowledgeJob, error) {
	var jobs []*domain.KnowledgeJob
	for rows.Next() {
		var job domain.KnowledgeJob
		var errMsg pgtype.Text
		if err := rows.Scan(&job.ID, &job.SourceID, &job.Status, &errMsg, &job.CreatedAt, &job.UpdatedAt); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			job.Error = errMsg.String
		}
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}
