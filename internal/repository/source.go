package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/otter/internal/domain"
)

type SourceRepository struct {
	db dbtx
}

func NewSourceRepository(pool *pgxpool.Pool) *SourceRepository {
	return &SourceRepository{db: pool}
}

func NewSourceRepositoryWithTx(tx pgx.Tx) *SourceRepository {
	return &SourceRepository{db: tx}
}

// Create inserts s and fills in its generated ID and CreatedAt.
func (r *SourceRepository) Create(ctx context.Context, s *domain.Source) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO sources (kind, location, file_name, media_type, principal_id)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		s.Kind, s.Location, s.FileName, s.MediaType, s.PrincipalID,
	).Scan(&s.ID, &s.CreatedAt)
}

func (r *SourceRepository) GetByID(ctx context.Context, id string) (*domain.Source, error) {
	var s domain.Source
	err := r.db.QueryRow(ctx,
		`SELECT id, kind, location, file_name, media_type, principal_id, created_at
		 FROM sources WHERE id = $1`,
		id,
	).Scan(&s.ID, &s.Kind, &s.Location, &s.FileName, &s.MediaType, &s.PrincipalID, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSourceNotFound
		}
		return nil, err
	}
	return &s, nil
}
