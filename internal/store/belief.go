package store

import (
	"context"
	"errors"

	"github.com/credence-ai/credence/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

type BeliefStore struct {
	db *pgxpool.Pool
}

func NewBeliefStore(db *pgxpool.Pool) *BeliefStore {
	return &BeliefStore{db: db}
}

func (s *BeliefStore) Create(ctx context.Context, b *domain.Belief) error {
	var meanVec *pgvector.Vector
	if len(b.Mean) > 0 {
		v := pgvector.NewVector(toFloat32(b.Mean))
		meanVec = &v
	}

	if b.Metadata == nil {
		b.Metadata = map[string]any{}
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO beliefs (mean, variance, mean_vec, epistemic, metadata, parent_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		b.Mean, b.Variance, meanVec, b.Epistemic, b.Metadata, b.ParentID,
	).Scan(&b.ID, &b.CreatedAt)
}

func (s *BeliefStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Belief, error) {
	b := &domain.Belief{}
	err := s.db.QueryRow(ctx,
		`SELECT id, mean, variance, epistemic, metadata, parent_id, created_at
		 FROM beliefs WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.Mean, &b.Variance, &b.Epistemic, &b.Metadata, &b.ParentID, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *BeliefStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM beliefs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *BeliefStore) ListRecent(ctx context.Context, limit int) ([]domain.Belief, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, mean, variance, epistemic, metadata, parent_id, created_at
		 FROM beliefs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var beliefs []domain.Belief
	for rows.Next() {
		var b domain.Belief
		if err := rows.Scan(&b.ID, &b.Mean, &b.Variance, &b.Epistemic, &b.Metadata, &b.ParentID, &b.CreatedAt); err != nil {
			return nil, err
		}
		beliefs = append(beliefs, b)
	}
	return beliefs, rows.Err()
}

// FindSimilar returns beliefs ranked by cosine similarity of their mean
// vectors. Beliefs stored with a different dimensionality are excluded so
// the distance operator never sees mismatched vectors.
func (s *BeliefStore) FindSimilar(ctx context.Context, mean []float64, minScore float64, limit int) ([]domain.BeliefWithScore, error) {
	query := pgvector.NewVector(toFloat32(mean))
	rows, err := s.db.Query(ctx,
		`SELECT id, mean, variance, epistemic, metadata, parent_id, created_at,
		        1 - (mean_vec <=> $1) AS score
		 FROM beliefs
		 WHERE mean_vec IS NOT NULL
		   AND vector_dims(mean_vec) = $2
		   AND 1 - (mean_vec <=> $1) >= $3
		 ORDER BY score DESC
		 LIMIT $4`,
		query, len(mean), minScore, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.BeliefWithScore
	for rows.Next() {
		var r domain.BeliefWithScore
		if err := rows.Scan(&r.ID, &r.Mean, &r.Variance, &r.Epistemic, &r.Metadata, &r.ParentID, &r.CreatedAt, &r.Score); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
