package store

import (
	"context"

	"github.com/credence-ai/credence/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DecisionStore struct {
	db *pgxpool.Pool
}

func NewDecisionStore(db *pgxpool.Pool) *DecisionStore {
	return &DecisionStore{db: db}
}

func (s *DecisionStore) Create(ctx context.Context, d *domain.Decision) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO decisions (belief_id, confidence, threshold, executed, deferred, action)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		d.BeliefID, d.Confidence, d.Threshold, d.Executed, d.Deferred, d.Action,
	).Scan(&d.ID, &d.CreatedAt)
}

func (s *DecisionStore) ListByBelief(ctx context.Context, beliefID uuid.UUID, limit int) ([]domain.Decision, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, belief_id, confidence, threshold, executed, deferred, action, created_at
		 FROM decisions WHERE belief_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		beliefID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []domain.Decision
	for rows.Next() {
		var d domain.Decision
		if err := rows.Scan(&d.ID, &d.BeliefID, &d.Confidence, &d.Threshold, &d.Executed, &d.Deferred, &d.Action, &d.CreatedAt); err != nil {
			return nil, err
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

func (s *DecisionStore) Aggregate(ctx context.Context) (*domain.DecisionStats, error) {
	stats := &domain.DecisionStats{}
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE executed),
		        COUNT(*) FILTER (WHERE deferred)
		 FROM decisions`,
	).Scan(&stats.Total, &stats.Executed, &stats.Deferred)
	if err != nil {
		return nil, err
	}
	if stats.Total > 0 {
		stats.ExecutionRate = float64(stats.Executed) / float64(stats.Total)
	}
	return stats, nil
}
