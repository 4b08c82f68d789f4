package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/credence-ai/credence/internal/domain"
	"github.com/credence-ai/credence/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrBeliefNotFound = errors.New("belief not found")
)

// BeliefService persists belief snapshots and applies evidence updates to
// stored beliefs. Updates never mutate a stored belief: they create a child
// row linked by parent_id, preserving the provenance chain.
type BeliefService struct {
	beliefs domain.BeliefStore
	logger  *zap.Logger
}

// NewBeliefService creates a new belief service.
func NewBeliefService(beliefs domain.BeliefStore, logger *zap.Logger) *BeliefService {
	return &BeliefService{beliefs: beliefs, logger: logger}
}

// Create persists a belief snapshot, optionally linked to a parent.
func (s *BeliefService) Create(ctx context.Context, state *domain.BeliefState, parentID *uuid.UUID) (*domain.Belief, error) {
	belief := &domain.Belief{
		BeliefState: *state,
		ParentID:    parentID,
	}
	if err := s.beliefs.Create(ctx, belief); err != nil {
		return nil, fmt.Errorf("create belief: %w", err)
	}

	s.logger.Debug("belief created",
		zap.String("id", belief.ID.String()),
		zap.Int("dimensions", state.Dim()),
		zap.Bool("epistemic", state.Epistemic),
	)
	return belief, nil
}

// GetByID retrieves a stored belief.
func (s *BeliefService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Belief, error) {
	belief, err := s.beliefs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrBeliefNotFound
		}
		return nil, err
	}
	return belief, nil
}

// Delete removes a stored belief.
func (s *BeliefService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.beliefs.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrBeliefNotFound
		}
		return err
	}
	return nil
}

// ListRecent returns the most recently created beliefs.
func (s *BeliefService) ListRecent(ctx context.Context, limit int) ([]domain.Belief, error) {
	return s.beliefs.ListRecent(ctx, limit)
}

// ApplyEvidence fuses new evidence into a stored belief and persists the
// fused result as a child of the original.
func (s *BeliefService) ApplyEvidence(ctx context.Context, id uuid.UUID, newMean, newVariance []float64, weight float64) (*domain.Belief, error) {
	parent, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated, err := parent.UpdateWithEvidence(newMean, newVariance, weight)
	if err != nil {
		return nil, err
	}

	child, err := s.Create(ctx, updated, &parent.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("evidence applied",
		zap.String("parent_id", parent.ID.String()),
		zap.String("child_id", child.ID.String()),
		zap.Float64("weight", weight),
	)
	return child, nil
}

// FindSimilar returns stored beliefs whose means are close to the given
// vector, most similar first. Only beliefs of matching dimensionality are
// considered.
func (s *BeliefService) FindSimilar(ctx context.Context, mean []float64, minScore float64, limit int) ([]domain.BeliefWithScore, error) {
	if len(mean) == 0 {
		return nil, &domain.InvalidBeliefError{Reason: "mean is empty"}
	}
	return s.beliefs.FindSimilar(ctx, mean, minScore, limit)
}
