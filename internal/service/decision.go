package service

import (
	"context"
	"fmt"

	"github.com/credence-ai/credence/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DecisionService records execution outcomes against stored beliefs and
// aggregates them into run statistics.
type DecisionService struct {
	decisions domain.DecisionStore
	logger    *zap.Logger
}

// NewDecisionService creates a new decision service.
func NewDecisionService(decisions domain.DecisionStore, logger *zap.Logger) *DecisionService {
	return &DecisionService{decisions: decisions, logger: logger}
}

// Record persists the outcome of a gated execution attempt.
func (s *DecisionService) Record(ctx context.Context, beliefID uuid.UUID, outcome *Outcome, action string) (*domain.Decision, error) {
	decision := &domain.Decision{
		BeliefID:   beliefID,
		Confidence: outcome.Confidence,
		Threshold:  outcome.Threshold,
		Executed:   outcome.Executed,
		Deferred:   outcome.Deferred,
		Action:     action,
	}
	if err := s.decisions.Create(ctx, decision); err != nil {
		return nil, fmt.Errorf("record decision: %w", err)
	}

	s.logger.Debug("decision recorded",
		zap.String("belief_id", beliefID.String()),
		zap.String("action", action),
		zap.Bool("executed", outcome.Executed),
	)
	return decision, nil
}

// ListByBelief returns decisions recorded against a belief, newest first.
func (s *DecisionService) ListByBelief(ctx context.Context, beliefID uuid.UUID, limit int) ([]domain.Decision, error) {
	return s.decisions.ListByBelief(ctx, beliefID, limit)
}

// Stats aggregates recorded decisions across all beliefs.
func (s *DecisionService) Stats(ctx context.Context) (*domain.DecisionStats, error) {
	return s.decisions.Aggregate(ctx)
}
