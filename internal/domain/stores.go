package domain

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Transform maps one sampled input vector to an output vector. The output
// length determines the dimensionality of the propagated belief and must be
// the same for every sample. Transforms used with parallel propagation must
// be side-effect free.
type Transform func(sample []float64) ([]float64, error)

// Action is the gated operation, invoked with the belief's mean when
// confidence clears the threshold.
type Action func(mean []float64) (any, error)

// Fallback is invoked with the full belief when confidence is insufficient,
// so it can act on the uncertainty itself (e.g. request more data).
type Fallback func(belief *BeliefState) (any, error)

// Belief is a persisted belief snapshot. ParentID links a belief produced by
// an evidence update, propagation, or calibration back to its source, giving
// each belief an auditable provenance chain.
type Belief struct {
	ID uuid.UUID `json:"id"`
	BeliefState
	ParentID  *uuid.UUID `json:"parent_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// BeliefWithScore is a similarity search result.
type BeliefWithScore struct {
	Belief
	Score float64 `json:"score"`
}

// beliefJSON is the wire form of a stored belief: the record fields plus
// identity and provenance. Defined once so Belief and BeliefWithScore cannot
// drift apart.
type beliefJSON struct {
	ID uuid.UUID `json:"id"`
	BeliefRecord
	ParentID  *uuid.UUID `json:"parent_id,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	Score     *float64   `json:"score,omitempty"`
}

// MarshalJSON serializes the stored belief in record form, carrying the
// derived confidence like every other belief the API emits.
func (b Belief) MarshalJSON() ([]byte, error) {
	return json.Marshal(beliefJSON{
		ID:           b.ID,
		BeliefRecord: b.Record(),
		ParentID:     b.ParentID,
		CreatedAt:    b.CreatedAt,
	})
}

func (b BeliefWithScore) MarshalJSON() ([]byte, error) {
	return json.Marshal(beliefJSON{
		ID:           b.ID,
		BeliefRecord: b.Record(),
		ParentID:     b.ParentID,
		CreatedAt:    b.CreatedAt,
		Score:        &b.Score,
	})
}

// Decision is the audit record of one gate evaluation.
type Decision struct {
	ID         uuid.UUID `json:"id"`
	BeliefID   uuid.UUID `json:"belief_id"`
	Confidence float64   `json:"confidence"`
	Threshold  float64   `json:"threshold"`
	Executed   bool      `json:"executed"`
	Deferred   bool      `json:"deferred"`
	Action     string    `json:"action,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// DecisionStats aggregates how often the system acted versus deferred.
type DecisionStats struct {
	Total         int     `json:"total"`
	Executed      int     `json:"executed"`
	Deferred      int     `json:"deferred"`
	ExecutionRate float64 `json:"execution_rate"`
}

// BeliefStore persists belief snapshots.
type BeliefStore interface {
	Create(ctx context.Context, b *Belief) error
	GetByID(ctx context.Context, id uuid.UUID) (*Belief, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListRecent(ctx context.Context, limit int) ([]Belief, error)
	FindSimilar(ctx context.Context, mean []float64, minScore float64, limit int) ([]BeliefWithScore, error)
}

// DecisionStore persists gate decision audit records.
type DecisionStore interface {
	Create(ctx context.Context, d *Decision) error
	ListByBelief(ctx context.Context, beliefID uuid.UUID, limit int) ([]Decision, error)
	Aggregate(ctx context.Context) (*DecisionStats, error)
}
