package service

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/credence-ai/credence/internal/domain"
	"github.com/credence-ai/credence/internal/store"
	"github.com/google/uuid"
)

// mockBeliefStore implements domain.BeliefStore for testing.
type mockBeliefStore struct {
	beliefs map[uuid.UUID]*domain.Belief
}

func newMockBeliefStore() *mockBeliefStore {
	return &mockBeliefStore{beliefs: make(map[uuid.UUID]*domain.Belief)}
}

func (m *mockBeliefStore) Create(ctx context.Context, b *domain.Belief) error {
	b.ID = uuid.New()
	b.CreatedAt = time.Now()
	m.beliefs[b.ID] = b
	return nil
}

func (m *mockBeliefStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Belief, error) {
	b, ok := m.beliefs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return b, nil
}

func (m *mockBeliefStore) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.beliefs[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.beliefs, id)
	return nil
}

func (m *mockBeliefStore) ListRecent(ctx context.Context, limit int) ([]domain.Belief, error) {
	var out []domain.Belief
	for _, b := range m.beliefs {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockBeliefStore) FindSimilar(ctx context.Context, mean []float64, minScore float64, limit int) ([]domain.BeliefWithScore, error) {
	var out []domain.BeliefWithScore
	for _, b := range m.beliefs {
		if len(b.Mean) != len(mean) {
			continue
		}
		out = append(out, domain.BeliefWithScore{Belief: *b, Score: 0.9})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// mockDecisionStore implements domain.DecisionStore for testing.
type mockDecisionStore struct {
	decisions []*domain.Decision
}

func (m *mockDecisionStore) Create(ctx context.Context, d *domain.Decision) error {
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	m.decisions = append(m.decisions, d)
	return nil
}

func (m *mockDecisionStore) ListByBelief(ctx context.Context, beliefID uuid.UUID, limit int) ([]domain.Decision, error) {
	var out []domain.Decision
	for i := len(m.decisions) - 1; i >= 0 && len(out) < limit; i-- {
		if m.decisions[i].BeliefID == beliefID {
			out = append(out, *m.decisions[i])
		}
	}
	return out, nil
}

func (m *mockDecisionStore) Aggregate(ctx context.Context) (*domain.DecisionStats, error) {
	stats := &domain.DecisionStats{}
	for _, d := range m.decisions {
		stats.Total++
		if d.Executed {
			stats.Executed++
		}
		if d.Deferred {
			stats.Deferred++
		}
	}
	if stats.Total > 0 {
		stats.ExecutionRate = float64(stats.Executed) / float64(stats.Total)
	}
	return stats, nil
}

func TestBeliefServiceCreateAndGet(t *testing.T) {
	svc := NewBeliefService(newMockBeliefStore(), testLogger())
	state := mustBelief(t, []float64{1.0, 2.0}, []float64{0.1, 0.2})

	created, err := svc.Create(context.Background(), state, nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatal("created belief has no ID")
	}

	got, err := svc.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Mean[0] != 1.0 || got.Variance[1] != 0.2 {
		t.Errorf("retrieved belief does not match: %+v", got)
	}
}

func TestBeliefServiceGetMissing(t *testing.T) {
	svc := NewBeliefService(newMockBeliefStore(), testLogger())

	_, err := svc.GetByID(context.Background(), uuid.New())
	if !errors.Is(err, ErrBeliefNotFound) {
		t.Fatalf("expected ErrBeliefNotFound, got %v", err)
	}
}

func TestBeliefServiceDelete(t *testing.T) {
	svc := NewBeliefService(newMockBeliefStore(), testLogger())
	state := mustBelief(t, []float64{1.0}, []float64{0.1})

	created, err := svc.Create(context.Background(), state, nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := svc.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := svc.Delete(context.Background(), created.ID); !errors.Is(err, ErrBeliefNotFound) {
		t.Fatalf("expected ErrBeliefNotFound on second delete, got %v", err)
	}
}

func TestBeliefServiceApplyEvidence(t *testing.T) {
	svc := NewBeliefService(newMockBeliefStore(), testLogger())
	state := mustBelief(t, []float64{0.0}, []float64{0.1})

	parent, err := svc.Create(context.Background(), state, nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	child, err := svc.ApplyEvidence(context.Background(), parent.ID, []float64{2.0}, []float64{0.1}, 0.5)
	if err != nil {
		t.Fatalf("ApplyEvidence failed: %v", err)
	}

	if child.ParentID == nil || *child.ParentID != parent.ID {
		t.Error("child belief should link back to its parent")
	}
	if !almostEqual(child.Mean[0], 1.0, tolerance) {
		t.Errorf("fused mean = %v, want 1.0", child.Mean[0])
	}

	// The parent row is untouched.
	got, err := svc.GetByID(context.Background(), parent.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if got.Mean[0] != 0.0 {
		t.Errorf("parent mean changed to %v", got.Mean[0])
	}
}

func TestBeliefServiceApplyEvidenceMissingBelief(t *testing.T) {
	svc := NewBeliefService(newMockBeliefStore(), testLogger())

	_, err := svc.ApplyEvidence(context.Background(), uuid.New(), []float64{1}, []float64{0.1}, 0.5)
	if !errors.Is(err, ErrBeliefNotFound) {
		t.Fatalf("expected ErrBeliefNotFound, got %v", err)
	}
}

func TestBeliefServiceFindSimilarEmptyMean(t *testing.T) {
	svc := NewBeliefService(newMockBeliefStore(), testLogger())

	_, err := svc.FindSimilar(context.Background(), nil, 0.5, 10)
	var invalid *domain.InvalidBeliefError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidBeliefError, got %v", err)
	}
}

func TestDecisionServiceRecordAndStats(t *testing.T) {
	decisions := &mockDecisionStore{}
	svc := NewDecisionService(decisions, testLogger())
	beliefID := uuid.New()

	outcomes := []*Outcome{
		{Executed: true, Confidence: 0.95, Threshold: 0.7},
		{Executed: true, Confidence: 0.9, Threshold: 0.7},
		{Deferred: true, Confidence: 0.4, Threshold: 0.7},
	}
	for _, o := range outcomes {
		if _, err := svc.Record(context.Background(), beliefID, o, "deploy"); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	listed, err := svc.ListByBelief(context.Background(), beliefID, 10)
	if err != nil {
		t.Fatalf("ListByBelief failed: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("listed %d decisions, want 3", len(listed))
	}

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 3 || stats.Executed != 2 || stats.Deferred != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if !almostEqual(stats.ExecutionRate, 2.0/3.0, tolerance) {
		t.Errorf("execution rate = %v", stats.ExecutionRate)
	}
}
