package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/credence-ai/credence/internal/service"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ExecutorHandler gates the release of stored belief estimates. The gated
// action over HTTP is releasing the belief's mean to the caller: confident
// beliefs yield their estimate, uncertain ones return a deferred outcome.
// Every evaluation is recorded against the belief for audit.
type ExecutorHandler struct {
	executor  *service.Executor
	beliefs   *service.BeliefService
	decisions *service.DecisionService
	logger    *zap.Logger
}

func NewExecutorHandler(executor *service.Executor, beliefs *service.BeliefService, decisions *service.DecisionService, logger *zap.Logger) *ExecutorHandler {
	return &ExecutorHandler{executor: executor, beliefs: beliefs, decisions: decisions, logger: logger}
}

type executeRequest struct {
	BeliefID string                  `json:"belief_id"`
	Action   string                  `json:"action,omitempty"`
	Context  service.DecisionContext `json:"context,omitempty"`
}

func (h *ExecutorHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := uuid.Parse(req.BeliefID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid belief_id")
		return
	}

	belief, err := h.beliefs.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	outcome, err := h.executor.Execute(&belief.BeliefState, func(mean []float64) (any, error) {
		return mean, nil
	}, req.Context)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if _, err := h.decisions.Record(r.Context(), id, outcome, req.Action); err != nil {
		// The gate already ran; losing the audit row is not worth failing
		// the request over.
		h.logger.Error("failed to record decision", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, outcome)
}

func (h *ExecutorHandler) Stats(w http.ResponseWriter, r *http.Request) {
	persisted, err := h.decisions.Stats(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"executor":  h.executor.Stats(),
		"decisions": persisted,
		"threshold": h.executor.Threshold(),
	})
}

type adjustThresholdRequest struct {
	Delta float64 `json:"delta"`
}

func (h *ExecutorHandler) AdjustThreshold(w http.ResponseWriter, r *http.Request) {
	var req adjustThresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	threshold := h.executor.AdjustThreshold(req.Delta)
	h.logger.Info("threshold adjusted",
		zap.Float64("delta", req.Delta),
		zap.Float64("threshold", threshold),
	)
	writeJSON(w, http.StatusOK, map[string]float64{"threshold": threshold})
}
