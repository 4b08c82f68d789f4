package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/credence-ai/credence/internal/domain"
	"github.com/credence-ai/credence/internal/service"
	"github.com/credence-ai/credence/internal/transform"
	"github.com/google/uuid"
)

// EngineHandler exposes the belief operations: propagation through a named
// transform, combination, calibration, and ensembles. Inputs are inline
// belief states, except propagation by belief_id, which reads the stored
// belief and persists the propagated result as its child.
type EngineHandler struct {
	propagator *service.Propagator
	beliefs    *service.BeliefService
}

func NewEngineHandler(propagator *service.Propagator, beliefs *service.BeliefService) *EngineHandler {
	return &EngineHandler{propagator: propagator, beliefs: beliefs}
}

type transformSpec struct {
	Name   string             `json:"name"`
	Params map[string]float64 `json:"params,omitempty"`
}

type propagateRequest struct {
	Belief    *beliefInput  `json:"belief,omitempty"`
	BeliefID  string        `json:"belief_id,omitempty"`
	Beliefs   []beliefInput `json:"beliefs,omitempty"`
	Transform transformSpec `json:"transform"`
}

func (h *EngineHandler) Propagate(w http.ResponseWriter, r *http.Request) {
	var req propagateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fn, err := transform.New(req.Transform.Name, req.Transform.Params)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// Batch form fans out across the propagator's worker pool.
	if len(req.Beliefs) > 0 {
		states := make([]*domain.BeliefState, len(req.Beliefs))
		for i := range req.Beliefs {
			states[i], err = req.Beliefs[i].toState()
			if err != nil {
				writeDomainError(w, err)
				return
			}
		}

		results, err := h.propagator.PropagateBatchParallel(r.Context(), states, fn)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"beliefs": results, "count": len(results)})
		return
	}

	// By id: propagate a stored belief and persist the result as its child.
	if req.BeliefID != "" {
		id, err := uuid.Parse(req.BeliefID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid belief_id")
			return
		}

		parent, err := h.beliefs.GetByID(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		out, err := h.propagator.Propagate(&parent.BeliefState, fn)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		child, err := h.beliefs.Create(r.Context(), out, &parent.ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, child)
		return
	}

	if req.Belief == nil {
		writeError(w, http.StatusBadRequest, "belief, belief_id, or beliefs is required")
		return
	}

	state, err := req.Belief.toState()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	out, err := h.propagator.Propagate(state, fn)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type combineRequest struct {
	Beliefs []beliefInput `json:"beliefs"`
	Weights []float64     `json:"weights,omitempty"`
}

func (h *EngineHandler) Combine(w http.ResponseWriter, r *http.Request) {
	var req combineRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	states := make([]*domain.BeliefState, len(req.Beliefs))
	for i := range req.Beliefs {
		state, err := req.Beliefs[i].toState()
		if err != nil {
			writeDomainError(w, err)
			return
		}
		states[i] = state
	}

	combined, err := service.CombineBeliefStates(states, req.Weights)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, combined)
}

type calibrateRequest struct {
	Belief      beliefInput `json:"belief"`
	Predictions []float64   `json:"predictions"`
	Actuals     []float64   `json:"actuals"`
}

func (h *EngineHandler) Calibrate(w http.ResponseWriter, r *http.Request) {
	var req calibrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := req.Belief.toState()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	calibrated, err := service.CalibrateBeliefState(state, req.Predictions, req.Actuals)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, calibrated)
}

type ensembleRequest struct {
	Predictions [][]float64 `json:"predictions"`
	Weights     []float64   `json:"weights,omitempty"`
}

func (h *EngineHandler) Ensemble(w http.ResponseWriter, r *http.Request) {
	var req ensembleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ensemble, err := service.CreateEnsembleBelief(req.Predictions, req.Weights)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ensemble)
}
