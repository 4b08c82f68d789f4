package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/credence-ai/credence/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const defaultListLimit = 50

type BeliefHandler struct {
	beliefs   *service.BeliefService
	decisions *service.DecisionService
}

func NewBeliefHandler(beliefs *service.BeliefService, decisions *service.DecisionService) *BeliefHandler {
	return &BeliefHandler{beliefs: beliefs, decisions: decisions}
}

type createBeliefRequest struct {
	beliefInput
	ParentID *string `json:"parent_id,omitempty"`
}

func (h *BeliefHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBeliefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	state, err := req.toState()
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var parentID *uuid.UUID
	if req.ParentID != nil {
		id, err := uuid.Parse(*req.ParentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid parent_id")
			return
		}
		parentID = &id
	}

	belief, err := h.beliefs.Create(r.Context(), state, parentID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, belief)
}

func (h *BeliefHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	belief, err := h.beliefs.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, belief)
}

func (h *BeliefHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	if err := h.beliefs.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BeliefHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, defaultListLimit)

	beliefs, err := h.beliefs.ListRecent(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"beliefs": beliefs, "count": len(beliefs)})
}

type applyEvidenceRequest struct {
	Mean     []float64 `json:"mean"`
	Variance []float64 `json:"variance"`
	Weight   float64   `json:"weight"`
}

func (h *BeliefHandler) ApplyEvidence(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}

	var req applyEvidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	child, err := h.beliefs.ApplyEvidence(r.Context(), id, req.Mean, req.Variance, req.Weight)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, child)
}

type findSimilarRequest struct {
	Mean     []float64 `json:"mean"`
	MinScore float64   `json:"min_score"`
	Limit    int       `json:"limit"`
}

func (h *BeliefHandler) FindSimilar(w http.ResponseWriter, r *http.Request) {
	var req findSimilarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Limit <= 0 {
		req.Limit = defaultListLimit
	}

	results, err := h.beliefs.FindSimilar(r.Context(), req.Mean, req.MinScore, req.Limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "count": len(results)})
}

func (h *BeliefHandler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid belief id")
		return
	}
	limit := queryLimit(r, defaultListLimit)

	decisions, err := h.decisions.ListByBelief(r.Context(), id, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"decisions": decisions, "count": len(decisions)})
}

func queryLimit(r *http.Request, fallback int) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}
