package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/credence-ai/credence/internal/domain"
	"github.com/credence-ai/credence/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps engine errors onto HTTP statuses. Malformed beliefs
// and configuration are client errors; a failing caller-supplied transform is
// unprocessable rather than a server fault.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		invalid   *domain.InvalidBeliefError
		cfg       *domain.ConfigurationError
		transform *domain.TransformError
	)
	switch {
	case errors.Is(err, service.ErrBeliefNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrEmptyInput),
		errors.As(err, &invalid),
		errors.As(err, &cfg):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &transform):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// beliefInput is the wire form of a belief accepted by stateless engine
// endpoints.
type beliefInput struct {
	Mean      []float64      `json:"mean"`
	Variance  []float64      `json:"variance"`
	Epistemic bool           `json:"epistemic,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (in *beliefInput) toState() (*domain.BeliefState, error) {
	return domain.NewBeliefState(in.Mean, in.Variance, in.Epistemic, in.Metadata)
}
