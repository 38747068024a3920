package ticketapi

import (
	"errors"
	"net/http"

	"github.com/linnemanlabs/sift/internal/dataset"
	"github.com/linnemanlabs/sift/internal/priority"
	"github.com/linnemanlabs/sift/internal/triage"
)

func (a *API) handleModelInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.svc.ModelInfo())
}

func (a *API) handleTrain(w http.ResponseWriter, r *http.Request) {
	rep, err := a.svc.Retrain(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, rep)
	case errors.Is(err, triage.ErrRetrainUnavailable):
		writeError(w, http.StatusServiceUnavailable, "retraining is not configured")
	case errors.Is(err, priority.ErrInvalidTrainingSet),
		errors.Is(err, dataset.ErrMissingColumn),
		errors.Is(err, dataset.ErrInvalidPriority),
		errors.Is(err, dataset.ErrEmpty):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		a.logger.Error(r.Context(), err, "retrain failed")
		writeError(w, http.StatusInternalServerError, "retrain failed")
	}
}
