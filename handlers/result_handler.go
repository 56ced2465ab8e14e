package handlers

import (
	"net/http"

	"github.com/Dosada05/club-ladder/services"
)

type ResultHandler struct {
	resultService services.ResultService
}

func NewResultHandler(rs services.ResultService) *ResultHandler {
	return &ResultHandler{resultService: rs}
}

// SubmitHandler обрабатывает POST /api/fixtures/{fixtureID}/results.
// Расхождение с уже записанным счётом возвращает 409 вместе с записанным результатом.
func (h *ResultHandler) SubmitHandler(w http.ResponseWriter, r *http.Request) {
	fixtureID, err := getIDFromURL(r, "fixtureID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var input services.SubmitScoreInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	outcome, err := h.resultService.SubmitScore(r.Context(), fixtureID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	status := http.StatusOK
	if outcome.Created {
		status = http.StatusCreated
	}
	resp := jsonResponse{"result": outcome.Result}
	if outcome.Conflict != nil {
		status = http.StatusConflict
		resp["conflict"] = outcome.Conflict
		resp["error"] = services.ErrScoreConflict.Error()
		resp["kind"] = services.KindConflict
	}
	if len(outcome.RatingChanges) > 0 {
		resp["rating_changes"] = outcome.RatingChanges
	}
	if err := writeJSON(w, status, resp, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// VerifyHandler обрабатывает POST /api/results/{resultID}/verify
func (h *ResultHandler) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	resultID, err := getIDFromURL(r, "resultID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	result, err := h.resultService.VerifyResult(r.Context(), resultID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"result": result}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
