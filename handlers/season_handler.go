package handlers

import (
	"net/http"
	"strings"

	"github.com/Dosada05/club-ladder/models"
	"github.com/Dosada05/club-ladder/services"
)

const idempotencyKeyHeader = "Idempotency-Key"

type SeasonHandler struct {
	seasonService   services.SeasonService
	rankingService  services.RankingService
	deletionService services.SeasonDeletionService
}

func NewSeasonHandler(ss services.SeasonService, rs services.RankingService, ds services.SeasonDeletionService) *SeasonHandler {
	return &SeasonHandler{
		seasonService:   ss,
		rankingService:  rs,
		deletionService: ds,
	}
}

type createSeasonRequest struct {
	Name             string `json:"name"`
	SeasonType       string `json:"season_type"`
	StartDate        string `json:"start_date"`
	EloEnabled       bool   `json:"elo_enabled"`
	EloKFactor       int    `json:"elo_k_factor"`
	EloInitialRating int    `json:"elo_initial_rating"`
	CarryOverPlayers bool   `json:"carry_over_players"`
}

// ListHandler обрабатывает GET /api/seasons
func (h *SeasonHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	seasons, err := h.seasonService.List(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"seasons": seasons}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// CreateHandler обрабатывает POST /api/seasons
func (h *SeasonHandler) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var req createSeasonRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	startDate, err := parseDate("start_date", req.StartDate)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	input := services.CreateSeasonInput{
		Name:             req.Name,
		Type:             models.SeasonType(req.SeasonType),
		RatingEnabled:    req.EloEnabled,
		KFactor:          req.EloKFactor,
		InitialRating:    req.EloInitialRating,
		CarryOverPlayers: req.CarryOverPlayers,
	}
	if !startDate.IsZero() {
		input.StartDate = &startDate
	}

	season, err := h.seasonService.Create(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"season": season}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ActiveHandler обрабатывает GET /api/seasons/active
func (h *SeasonHandler) ActiveHandler(w http.ResponseWriter, r *http.Request) {
	season, err := h.seasonService.Active(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"season": season}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// OverviewHandler обрабатывает GET /api/seasons/{seasonID}
func (h *SeasonHandler) OverviewHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	overview, err := h.seasonService.Overview(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, overview, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SeasonHandler) CompleteHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	season, err := h.seasonService.Complete(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"season": season}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// DeleteHandler обрабатывает DELETE /api/seasons/{seasonID}. Ответ содержит
// отчёт каскадного удаления. Повтор с тем же Idempotency-Key (UUID)
// продолжает тот же запуск.
func (h *SeasonHandler) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	runID := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
	report, err := h.deletionService.DeleteSeason(r.Context(), id, runID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"report": report}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SeasonHandler) RecomputeHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	standings, err := h.rankingService.Recompute(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *SeasonHandler) StandingsHandler(w http.ResponseWriter, r *http.Request) {
	id, err := getIDFromURL(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	standings, err := h.rankingService.Standings(r.Context(), id)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
