package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Dosada05/club-ladder/ladder"
	"github.com/Dosada05/club-ladder/services"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(ms services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: ms}
}

type addMatchRequest struct {
	MatchDate string `json:"match_date"`
}

type generateFixturesRequest struct {
	Layout []int `json:"layout"`
}

type availabilityRequest struct {
	MatchDate   string `json:"match_date"`
	IsAvailable bool   `json:"is_available"`
}

// AddMatchHandler обрабатывает POST /api/seasons/{seasonID}/matches
func (h *MatchHandler) AddMatchHandler(w http.ResponseWriter, r *http.Request) {
	seasonID, err := getIDFromURL(r, "seasonID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var req addMatchRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	date, err := parseDate("match_date", req.MatchDate)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.AddMatch(r.Context(), seasonID, date)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// LayoutsHandler обрабатывает GET /api/matches/{matchID}/layouts
func (h *MatchHandler) LayoutsHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	options, err := h.matchService.LayoutOptions(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, options, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GenerateFixturesHandler обрабатывает POST /api/matches/{matchID}/fixtures.
// Без layout используется первая допустимая раскладка.
func (h *MatchHandler) GenerateFixturesHandler(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var req generateFixturesRequest
	if err := readOptionalJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	fixtures, err := h.matchService.GenerateFixtures(r.Context(), matchID, req.Layout)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusCreated, jsonResponse{"fixtures": fixtures}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// EnumerateLayoutsHandler обрабатывает GET /api/layouts?players=N
func (h *MatchHandler) EnumerateLayoutsHandler(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.URL.Query().Get("players"))
	if err != nil || n < 0 {
		badRequestResponse(w, r, errors.New("invalid players query parameter"))
		return
	}
	if n > ladder.MaxPlayers {
		badRequestResponse(w, r, fmt.Errorf("players must not exceed %d", ladder.MaxPlayers))
		return
	}
	resp := jsonResponse{"players": n, "options": services.LayoutOptionsFor(n)}
	if err := writeJSON(w, http.StatusOK, resp, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AvailabilityHandler обрабатывает PUT /api/players/{playerID}/availability
func (h *MatchHandler) AvailabilityHandler(w http.ResponseWriter, r *http.Request) {
	playerID, err := getIDFromURL(r, "playerID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var req availabilityRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	date, err := parseDate("match_date", req.MatchDate)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	availability, err := h.matchService.SetAvailability(r.Context(), playerID, date, req.IsAvailable)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"availability": availability}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
