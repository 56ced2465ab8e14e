package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/club-ladder/ladder"
	"github.com/Dosada05/club-ladder/models"
	"github.com/Dosada05/club-ladder/repositories"
	"github.com/Dosada05/club-ladder/services"
)

type fakeSeasonService struct {
	services.SeasonService
	create func(services.CreateSeasonInput) (*models.Season, error)
}

func (f *fakeSeasonService) Create(_ context.Context, in services.CreateSeasonInput) (*models.Season, error) {
	return f.create(in)
}

type fakeDeletionService struct {
	deleteSeason func(int) (*services.DeletionReport, error)
	runID        string
}

func (f *fakeDeletionService) DeleteSeason(_ context.Context, id int, runID string) (*services.DeletionReport, error) {
	f.runID = runID
	return f.deleteSeason(id)
}

type fakeMatchService struct {
	services.MatchService
	generate func(matchID int, layout []int) ([]*models.MatchFixture, error)
	addMatch func(seasonID int, date time.Time) (*models.Match, error)
}

func (f *fakeMatchService) GenerateFixtures(_ context.Context, matchID int, layout []int) ([]*models.MatchFixture, error) {
	return f.generate(matchID, layout)
}

func (f *fakeMatchService) AddMatch(_ context.Context, seasonID int, date time.Time) (*models.Match, error) {
	return f.addMatch(seasonID, date)
}

type fakeResultService struct {
	services.ResultService
	submit func(int, services.SubmitScoreInput) (*services.SubmissionOutcome, error)
}

func (f *fakeResultService) SubmitScore(_ context.Context, fixtureID int, in services.SubmitScoreInput) (*services.SubmissionOutcome, error) {
	return f.submit(fixtureID, in)
}

func serve(t *testing.T, method, pattern, target, body string, h http.HandlerFunc) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	r := chi.NewRouter()
	r.Method(method, pattern, h)

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	decoded := map[string]interface{}{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, decoded
}

func TestEnumerateLayoutsHandler(t *testing.T) {
	h := NewMatchHandler(&fakeMatchService{})

	rec, body := serve(t, http.MethodGet, "/api/layouts", "/api/layouts?players=9", "", h.EnumerateLayoutsHandler)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	options, ok := body["options"].([]interface{})
	if !ok || len(options) == 0 {
		t.Errorf("Expected layout options, got %v", body["options"])
	}

	rec, _ = serve(t, http.MethodGet, "/api/layouts", "/api/layouts?players=many", "", h.EnumerateLayoutsHandler)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}

	t.Run("player cap", func(t *testing.T) {
		target := fmt.Sprintf("/api/layouts?players=%d", ladder.MaxPlayers+1)
		rec, body := serve(t, http.MethodGet, "/api/layouts", target, "", h.EnumerateLayoutsHandler)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("Expected 400 above the player cap, got %d", rec.Code)
		}
		if body["kind"] != string(services.KindValidation) {
			t.Errorf("Expected validation kind, got %v", body["kind"])
		}

		rec, _ = serve(t, http.MethodGet, "/api/layouts", "/api/layouts?players=100000", "", h.EnumerateLayoutsHandler)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for 100000 players, got %d", rec.Code)
		}

		target = fmt.Sprintf("/api/layouts?players=%d", ladder.MaxPlayers)
		if rec, _ := serve(t, http.MethodGet, "/api/layouts", target, "", h.EnumerateLayoutsHandler); rec.Code != http.StatusOK {
			t.Errorf("Expected 200 at the player cap, got %d", rec.Code)
		}
	})
}

func TestSeasonDeleteHandler(t *testing.T) {
	t.Run("transient cascade failure", func(t *testing.T) {
		ds := &fakeDeletionService{deleteSeason: func(id int) (*services.DeletionReport, error) {
			return nil, &services.CascadeError{
				RunID:     "run-9",
				SeasonID:  id,
				Step:      services.StepRestoreRatings,
				Completed: []string{services.StepLoadSeason},
				Err:       repositories.ErrSeasonPlayerStale,
			}
		}}
		h := NewSeasonHandler(nil, nil, ds)

		rec, body := serve(t, http.MethodDelete, "/api/seasons/{seasonID}", "/api/seasons/5", "", h.DeleteHandler)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("Expected 503, got %d", rec.Code)
		}
		if rec.Header().Get("Retry-After") == "" {
			t.Error("Expected Retry-After header")
		}
		if body["kind"] != string(services.KindTransient) || body["run_id"] != "run-9" || body["step"] != services.StepRestoreRatings {
			t.Errorf("Unexpected body %v", body)
		}
	})

	t.Run("not found", func(t *testing.T) {
		ds := &fakeDeletionService{deleteSeason: func(int) (*services.DeletionReport, error) {
			return nil, &services.Error{Kind: services.KindNotFound, Op: "delete season", Err: repositories.ErrSeasonNotFound}
		}}
		h := NewSeasonHandler(nil, nil, ds)

		rec, _ := serve(t, http.MethodDelete, "/api/seasons/{seasonID}", "/api/seasons/5", "", h.DeleteHandler)
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", rec.Code)
		}
	})

	t.Run("report", func(t *testing.T) {
		ds := &fakeDeletionService{deleteSeason: func(id int) (*services.DeletionReport, error) {
			return &services.DeletionReport{RunID: "run-1", SeasonID: id, MatchesDeleted: 3}, nil
		}}
		h := NewSeasonHandler(nil, nil, ds)

		rec, body := serve(t, http.MethodDelete, "/api/seasons/{seasonID}", "/api/seasons/5", "", h.DeleteHandler)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		report := body["report"].(map[string]interface{})
		if report["matches_deleted"] != float64(3) {
			t.Errorf("Unexpected report %v", report)
		}
	})

	t.Run("idempotency key", func(t *testing.T) {
		ds := &fakeDeletionService{deleteSeason: func(id int) (*services.DeletionReport, error) {
			return &services.DeletionReport{SeasonID: id}, nil
		}}
		h := NewSeasonHandler(nil, nil, ds)

		r := chi.NewRouter()
		r.Delete("/api/seasons/{seasonID}", h.DeleteHandler)
		req := httptest.NewRequest(http.MethodDelete, "/api/seasons/5", nil)
		req.Header.Set("Idempotency-Key", " 3f1c9a52-6a43-4c36-9a53-0d3c1b0e7a10 ")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		if ds.runID != "3f1c9a52-6a43-4c36-9a53-0d3c1b0e7a10" {
			t.Errorf("Expected run id from header, got %q", ds.runID)
		}

		rec, _ = serve(t, http.MethodDelete, "/api/seasons/{seasonID}", "/api/seasons/5", "", h.DeleteHandler)
		if rec.Code != http.StatusOK || ds.runID != "" {
			t.Errorf("Expected empty run id without header, got %q (status %d)", ds.runID, rec.Code)
		}
	})

	t.Run("bad id", func(t *testing.T) {
		h := NewSeasonHandler(nil, nil, &fakeDeletionService{})
		rec, _ := serve(t, http.MethodDelete, "/api/seasons/{seasonID}", "/api/seasons/abc", "", h.DeleteHandler)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})
}

func TestSeasonCreateHandler(t *testing.T) {
	var got services.CreateSeasonInput
	ss := &fakeSeasonService{create: func(in services.CreateSeasonInput) (*models.Season, error) {
		got = in
		return &models.Season{ID: 7, Name: in.Name}, nil
	}}
	h := NewSeasonHandler(ss, nil, nil)

	rec, _ := serve(t, http.MethodPost, "/api/seasons", "/api/seasons",
		`{"name":"Spring","season_type":"league","start_date":"2026-04-01","carry_over_players":true}`, h.CreateHandler)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if got.Type != models.SeasonTypeLeague || !got.CarryOverPlayers || got.StartDate == nil || got.StartDate.Day() != 1 {
		t.Errorf("Unexpected input %+v", got)
	}

	rec, _ = serve(t, http.MethodPost, "/api/seasons", "/api/seasons", `{"name":"X","start_date":"01/04/2026"}`, h.CreateHandler)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed date, got %d", rec.Code)
	}

	rec, _ = serve(t, http.MethodPost, "/api/seasons", "/api/seasons", `{"name":"X","colour":"red"}`, h.CreateHandler)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestMatchHandlers(t *testing.T) {
	t.Run("generate without body", func(t *testing.T) {
		var gotLayout []int
		ms := &fakeMatchService{generate: func(matchID int, layout []int) ([]*models.MatchFixture, error) {
			gotLayout = layout
			return []*models.MatchFixture{{ID: 1, MatchID: matchID}}, nil
		}}
		h := NewMatchHandler(ms)

		rec, _ := serve(t, http.MethodPost, "/api/matches/{matchID}/fixtures", "/api/matches/21/fixtures", "", h.GenerateFixturesHandler)
		if rec.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d", rec.Code)
		}
		if gotLayout != nil {
			t.Errorf("Expected nil layout, got %v", gotLayout)
		}
	})

	t.Run("generate conflict", func(t *testing.T) {
		ms := &fakeMatchService{generate: func(int, []int) ([]*models.MatchFixture, error) {
			return nil, &services.Error{Kind: services.KindConflict, Op: "generate fixtures", Err: services.ErrFixturesExist}
		}}
		h := NewMatchHandler(ms)

		rec, body := serve(t, http.MethodPost, "/api/matches/{matchID}/fixtures", "/api/matches/21/fixtures", `{"layout":[4]}`, h.GenerateFixturesHandler)
		if rec.Code != http.StatusConflict || body["kind"] != string(services.KindConflict) {
			t.Errorf("Expected 409 conflict, got %d %v", rec.Code, body)
		}
	})

	t.Run("add match validation", func(t *testing.T) {
		ms := &fakeMatchService{addMatch: func(int, time.Time) (*models.Match, error) {
			return nil, &services.Error{Kind: services.KindValidation, Op: "add match", Err: services.ErrSeasonNotActive}
		}}
		h := NewMatchHandler(ms)

		rec, _ := serve(t, http.MethodPost, "/api/seasons/{seasonID}/matches", "/api/seasons/5/matches", `{"match_date":"2026-05-09"}`, h.AddMatchHandler)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})
}

func TestSubmitHandler(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		rs := &fakeResultService{submit: func(fixtureID int, in services.SubmitScoreInput) (*services.SubmissionOutcome, error) {
			return &services.SubmissionOutcome{
				Result:  &models.MatchResult{ID: 61, FixtureID: fixtureID, Pair1Score: in.Pair1Score, Pair2Score: in.Pair2Score},
				Created: true,
			}, nil
		}}
		h := NewResultHandler(rs)

		rec, _ := serve(t, http.MethodPost, "/api/fixtures/{fixtureID}/results", "/api/fixtures/31/results", `{"pair1_score":6,"pair2_score":4}`, h.SubmitHandler)
		if rec.Code != http.StatusCreated {
			t.Errorf("Expected 201, got %d", rec.Code)
		}
	})

	t.Run("conflict", func(t *testing.T) {
		rs := &fakeResultService{submit: func(fixtureID int, in services.SubmitScoreInput) (*services.SubmissionOutcome, error) {
			return &services.SubmissionOutcome{
				Result:   &models.MatchResult{ID: 61, FixtureID: fixtureID, Pair1Score: 6, Pair2Score: 4},
				Conflict: &models.ScoreConflict{ID: 81, FixtureID: fixtureID, Pair1Score: in.Pair1Score, Pair2Score: in.Pair2Score},
			}, nil
		}}
		h := NewResultHandler(rs)

		rec, body := serve(t, http.MethodPost, "/api/fixtures/{fixtureID}/results", "/api/fixtures/31/results", `{"pair1_score":4,"pair2_score":6}`, h.SubmitHandler)
		if rec.Code != http.StatusConflict {
			t.Fatalf("Expected 409, got %d", rec.Code)
		}
		if _, ok := body["conflict"]; !ok {
			t.Errorf("Expected conflict in body, got %v", body)
		}
	})

	t.Run("internal error", func(t *testing.T) {
		rs := &fakeResultService{submit: func(int, services.SubmitScoreInput) (*services.SubmissionOutcome, error) {
			return nil, errors.New("boom")
		}}
		h := NewResultHandler(rs)

		rec, body := serve(t, http.MethodPost, "/api/fixtures/{fixtureID}/results", "/api/fixtures/31/results", `{"pair1_score":4,"pair2_score":6}`, h.SubmitHandler)
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("Expected 500, got %d", rec.Code)
		}
		if msg, _ := body["error"].(string); strings.Contains(msg, "boom") {
			t.Errorf("Expected internal details to be hidden, got %q", msg)
		}
	})
}
