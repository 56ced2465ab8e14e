package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Dosada05/club-ladder/handlers"
)

const requestTimeout = 30 * time.Second

func SetupRoutes(
	router *chi.Mux,
	allowedOrigins []string,
	seasonHandler *handlers.SeasonHandler,
	matchHandler *handlers.MatchHandler,
	resultHandler *handlers.ResultHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "Idempotency-Key"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// WebSocket без таймаута: соединение живёт долго.
	router.Get("/ws/seasons", webSocketHandler.ServeWs)

	router.Route("/api", func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(requestTimeout))

		r.Get("/layouts", matchHandler.EnumerateLayoutsHandler)

		r.Route("/seasons", func(r chi.Router) {
			r.Get("/", seasonHandler.ListHandler)
			r.Post("/", seasonHandler.CreateHandler)
			r.Get("/active", seasonHandler.ActiveHandler)

			r.Route("/{seasonID}", func(r chi.Router) {
				r.Get("/", seasonHandler.OverviewHandler)
				r.Delete("/", seasonHandler.DeleteHandler)
				r.Post("/complete", seasonHandler.CompleteHandler)
				r.Post("/rankings", seasonHandler.RecomputeHandler)
				r.Get("/standings", seasonHandler.StandingsHandler)
				r.Post("/matches", matchHandler.AddMatchHandler)
			})
		})

		r.Route("/matches/{matchID}", func(r chi.Router) {
			r.Get("/layouts", matchHandler.LayoutsHandler)
			r.Post("/fixtures", matchHandler.GenerateFixturesHandler)
		})

		r.Post("/fixtures/{fixtureID}/results", resultHandler.SubmitHandler)
		r.Post("/results/{resultID}/verify", resultHandler.VerifyHandler)
		r.Put("/players/{playerID}/availability", matchHandler.AvailabilityHandler)
	})

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}
