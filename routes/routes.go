package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware" // Alias to avoid conflict
	"github.com/go-chi/cors"

	"github.com/Dosada05/bracket-engine/handlers"
	"github.com/Dosada05/bracket-engine/middleware"
)

func SetupRoutes(
	router *chi.Mux,
	phaseHandler *handlers.PhaseHandler,
	setHandler *handlers.SetHandler,
	webSocketHandler *handlers.WebSocketHandler,
	jwtSecret []byte,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(jwtSecret)

	router.Route("/events/{eventID}/phases/{phaseID}", func(r chi.Router) {
		// Публичные маршруты для просмотра сетки
		r.Get("/", phaseHandler.GetPhaseHandler)
		r.Get("/seeding", phaseHandler.GetSeedingHandler)

		// Защищенные маршруты только для организаторов
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.Authorize("organizer", "admin"))

			r.Post("/seeding", phaseHandler.CreateSeedingHandler)
			r.Put("/seeding", phaseHandler.UpdateSeedingHandler)
			r.Post("/seeding/finalize", phaseHandler.FinalizeSeedingHandler)
			r.Post("/bracket", phaseHandler.GenerateBracketHandler)
		})
	})

	router.Route("/sets/{setID}", func(r chi.Router) {
		r.Get("/", setHandler.GetSetHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.Authorize("organizer", "admin"))

			r.Post("/call", setHandler.CallSetHandler)
			r.Post("/start", setHandler.StartSetHandler)
			r.Post("/report", setHandler.ReportSetHandler)
			r.Post("/reset", setHandler.ResetSetHandler)
		})
	})

	router.Get("/ws/phases/{phaseID}", webSocketHandler.ServeWs)
}
