package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/bracketlab/bracket-engine/handlers"
	"github.com/bracketlab/bracket-engine/middleware"
)

// SetupRoutes собирает маршрутизатор: просмотр публичный, все мутации
// за проверкой токена и роли.
func SetupRoutes(
	router *chi.Mux,
	jwtSecret string,
	eventHandler *handlers.EventHandler,
	bracketHandler *handlers.BracketHandler,
	scoreHandler *handlers.ScoreHandler,
	queueHandler *handlers.QueueHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/swagger/*", httpSwagger.Handler())

	router.Route("/brackets", func(r chi.Router) {
		r.Get("/{bracketID}", bracketHandler.GetHandler)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Use(middleware.RequireRole(middleware.RoleAdmin, middleware.RoleReviewer))

			r.Get("/templates/{size}", bracketHandler.TemplateHandler)
			r.Post("/", bracketHandler.CreateHandler)
			r.Post("/{bracketID}/resolve", bracketHandler.ResolveHandler)
			r.Post("/{bracketID}/export", bracketHandler.ExportHandler)
		})
	})

	router.Route("/submissions", func(r chi.Router) {
		r.Use(middleware.Authenticate(jwtSecret))
		r.Use(middleware.RequireRole(middleware.RoleAdmin, middleware.RoleReviewer))

		r.Post("/{submissionID}/accept-seeding", scoreHandler.AcceptSeedingHandler)
		r.Post("/{submissionID}/accept-bracket", scoreHandler.AcceptBracketHandler)
		r.Post("/{submissionID}/revert-seeding", scoreHandler.RevertSeedingHandler)
		r.Post("/{submissionID}/revert-bracket", scoreHandler.RevertBracketHandler)
	})

	router.Route("/events", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(jwtSecret))
			r.Use(middleware.RequireRole(middleware.RoleAdmin))

			r.Post("/", eventHandler.CreateHandler)
		})

		r.Route("/{eventID}", func(r chi.Router) {
			r.Get("/queue", queueHandler.ListHandler)

			// Заявки с результатами подают скорщики без учётных записей,
			// поэтому приём открыт; в сетке заявка ничего не меняет.
			r.Post("/submissions", eventHandler.SubmitScoreHandler)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Authenticate(jwtSecret))
				r.Use(middleware.RequireRole(middleware.RoleAdmin, middleware.RoleReviewer))

				r.Post("/teams", eventHandler.CreateTeamHandler)
				r.Post("/submissions/bulk-accept", scoreHandler.BulkAcceptHandler)
			})
		})
	})

	router.Get("/ws/events/{eventID}", webSocketHandler.ServeWs)
}
