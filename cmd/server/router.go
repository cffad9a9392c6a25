package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/scry-avatars/internal/api"
	"github.com/phrazzld/scry-avatars/internal/api/shared"
	apiMiddleware "github.com/phrazzld/scry-avatars/internal/api/middleware"
)

// setupRouter creates the router with middleware, the API routes and, for
// the local storage backend, the avatar file server.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.Trace(app.logger))

	avatarHandler := api.NewAvatarHandler(app.queue, app.profiles, app.logger)
	r.Route("/api", avatarHandler.Routes)

	if app.localFiles != nil {
		r.Handle(localAvatarPrefix+"/*", http.StripPrefix(localAvatarPrefix, app.localFiles))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]interface{}{
			"status": "ok",
			"queue":  app.queue.GetStats(),
		})
	})

	return r
}
