package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/agora-sim/backend/internal/handler/ws"
	middlewarePkg "github.com/agora-sim/backend/internal/middleware"
	convo "github.com/agora-sim/backend/internal/service/conversation"
	"github.com/agora-sim/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(engine *convo.Engine) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	// Health check kept byte-compatible with the first prototype.
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("Server is running."))
	})

	wsHandler := ws.New(engine)
	r.Route("/api", func(api chi.Router) {
		wsHandler.RegisterRoutes(api)

		// Read-only view of the current session, handy for debugging a
		// client that lost its socket.
		api.Get("/conversation", func(w http.ResponseWriter, _ *http.Request) {
			session, ok := engine.Snapshot()
			if !ok {
				utils.RespondError(w, http.StatusNotFound, "no conversation has been started")
				return
			}
			utils.RespondJSON(w, http.StatusOK, session)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondError(w, http.StatusNotFound, "not found")
	})

	return r
}
