package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"learnloop-backend/internal/handlers"
	"learnloop-backend/internal/middleware"
	"learnloop-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	activityHandler *handlers.ActivityHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Visibility events arrive on every tab switch; keep abusive clients out
	// without throttling honest ones.
	activityLimiter := middleware.NewRateLimiter(120, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Activity Tracking Routes ────
		r.Route("/activity", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(activityLimiter.Middleware)
			r.Post("/start", activityHandler.Start)
			r.Post("/stop", activityHandler.Stop)
			r.Post("/visibility", activityHandler.Visibility)
			r.Get("/week", activityHandler.Week)
			r.Get("/{date}", activityHandler.Day)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
