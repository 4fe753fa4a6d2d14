package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/facelock/internal/web/handlers"
	"github.com/kozaktomas/facelock/internal/web/middleware"
)

// apiTimeout bounds JSON endpoints. It must exceed the local enrollment wait.
const apiTimeout = 2 * time.Minute

func (s *Server) setupRoutes() {
	timings := s.config.Timings

	doorHandler := handlers.NewDoorHandler(s.ctrl)
	enrollHandler := handlers.NewEnrollHandler(s.ctrl, timings.Enrollment.LocalWait, s.log)
	eventsHandler := handlers.NewEventsHandler(s.ctrl)
	streamHandler := handlers.NewStreamHandler(s.ctrl, timings.Stream.Backoff, s.log)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Long-lived streams stay outside the timeout group.
		r.Get("/events", eventsHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(apiTimeout))

			r.Get("/status", doorHandler.Status)
			r.Get("/recognition", doorHandler.GetRecognition)
			r.Get("/identities", enrollHandler.ListIdentities)

			// Anything that moves the door or changes identities.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireToken(s.config.Web.APIToken))

				r.Post("/door/open", doorHandler.Open)
				r.Put("/recognition", doorHandler.SetRecognition)
				r.Post("/enroll", enrollHandler.EnrollLocal)
				r.Post("/identities/{id}/enroll", enrollHandler.EnrollIdentity)
			})
		})
	})

	s.router.Get("/stream", streamHandler.Stream)
	s.router.Get("/", serveIndex)
}

// serveIndex serves a bare page with the live stream.
func serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>facelock</title>
    <style>
        body { font-family: system-ui, sans-serif; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0; background: #1a1a2e; color: #eee; }
        .container { text-align: center; }
        h1 { color: #00d9ff; }
        a { color: #00d9ff; }
        img { max-width: 100%; border-radius: 4px; }
    </style>
</head>
<body>
    <div class="container">
        <h1>facelock</h1>
        <img src="/stream" alt="live camera">
        <p>Status: <a href="/api/v1/status">/api/v1/status</a></p>
    </div>
</body>
</html>`))
}
