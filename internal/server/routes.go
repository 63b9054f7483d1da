package server

import (
	"github.com/go-chi/chi/v5"
)

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	r := s.router

	r.Get("/health", s.health)

	// Presentation surfaces.
	r.Get("/ws", s.webviewSocket)
	r.Get("/events", s.events)
	r.Get("/state", s.getState)

	// REST surface for tooling and tests.
	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.createSession)

		r.Route("/{agentID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/select", s.selectSession)
			r.Post("/cancel", s.cancelSession)
			r.Post("/restart", s.restartSession)
			r.Post("/chat", s.postChat)
			r.Post("/input", s.postInput)
			r.Post("/accept", s.acceptSession)
			r.Post("/reject", s.rejectSession)
		})
	})

	r.Get("/agents", s.listAvailableAgents)
}
