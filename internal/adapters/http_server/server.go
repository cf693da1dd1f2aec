package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type Server struct {
	mux *chi.Mux
	api chi.Router
}

// New builds the router. Websocket routes hang off the bare mux because the
// timeout and status-recording writers can't be hijacked.
func New(timeout time.Duration, auth Auth) *Server {
	m := chi.NewRouter()

	// all middlewares go here (before any routes are added)
	m.Use(chimw.RealIP)
	m.Use(chimw.RequestID)
	m.Use(chimw.Recoverer)
	m.Use(auth.Middleware)

	api := m.With(Timeout(timeout), Metrics, Logger(log.Logger))
	return &Server{mux: m, api: api}
}

func (s *Server) Mux() http.Handler { return s.mux }

// Mount attaches any extra handler (e.g., /metrics) to the router.
func (s *Server) Mount(path string, h http.Handler) {
	s.api.Handle(path, h)
}
