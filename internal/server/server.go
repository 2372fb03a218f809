package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/me/brigade/internal/config"
	"github.com/me/brigade/internal/menu"
	"github.com/me/brigade/internal/scheduler"
	"github.com/me/brigade/internal/store"
	"github.com/me/brigade/pkg/model"
)

// Server is the brigade REST API server.
type Server struct {
	router         chi.Router
	logger         *slog.Logger
	config         config.ServerConfig
	startTime      time.Time
	store          store.Store
	scheduler      scheduler.Scheduler
	menu           []model.Dish     // dishes used by seeding
	now            func() time.Time // placement clock
	streamInterval time.Duration    // SSE poll interval
}

// Option configures optional Server dependencies.
type Option func(*Server)

// WithMenu replaces the built-in menu used by seeding.
func WithMenu(dishes []model.Dish) Option {
	return func(s *Server) {
		s.menu = dishes
	}
}

// WithClock sets the clock used to stamp new orders.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithStreamInterval sets how often the queue stream checks for changes.
func WithStreamInterval(d time.Duration) Option {
	return func(s *Server) {
		s.streamInterval = d
	}
}

// New creates a new Server with all routes registered.
func New(cfg config.ServerConfig, st store.Store, sched scheduler.Scheduler, logger *slog.Logger, opts ...Option) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		logger:         logger.With("component", "server"),
		config:         cfg,
		startTime:      time.Now(),
		store:          st,
		scheduler:      sched,
		now:            func() time.Time { return time.Now().UTC() },
		streamInterval: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.menu == nil {
		s.menu = menu.Default()
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))

	r.Route("/api/v1", func(r chi.Router) {
		// Discovery
		r.Get("/", s.handleDiscovery)

		// Health
		r.Get("/health", s.handleHealth)

		r.Route("/workspaces", func(r chi.Router) {
			r.Get("/", s.handleListWorkspaces)
			r.Post("/", s.handleCreateWorkspace)

			r.Route("/{wid}", func(r chi.Router) {
				r.Get("/", s.handleGetWorkspace)

				// Menu
				r.Route("/dishes", func(r chi.Router) {
					r.Get("/", s.handleListDishes)
					r.Post("/", s.handleCreateDish)
					r.Delete("/", s.handleUnloadMenu)
					r.Post("/seed", s.handleSeedMenu)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", s.handleGetDish)
						r.Put("/", s.handleUpdateDish)
						r.Delete("/", s.handleDeleteDish)
						r.Post("/allergies", s.handleCheckAllergies)
					})
				})

				// Scheduling
				r.Route("/orders", func(r chi.Router) {
					r.Get("/", s.handleListOrders)
					r.Post("/", s.handlePlaceOrder)
					r.Get("/queue", s.handleQueue)
					r.Get("/next", s.handleNext)
					r.Post("/undo", s.handleUndo)
					r.Get("/history", s.handleHistory)
					r.Get("/stats", s.handleStats)
					r.Get("/stream", s.handleStream)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", s.handleGetOrder)
						r.Delete("/", s.handlePurgeOrder)
						r.Post("/complete", s.handleCompleteOrder)
					})
				})
			})
		})
	})
}
