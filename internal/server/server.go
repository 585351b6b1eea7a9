package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/moneta/internal/modules/contributions"
	"github.com/aristath/moneta/internal/modules/entity"
	"github.com/aristath/moneta/internal/modules/exchange"
	"github.com/aristath/moneta/internal/modules/fetch"
	"github.com/aristath/moneta/internal/modules/flows"
	"github.com/aristath/moneta/internal/modules/forecast"
	"github.com/aristath/moneta/internal/modules/historic"
	"github.com/aristath/moneta/internal/modules/imports"
	"github.com/aristath/moneta/internal/modules/loans"
	"github.com/aristath/moneta/internal/modules/position"
	"github.com/aristath/moneta/internal/modules/realestate"
	"github.com/aristath/moneta/internal/modules/savings"
	"github.com/aristath/moneta/internal/modules/transactions"
)

// Handlers collects every module's HTTP handler.
type Handlers struct {
	Entities      *entity.Handler
	Fetch         *fetch.Handler
	Positions     *position.Handler
	Transactions  *transactions.Handler
	Historic      *historic.Handler
	Contributions *contributions.Handler
	Flows         *flows.Handler
	RealEstate    *realestate.Handler
	Loans         *loans.Handler
	Savings       *savings.Handler
	Forecast      *forecast.Handler
	Imports       *imports.Handler
	Exchange      *exchange.Handler
}

// Config holds server configuration
type Config struct {
	Port     int
	Log      zerolog.Logger
	Handlers Handlers
	DevMode  bool
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes(cfg.Handlers)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes(h Handlers) {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.handleSystemStatus)
		})

		r.Route("/entities", func(r chi.Router) {
			r.Get("/", h.Entities.HandleList)
			r.Post("/", h.Entities.HandleCreate)
			r.Get("/{id}", h.Entities.HandleGet)
			r.Post("/{id}/disconnect", h.Entities.HandleDisconnect)
		})

		r.Route("/fetch", func(r chi.Router) {
			r.Post("/", h.Fetch.HandleFetch)
			r.Post("/login", h.Fetch.HandleLogin)
		})

		r.Route("/positions", func(r chi.Router) {
			r.Get("/", h.Positions.HandleGet)
			r.Post("/", h.Positions.HandleSaveManual)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.Transactions.HandleGet)
		})

		r.Route("/historic", func(r chi.Router) {
			r.Get("/", h.Historic.HandleGet)
		})

		r.Route("/contributions", func(r chi.Router) {
			r.Get("/", h.Contributions.HandleGet)
			r.Get("/plan", h.Contributions.HandlePlan)
			r.Post("/", h.Contributions.HandleCreate)
			r.Delete("/{id}", h.Contributions.HandleDelete)
		})

		r.Route("/flows", func(r chi.Router) {
			r.Get("/", h.Flows.HandleList)
			r.Post("/", h.Flows.HandleCreate)
			r.Get("/upcoming", h.Flows.HandleUpcoming)
			r.Put("/{id}", h.Flows.HandleUpdate)
			r.Delete("/{id}", h.Flows.HandleDelete)

			r.Route("/pending", func(r chi.Router) {
				r.Get("/", h.Flows.HandleListPending)
				r.Post("/", h.Flows.HandleCreatePending)
				r.Put("/{id}", h.Flows.HandleUpdatePending)
				r.Delete("/{id}", h.Flows.HandleDeletePending)
			})
		})

		r.Route("/real-estate", func(r chi.Router) {
			r.Get("/", h.RealEstate.HandleList)
			r.Post("/", h.RealEstate.HandleCreate)
			r.Put("/{id}", h.RealEstate.HandleUpdate)
			r.Delete("/{id}", h.RealEstate.HandleDelete)
		})

		r.Route("/loans", func(r chi.Router) {
			r.Post("/calculate", h.Loans.HandleCalculate)
		})

		r.Route("/savings", func(r chi.Router) {
			r.Post("/calculate", h.Savings.HandleCalculate)
		})

		r.Route("/forecast", func(r chi.Router) {
			r.Post("/", h.Forecast.HandleForecast)
		})

		r.Route("/import", func(r chi.Router) {
			r.Post("/", h.Imports.HandleImport)
		})

		r.Route("/rates", func(r chi.Router) {
			r.Get("/", h.Exchange.HandleList)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
