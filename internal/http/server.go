// Package http exposes the record and expense services as a JSON API for the
// UI layer. Handlers only decode input and map errors to status codes.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mrx7355608/finance-app-2.0/internal/assets"
	applog "github.com/mrx7355608/finance-app-2.0/internal/log"
	"github.com/mrx7355608/finance-app-2.0/internal/middleware/ratelimit"
	"github.com/mrx7355608/finance-app-2.0/internal/middleware/security"
	"github.com/mrx7355608/finance-app-2.0/internal/services"
)

const (
	defaultMaxUploadBytes = 32 << 20
	maxJSONBodyBytes      = 1 << 20
)

// Deps are the collaborators of the API server.
type Deps struct {
	Records  *services.RecordService
	Expenses *services.ExpenseService
	// Uploader is optional; POST /api/assets answers 501 without it.
	Uploader assets.Uploader
	Logger   *applog.Logger

	MaxUploadBytes int64
	// RateLimitPerMinute limits mutating requests per client; 0 disables it.
	RateLimitPerMinute int
}

type Server struct {
	http.Server
	records   *services.RecordService
	expenses  *services.ExpenseService
	uploader  assets.Uploader
	maxUpload int64
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	logger    *applog.Logger

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	maxUpload := deps.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		records:   deps.Records,
		expenses:  deps.Expenses,
		uploader:  deps.Uploader,
		maxUpload: maxUpload,
		detector:  security.NewDetector(),
		logger:    logger.WithComponent(applog.ComponentHTTP),
	}
	if deps.RateLimitPerMinute > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: deps.RateLimitPerMinute})
	}
	s.Handler = s.routes(logger)
	return s
}

func (s *Server) routes(logger *applog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(applog.Middleware(logger.WithComponent(applog.ComponentHTTP)))
	r.Use(applog.RequestLogger(applog.NewStructuredLogger(logger)))
	r.Use(middleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Route not found.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed.")
	})

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware(clientIP, func(w http.ResponseWriter, r *http.Request) {
				writeMessage(w, http.StatusTooManyRequests, "Too many requests. Please try again later.")
			}))
		}

		r.Route("/records", func(r chi.Router) {
			r.Post("/", s.handleCreateRecord)
			r.Get("/", s.handleListRecords)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetRecord)
				r.Put("/", s.handleUpdateRecord)
				r.Delete("/", s.handleDeleteRecord)
				r.Get("/summary", s.handleRecordSummary)
				r.Get("/expenses", s.handleRecordExpenses)
			})
		})

		r.Route("/expenses", func(r chi.Router) {
			r.Post("/", s.handleCreateExpense)
			r.Get("/", s.handleListExpenses)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetExpense)
				r.Patch("/", s.handlePatchExpense)
				r.Delete("/", s.handleDeleteExpense)
			})
		})

		r.Post("/assets", s.handleUploadAssets)
	})

	return r
}

// Shutdown stops background helpers and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		err = s.Server.Shutdown(ctx)
		s.logger.Info("HTTP server stopped", "suspicious_requests", s.detector.SuspiciousRequests())
	})
	return err
}

// clientIP keys rate limiting; RealIP has already rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	return r.RemoteAddr
}

type healthResponse struct {
	Status             string `json:"status"`
	SuspiciousRequests int64  `json:"suspiciousRequests"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:             "ok",
		SuspiciousRequests: s.detector.SuspiciousRequests(),
	})
}
