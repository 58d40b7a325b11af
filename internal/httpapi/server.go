package httpapi

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"resale-ledger-go/internal/assist"
	"resale-ledger-go/internal/ledger"
)

// Server holds dependencies for the API endpoints.
type Server struct {
	store   *ledger.Store
	tagger  *ledger.Tagger
	assist  assist.ClientInterface
	reports *cache.Cache
	logger  *zap.Logger
	started time.Time
}

// NewServer creates a new Server. The assist client may be nil when no
// gateway is configured; the endpoints that need it report it unavailable.
func NewServer(store *ledger.Store, tagger *ledger.Tagger, client assist.ClientInterface, reportTTL time.Duration, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reportTTL <= 0 {
		reportTTL = 5 * time.Minute
	}
	return &Server{
		store:   store,
		tagger:  tagger,
		assist:  client,
		reports: cache.New(reportTTL, 2*reportTTL),
		logger:  logger,
		started: time.Now(),
	}
}

// Router assembles the chi router with the middleware stack.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(metricsMiddleware)

	r.Get("/metrics", metricsHandler().ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)

		r.Route("/records", func(r chi.Router) {
			r.Get("/", s.handleListRecords)
			r.Post("/", s.handleCreateRecord)
			r.Put("/{id}", s.handleUpdateRecord)
			r.Delete("/{id}", s.handleDeleteRecord)
			r.Post("/{id}/sold", s.handleMarkSold)
			r.Get("/{id}/matches", s.handleMatches)
		})
		r.Get("/matches", s.handleMatches)

		r.Post("/merge", s.handleMerge)
		r.Post("/split", s.handleSplit)

		r.Post("/import", s.handleImport)
		r.Get("/export", s.handleExport)

		r.Get("/stats", s.handleStats)
		r.Get("/stats/monthly", s.handleMonthlyStats)

		r.Post("/extract/screenshots", s.handleExtractScreenshots)
		r.Post("/extract/text", s.handleExtractText)
		r.Post("/report", s.handleReport)
	})

	return r
}
