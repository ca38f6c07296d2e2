// Package api is the HTTP front end: request identity, routing, and JSON
// encoding around the memory banks and generation collaborators.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/neurocanvas/neurocanvas/pkg/artgen"
	"github.com/neurocanvas/neurocanvas/pkg/memory"
	"github.com/neurocanvas/neurocanvas/pkg/metrics"
	"github.com/neurocanvas/neurocanvas/pkg/narrative"
	"github.com/neurocanvas/neurocanvas/pkg/store/sqlite"
)

// Options wires the server's collaborators.
type Options struct {
	Emotional   *memory.Bank
	Artistic    *memory.Bank
	DB          *sqlite.Database
	ArtGen      artgen.Generator
	Narrative   narrative.Generator
	JWTSecret   string
	CORSOrigins []string
	Metrics     bool
	WebSocket   bool
	Logger      zerolog.Logger
}

// Server exposes the NeuroCanvas HTTP API.
type Server struct {
	emotional *memory.Bank
	artistic  *memory.Bank
	db        *sqlite.Database
	artGen    artgen.Generator
	narrative narrative.Generator
	hub       *Hub
	jwtSecret string
	log       zerolog.Logger
	router    chi.Router
}

// NewServer assembles the router.
func NewServer(opt Options) *Server {
	s := &Server{
		emotional: opt.Emotional,
		artistic:  opt.Artistic,
		db:        opt.DB,
		artGen:    opt.ArtGen,
		narrative: opt.Narrative,
		jwtSecret: opt.JWTSecret,
		log:       opt.Logger,
	}
	if opt.WebSocket {
		s.hub = NewHub(opt.Logger, opt.CORSOrigins)
	}
	if s.artGen == nil {
		s.artGen = artgen.NewProcedural()
	}
	if s.narrative == nil {
		s.narrative = narrative.NewTemplate()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opt.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.Get("/health", s.handleHealth)
	if opt.Metrics {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}
	if s.hub != nil {
		r.Get("/ws", s.handleWebSocket)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/emotion/analyze", s.handleAnalyzeEmotion)
		r.Get("/emotion/history", s.handleEmotionHistory)
		r.Post("/art/generate", s.handleGenerateArt)
		r.Get("/art/gallery", s.handleGallery)
		r.Post("/narrative/generate", s.handleGenerateNarrative)
		r.Get("/memory/patterns", s.handlePatterns)
		r.Get("/memory/recommendations", s.handleRecommendations)
	})

	s.router = r
	return s
}

// Handler returns the assembled http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// requestLogger emits one structured line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
