// Package server exposes the research store and reports over read-only HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/genericrobot77/meds-job/internal/listing"
	"github.com/genericrobot77/meds-job/internal/model"
	"github.com/genericrobot77/meds-job/internal/report"
	"github.com/genericrobot77/meds-job/internal/store"
)

// Config holds server settings.
type Config struct {
	CORSOrigins []string
	// ListingPath is the listing the report endpoints render.
	ListingPath   string
	Listing       listing.Options
	ListDelimiter string
	Now           func() time.Time
}

// Server serves records and reports. The store is read on every request and
// never written.
type Server struct {
	cfg    Config
	fields *model.FieldRegistry
	store  store.Store
	gen    *report.Generator
}

// New creates a Server.
func New(cfg Config, fields *model.FieldRegistry, st store.Store) *Server {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Server{cfg: cfg, fields: fields, store: st, gen: report.NewGenerator(fields, cfg.ListDelimiter)}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/records", s.handleRecords)
		r.Get("/records/{code}", s.handleRecord)
		r.Get("/reports/aggregate", s.handleAggregate)
		r.Get("/reports/tabular", s.handleTabular)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRecords(w http.ResponseWriter, _ *http.Request) {
	doc, err := s.store.Load()
	if err != nil {
		writeError(w, err)
		return
	}
	data, err := store.Encode(doc, s.fields)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	doc, err := s.store.Load()
	if err != nil {
		writeError(w, err)
		return
	}
	rec := doc.Get(code)
	if rec == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no record for " + code})
		return
	}
	writeJSON(w, http.StatusOK, store.EncodeRecord(rec, s.fields))
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	concepts, doc, err := s.load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = report.FormatJSON
	}
	agg := s.gen.BuildAggregate(concepts, doc, report.NewMetadata(s.cfg.ListingPath, concepts, s.cfg.Now()))

	contentType := "application/json"
	if format == report.FormatYAML {
		contentType = "application/yaml"
	}
	render(w, contentType, func(buf io.Writer) error {
		return report.WriteAggregate(buf, agg, format)
	})
}

func (s *Server) handleTabular(w http.ResponseWriter, r *http.Request) {
	concepts, doc, err := s.load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	rows := s.gen.BuildTabular(concepts, doc)
	render(w, "text/csv; charset=utf-8", func(buf io.Writer) error {
		return report.WriteTabular(buf, rows, report.FormatCSV)
	})
}

func (s *Server) load(ctx context.Context) ([]model.Concept, *model.Document, error) {
	concepts, err := listing.Load(ctx, s.cfg.ListingPath, s.cfg.Listing)
	if err != nil {
		return nil, nil, err
	}
	doc, err := s.store.Load()
	if err != nil {
		return nil, nil, err
	}
	return concepts, doc, nil
}

// render buffers the body so a failed render still yields an error status.
func render(w http.ResponseWriter, contentType string, fn func(io.Writer) error) {
	var buf bytes.Buffer
	if err := fn(&buf); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes()) //nolint:errcheck
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if eris.Is(err, listing.ErrMissingInput) {
		status = http.StatusNotFound
	}
	zap.L().Error("server: request failed", zap.Int("status", status), zap.Error(err))
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("server: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
