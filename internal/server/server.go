// Package server exposes the scoring engines over HTTP. Every response is
// a JSON envelope {ok, data, error, _meta}; failure statuses reflect the
// upstream failure class rather than masking it as 200.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/StreetFDN/roboglobe/internal/company"
	"github.com/StreetFDN/roboglobe/internal/confidence"
	"github.com/StreetFDN/roboglobe/internal/fetch"
	"github.com/StreetFDN/roboglobe/internal/history"
	"github.com/StreetFDN/roboglobe/internal/narrative"
	"github.com/StreetFDN/roboglobe/internal/signal"
	"github.com/StreetFDN/roboglobe/internal/similarity"
)

// Cache-Control max-age per route, in seconds, tracking how volatile the
// underlying data is.
const (
	cacheNarrative = 900
	cacheHistory   = 3600
	cacheCompanies = 86400
	cacheSignals   = 300
)

const defaultHistoryDays = 30

const shutdownTimeout = 10 * time.Second

type envelope struct {
	OK    bool   `json:"ok"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
	Meta  *meta  `json:"_meta,omitempty"`
}

type meta struct {
	Confidence  float64 `json:"confidence"`
	Source      string  `json:"source"`
	LastUpdated string  `json:"lastUpdated,omitempty"`
}

func newMeta(conf float64, source string, lastUpdated time.Time) *meta {
	m := &meta{Confidence: conf, Source: source}
	if !lastUpdated.IsZero() {
		m.LastUpdated = lastUpdated.UTC().Format(time.RFC3339)
	}
	return m
}

// Server routes API requests to the engines.
type Server struct {
	engine    *narrative.Engine
	store     history.Store
	companies *company.Store
	scorers   map[string]signal.Scorer
	logger    *zap.Logger
	now       func() time.Time
}

// NewServer wires the handler dependencies. The scorer list backs the
// per-component signal routes.
func NewServer(engine *narrative.Engine, store history.Store, companies *company.Store, scorers []signal.Scorer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	byName := make(map[string]signal.Scorer, len(scorers))
	for _, sc := range scorers {
		byName[sc.Component()] = sc
	}
	return &Server{
		engine:    engine,
		store:     store,
		companies: companies,
		scorers:   byName,
		logger:    logger,
		now:       time.Now,
	}
}

// Handler builds the routed handler with request-ID and access-log
// middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/narrative", s.handleNarrative)
	mux.HandleFunc("GET /api/narrative/history", s.handleHistory)
	mux.HandleFunc("GET /api/companies", s.handleCompanies)
	mux.HandleFunc("GET /api/companies/{id}", s.handleCompany)
	mux.HandleFunc("GET /api/similar", s.handleSimilar)
	mux.HandleFunc("GET /api/signals/{component}", s.handleSignal)
	return s.withAccessLog(mux)
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down api server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.ok(w, 0, map[string]string{"status": "healthy"}, nil)
}

func (s *Server) handleNarrative(w http.ResponseWriter, r *http.Request) {
	score, err := s.engine.Compute(r.Context())
	if err != nil {
		s.fail(w, statusFor(err), err.Error())
		return
	}
	s.ok(w, cacheNarrative, score, newMeta(score.Confidence, "narrative", score.Timestamp))
}

type historyStats struct {
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Trend   string  `json:"trend"`
}

type historyResponse struct {
	Days   int             `json:"days"`
	Count  int             `json:"count"`
	Scores []history.Entry `json:"scores"`
	Stats  historyStats    `json:"stats"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	days := defaultHistoryDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.fail(w, http.StatusBadRequest, "days must be an integer")
			return
		}
		days = n
	}
	if err := history.ValidateDays(days); err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := s.store.Window(r.Context(), days)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := historyResponse{
		Days:   days,
		Count:  len(entries),
		Scores: entries,
		Stats:  statsOf(entries, s.now()),
	}
	var m *meta
	if n := len(entries); n > 0 {
		last := entries[n-1]
		m = newMeta(last.Confidence, "history", last.Timestamp)
	}
	s.ok(w, cacheHistory, resp, m)
}

// statsOf derives the summary the dashboard plots alongside the series.
func statsOf(entries []history.Entry, now time.Time) historyStats {
	stats := historyStats{Trend: narrative.TrendStable}
	if len(entries) == 0 {
		return stats
	}
	sum := 0.0
	stats.Min = entries[0].Overall
	stats.Max = entries[0].Overall
	for _, e := range entries {
		sum += e.Overall
		if e.Overall < stats.Min {
			stats.Min = e.Overall
		}
		if e.Overall > stats.Max {
			stats.Max = e.Overall
		}
	}
	stats.Average = round1(sum / float64(len(entries)))
	stats.Trend = narrative.DetectTrend(entries, now, 0, 0)
	return stats
}

type companiesResponse struct {
	Count     int               `json:"count"`
	Companies []company.Company `json:"companies"`
}

func (s *Server) handleCompanies(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, 0)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}
	companies, err := s.companies.All()
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if limit > 0 && limit < len(companies) {
		companies = companies[:limit]
	}
	s.ok(w, cacheCompanies, companiesResponse{Count: len(companies), Companies: companies}, nil)
}

func (s *Server) handleCompany(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, found, err := s.companies.Find(id)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		s.fail(w, http.StatusNotFound, fmt.Sprintf("company %q not found", id))
		return
	}
	completeness := confidence.Completeness(c.Fields())
	s.ok(w, cacheCompanies, c, newMeta(completeness, "dataset", time.Time{}))
}

type similarResponse struct {
	CompanyID string             `json:"companyId"`
	Matches   []similarity.Match `json:"matches"`
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("companyId")
	if id == "" {
		s.fail(w, http.StatusBadRequest, "companyId is required")
		return
	}
	limit, err := parseLimit(r, similarity.DefaultLimit)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err.Error())
		return
	}

	src, found, err := s.companies.Find(id)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		s.fail(w, http.StatusNotFound, fmt.Sprintf("company %q not found", id))
		return
	}
	candidates, err := s.companies.All()
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err.Error())
		return
	}

	matches := similarity.FindSimilar(src, candidates, limit, similarity.DefaultWeights())
	s.ok(w, cacheCompanies, similarResponse{CompanyID: src.ID, Matches: matches}, nil)
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("component")
	scorer, ok := s.scorers[name]
	if !ok {
		s.fail(w, http.StatusNotFound, fmt.Sprintf("unknown signal component %q", name))
		return
	}
	reading, err := scorer.Score(r.Context())
	if err != nil {
		s.fail(w, statusFor(err), err.Error())
		return
	}
	conf := confidence.Freshness(reading.LastUpdated, s.now())
	s.ok(w, cacheSignals, reading, newMeta(conf, name, reading.LastUpdated))
}

// statusFor maps an upstream error onto the response status: 404 passes
// through, transient upstream failures read as 502, anything else is 500.
func statusFor(err error) int {
	var fe *fetch.Error
	if errors.As(err, &fe) {
		if fe.Status == http.StatusNotFound {
			return http.StatusNotFound
		}
		if fe.Retryable() {
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}

func parseLimit(r *http.Request, def int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	return n, nil
}

func (s *Server) ok(w http.ResponseWriter, maxAge int, data any, m *meta) {
	if maxAge > 0 {
		w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAge))
	}
	s.writeJSON(w, http.StatusOK, envelope{OK: true, Data: data, Meta: m})
}

func (s *Server) fail(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, envelope{OK: false, Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, env envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		s.logger.Warn("encoding response failed", zap.Error(err))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withAccessLog tags each request with a UUID and logs method, path,
// status, and duration.
func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			zap.String("id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
