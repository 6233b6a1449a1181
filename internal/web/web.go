package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"freqpick/internal/config"
	"freqpick/internal/feed"
	"freqpick/internal/frequency"
	"freqpick/internal/ics"
	appLog "freqpick/internal/log"
	"freqpick/internal/metrics"
	"freqpick/internal/timezone"
)

// SnapshotSource provides the latest classified feed snapshot.
type SnapshotSource interface {
	Snapshot() *feed.Snapshot
}

// Server exposes the frequency translator and the feed snapshot over HTTP.
type Server struct {
	cfg   *config.Config
	loc   *time.Location
	feeds SnapshotSource
	mux   *http.ServeMux
	now   func() time.Time
}

// NewServer constructs a new Server. loc is the zone used when a request
// does not pass tz. feeds may be nil when no refresher runs.
func NewServer(cfg *config.Config, loc *time.Location, feeds SnapshotSource) *Server {
	s := &Server{
		cfg:   cfg,
		loc:   loc,
		feeds: feeds,
		mux:   http.NewServeMux(),
		now:   time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured. Empty
// credentials count as disabled.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="freqpick", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "http shutdown")
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/frequency/options", s.handleOptions)
	s.mux.HandleFunc("/api/frequency/rule", s.handleRule)
	s.mux.HandleFunc("/api/frequency/classify", s.handleClassify)
	s.mux.HandleFunc("/api/frequency/preview", s.handlePreview)
	s.mux.HandleFunc("/api/frequency/export", s.handleExport)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type optionsResponse struct {
	Date     time.Time          `json:"date"`
	Timezone string             `json:"timezone"`
	Options  []frequency.Choice `json:"options"`
}

// handleOptions lists the picker entries for a reference date.
//
// GET /api/frequency/options?date=2023-07-26&tz=America/New_York
func (s *Server) handleOptions(w http.ResponseWriter, r *http.Request) {
	ref, ok := s.referenceDate(w, r, "date")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, optionsResponse{
		Date:     ref,
		Timezone: ref.Location().String(),
		Options:  frequency.GenerateOptions(ref),
	})
}

type ruleResponse struct {
	Option frequency.Option `json:"option"`
	Label  string           `json:"label"`
	// Rule is null for options that do not repeat.
	Rule *string `json:"rule"`
}

// handleRule returns the RRULE for an option.
//
// GET /api/frequency/rule?option=weekly-day&date=2023-07-26
func (s *Server) handleRule(w http.ResponseWriter, r *http.Request) {
	option, ok := parseOptionParam(w, r)
	if !ok {
		return
	}
	ref, ok := s.referenceDate(w, r, "date")
	if !ok {
		return
	}

	resp := ruleResponse{Option: option, Label: frequency.LabelFor(option, ref)}
	if rule, ok := frequency.GenerateRule(option, ref); ok {
		resp.Rule = &rule
		metrics.RulesGenerated.WithLabelValues(string(option)).Inc()
	}
	writeJSON(w, http.StatusOK, resp)
}

type classifyResponse struct {
	Option frequency.Option `json:"option"`
	Label  string           `json:"label"`
}

// handleClassify maps an existing RRULE back onto a picker option.
//
// GET /api/frequency/classify?start=2023-07-17T00:00:00&rrule=FREQ%3DDAILY
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	start, ok := s.referenceDate(w, r, "start")
	if !ok {
		return
	}
	option := frequency.Classify(start, r.URL.Query().Get("rrule"))
	metrics.Classifications.WithLabelValues(string(option), "api").Inc()
	writeJSON(w, http.StatusOK, classifyResponse{
		Option: option,
		Label:  frequency.LabelFor(option, start),
	})
}

type previewResponse struct {
	Option      frequency.Option `json:"option"`
	Rule        *string          `json:"rule"`
	Occurrences []time.Time      `json:"occurrences"`
}

// handlePreview lists the first occurrences of an option's rule.
//
// GET /api/frequency/preview?option=annually&date=2024-02-29&limit=3
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	option, ok := parseOptionParam(w, r)
	if !ok {
		return
	}
	ref, ok := s.referenceDate(w, r, "date")
	if !ok {
		return
	}
	limit := parseIntDefault(r.URL.Query().Get("limit"), s.cfg.PreviewLimit)
	if limit <= 0 || limit > s.cfg.PreviewLimit {
		limit = s.cfg.PreviewLimit
	}

	rule, repeats := frequency.GenerateRule(option, ref)
	if !repeats {
		if option == frequency.Custom {
			writeError(w, http.StatusBadRequest, "custom has no generated rule")
			return
		}
		writeJSON(w, http.StatusOK, previewResponse{Option: option, Occurrences: []time.Time{ref}})
		return
	}

	occ, err := ics.Preview(rule, ref, limit)
	if err != nil {
		appLog.Error("preview failed", err, "rrule", rule)
		writeError(w, http.StatusInternalServerError, "failed to expand rule")
		return
	}
	writeJSON(w, http.StatusOK, previewResponse{Option: option, Rule: &rule, Occurrences: occ})
}

// handleExport returns a one-event VCALENDAR for the option.
//
// GET /api/frequency/export?option=weekly-day&date=2023-07-26T09:00:00&summary=Office+hours&duration=60
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	option, ok := parseOptionParam(w, r)
	if !ok {
		return
	}
	ref, ok := s.referenceDate(w, r, "date")
	if !ok {
		return
	}
	q := r.URL.Query()
	minutes := parseIntDefault(q.Get("duration"), 60)
	if minutes < 0 {
		writeError(w, http.StatusBadRequest, "duration must not be negative")
		return
	}

	body, err := ics.ExportSeries(ics.SeriesRequest{
		Summary:  q.Get("summary"),
		Start:    ref,
		Duration: time.Duration(minutes) * time.Minute,
		Option:   option,
		Now:      s.now,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if option.Repeats() {
		metrics.RulesGenerated.WithLabelValues(string(option)).Inc()
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="event.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// handleEvents returns the latest classified feed snapshot.
func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	if s.feeds == nil {
		writeError(w, http.StatusServiceUnavailable, "feed refresher not running")
		return
	}
	snap := s.feeds.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "feeds not refreshed yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// referenceDate reads a date parameter in the zone named by tz, or the
// server zone. On failure it writes a 400 and returns false.
func (s *Server) referenceDate(w http.ResponseWriter, r *http.Request, param string) (time.Time, bool) {
	q := r.URL.Query()

	loc := s.loc
	if name := strings.TrimSpace(q.Get("tz")); name != "" {
		l, err := timezone.ParseTimezone(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return time.Time{}, false
		}
		loc = l
	}

	value := q.Get(param)
	if value == "" {
		if param == "date" {
			now := s.now().In(loc)
			return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc), true
		}
		writeError(w, http.StatusBadRequest, param+" is required")
		return time.Time{}, false
	}

	t, err := timezone.ParseReference(value, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return time.Time{}, false
	}
	return t, true
}

func parseOptionParam(w http.ResponseWriter, r *http.Request) (frequency.Option, bool) {
	option, err := frequency.ParseOption(r.URL.Query().Get("option"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return option, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
