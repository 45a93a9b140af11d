package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"lochist/internal/config"
	appLog "lochist/internal/log"
	"lochist/internal/model"
	"lochist/internal/render"
	"lochist/internal/stats"
	"lochist/internal/table"
)

// Server exposes the merged table, statistics and the track map over HTTP.
type Server struct {
	cfg *config.Config
	mux *http.ServeMux

	// The table is replaced wholesale on refresh, never mutated.
	mu       sync.RWMutex
	events   table.Table
	loadedAt time.Time
}

// NewServer constructs a Server serving events.
func NewServer(cfg *config.Config, events table.Table) *Server {
	s := &Server{
		cfg: cfg,
		mux: http.NewServeMux(),
	}
	s.SetTable(events)
	s.registerRoutes()
	return s
}

// SetTable swaps in a freshly built table.
func (s *Server) SetTable(t table.Table) {
	s.mu.Lock()
	s.events = t
	s.loadedAt = time.Now()
	s.mu.Unlock()
}

func (s *Server) table() (table.Table, time.Time) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events, s.loadedAt
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

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
			w.Header().Set("WWW-Authenticate", `Basic realm="lochist", charset="UTF-8"`)
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

// ListenAndServe listens on the configured address and serves until ctx
// is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/stats", s.handleStats)
	s.mux.HandleFunc("/api/daily", s.handleDaily)
	s.mux.HandleFunc("/map", s.handleMap)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func selectorFrom(r *http.Request) stats.Selector {
	q := r.URL.Query()
	return stats.Selector{
		Address:  q.Get("address"),
		Name:     q.Get("name"),
		Category: q.Get("category"),
	}
}

func noSelector(sel stats.Selector) bool {
	return sel.Address == "" && sel.Name == "" && sel.Category == ""
}

// eventDTO is a JSON-friendly view of an event.
type eventDTO struct {
	IndexTime string      `json:"index_time"`
	BeginDate string      `json:"begin_date"`
	BeginTime string      `json:"begin_time"`
	EndDate   string      `json:"end_date"`
	EndTime   string      `json:"end_time"`
	Duration  string      `json:"duration"`
	WeekDay   int         `json:"week_day"`
	Address   string      `json:"address,omitempty"`
	Name      string      `json:"name,omitempty"`
	Category  string      `json:"category,omitempty"`
	Distance  int         `json:"distance"`
	Track     [][2]string `json:"track"`
}

func toDTO(ev model.Event) eventDTO {
	track := make([][2]string, len(ev.Track))
	for i, c := range ev.Track {
		track[i] = [2]string{c.Lon, c.Lat}
	}
	return eventDTO{
		IndexTime: ev.IndexTime,
		BeginDate: ev.BeginDate,
		BeginTime: ev.BeginTime,
		EndDate:   ev.EndDate,
		EndTime:   ev.EndTime,
		Duration:  ev.Duration,
		WeekDay:   ev.WeekDay,
		Address:   ev.Address,
		Name:      ev.Name,
		Category:  ev.Category,
		Distance:  ev.Distance,
		Track:     track,
	}
}

type eventsResponse struct {
	Events   []eventDTO `json:"events"`
	Count    int        `json:"count"`
	LoadedAt time.Time  `json:"loaded_at"`
}

// handleEvents returns the table, optionally narrowed by one selector.
//
// GET /api/events[?address=|name=|category=]
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	events, loadedAt := s.table()

	if sel := selectorFrom(r); !noSelector(sel) {
		selection, err := stats.Select(events, sel)
		if err != nil {
			writeSelectError(w, err)
			return
		}
		events = selection.Events
	}

	dtos := make([]eventDTO, 0, len(events))
	for _, ev := range events {
		dtos = append(dtos, toDTO(ev))
	}
	writeJSON(w, http.StatusOK, eventsResponse{Events: dtos, Count: len(dtos), LoadedAt: loadedAt})
}

type statsResponse struct {
	Label      string  `json:"label"`
	SpanDays   int     `json:"span_days"`
	TotalHours float64 `json:"total_hours"`
	Empty      bool    `json:"empty"`
	Message    string  `json:"message,omitempty"`

	// place view
	Visits      *int     `json:"visits,omitempty"`
	HoursPerDay *float64 `json:"hours_per_day,omitempty"`

	// activity view
	Occurrences *int     `json:"occurrences,omitempty"`
	MeanMinutes *float64 `json:"mean_minutes,omitempty"`
	MeanKm      *float64 `json:"mean_km,omitempty"`
	TimesPerDay *float64 `json:"times_per_day,omitempty"`
	TotalKm     *float64 `json:"total_km,omitempty"`
	KmPerDay    *float64 `json:"km_per_day,omitempty"`
}

// handleStats returns the activity view for category=, the place view
// for address= or name=. Empty selections are a 200 with empty=true.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	events, _ := s.table()
	sel := selectorFrom(r)

	if sel.Category != "" && sel.Address == "" && sel.Name == "" {
		a, err := stats.Activity(events, sel.Category)
		if err != nil {
			writeSelectError(w, err)
			return
		}
		resp := statsResponse{
			Label: a.Label, SpanDays: a.SpanDays, TotalHours: a.TotalHours,
			Empty: a.Empty, Message: a.Message(),
		}
		if !a.Empty {
			n := len(a.Events)
			resp.Occurrences = &n
			resp.MeanMinutes = &a.MeanMinutes
			resp.MeanKm = &a.MeanKm
			resp.TimesPerDay = &a.TimesPerDay
			resp.TotalKm = &a.TotalKm
			resp.KmPerDay = &a.KmPerDay
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	p, err := stats.Place(events, sel)
	if err != nil {
		writeSelectError(w, err)
		return
	}
	resp := statsResponse{
		Label: p.Label, SpanDays: p.SpanDays, TotalHours: p.TotalHours,
		Empty: p.Empty, Message: p.Message(),
	}
	if !p.Empty {
		resp.Visits = &p.Visits
		resp.HoursPerDay = &p.HoursPerDay
	}
	writeJSON(w, http.StatusOK, resp)
}

type dayDTO struct {
	Date    string   `json:"date"`
	Minutes float64  `json:"minutes"`
	Km      float64  `json:"km"`
	Speed   *float64 `json:"speed_kmh,omitempty"`
}

// handleDaily returns the per-day breakdown of one category, ascending.
func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	events, _ := s.table()
	category := r.URL.Query().Get("category")

	selection, err := stats.Select(events, stats.Selector{Category: category})
	if err != nil {
		writeSelectError(w, err)
		return
	}
	d, err := stats.Daily(selection.Events)
	if err != nil {
		appLog.Error("api daily failed", err, "category", category)
		writeError(w, http.StatusInternalServerError, "failed to compute daily breakdown")
		return
	}

	days := make([]dayDTO, 0, len(d.Dates))
	for _, date := range d.Dates {
		day := dayDTO{Date: date, Minutes: d.Minutes[date], Km: d.Km[date]}
		if v, ok := d.Speed[date]; ok {
			day.Speed = &v
		}
		days = append(days, day)
	}
	writeJSON(w, http.StatusOK, days)
}

// handleMap renders the tracks of the (optionally selected) events.
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	events, _ := s.table()
	title := "Location history"

	if sel := selectorFrom(r); !noSelector(sel) {
		selection, err := stats.Select(events, sel)
		if err != nil {
			writeSelectError(w, err)
			return
		}
		events = selection.Events
		title = fmt.Sprintf("%s (%d events)", selection.Label, len(events))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := render.Map(w, events, render.Options{Title: title}); err != nil {
		appLog.Error("render map failed", err)
	}
}

func writeSelectError(w http.ResponseWriter, err error) {
	if errors.Is(err, stats.ErrAmbiguousSelector) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	appLog.Error("selection failed", err)
	writeError(w, http.StatusInternalServerError, "selection failed")
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
