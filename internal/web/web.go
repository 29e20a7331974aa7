package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"calbar/internal/config"
	"calbar/internal/export"
	appLog "calbar/internal/log"
	"calbar/internal/model"
)

// Provider exposes the daemon's current normalized event set to the API.
type Provider interface {
	Events() []model.Event
	LastUpdated() time.Time
}

// Server provides the local HTTP read surface: health, the raw event list,
// the per-day schedule view, and an ICS export.
type Server struct {
	cfg      *config.Config
	provider Provider
	mux      *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, provider Provider) *Server {
	s := &Server{
		cfg:      cfg,
		provider: provider,
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/schedule", s.handleSchedule)
	s.mux.HandleFunc("/calendar.ics", s.handleICS)
}

// Handler returns the underlying http.Handler, wrapped with basic auth
// when configured.
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
	// Blank credentials are treated as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health.
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
			w.Header().Set("WWW-Authenticate", `Basic realm="calbar", charset="UTF-8"`)
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

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type eventResponse struct {
	Title        string    `json:"title"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	IsAllDay     bool      `json:"is_all_day"`
	Location     string    `json:"location,omitempty"`
	MeetingURL   string    `json:"meeting_url,omitempty"`
	Description  string    `json:"description,omitempty"`
	CalendarName string    `json:"calendar_name,omitempty"`
}

func toEventResponse(ev model.Event) eventResponse {
	return eventResponse{
		Title:        ev.Title,
		StartTime:    ev.Start,
		EndTime:      ev.End,
		IsAllDay:     ev.AllDay,
		Location:     ev.Location,
		MeetingURL:   ev.MeetingURL,
		Description:  ev.Description,
		CalendarName: ev.CalendarName,
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	events := s.visibleEvents()
	out := make([]eventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, toEventResponse(ev))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"updated_at": s.provider.LastUpdated(),
		"events":     out,
	})
}

type dayResponse struct {
	Date   string          `json:"date"`
	AllDay []eventResponse `json:"all_day"`
	Timed  []eventResponse `json:"timed"`
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	events := s.visibleEvents()
	days := model.GroupByDay(events)
	out := make([]dayResponse, 0, len(days))
	for _, day := range days {
		d := dayResponse{
			Date:   day.Date.Format("2006-01-02"),
			AllDay: make([]eventResponse, 0),
			Timed:  make([]eventResponse, 0),
		}
		for _, ev := range day.AllDayEvents() {
			d.AllDay = append(d.AllDay, toEventResponse(ev))
		}
		for _, ev := range day.TimedEvents() {
			d.Timed = append(d.Timed, toEventResponse(ev))
		}
		out = append(out, d)
	}

	resp := map[string]any{
		"updated_at": s.provider.LastUpdated(),
		"days":       out,
	}
	now := time.Now()
	if next, ok := model.NextUpcoming(events, now); ok {
		resp["next"] = map[string]any{
			"title":     next.Title,
			"start":     next.Start,
			"remaining": FormatMinutesRemaining(int(next.Start.Sub(now).Minutes())),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body := export.ICS(s.visibleEvents(), time.Now())
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// visibleEvents applies the show_all_day display toggle.
func (s *Server) visibleEvents() []model.Event {
	events := s.provider.Events()
	if s.cfg.ShowAllDay {
		return events
	}
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if !ev.AllDay {
			out = append(out, ev)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to encode response", err)
	}
}

// FormatMinutesRemaining renders a remaining-time label for the next
// upcoming event.
func FormatMinutesRemaining(minutes int) string {
	switch {
	case minutes < 0:
		return "開始済み"
	case minutes == 0:
		return "まもなく"
	case minutes < 60:
		return fmt.Sprintf("%d分後", minutes)
	}
	hours := minutes / 60
	rest := minutes % 60
	if rest == 0 {
		return fmt.Sprintf("%d時間後", hours)
	}
	return fmt.Sprintf("%d時間%d分後", hours, rest)
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, cfg *config.Config, provider Provider) error {
	s := NewServer(cfg, provider)
	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
