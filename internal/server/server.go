// Package server exposes the emitter's ingress surface: health, the
// recent-events snapshot, external event injection and ad-hoc test pushes.
// The handlers are thin adapters onto the event store and dispatcher.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tify-app/emitter/internal/domain/event"
	"github.com/tify-app/emitter/internal/services/emitter"
)

type Server struct {
	log          *zap.Logger
	store        event.Store
	disp         *emitter.Dispatcher
	deviceTokens []string
	health       func(context.Context) error
	now          func() time.Time
}

func New(log *zap.Logger, store event.Store, disp *emitter.Dispatcher, deviceTokens []string, health func(context.Context) error) *Server {
	return &Server{
		log:          log.With(zap.String("component", "emitter.http")),
		store:        store,
		disp:         disp,
		deviceTokens: deviceTokens,
		health:       health,
		now:          time.Now,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/event", s.handleEvent)
	mux.HandleFunc("/send", s.handleSend)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	hctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.health(hctx); err != nil {
		http.Error(w, "unhealthy: db", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

type eventRequest struct {
	ID        string  `json:"id"`
	ChannelID string  `json:"channelId"`
	Content   string  `json:"content"`
	CreatedAt string  `json:"createdAt"`
	EventAt   *string `json:"eventAt"`
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.log.Warn("bad event payload", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	now := s.now().UTC()
	var eventAt *time.Time
	if req.EventAt != nil {
		eventAt = emitter.ParseEventAt(*req.EventAt)
	}

	ev := event.Event{
		ID:        req.ID,
		ChannelID: req.ChannelID,
		Content:   emitter.BuildContent(req.Content, eventAt),
		CreatedAt: req.CreatedAt,
		EventAt:   req.EventAt,
	}
	if ev.ID == "" {
		ev.ID = emitter.LocalID(now)
	}
	if ev.ChannelID == "" {
		ev.ChannelID = "unknown"
	}
	if ev.CreatedAt == "" {
		ev.CreatedAt = now.Format(time.RFC3339)
	}

	s.store.Upsert(ev)
	// Push is best effort; the event is buffered either way.
	sent := s.disp.PushEvent(r.Context(), ev)
	s.log.Info("event injected",
		zap.String("event_id", ev.ID),
		zap.String("channel_id", ev.ChannelID),
		zap.Bool("push_sent", sent),
	)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type sendRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		req.Content = ""
	}
	if req.Content == "" {
		req.Content = "Prueba de emergencia"
	}
	content := emitter.BuildContent(req.Content, nil)

	ok := s.disp.PushToTokens(r.Context(), content, s.deviceTokens)
	status := http.StatusOK
	if !ok {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]any{"sent": ok, "tokens": len(s.deviceTokens)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Listen binds host:port, falling back once to the wildcard address when the
// configured host cannot be bound.
func Listen(log *zap.Logger, host string, port int) (net.Listener, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err == nil {
		log.Info("http listening", zap.String("addr", addr))
		return ln, nil
	}
	log.Warn("bind failed, retrying on wildcard", zap.String("addr", addr), zap.Error(err))

	fallback := fmt.Sprintf("0.0.0.0:%d", port)
	ln, err2 := net.Listen("tcp", fallback)
	if err2 != nil {
		return nil, fmt.Errorf("bind %s: %w (fallback %s: %v)", addr, err, fallback, err2)
	}
	log.Info("http listening", zap.String("addr", fallback))
	return ln, nil
}

// NewHTTPServer wraps the handler with the usual server timeouts.
func NewHTTPServer(h http.Handler) *http.Server {
	return &http.Server{
		Handler:           h,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
}
