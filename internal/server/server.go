// Package server exposes the ordered task list over HTTP and pushes live
// snapshots to WebSocket clients.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gtodo/internal/order"
	"gtodo/internal/service"
	"gtodo/internal/tasks"
	"gtodo/internal/theme"
)

const shutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	// Addr is the listen address, e.g. "127.0.0.1:18480".
	Addr string

	// PollInterval re-queries the store on this period so changes made by
	// other clients reach subscribers. Zero disables polling.
	PollInterval time.Duration

	// Logger is the server logger. Nil discards.
	Logger *slog.Logger
}

// Server is the gtodo HTTP server.
type Server struct {
	httpServer *http.Server
	hub        *Hub
	facade     *tasks.Facade
	order      *order.List
	theme      *theme.Manager
	log        *slog.Logger
	poll       time.Duration
	stopHub    func()
}

// New creates a server over a started ordered list.
func New(facade *tasks.Facade, list *order.List, themes *theme.Manager, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Server{
		facade: facade,
		order:  list,
		theme:  themes,
		log:    logger,
		poll:   opts.PollInterval,
	}
	s.hub = NewHub(list.Items, logger)
	s.stopHub = list.OnChange(s.hub.Publish)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/api/health", s.handleHealth)
	r.Get("/api/ws", s.hub.ServeWS)

	r.Route("/api/tasks", func(r chi.Router) {
		r.Get("/", s.handleListTasks)
		r.Post("/", s.handleCreateTask)
		r.Post("/clear-completed", s.handleClearCompleted)
		r.Patch("/{id}", s.handleUpdateTask)
		r.Delete("/{id}", s.handleDeleteTask)
	})
	r.Put("/api/order", s.handleReorder)
	r.Get("/api/theme", s.handleGetTheme)
	r.Put("/api/theme", s.handleSetTheme)

	s.httpServer = &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run listens and serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.log.Info("gtodo server listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()
	if s.poll > 0 {
		go s.pollLoop(ctx)
	}

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.Close()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close disconnects WebSocket clients and stops listening for list changes.
func (s *Server) Close() {
	s.stopHub()
	s.hub.Close()
}

func (s *Server) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.facade.Refresh(ctx); err != nil {
				s.log.Warn("poll refresh failed", "error", err)
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"order":  s.order.State().String(),
	})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	filter, err := service.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out := []service.Task{}
	for _, t := range s.order.Items() {
		if filter.Match(t) {
			out = append(out, t)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	t, err := s.facade.Create(r.Context(), body.Text)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IsCompleted *bool `json:"isCompleted"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.IsCompleted == nil {
		writeError(w, http.StatusBadRequest, "isCompleted required")
		return
	}

	if err := s.facade.Update(r.Context(), chi.URLParam(r, "id"), *body.IsCompleted); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.order.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearCompleted(w http.ResponseWriter, r *http.Request) {
	n, err := s.order.ClearCompleted(r.Context())
	if err != nil {
		var partial *tasks.PartialError
		if errors.As(err, &partial) {
			writeJSON(w, http.StatusBadGateway, map[string]any{
				"error":   err.Error(),
				"deleted": partial.Deleted,
			})
			return
		}
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	if err := s.order.Reorder(body.IDs); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGetTheme reports the stored preference and, given ?platform=light|dark,
// the scheme it resolves to.
func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	platform := theme.Light
	if p := r.URL.Query().Get("platform"); p != "" {
		parsed, err := theme.Parse(p)
		if err != nil || parsed == theme.System {
			writeError(w, http.StatusBadRequest, "invalid platform: "+p)
			return
		}
		platform = parsed
	}
	writeJSON(w, http.StatusOK, map[string]theme.Theme{
		"theme":    s.theme.Current(),
		"resolved": s.theme.Resolved(platform),
	})
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Theme string `json:"theme"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	var t theme.Theme
	if body.Theme == "toggle" {
		t = s.theme.Toggle()
	} else {
		parsed, err := theme.Parse(body.Theme)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.theme.Set(parsed)
		t = parsed
	}
	writeJSON(w, http.StatusOK, map[string]theme.Theme{"theme": t})
}

// writeStoreError maps facade and order errors to HTTP statuses.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tasks.ErrEmptyText), errors.Is(err, order.ErrNotPermutation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrNotReady):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.log.Warn("store request failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
