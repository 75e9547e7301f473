// Package server exposes a LocalityBalancer over HTTP, with a middleware
// chain and graceful shutdown.
//
// Request processing pipeline:
//
//	Accept conn → net/http → Middleware Chain → chi router → handler → LocalityBalancer
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"geo-lb/loadbalance"
	"geo-lb/message"
	"geo-lb/middleware"
	"geo-lb/registry"
)

// maxBodyBytes bounds register request bodies.
const maxBodyBytes = 1 << 20

// Server is the HTTP front door of the locality balancer.
type Server struct {
	lb             *loadbalance.LocalityBalancer
	log            *zap.Logger
	metricsHandler http.Handler            // served on /metrics when set
	middlewares    []middleware.Middleware // applied in the order they were added

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	shutdown   atomic.Bool // set before closing so Serve can tell a requested stop from a failure
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metricsHandler = h }
}

// NewServer creates a server for lb.
func NewServer(lb *loadbalance.LocalityBalancer, opts ...Option) *Server {
	s := &Server{lb: lb}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// Use registers a middleware. Middlewares are applied in the order they are added.
func (s *Server) Use(mw middleware.Middleware) {
	s.middlewares = append(s.middlewares, mw)
}

// Handler builds the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Post("/clients", s.handleRegister)
	r.Get("/clients", s.handleList)
	r.Get("/clients/select", s.handleSelect)
	r.Delete("/clients/{id}", s.handleDeregister)
	r.Post("/admin/reset", s.handleReset)
	if s.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.metricsHandler)
	}
	return middleware.Chain(s.middlewares...)(r)
}

// Serve listens on address and serves until Shutdown. It returns nil after a
// requested shutdown.
func (s *Server) Serve(network, address string) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return err
	}

	// Build the middleware chain once at startup, not per request.
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.mu.Lock()
	s.listener = listener
	s.httpServer = srv
	s.mu.Unlock()

	if s.shutdown.Load() {
		listener.Close()
		return nil
	}

	s.log.Info("serving", zap.String("addr", listener.Addr().String()), zap.String("strategy", s.lb.Strategy()))

	err = srv.Serve(listener)
	if s.shutdown.Load() || errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Addr returns the listening address, or nil before Serve has bound.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown stops accepting connections and waits up to timeout for in-flight
// requests to finish.
func (s *Server) Shutdown(timeout time.Duration) error {
	// Set the flag before closing so Serve returns nil rather than an error.
	s.shutdown.Store(true)

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("timeout waiting for ongoing requests to finish: %w", err)
	}
	return nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req message.RegisterRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	c := req.Client()
	s.lb.Register(c)
	writeJSON(w, http.StatusCreated, message.ClientResponse{Client: c})
}

func (s *Server) handleDeregister(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.lb.DeregisterID(id); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, "client not registered")
			return
		}
		s.log.Error("deregister failed", zap.String("client_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	clients := s.lb.Clients()
	if clients == nil {
		clients = []registry.Client{}
	}
	writeJSON(w, http.StatusOK, message.ListResponse{Clients: clients, Count: len(clients)})
}

// handleSelect treats a missing filter parameter as an empty filter, which
// never matches.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	c, err := s.lb.SelectClient(r.URL.Query().Get("filter"))
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no client available for this filter")
			return
		}
		s.log.Error("select failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, message.ClientResponse{Client: c})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.lb.Reset()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, message.ErrorResponse{Error: msg})
}
