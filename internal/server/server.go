// Package server exposes the running world over HTTP: liveness and
// readiness probes, Prometheus metrics, and a websocket endpoint speaking
// the [protocol] wire format.
//
// The server never blocks the world loop. Snapshots and events arrive via
// [game.Engine.OnTick] and the engine event bus, are encoded once, and are
// fanned out to per-client buffered send channels. A client that cannot
// keep up is dropped, not waited on.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veilgate/ludens/internal/ai"
	"github.com/veilgate/ludens/internal/game"
	"github.com/veilgate/ludens/internal/health"
	"github.com/veilgate/ludens/internal/observe"
)

const (
	defaultAddr = ":8080"

	// defaultStateInterval is the number of ticks between state broadcasts.
	// At the default 60 Hz this is 10 snapshots per second.
	defaultStateInterval = 6

	shutdownTimeout = 5 * time.Second
)

// Option configures a [Server].
type Option func(*Server)

// WithAddr sets the listen address. Defaults to ":8080".
func WithAddr(addr string) Option {
	return func(s *Server) { s.addr = addr }
}

// WithStateInterval sets how many ticks pass between state broadcasts.
func WithStateInterval(ticks int) Option {
	return func(s *Server) {
		if ticks > 0 {
			s.stateInterval = ticks
		}
	}
}

// WithHealthCheckers adds readiness checks beyond the built-in startup
// check (e.g. memory store reachability).
func WithHealthCheckers(checkers ...health.Checker) Option {
	return func(s *Server) {
		s.checkers = append(s.checkers, checkers...)
	}
}

// Server bridges the engine and AI director to websocket clients.
type Server struct {
	eng      *game.Engine
	director *ai.Director

	addr          string
	stateInterval int
	checkers      []health.Checker

	mu      sync.Mutex
	clients map[*client]struct{}

	latest atomic.Pointer[game.Snapshot]
	ready  atomic.Bool

	log *slog.Logger
}

// New wires a server to the engine and director. It registers tick and
// event observers on the engine, so it must be called before
// [game.Engine.Run] starts the world loop.
func New(eng *game.Engine, director *ai.Director, opts ...Option) *Server {
	s := &Server{
		eng:           eng,
		director:      director,
		addr:          defaultAddr,
		stateInterval: defaultStateInterval,
		clients:       make(map[*client]struct{}),
		log:           slog.With("system", "server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.attach()
	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.addr }

// ClientCount returns the number of connected websocket clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Handler returns the HTTP routes. Exposed for tests; [Server.Run] serves
// the same handler.
func (s *Server) Handler() http.Handler {
	started := health.Checker{
		Name: "server",
		Check: func(context.Context) error {
			if !s.ready.Load() {
				return errors.New("starting")
			}
			return nil
		},
	}
	hh := health.New(append([]health.Checker{started}, s.checkers...)...)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(observe.Middleware(observe.DefaultMetrics()))
		hh.Mount(r)
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	})
	// The websocket route bypasses the middleware; its response writer must
	// stay hijackable for the protocol upgrade.
	r.Get("/ws", s.handleWS)
	return r
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully and
// closes all websocket clients.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.ready.Store(true)
	s.log.Info("listening", "addr", s.addr)

	select {
	case err := <-errCh:
		s.ready.Store(false)
		return fmt.Errorf("server: listen on %s: %w", s.addr, err)
	case <-ctx.Done():
	}

	s.ready.Store(false)
	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	s.closeAll()
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen on %s: %w", s.addr, err)
	}
	return nil
}

// SetReady overrides the readiness flag. Run sets it automatically; this
// exists for embedding the handler without Run.
func (s *Server) SetReady(ready bool) { s.ready.Store(ready) }

// ── Client registry ───────────────────────────────────────────────────────

func (s *Server) register(c *client) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	n := len(s.clients)
	s.mu.Unlock()
	metricClients.Set(float64(n))
	s.log.Info("client connected", "clients", n)
}

func (s *Server) unregister(c *client) {
	s.mu.Lock()
	if _, ok := s.clients[c]; ok {
		delete(s.clients, c)
		c.shutdown()
	}
	n := len(s.clients)
	s.mu.Unlock()
	metricClients.Set(float64(n))
	s.log.Info("client disconnected", "clients", n)
}

// broadcast fans an encoded frame out to every client. Clients whose send
// buffer is full are dropped on the spot.
func (s *Server) broadcast(frame []byte) {
	var slow []*client
	s.mu.Lock()
	for c := range s.clients {
		if !c.enqueue(frame) {
			slow = append(slow, c)
		}
	}
	for _, c := range slow {
		delete(s.clients, c)
		c.shutdown()
	}
	n := len(s.clients)
	s.mu.Unlock()

	if len(slow) > 0 {
		metricClientsDropped.Add(float64(len(slow)))
		metricClients.Set(float64(n))
		s.log.Warn("dropped slow clients", "dropped", len(slow), "clients", n)
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	for c := range s.clients {
		delete(s.clients, c)
		c.shutdown()
	}
	s.mu.Unlock()
	metricClients.Set(0)
}

// sceneContext describes the world for dialog prompts, from the latest
// broadcast snapshot.
func (s *Server) sceneContext() string {
	snap := s.latest.Load()
	if snap == nil {
		return ""
	}
	return fmt.Sprintf("scene %q, weather: %s", snap.Scene, snap.Weather.Description)
}
