package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/y1hao/pollphase/internal/store"
)

const (
	// sseWriteTimeout bounds a single SSE write, so a stalled client cannot
	// pin its handler goroutine. Must be <= shutdownTimeout.
	sseWriteTimeout = 5 * time.Second

	shutdownTimeout = 5 * time.Second
)

// Server exposes recorded ticks and poller metrics over HTTP:
//   - GET /api/ticks: all retained ticks as JSON
//   - GET /api/sse: Server-Sent Events stream of ticks as they are recorded
//   - GET /metrics: Prometheus exposition
//
// The server shuts down gracefully when the context passed to
// [Server.Start] is cancelled.
type Server struct {
	store      store.Store
	addr       string
	gatherer   prometheus.Gatherer
	httpServer *http.Server
	listener   net.Listener
	logger     *slog.Logger
	// stopped is closed once Shutdown has returned
	stopped chan struct{}
}

// NewServer creates a [Server] listening on addr (e.g. ":9090", or
// "127.0.0.1:0" for an OS-assigned port). If gatherer is nil, the default
// Prometheus registry is exposed. The server is not started until
// [Server.Start] is called.
func NewServer(st store.Store, addr string, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:    st,
		addr:     addr,
		gatherer: gatherer,
		logger:   logger,
	}
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/ticks", s.handleTicks)
	mux.HandleFunc("/api/sse", s.handleSSE)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start returns once the listener is bound. The server runs until ctx is
// cancelled, then shuts down with a 5-second timeout.
//
// Returns an error if the server fails to bind to the configured address.
func (s *Server) Start(ctx context.Context) error {
	// bind synchronously so address errors are reported to the caller
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind to %s: %w", s.addr, err)
	}
	s.listener = ln
	s.stopped = make(chan struct{})

	s.httpServer = &http.Server{
		Handler: s.Handler(),
		// request contexts end with ctx, which releases SSE handlers on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		defer close(s.stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
			return
		}
		s.logger.Info("http server stopped")
	}()

	s.logger.Info("http server listening", "addr", ln.Addr().String())

	return nil
}

// Wait blocks until the server has shut down after the context passed to
// [Server.Start] is cancelled. It returns immediately if Start was never
// called successfully.
func (s *Server) Wait() {
	if s.stopped == nil {
		return
	}
	<-s.stopped
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// handleTicks returns all retained ticks as JSON.
func (s *Server) handleTicks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ticks := s.store.All()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(ticks); err != nil {
		s.logger.Error("failed to encode ticks response", "error", err)
	}
}

// handleSSE streams ticks via Server-Sent Events: first the retained ticks,
// then each new one as it is recorded. Every event carries the tick's Seq as
// its id.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// not every ResponseWriter supports deadlines, e.g. httptest.ResponseRecorder
	deadlinesSupported := true

	writeAndFlush := func(record store.TickRecord) error {
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}

		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Warn("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "id: %d\ndata: %s\n\n", record.Seq, data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// subscribe before the snapshot, then skip anything the snapshot covered
	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	var lastSeq uint64
	for _, record := range s.store.All() {
		if err := writeAndFlush(record); err != nil {
			return
		}
		lastSeq = record.Seq
	}

	for {
		select {
		case record, ok := <-ch:
			if !ok {
				return
			}
			if record.Seq <= lastSeq {
				continue
			}
			if err := writeAndFlush(record); err != nil {
				return
			}
			lastSeq = record.Seq

		case <-r.Context().Done():
			// fires on client disconnect, and on server shutdown via BaseContext
			return
		}
	}
}
