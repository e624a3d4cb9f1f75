package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"sealrelay/internal/config"
	"sealrelay/internal/domain"
	"sealrelay/internal/protocol/wire"
)

const shutdownTimeout = 5 * time.Second

// Server is the relay's HTTP front end.
type Server struct {
	cfg      *config.Relay
	router   *Router
	registry *prometheus.Registry
	upgrader websocket.Upgrader
	log      logrus.FieldLogger
}

// NewServer builds a relay from cfg. Metrics are registered on a registry
// private to the server.
func NewServer(cfg *config.Relay, log logrus.FieldLogger) *Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	s := &Server{
		cfg:      cfg,
		router:   NewRouter(log, NewMetrics(reg)),
		registry: reg,
		log:      log.WithField("module", "relay"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Router exposes the server's registry.
func (s *Server) Router() *Router { return s.router }

// Handler returns the relay's HTTP routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.HandleConnections).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.HandleHealth).Methods(http.MethodGet)
	r.Handle(s.cfg.MetricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

// Run serves on cfg.Listen until ctx is cancelled, then shuts down.
// Cancelling ctx also closes every open WebSocket.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.WithField("addr", ln.Addr().String()).Info("relay listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.log.Info("relay shutting down")
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}

// HandleConnections upgrades the request and serves the connection until it
// closes.
func (s *Server) HandleConnections(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	ws.SetReadLimit(s.cfg.MaxFrameBytes)

	id := domain.PeerID(uuid.NewString())
	c := &wsConn{
		id:      id,
		ws:      ws,
		send:    make(chan wire.Frame, s.cfg.SendBuffer),
		done:    make(chan struct{}),
		timeout: s.cfg.WriteTimeout.Duration,
		log:     s.log.WithFields(logrus.Fields{"conn": id, "remote": r.RemoteAddr}),
	}
	if s.cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimit), s.cfg.RateBurst)
	}

	s.router.Connect(c)
	defer s.router.Disconnect(id)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		defer c.close()
		return c.readPump(s.router)
	})
	g.Go(func() error { return c.writePump(ctx) })
	if err := g.Wait(); err != nil {
		c.log.WithError(err).Debug("connection ended")
	}
}

type health struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Joined      int    `json:"joined"`
}

// HandleHealth reports liveness and the registry size.
func (s *Server) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(health{
		Status:      "ok",
		Connections: s.router.Connections(),
		Joined:      len(s.router.Directory()),
	})
}

// checkOrigin accepts requests without an Origin header (non-browser
// clients) and, when an allow-list is configured, only listed origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range s.cfg.AllowedOrigins {
		if o == origin {
			return true
		}
	}
	s.log.WithField("origin", origin).Warn("websocket origin rejected")
	return false
}
