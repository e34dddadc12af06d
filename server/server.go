package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"mkvert/calculator"
	"mkvert/config"
	"mkvert/exporter"
	"mkvert/model"
)

const shutdownTimeout = 5 * time.Second

type Option func(s *Server)

// WithClock sets the clock stamped on exported tables.
func WithClock(c clockwork.Clock) Option {
	return func(s *Server) {
		s.exporter = exporter.New(c)
	}
}

// Server 提供 websocket 构建服务, 以及 /metrics 和 /healthz
type Server struct {
	addr     string
	upgrader websocket.Upgrader

	registry   *prometheus.Registry
	metrics    *Metrics
	exporter   *exporter.Exporter
	build      func(cfg *config.Config) (*calculator.Result, error)
	httpServer *http.Server
}

func NewServer(addr string, upgrader websocket.Upgrader, opts ...Option) *Server {
	reg := prometheus.NewRegistry()
	s := &Server{
		addr:     addr,
		upgrader: upgrader,
		registry: reg,
		metrics:  NewMetrics(reg),
		exporter: exporter.New(nil),
		build:    calculator.Build,
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWs)
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	s.httpServer = &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	return s
}

// Handler exposes the routes, useful for testing.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Serve listens until ctx is cancelled, then drains the HTTP connections.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()
	log.WithField("addr", s.addr).Info("build service listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errCh
	log.Info("build service stopped")
	return nil
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// serveWs handles websocket requests from the peer.
func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()
	s.metrics.Connections.Inc()
	defer s.metrics.Connections.Dec()

	hub := NewHub(s, conn)
	done := make(chan struct{})
	go hub.handleRequest()
	go func() {
		hub.handleResponse()
		close(done)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("websocket read failed")
			}
			break
		}
		var msg model.Msg
		if err := json.Unmarshal(data, &msg); err != nil {
			msg = model.Msg{Type: model.MsgError, Content: "malformed message: " + err.Error()}
		}
		hub.msg <- msg
	}
	close(hub.msg)
	<-done
}

// run builds the configuration carried by a request and renders the reply
// content: the encoded table for a build, the text report for a report.
func (s *Server) run(kind string, ini []byte) (string, error) {
	start := time.Now()
	cfg, err := config.Parse(ini)
	var res *calculator.Result
	if err == nil {
		res, err = s.build(cfg)
	}
	s.metrics.BuildDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.Builds.WithLabelValues(outcome(model.Kind(err))).Inc()
		return "", err
	}
	s.metrics.Builds.WithLabelValues(outcome("")).Inc()
	s.metrics.Iterations.Observe(float64(res.Iterations))

	table := s.exporter.NewTable(cfg, res)
	if kind == model.MsgReport {
		report, err := exporter.NewReport(table)
		if err != nil {
			return "", err
		}
		return report.Render(), nil
	}
	var buf bytes.Buffer
	if err := table.Encode(&buf, cfg.Export.Format); err != nil {
		return "", err
	}
	return buf.String(), nil
}
