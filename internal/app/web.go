// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/relabs-tech/barometer_bridge/internal/barometer"
	"github.com/relabs-tech/barometer_bridge/internal/config"
	"github.com/relabs-tech/barometer_bridge/internal/gauge"
	"github.com/relabs-tech/barometer_bridge/internal/history"
	"github.com/relabs-tech/barometer_bridge/internal/metrics"
)

const (
	defaultReadingsLimit = 100
	maxReadingsLimit     = 10000
	wsWriteWait          = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// WebOptions configures the demo gauge served over the websocket.
type WebOptions struct {
	Limits         gauge.Limits
	PicSize        int
	DemoWatchEvery time.Duration
	StaticDir      string
}

// WebServer exposes the bridge over HTTP and a websocket demo gauge.
type WebServer struct {
	bridge  *barometer.Bridge
	store   history.Store
	metrics *metrics.Metrics
	opts    WebOptions
}

// NewWebServer builds the API. A nil m disables /metrics.
func NewWebServer(bridge *barometer.Bridge, store history.Store, m *metrics.Metrics, opts WebOptions) *WebServer {
	if opts.PicSize <= 0 {
		opts.PicSize = gauge.DefaultPicSize
	}
	return &WebServer{bridge: bridge, store: store, metrics: m, opts: opts}
}

func (s *WebServer) Handler() http.Handler {
	r := mux.NewRouter()

	r.Handle("/health", s.metrics.WrapHandler("/health", http.HandlerFunc(s.handleHealth))).Methods(http.MethodGet)
	r.Handle("/api/pressure", s.metrics.WrapHandler("/api/pressure", http.HandlerFunc(s.handlePressure))).Methods(http.MethodGet)
	r.Handle("/api/readings", s.metrics.WrapHandler("/api/readings", http.HandlerFunc(s.handleReadings))).Methods(http.MethodGet)
	r.Handle("/ws", s.metrics.WrapHandler("/ws", http.HandlerFunc(s.handleWS)))
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	if s.opts.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.opts.StaticDir)))
	}
	return r
}

func (s *WebServer) handleHealth(response http.ResponseWriter, request *http.Request) {
	ctx, cancel := context.WithTimeout(request.Context(), 2*time.Second)
	defer cancel()

	status, code := "ok", http.StatusOK
	if err := s.store.Ping(ctx); err != nil {
		log.Printf("web: store ping failed: %v", err)
		status, code = "degraded", http.StatusServiceUnavailable
	}

	body := map[string]any{
		"status":      status,
		"running":     s.bridge.Running(),
		"subscribers": s.bridge.Subscribers(),
		"watches":     s.bridge.Watches(),
	}
	if last, ok := s.bridge.Last(); ok {
		body["last_reading"] = humanize.Time(last.Time())
	}
	writeJSON(response, code, body)
}

func (s *WebServer) handlePressure(response http.ResponseWriter, _ *http.Request) {
	reading, ok := s.bridge.Last()
	if !ok {
		writeError(response, http.StatusServiceUnavailable, "no data yet")
		return
	}
	writeJSON(response, http.StatusOK, reading)
}

func (s *WebServer) handleReadings(response http.ResponseWriter, request *http.Request) {
	limit := defaultReadingsLimit
	if raw := request.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxReadingsLimit {
			writeError(response, http.StatusBadRequest, fmt.Sprintf("limit must be 1-%d", maxReadingsLimit))
			return
		}
		limit = parsed
	}

	readings, err := s.store.Latest(request.Context(), limit)
	if err != nil {
		log.Printf("web: history query failed: %v", err)
		writeError(response, http.StatusInternalServerError, "history unavailable")
		return
	}
	if readings == nil {
		readings = []barometer.Reading{}
	}
	writeJSON(response, http.StatusOK, map[string]any{"readings": readings})
}

// WSMessage is a command from the demo page.
type WSMessage struct {
	Action string `json:"action"` // watch, clear, limits
	Min    *int   `json:"min,omitempty"`
	Max    *int   `json:"max,omitempty"`
}

// WSResponse is pushed to the demo page.
type WSResponse struct {
	Type    string   `json:"type"` // reading, limits, error
	Val     *float64 `json:"val,omitempty"`
	Factor  *float64 `json:"factor,omitempty"`
	Size    *float64 `json:"size,omitempty"`
	Min     *int     `json:"min,omitempty"`
	Max     *int     `json:"max,omitempty"`
	Message string   `json:"message,omitempty"`
}

// gaugeSession is one connected demo page.
type gaugeSession struct {
	conn   *websocket.Conn
	bridge *barometer.Bridge
	scaler *gauge.Scaler
	every  time.Duration

	writeMu sync.Mutex

	mu       sync.Mutex
	watchID  barometer.WatchID
	watching bool
}

func (s *WebServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	session := &gaugeSession{
		conn:   conn,
		bridge: s.bridge,
		scaler: gauge.NewScaler(s.opts.Limits, s.opts.PicSize),
		every:  s.opts.DemoWatchEvery,
	}
	defer session.clear()

	log.Printf("web: gauge session opened from %s", r.RemoteAddr)
	session.sendLimits()

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("web: websocket read error: %v", err)
			}
			return
		}

		switch msg.Action {
		case "watch":
			session.watch()
		case "clear":
			session.clear()
		case "limits":
			if msg.Min != nil {
				session.scaler.SetMin(*msg.Min)
			}
			if msg.Max != nil {
				session.scaler.SetMax(*msg.Max)
			}
			session.sendLimits()
		default:
			session.send(WSResponse{Type: "error", Message: "unknown action: " + msg.Action})
		}
	}
}

func (g *gaugeSession) watch() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.watching {
		return
	}

	id, err := g.bridge.Watch(g.sendReading, g.sendError, &barometer.Options{Frequency: g.every})
	if err != nil {
		log.Printf("web: watch failed: %v", err)
		g.send(WSResponse{Type: "error", Message: "ERROR"})
		return
	}
	g.watchID, g.watching = id, true
}

func (g *gaugeSession) clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.watching {
		return
	}
	g.bridge.CancelWatch(g.watchID)
	g.watching = false
}

func (g *gaugeSession) sendReading(r barometer.Reading) {
	frame := g.scaler.Frame(r.Value)
	resp := WSResponse{Type: "reading", Val: &frame.Value}
	// an empty range has no finite scale
	if finite(frame.Factor) && finite(frame.Size) {
		resp.Factor, resp.Size = &frame.Factor, &frame.Size
	}
	g.send(resp)
}

func (g *gaugeSession) sendError(err error) {
	log.Printf("web: barometer error: %v", err)
	g.send(WSResponse{Type: "error", Message: "ERROR"})
}

func (g *gaugeSession) sendLimits() {
	l := g.scaler.Limits()
	g.send(WSResponse{Type: "limits", Min: &l.Min, Max: &l.Max})
}

func (g *gaugeSession) send(resp WSResponse) {
	g.writeMu.Lock()
	defer g.writeMu.Unlock()

	g.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := g.conn.WriteJSON(resp); err != nil {
		log.Printf("web: websocket write error: %v", err)
	}
}

func writeJSON(response http.ResponseWriter, status int, payload any) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)
	if err := json.NewEncoder(response).Encode(payload); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

func writeError(response http.ResponseWriter, status int, message string) {
	writeJSON(response, status, map[string]string{"error": message})
}

// RunWeb serves the HTTP API and the gauge demo until interrupted.
func RunWeb() error {
	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	setupCtx, cancelSetup := context.WithTimeout(ctx, 10*time.Second)
	store, err := openStore(setupCtx, cfg)
	cancelSetup()
	if err != nil {
		return err
	}
	defer store.Close()

	bridge, host := newBridge(cfg)
	defer host.Close()
	defer bridge.Close()

	m := metrics.New()
	m.ObserveBridge(bridge)

	sinks, closeSinks := recordSinks(cfg, store)
	defer closeSinks()

	rec := newRecorder(bridge, cfg.WatchInterval(), nil, m, sinks...)
	if err := rec.start(); err != nil {
		return err
	}
	defer rec.stop()

	server := NewWebServer(bridge, store, m, WebOptions{
		Limits:         gauge.Limits{Min: cfg.DemoMinPressure, Max: cfg.DemoMaxPressure},
		PicSize:        cfg.DemoPicSize,
		DemoWatchEvery: cfg.DemoWatchInterval(),
		StaticDir:      "web",
	})

	handler := handlers.LoggingHandler(os.Stdout, handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(
		handlers.CORS(handlers.AllowedOrigins([]string{"*"}))(server.Handler()),
	))

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("web: shutdown error: %v", err)
		}
	}()

	log.Printf("web server listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
