// Package realtime runs the doctor to reception handoff channel over websockets.
package realtime

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mediflow/clinic/pkg/config"
	"github.com/mediflow/clinic/pkg/interfaces"
	"github.com/mediflow/clinic/pkg/logger"
	"github.com/mediflow/clinic/pkg/monitoring"
	"github.com/mediflow/clinic/pkg/types"
)

// TokenValidator verifies the bearer token presented on upgrade
type TokenValidator interface {
	ValidateToken(token string) (*types.UserClaims, error)
}

// HubConfig tunes connection handling
type HubConfig struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	SendBuffer     int
	AllowedOrigins []string
}

// HubConfigFrom converts the realtime section of the application config
func HubConfigFrom(rt config.RealtimeConfig, server config.ServerConfig) HubConfig {
	return HubConfig{
		WriteWait:      time.Duration(rt.WriteWait) * time.Second,
		PongWait:       time.Duration(rt.PongWait) * time.Second,
		MaxMessageSize: rt.MaxMessageSize,
		SendBuffer:     rt.SendBuffer,
		AllowedOrigins: server.AllowedOrigins,
	}
}

func (c HubConfig) withDefaults() HubConfig {
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 64 * 1024
	}
	if c.SendBuffer <= 0 {
		c.SendBuffer = 32
	}
	return c
}

// Hub accepts websocket connections and runs one session per connection
type Hub struct {
	cfg        HubConfig
	directory  *Directory
	router     *Router
	reconciler *Reconciler
	tokens     TokenValidator
	upgrader   websocket.Upgrader
	metrics    *monitoring.MetricsCollector
	tracing    *monitoring.TracingManager
	logger     *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	conns  map[string]Conn
	closed bool
	wg     sync.WaitGroup
}

// NewHub wires the directory, router and reconciler together
func NewHub(cfg HubConfig, tokens TokenValidator, store interfaces.PrescriptionRepository,
	metrics *monitoring.MetricsCollector, tracing *monitoring.TracingManager, log *logger.Logger) *Hub {
	cfg = cfg.withDefaults()
	directory := NewDirectory()
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		cfg:        cfg,
		directory:  directory,
		router:     NewRouter(directory, metrics, log),
		reconciler: NewReconciler(store, metrics, log),
		tokens:     tokens,
		metrics:    metrics,
		tracing:    tracing,
		logger:     log,
		ctx:        ctx,
		cancel:     cancel,
		conns:      make(map[string]Conn),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// Directory exposes the identity directory
func (h *Hub) Directory() *Directory {
	return h.directory
}

// ServeHTTP authenticates the caller and upgrades the connection
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Security("realtime_invalid_token", "", map[string]interface{}{"remote_addr": r.RemoteAddr})
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if claims.Incomplete || !claims.Role.Valid() {
		http.Error(w, "profile incomplete", http.StatusForbidden)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}

	conn := newWSConn(ws, h.cfg, h.logger.WithComponent("realtime"))
	if !h.track(conn) {
		conn.Close()
		return
	}
	defer h.untrack(conn)

	session := newSession(conn, claims, h)
	session.log.Info("Connection opened")

	go conn.writePump()
	conn.readPump(func(env *types.Envelope) {
		session.Handle(h.ctx, env)
	})

	session.terminate()
	conn.Close()
	session.log.Info("Connection closed")
}

// Shutdown closes every connection and clears the directory
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closed = true
	conns := make([]Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	h.cancel()
	for _, c := range conns {
		c.Close()
	}
	evicted := h.directory.EvictAll()
	h.metrics.SetRegisteredUsers(0)
	h.logger.WithComponent("realtime").WithField("evicted", evicted).Info("Realtime hub stopped")

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) track(c Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[c.ID()] = c
	h.wg.Add(1)
	return true
}

func (h *Hub) untrack(c Conn) {
	h.mu.Lock()
	delete(h.conns, c.ID())
	h.mu.Unlock()
	h.wg.Done()
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}
