// Package handoffclient connects doctors and receptionists to the realtime
// handoff channel and keeps the receptionist's pending queue in sync with it.
package handoffclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/mediflow/clinic/pkg/logger"
	"github.com/mediflow/clinic/pkg/types"
)

var (
	// ErrNotConnected is returned when a call is made with no live connection
	ErrNotConnected = errors.New("handoff client is not connected")
	// ErrDisconnected is returned when the connection drops while waiting for an ack
	ErrDisconnected = errors.New("connection lost before ack")
)

// Config configures a Client
type Config struct {
	URL          string
	Token        string
	Registration types.Registration

	HandshakeTimeout time.Duration
	WriteWait        time.Duration
	AckTimeout       time.Duration
	ReconnectDelay   time.Duration

	// OnReceive is called after a delivered handoff has been queued
	OnReceive func(req types.HandoffRequest)
	// OnRegistrationError is called when the server rejects the registration
	OnRegistrationError func(reason string)
}

func (c Config) withDefaults() Config {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = 15 * time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	return c
}

type pendingAck struct {
	ch chan types.Ack
	ws *websocket.Conn
}

// Client is one user's connection to the handoff channel
type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	queue  *PendingQueue
	log    *logrus.Entry

	writeMu sync.Mutex

	mu      sync.Mutex
	ws      *websocket.Conn
	nextID  int64
	pending map[int64]*pendingAck
}

// New creates a client; call Connect or Run to go online
func New(cfg Config, log *logger.Logger) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		queue: NewPendingQueue(),
		log: log.WithComponent("handoffclient").WithFields(logrus.Fields{
			"user_id": cfg.Registration.UserID,
			"role":    cfg.Registration.Role,
		}),
		pending: make(map[int64]*pendingAck),
	}
}

// Queue returns the receptionist pending queue fed by this client
func (c *Client) Queue() *PendingQueue {
	return c.queue
}

// Connected reports whether a connection is live
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws != nil
}

// Connect dials the server and registers. The returned channel is closed
// when the connection drops.
func (c *Client) Connect(ctx context.Context) (<-chan struct{}, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.cfg.Token)

	ws, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial rejected with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", c.cfg.URL, err)
	}

	c.mu.Lock()
	previous := c.ws
	c.ws = ws
	c.mu.Unlock()
	if previous != nil {
		previous.Close()
	}

	if err := c.write(ws, types.EventUserConnected, nil, c.cfg.Registration); err != nil {
		ws.Close()
		return nil, fmt.Errorf("failed to register: %w", err)
	}

	done := make(chan struct{})
	go c.readLoop(ws, done)
	c.log.Info("Connected to handoff channel")
	return done, nil
}

// Run keeps the client connected until ctx is done, registering again
// after every reconnect.
func (c *Client) Run(ctx context.Context) error {
	for {
		done, err := c.Connect(ctx)
		if err != nil {
			c.log.WithError(err).Warn("Connect failed")
		} else {
			select {
			case <-done:
				c.log.Info("Connection lost, reconnecting")
			case <-ctx.Done():
				c.Close()
				return ctx.Err()
			}
		}

		select {
		case <-time.After(c.cfg.ReconnectDelay):
		case <-ctx.Done():
			c.Close()
			return ctx.Err()
		}
	}
}

// Close sends a close frame and drops the connection
func (c *Client) Close() error {
	c.mu.Lock()
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()
	if ws == nil {
		return nil
	}

	c.writeMu.Lock()
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(c.cfg.WriteWait))
	c.writeMu.Unlock()
	return ws.Close()
}

// SendToReception routes a draft to a receptionist. Success means the
// receptionist was online and the request reached their connection.
func (c *Client) SendToReception(ctx context.Context, req *types.SendToReception) (types.Ack, error) {
	return c.call(ctx, types.EventSendToReception, req)
}

// MarkAsDone finalizes the queued request with its current, possibly edited,
// draft. The entry leaves the queue when the server confirms with request_removed.
func (c *Client) MarkAsDone(ctx context.Context, requestID string) (types.Ack, error) {
	item, ok := c.queue.Find(requestID)
	if !ok {
		return types.Ack{}, fmt.Errorf("request %s is not pending", requestID)
	}
	return c.call(ctx, types.EventMarkAsDone, &types.MarkAsDone{
		RequestID:    item.RequestID,
		Patient:      item.Patient,
		Doctor:       item.Doctor,
		Prescription: item.Prescription,
		Audio:        item.Audio,
	})
}

func (c *Client) call(ctx context.Context, event string, payload interface{}) (types.Ack, error) {
	c.mu.Lock()
	ws := c.ws
	if ws == nil {
		c.mu.Unlock()
		return types.Ack{}, ErrNotConnected
	}
	c.nextID++
	id := c.nextID
	ch := make(chan types.Ack, 1)
	c.pending[id] = &pendingAck{ch: ch, ws: ws}
	c.mu.Unlock()
	defer c.forget(id)

	if err := c.write(ws, event, &id, payload); err != nil {
		return types.Ack{}, fmt.Errorf("failed to send %s: %w", event, err)
	}

	timer := time.NewTimer(c.cfg.AckTimeout)
	defer timer.Stop()

	select {
	case ack, ok := <-ch:
		if !ok {
			return types.Ack{}, ErrDisconnected
		}
		return ack, nil
	case <-timer.C:
		return types.Ack{}, fmt.Errorf("no ack for %s within %s", event, c.cfg.AckTimeout)
	case <-ctx.Done():
		return types.Ack{}, ctx.Err()
	}
}

func (c *Client) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) write(ws *websocket.Conn, event string, id *int64, payload interface{}) error {
	env, err := types.NewEnvelope(event, id, payload)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	return ws.WriteJSON(env)
}

func (c *Client) readLoop(ws *websocket.Conn, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		if c.ws == ws {
			c.ws = nil
		}
		for id, p := range c.pending {
			if p.ws == ws {
				close(p.ch)
				delete(c.pending, id)
			}
		}
		c.mu.Unlock()
		ws.Close()
		close(done)
	}()

	for {
		var env types.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			c.log.WithError(err).Debug("Read loop stopped")
			return
		}
		c.dispatch(&env)
	}
}

func (c *Client) dispatch(env *types.Envelope) {
	switch env.Event {
	case types.EventAck:
		var ack types.Ack
		if env.ID == nil || env.Decode(&ack) != nil {
			c.log.Debug("Dropping malformed ack")
			return
		}
		c.mu.Lock()
		if p, ok := c.pending[*env.ID]; ok {
			p.ch <- ack
			delete(c.pending, *env.ID)
		}
		c.mu.Unlock()

	case types.EventReceiveFromDoctor:
		var req types.HandoffRequest
		if err := env.Decode(&req); err != nil {
			c.log.WithError(err).Warn("Dropping handoff")
			return
		}
		c.queue.OnReceive(req)
		c.log.WithField("request_id", req.RequestID).Info("Handoff received")
		if c.cfg.OnReceive != nil {
			c.cfg.OnReceive(req)
		}

	case types.EventRequestRemoved:
		var removed types.RequestRemoved
		if err := env.Decode(&removed); err != nil {
			c.log.WithError(err).Warn("Dropping removal")
			return
		}
		if c.queue.OnRequestRemoved(removed.RequestID) {
			c.log.WithField("request_id", removed.RequestID).Info("Handoff completed")
		}

	case types.EventRegistrationError:
		var regErr types.RegistrationError
		_ = env.Decode(&regErr)
		c.log.WithField("reason", regErr.Error).Warn("Registration rejected")
		if c.cfg.OnRegistrationError != nil {
			c.cfg.OnRegistrationError(regErr.Error)
		}

	default:
		c.log.WithField("event", env.Event).Debug("Ignoring unknown event")
	}
}
