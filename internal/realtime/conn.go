package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/mediflow/clinic/pkg/types"
)

var (
	// ErrConnectionClosed is returned when emitting to a closed connection
	ErrConnectionClosed = errors.New("connection closed")
	// ErrSendBufferFull is returned when a slow client cannot keep up; the connection is closed
	ErrSendBufferFull = errors.New("send buffer full")
)

// Conn is one live client connection as the directory and router see it
type Conn interface {
	ID() string
	Send(env *types.Envelope) error
	Close() error
}

// emit sends an unsolicited event
func emit(c Conn, event string, payload interface{}) error {
	env, err := types.NewEnvelope(event, nil, payload)
	if err != nil {
		return err
	}
	return c.Send(env)
}

// reply answers a client frame that carried an id
func reply(c Conn, id *int64, ack types.Ack) error {
	if id == nil {
		return nil
	}
	env, err := types.NewEnvelope(types.EventAck, id, ack)
	if err != nil {
		return err
	}
	return c.Send(env)
}

// wsConn adapts a gorilla websocket to Conn. Writes are funnelled through
// a buffered channel drained by a single writer goroutine.
type wsConn struct {
	id        string
	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	cfg       HubConfig
	log       *logrus.Entry
}

func newWSConn(ws *websocket.Conn, cfg HubConfig, log *logrus.Entry) *wsConn {
	id := uuid.New().String()
	return &wsConn{
		id:   id,
		ws:   ws,
		send: make(chan []byte, cfg.SendBuffer),
		done: make(chan struct{}),
		cfg:  cfg,
		log:  log.WithField("conn_id", id),
	}
}

func (c *wsConn) ID() string { return c.id }

// Send queues a frame without blocking the caller
func (c *wsConn) Send(env *types.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		c.log.Warn("Send buffer full, closing connection")
		c.Close()
		return ErrSendBufferFull
	}
}

// Close is safe to call more than once and from any goroutine
func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

// readPump decodes frames until the socket fails or closes, calling handle for each
func (c *wsConn) readPump(handle func(env *types.Envelope)) {
	c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Debug("Connection closed unexpectedly")
			}
			return
		}

		var env types.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			c.log.Debug("Dropping malformed frame")
			continue
		}
		handle(&env)
	}
}

// writePump is the only goroutine that writes to the socket
func (c *wsConn) writePump() {
	ticker := time.NewTicker(c.cfg.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
