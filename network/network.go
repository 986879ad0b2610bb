package network

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"nexus/config"
	"nexus/errs"
	"nexus/hub"
	"nexus/protocol"
)

var (
	ErrSendQueueFull = errors.New("send queue full")
	ErrClosed        = errors.New("connection closed")
)

// Handler is the part of the hub the transport drives.
type Handler interface {
	Connect(c hub.Conn) string
	Handle(connID string, frame []byte)
	Disconnect(connID string)
}

// client is one websocket connection. Sends are queued and written by a
// single writer goroutine.
type client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
	cfg  config.NetworkConfig
}

func newClient(conn *websocket.Conn, cfg config.NetworkConfig) *client {
	return &client{
		conn: conn,
		send: make(chan []byte, cfg.SendQueue),
		done: make(chan struct{}),
		cfg:  cfg,
	}
}

// Send queues b without blocking.
func (c *client) Send(b []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- b:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrSendQueueFull
	}
}

// Close stops the connection. Frames already queued are still written.
func (c *client) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			c.flush()
			return
		case b := <-c.send:
			if err := c.write(websocket.TextMessage, b); err != nil {
				_ = c.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		}
	}
}

// flush writes whatever is still queued, then a close frame.
func (c *client) flush() {
	for {
		select {
		case b := <-c.send:
			if err := c.write(websocket.TextMessage, b); err != nil {
				return
			}
		default:
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *client) write(msgType int, b []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	return c.conn.WriteMessage(msgType, b)
}

// Upgrader accepts websocket connections and runs them against a Handler.
type Upgrader struct {
	handler  Handler
	cfg      config.NetworkConfig
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewUpgrader(h Handler, cfg config.NetworkConfig, log *zap.Logger) *Upgrader {
	if log == nil {
		log = zap.NewNop()
	}
	u := &Upgrader{handler: h, cfg: cfg, log: log.Named("ws")}
	u.upgrader = websocket.Upgrader{CheckOrigin: u.checkOrigin}
	return u
}

func (u *Upgrader) checkOrigin(r *http.Request) bool {
	if len(u.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range u.cfg.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

func (u *Upgrader) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		u.log.Debug("upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}
	c := newClient(conn, u.cfg)
	id := u.handler.Connect(c)
	log := u.log.With(zap.String("conn", id))
	log.Debug("websocket open", zap.String("remote", r.RemoteAddr))

	go c.writePump()
	u.readPump(id, c, log)

	u.handler.Disconnect(id)
	_ = c.Close()
	log.Debug("websocket closed")
}

// readPump feeds frames to the handler one at a time until the connection
// fails.
func (u *Upgrader) readPump(id string, c *client, log *zap.Logger) {
	conn := c.conn
	conn.SetReadLimit(u.cfg.ReadLimitBytes)
	_ = conn.SetReadDeadline(time.Now().Add(u.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(u.cfg.PongWait))
	})

	limiter := rate.NewLimiter(rate.Limit(u.cfg.FramesPerSecond), u.cfg.FrameBurst)
	decodeErrors := 0
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("read", zap.Error(err))
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(u.cfg.PongWait))

		if !limiter.Allow() {
			u.reject(c, "rate limit exceeded")
			continue
		}
		if msgType != websocket.TextMessage {
			u.reject(c, "binary frames are not supported")
			continue
		}
		if _, err := protocol.DecodeEnvelope(msg); err != nil {
			decodeErrors++
			u.reject(c, err.Error())
			if decodeErrors >= u.cfg.MaxDecodeErrors {
				log.Info("closing after repeated undecodable frames", zap.Int("errors", decodeErrors))
				return
			}
			continue
		}
		decodeErrors = 0
		u.handler.Handle(id, msg)
	}
}

func (u *Upgrader) reject(c *client, message string) {
	b, err := protocol.Encode(protocol.MsgError, protocol.Error{Message: message, Code: string(errs.KindValidation)})
	if err != nil {
		return
	}
	_ = c.Send(b)
}
