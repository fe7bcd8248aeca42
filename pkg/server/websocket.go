package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flagstream-dev/flagstream/pkg/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The flag feed is same-origin-agnostic: it carries only flag state,
	// which the REST surface exposes anyway.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// liveClient is one WebSocket subscriber of the flag feed.
type liveClient struct {
	conn   *websocket.Conn
	config Config
	logger *slog.Logger

	// send carries encoded events to the write loop. Events are dropped
	// when the client cannot keep up; the version field lets it detect
	// the gap and each event carries the full snapshot anyway.
	send chan []byte
	done chan struct{}

	closeOnce sync.Once
}

// handleLive upgrades the connection and streams flag changes: first a
// snapshot event with the current state, then one change event per store
// notification, each carrying the full snapshot and its version.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &liveClient{
		conn:   conn,
		config: s.config,
		logger: s.logger.With("remote", conn.RemoteAddr().String()),
		send:   make(chan []byte, s.config.SendBuffer),
		done:   make(chan struct{}),
	}

	middleware.RecordLiveConnect()
	c.logger.Info("live client connected")

	// Initial snapshot, then push on every store notification. The
	// listener runs synchronously on the mutating goroutine, so it only
	// encodes and enqueues; the write loop owns the socket.
	c.enqueue(s.encodeEvent("snapshot"))
	dispose := s.store.Subscribe(func() {
		c.enqueue(s.encodeEvent("change"))
	})

	go c.writeLoop()
	go func() {
		c.readLoop()
		dispose()
		middleware.RecordLiveDisconnect()
		c.logger.Info("live client disconnected")
	}()
}

// encodeEvent marshals the current snapshot as a feed event.
func (s *Server) encodeEvent(typ string) []byte {
	data, err := json.Marshal(snapshotBody{
		Type:    typ,
		Version: s.store.Version(),
		Flags:   s.store.Snapshot(),
	})
	if err != nil {
		s.logger.Error("event encode error", "error", err)
		return nil
	}
	return data
}

// enqueue hands an event to the write loop without blocking the mutator.
func (c *liveClient) enqueue(data []byte) {
	if data == nil {
		return
	}

	select {
	case <-c.done:
	case c.send <- data:
		middleware.RecordLivePush()
	default:
		// Slow client: drop. The next delivered event supersedes this
		// one because events carry the whole snapshot.
		middleware.RecordLivePushDrop()
		c.logger.Warn("live client slow, event dropped")
	}
}

// readLoop consumes inbound frames until the connection closes. The feed is
// one-way; inbound data only serves pong/close handling.
func (c *liveClient) readLoop() {
	defer c.close()

	c.conn.SetReadLimit(c.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.logger.Error("read error", "error", err)
			}
			return
		}
	}
}

// writeLoop owns the socket's write side: queued events plus heartbeat pings.
func (c *liveClient) writeLoop() {
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Error("write error", "error", err)
				c.close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *liveClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
