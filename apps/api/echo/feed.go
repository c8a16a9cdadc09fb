package echoapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/paridhisingla/unisync/core"
	"github.com/paridhisingla/unisync/core/notice"
	"github.com/paridhisingla/unisync/core/user"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = 30 * time.Second
	feedSendBuffer = 16
)

var errFeedClosed = echo.NewHTTPError(http.StatusServiceUnavailable, "notice feed is closed")

// FeedMessage is the frame pushed to feed clients.
type FeedMessage struct {
	Type   string        `json:"type"`
	Notice notice.Notice `json:"notice"`
}

type feedClient struct {
	usr  user.User
	conn *websocket.Conn
	send chan []byte
}

// NoticeFeed pushes published notices to the websocket clients of their audience.
type NoticeFeed struct {
	logger   core.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*feedClient]struct{}
	closed  bool
}

// NewNoticeFeed returns a feed accepting connections from origins. An empty list or "*" accepts any origin.
func NewNoticeFeed(logger core.Logger, origins []string) *NoticeFeed {
	f := &NoticeFeed{
		logger:  logger,
		clients: make(map[*feedClient]struct{}),
	}
	f.upgrader.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(origins) == 0 {
			return true
		}
		for _, o := range origins {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
	return f
}

// Serve upgrades the request and streams notices visible to usr until the client goes away.
func (f *NoticeFeed) Serve(w http.ResponseWriter, r *http.Request, usr user.User) error {
	f.mu.RLock()
	closed := f.closed
	f.mu.RUnlock()
	if closed {
		return errFeedClosed
	}

	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already replied to the client
		f.logger.Warn("notice feed upgrade failed", err)
		return nil
	}

	c := &feedClient{usr: usr, conn: conn, send: make(chan []byte, feedSendBuffer)}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	f.clients[c] = struct{}{}
	f.mu.Unlock()

	go f.writeLoop(c)
	go f.readLoop(c)
	return nil
}

// Broadcast queues n for every connected client allowed to see it. Slow clients are dropped.
func (f *NoticeFeed) Broadcast(n notice.Notice) {
	data, err := json.Marshal(FeedMessage{Type: "notice", Notice: n})
	if err != nil {
		f.logger.Error("marshalling feed message", err)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		if !n.VisibleTo(c.usr) {
			continue
		}
		select {
		case c.send <- data:
		default:
			f.remove(c)
		}
	}
}

// Clients returns the number of connected clients.
func (f *NoticeFeed) Clients() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

// Close disconnects every client and refuses new ones.
func (f *NoticeFeed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for c := range f.clients {
		f.remove(c)
	}
}

// remove must be called with f.mu held.
func (f *NoticeFeed) remove(c *feedClient) {
	if _, ok := f.clients[c]; !ok {
		return
	}
	delete(f.clients, c)
	close(c.send)
}

func (f *NoticeFeed) unregister(c *feedClient) {
	f.mu.Lock()
	f.remove(c)
	f.mu.Unlock()
}

func (f *NoticeFeed) writeLoop(c *feedClient) {
	ticker := time.NewTicker(feedPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				f.unregister(c)
				return
			}
		case <-ticker.C:
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(feedWriteWait))
			if err != nil {
				f.unregister(c)
				return
			}
		}
	}
}

// readLoop only keeps the connection alive: clients have nothing to say on the feed.
func (f *NoticeFeed) readLoop(c *feedClient) {
	defer f.unregister(c)

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
