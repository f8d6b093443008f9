package bookings

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

const (
	feedWriteTimeout = 10 * time.Second
	feedPingInterval = 30 * time.Second
	feedSendBuffer   = 16
)

// Feed fans booking events out to connected websocket clients. Slow
// clients are dropped rather than allowed to stall the hub.
type Feed struct {
	upgrader websocket.Upgrader
	log      *logrus.Logger
	active   prometheus.Gauge

	mu      sync.RWMutex
	clients map[*feedClient]struct{}
}

type feedClient struct {
	conn *websocket.Conn
	send chan Event
	done chan struct{}
}

// NewFeed creates a booking activity feed. active may be nil.
func NewFeed(log *logrus.Logger, active prometheus.Gauge) *Feed {
	if log == nil {
		log = logrus.New()
	}
	return &Feed{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log:     log,
		active:  active,
		clients: make(map[*feedClient]struct{}),
	}
}

// ServeHTTP upgrades the request and streams events until the client
// disconnects
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.log.WithError(err).Warn("feed upgrade failed")
		return
	}

	client := &feedClient{
		conn: conn,
		send: make(chan Event, feedSendBuffer),
		done: make(chan struct{}),
	}
	f.register(client)
	defer f.unregister(client)

	go f.readUntilClose(client)
	f.writeLoop(client)
}

// Publish sends the event to every connected client
func (f *Feed) Publish(ev Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for client := range f.clients {
		select {
		case client.send <- ev:
		default:
			// Buffer full; skip this client rather than block the hub.
			f.log.Warn("dropping feed event for slow client")
		}
	}
}

// ClientCount returns the number of connected clients
func (f *Feed) ClientCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

func (f *Feed) register(c *feedClient) {
	f.mu.Lock()
	f.clients[c] = struct{}{}
	f.mu.Unlock()
	if f.active != nil {
		f.active.Inc()
	}
}

func (f *Feed) unregister(c *feedClient) {
	f.mu.Lock()
	if _, ok := f.clients[c]; ok {
		delete(f.clients, c)
		close(c.send)
	}
	f.mu.Unlock()
	c.conn.Close()
	if f.active != nil {
		f.active.Dec()
	}
}

// readUntilClose drains client frames so pings and close frames are
// processed; the feed never consumes client messages. Closing done
// unblocks the write loop so disconnects are noticed immediately.
func (f *Feed) readUntilClose(c *feedClient) {
	defer close(c.done)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.conn.Close()
			return
		}
	}
}

func (f *Feed) writeLoop(c *feedClient) {
	ticker := time.NewTicker(feedPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case ev, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(feedWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
