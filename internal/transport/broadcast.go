package transport

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	c := &client{conn: conn, send: make(chan []byte, 64)}
	go c.writePump()
	return c
}

func (c *client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *client) close() { close(c.send) }

// Broadcaster fans derived-state snapshots (ringbus stats, metrics
// snapshot) out to every connected client on a throttled ticker.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*client]bool
	maxConns int
	throttle time.Duration
	gateway  *Gateway
	ticker   *time.Ticker
	stop     chan struct{}
}

// NewBroadcaster constructs a Broadcaster that periodically pushes a
// combined ringbus.stats/metrics.snapshot frame at interval throttle.
func NewBroadcaster(gw *Gateway, throttle time.Duration, maxConns int) *Broadcaster {
	b := &Broadcaster{
		clients:  make(map[*client]bool),
		maxConns: maxConns,
		throttle: throttle,
		gateway:  gw,
		stop:     make(chan struct{}),
	}
	if throttle > 0 {
		b.ticker = time.NewTicker(throttle)
		go b.loop()
	}
	return b
}

func (b *Broadcaster) loop() {
	for {
		select {
		case <-b.ticker.C:
			b.broadcastSnapshot()
		case <-b.stop:
			return
		}
	}
}

func (b *Broadcaster) broadcastSnapshot() {
	// Read through Dispatch so engine access stays on the gateway's
	// serializing goroutine.
	payload := map[string]interface{}{
		"ringbus": b.gateway.Dispatch(GatewayMessage{Type: ReqRingbusStats}).Payload,
		"metrics": b.gateway.Dispatch(GatewayMessage{Type: ReqMetricsSnapshot}).Payload,
	}
	b.send(GatewayResponse{Type: RespSnapshot, Payload: payload})
}

// AddClient registers conn as a broadcast recipient, rejecting it with
// ErrTooManyConnections once maxConns is reached.
func (b *Broadcaster) AddClient(conn *websocket.Conn) (*client, error) {
	b.mu.Lock()
	if b.maxConns > 0 && len(b.clients) >= b.maxConns {
		b.mu.Unlock()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many connections"))
		conn.Close()
		return nil, ErrTooManyConnections
	}
	c := newClient(conn)
	b.clients[c] = true
	b.mu.Unlock()
	return c, nil
}

// RemoveClient unregisters c.
func (b *Broadcaster) RemoveClient(c *client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

// ClientCount returns the number of currently connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

func (b *Broadcaster) send(resp GatewayResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Printf("transport: broadcast marshal error: %v", err)
		return
	}

	b.mu.RLock()
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			log.Printf("transport: client too slow, disconnecting")
			b.RemoveClient(c)
		}
	}
}

// SendTo delivers resp to a single client without going through the
// broadcast fan-out — used to reply to a request.
func (b *Broadcaster) SendTo(c *client, resp GatewayResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		log.Printf("transport: response marshal error: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// Stop halts the broadcast ticker.
func (b *Broadcaster) Stop() {
	if b.ticker != nil {
		b.ticker.Stop()
	}
	close(b.stop)
}
