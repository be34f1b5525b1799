package server

import (
	"sync"
	"time"

	"stock-trader/src/models"
	"stock-trader/src/subscription"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Constants
// -----------------------------------------------------------------------------

const (
	writeWait      = 2 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024 // 1MB for larger JSON messages
)

// -----------------------------------------------------------------------------
// ClientSession Structure
// -----------------------------------------------------------------------------

// ClientSession is one connected websocket client. It registers itself
// as a listener on every topic the client subscribes to.
type ClientSession struct {
	id     string
	server *MarketServer
	conn   *websocket.Conn
	send   chan models.MClientResponse

	mu     sync.Mutex
	topics map[subscription.Topic]struct{}
	closed bool

	disconnectOnce sync.Once
}

// -----------------------------------------------------------------------------

func newClientSession(s *MarketServer, conn *websocket.Conn) *ClientSession {
	return &ClientSession{
		id:     uuid.NewString(),
		server: s,
		conn:   conn,
		// Buffered channel to prevent blocking dispatch
		send:   make(chan models.MClientResponse, 256),
		topics: make(map[subscription.Topic]struct{}),
	}
}

// -----------------------------------------------------------------------------

func (c *ClientSession) ID() string {
	return c.id
}

// -----------------------------------------------------------------------------

// Deliver implements the topic listener. It translates the decoded
// message into the client protocol frame and queues it. A full queue
// marks the client too slow and disconnects it asynchronously, so
// dispatch to other listeners never blocks on one client.
func (c *ClientSession) Deliver(msg *models.MFeedMessage) error {
	var resp models.MClientResponse
	switch {
	case msg.Price != nil:
		resp = models.NewClientResponse("stock_price", msg.Price)
	case msg.OrderBook != nil:
		resp = models.NewClientResponse("asking_price", msg.OrderBook)
	default:
		return nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	select {
	case c.send <- resp:
		return nil
	default:
		// Client too slow. Disconnect happens on a fresh goroutine to
		// avoid re-entering the registry locks held during dispatch.
		go c.server.Disconnect(c)
		return nil
	}
}

// -----------------------------------------------------------------------------

// queue pushes a protocol frame (confirm, pong, error) to the client.
func (c *ClientSession) queue(resp models.MClientResponse) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	select {
	case c.send <- resp:
	default:
		go c.server.Disconnect(c)
	}
}

// -----------------------------------------------------------------------------

// trackTopic records a topic the session is listening on. Reports
// whether it was new.
func (c *ClientSession) trackTopic(topic subscription.Topic) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.topics[topic]; ok {
		return false
	}
	c.topics[topic] = struct{}{}
	return true
}

// -----------------------------------------------------------------------------

func (c *ClientSession) untrackTopic(topic subscription.Topic) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.topics[topic]; !ok {
		return false
	}
	delete(c.topics, topic)
	return true
}

// -----------------------------------------------------------------------------

// drainTopics empties and returns the topic set, marking the session
// closed so no further frames are queued.
func (c *ClientSession) drainTopics() []subscription.Topic {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	topics := make([]subscription.Topic, 0, len(c.topics))
	for topic := range c.topics {
		topics = append(topics, topic)
	}
	c.topics = make(map[subscription.Topic]struct{})
	return topics
}

// -----------------------------------------------------------------------------
// readPump - handles incoming messages from client
// Act as a Watchdog for the connection
// -----------------------------------------------------------------------------

func (c *ClientSession) readPump() {
	defer func() {
		c.server.Disconnect(c)
		c.server.Logger.Info("Client %s disconnected", c.id)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.server.Logger.Info("WebSocket error: %v", err)
			}
			break
		}
		c.server.HandleClientMessage(c, message)
	}
}

// -----------------------------------------------------------------------------
// writePump - sends messages to client
// -----------------------------------------------------------------------------

func (c *ClientSession) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Server closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// Write JSON message
			if err := c.conn.WriteJSON(message); err != nil {
				c.server.Logger.Info("Write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
