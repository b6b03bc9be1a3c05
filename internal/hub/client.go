package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"campus_connect/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBufferSize = 64
)

// Client wraps one websocket connection. Writes go through a buffered
// channel drained by the write pump; the read pump hands inbound frames
// to the handler installed by the transport layer.
type Client struct {
	id     string
	userID uuid.UUID
	conn   *websocket.Conn
	hub    *Hub
	send   chan OutEvent
	log    logger.Logger

	onEvent func(*Client, Event)

	closeOnce sync.Once
}

func NewClient(userID uuid.UUID, conn *websocket.Conn, h *Hub, log logger.Logger) *Client {
	return &Client{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		hub:    h,
		send:   make(chan OutEvent, sendBufferSize),
		log:    log,
	}
}

func (c *Client) ID() string        { return c.id }
func (c *Client) UserID() uuid.UUID { return c.userID }

// OnEvent installs the inbound-frame handler. Must be set before Run.
func (c *Client) OnEvent(fn func(*Client, Event)) {
	c.onEvent = fn
}

// Deliver enqueues without blocking; a full buffer marks the client as a
// slow consumer and the hub drops it.
func (c *Client) Deliver(event OutEvent) bool {
	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

// SendError emits a scoped socketError to this connection only.
func (c *Client) SendError(message string) {
	c.Deliver(OutEvent{Type: EventSocketError, Payload: ErrorPayload{Message: message}})
}

func (c *Client) CloseWithReason(reason string) {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(writeWait)
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		_ = c.conn.Close()
	})
}

// Run starts both pumps and blocks until the read pump exits, so the
// caller's HTTP handler keeps the connection's goroutine accounting.
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Detach(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("Socket read error", "user_id", c.userID, "error", err)
			}
			return
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			// Malformed frame: tell this caller, keep the connection.
			c.SendError("malformed event payload")
			continue
		}

		if c.onEvent != nil {
			c.onEvent(c, event)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
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
