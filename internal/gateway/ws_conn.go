package gateway

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// PeerConn is one participant's websocket attachment to the signaling
// plane. Writes go through a buffered channel so a slow client cannot
// block the relay; overflow drops the message.
type PeerConn struct {
	ws     *websocket.Conn
	roomID string
	userID string
	connID string
	logger *slog.Logger

	send   chan *SignalMessage
	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewPeerConn(ws *websocket.Conn, roomID, userID string, sendBuf int, logger *slog.Logger) *PeerConn {
	if sendBuf <= 0 {
		sendBuf = 128
	}
	return &PeerConn{
		ws:     ws,
		roomID: roomID,
		userID: userID,
		connID: ws.RemoteAddr().String(),
		logger: logger.With("room_id", roomID, "user_id", userID),
		send:   make(chan *SignalMessage, sendBuf),
		done:   make(chan struct{}),
	}
}

func (c *PeerConn) RoomID() string {
	return c.roomID
}

func (c *PeerConn) UserID() string {
	return c.userID
}

func (c *PeerConn) ConnID() string {
	return c.connID
}

// Send queues a message without blocking. Messages to a closed or
// saturated connection are dropped; signaling tolerates loss because
// the handshake is superseded by the next offer or restart.
func (c *PeerConn) Send(msg *SignalMessage) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return
	}

	select {
	case c.send <- msg:
	default:
		c.logger.Warn("send buffer full, dropping signal", "type", msg.Type)
	}
}

func (c *PeerConn) Done() <-chan struct{} {
	return c.done
}

func (c *PeerConn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	close(c.send)
	return c.ws.Close()
}

// ReadLoop decodes inbound envelopes and hands them to handle until the
// socket closes.
func (c *PeerConn) ReadLoop(handle func(*SignalMessage)) {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg SignalMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			return
		}
		msg.RoomID = c.roomID
		msg.SenderID = c.userID
		handle(&msg)
	}
}

// WriteLoop drains the send channel and keeps the connection alive with
// pings.
func (c *PeerConn) WriteLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteJSON(msg); err != nil {
				c.logger.Warn("websocket write error", "error", err)
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
