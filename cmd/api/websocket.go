package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/directChat/internal/delivery"
)

const (
	writeWait   = 10 * time.Second
	pingPeriod  = 30 * time.Second
	readTimeout = 60 * time.Second
	sendBuffer  = 32
)

var errConnClosed = errors.New("connection closed")

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the token is the credential; origin is not
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConn is one websocket push session. Writes go through a buffered channel
// drained by a single writer goroutine.
type wsConn struct {
	ws *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
	done   chan struct{}
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// Send implements delivery.Subscriber. A slow client whose buffer fills up is
// disconnected rather than blocking the publisher.
func (c *wsConn) Send(evt delivery.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendLocked(evt)
}

func (c *wsConn) sendLocked(evt delivery.Event) error {
	if c.closed {
		return errConnClosed
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	select {
	case c.send <- payload:
		return nil
	default:
		c.closeLocked()
		return errors.New("connection buffer exceeded")
	}
}

func (c *wsConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *wsConn) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

func (c *wsConn) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// serveWS upgrades the request and attaches it to the caller's inbox topic.
// Inbound frames are read only to service pongs and detect disconnects.
func (s *Server) serveWS(c *gin.Context) {
	userID := currentUserID(c)

	ws, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the response
		s.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := newWSConn(ws)
	topic := delivery.InboxTopic(userID)

	conn.mu.Lock()
	id := s.hub.Subscribe(topic, conn)
	_ = conn.sendLocked(delivery.Event{
		Name:  delivery.EventConnected,
		Topic: topic,
		Data:  map[string]string{"socket_id": id},
	})
	conn.mu.Unlock()

	go conn.writeLoop()
	defer func() {
		s.hub.Unsubscribe(topic, id)
		conn.close()
	}()

	ws.SetReadLimit(4096)
	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.log.Debug("websocket read ended", zap.String("user_id", userID), zap.Error(err))
			}
			return
		}
	}
}
