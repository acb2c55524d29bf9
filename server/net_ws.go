package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ClientConn is the write side of one websocket: messages are queued on a
// buffered channel and drained by a dedicated write goroutine.
type ClientConn struct {
	ws   *websocket.Conn
	send chan []byte
	hub  *Hub
}

func NewClientConn(ws *websocket.Conn, hub *Hub) *ClientConn {
	return &ClientConn{
		ws:   ws,
		send: make(chan []byte, 64),
		hub:  hub,
	}
}

// Enqueue queues an outbound frame without blocking. A full queue means a
// slow or dead peer; the frame is dropped so broadcasts stay prompt.
func (c *ClientConn) Enqueue(b []byte) {
	select {
	case c.send <- b:
	default:
		c.hub.Metrics().IncFramesDropped()
	}
}

// Close shuts down the send queue and the underlying socket.
func (c *ClientConn) Close() {
	if c.send != nil {
		close(c.send)
		c.send = nil
	}
	_ = c.ws.Close()
}

// writePump drains the send queue onto the wire.
func (c *ClientConn) writePump() {
	defer c.ws.Close()
	for msg := range c.send {
		c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// readPump reads inbound envelopes and dispatches them to the hub. Exit of
// the read loop is the disconnect event; the hub is detached first, then the
// send queue closes, which ends writePump.
func (c *ClientConn) readPump(connID string) {
	defer c.Close()
	defer c.hub.Disconnect(connID)
	c.ws.SetReadLimit(1 << 20) // 1MB, thumbnails are data URIs
	c.ws.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.ws.SetPongHandler(func(string) error { c.ws.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			continue
		}
		c.dispatch(connID, env)
	}
}

// dispatch routes one inbound event. Malformed payloads for a known type are
// dropped like unknown types: the trust model surfaces no errors to clients.
func (c *ClientConn) dispatch(connID string, env Envelope) {
	switch env.Type {
	case "joinGame":
		var m JoinGameMsg
		if json.Unmarshal(env.Data, &m) == nil && m.Username != "" {
			c.hub.Join(connID, m.Username, m.RoomID)
		}
	case "playerMovement":
		var m PlayerMovementMsg
		if json.Unmarshal(env.Data, &m) == nil {
			c.hub.ReportMovement(connID, m)
		}
	case "playerHit":
		var m PlayerHitMsg
		if json.Unmarshal(env.Data, &m) == nil {
			c.hub.ResolveHit(connID, m.TargetID)
		}
	case "resetCharacter":
		c.hub.ResetCharacter(connID)
	case "sendChat":
		var m SendChatMsg
		if json.Unmarshal(env.Data, &m) == nil {
			c.hub.SendChat(connID, m.Text)
		}
	case "updateThumbnail":
		var m UpdateThumbnailMsg
		if json.Unmarshal(env.Data, &m) == nil {
			c.hub.UpdateThumbnail(m.RoomID, m.Image)
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Demo posture: any origin may connect.
		return true
	},
}

// HandleWS upgrades the connection, mints a connection id and hands the
// socket to the hub. Room membership comes later via the joinGame event.
func HandleWS(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Warnf("upgrade error: %v", err)
			return
		}

		connID := uuid.NewString()
		client := NewClientConn(ws, hub)
		hub.Connect(connID, client)

		go client.writePump()
		go client.readPump(connID)
	}
}
