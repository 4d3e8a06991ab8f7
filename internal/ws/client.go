package ws

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Vasu1712/scenyx-stage/internal/wire"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
)

// Client is one websocket session. Binary frames carry protobuf envelopes,
// text frames JSON ones; a client that sends text is answered in text.
type Client struct {
	ID string

	hub  *Hub
	conn *websocket.Conn
	send chan *wire.RpcMessage // Replies waiting for the write pump
	kick chan struct{}         // closed by the hub to disconnect the client
	done chan struct{}         // closed when writePump exits
	text atomic.Bool
}

func (c *Client) readPump(d Dispatcher) error {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	ctx := c.hub.tomb.Context(context.Background())
	for {
		kind, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warningf("client %s read: %v", c.ID, err)
			}
			return nil
		}
		codec := wire.Protobuf
		if kind == websocket.TextMessage {
			c.text.Store(true)
			codec = wire.JSON
		}

		var req wire.RpcMessage
		var reply *wire.RpcMessage
		if err := codec.Unmarshal(frame, &req); err != nil {
			logger.Debugf("client %s sent an undecodable envelope: %v", c.ID, err)
			reply = req.ReplyError(&wire.Error{Kind: wire.KindDecode, Message: err.Error()})
		} else {
			reply = d.HandleRPC(ctx, &req)
		}
		select {
		case c.send <- reply:
		case <-c.done:
			return nil
		}
	}
}

func (c *Client) writePump() error {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.done)
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-c.kick:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			kind, codec := websocket.BinaryMessage, wire.Protobuf
			if c.text.Load() {
				kind, codec = websocket.TextMessage, wire.JSON
			}
			frame, err := codec.Marshal(msg)
			if err != nil {
				logger.Errorf("client %s: encoding %s: %v", c.ID, msg.Method, err)
				continue
			}
			if err := c.conn.WriteMessage(kind, frame); err != nil {
				logger.Debugf("client %s write: %v", c.ID, err)
				return nil
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}
