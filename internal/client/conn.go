package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/coder/websocket"

	"github.com/futduel/duel-backend/internal/types"
)

// wsConn adapts a coder/websocket connection to the Conn interface. The
// events channel closes when the read side dies, which is exactly the
// signal the controller's waiting state keys on.
type wsConn struct {
	conn   *websocket.Conn
	events chan types.ServerMessage
	ctx    context.Context
	cancel context.CancelFunc
}

// Dial opens the Event Channel. url carries the participant identity as
// query parameters, e.g. wss://host/ws?participant_id=abc&name=Alice.
func Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	cctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := &wsConn{
		conn:   conn,
		events: make(chan types.ServerMessage, 16),
		ctx:    cctx,
		cancel: cancel,
	}
	go c.readLoop()
	return c, nil
}

func (c *wsConn) readLoop() {
	defer close(c.events)
	for {
		_, data, err := c.conn.Read(c.ctx)
		if err != nil {
			return
		}
		var msg types.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		select {
		case c.events <- msg:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *wsConn) Send(msg types.ClientMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.ctx, 3*time.Second)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, payload)
}

func (c *wsConn) Events() <-chan types.ServerMessage { return c.events }

func (c *wsConn) Close() error {
	c.cancel()
	return c.conn.Close(websocket.StatusNormalClosure, "leaving")
}
