package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"streamcaption/packages/go/backend/admission"
	"streamcaption/packages/go/backend/status"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendQueueSize  = 64
)

var (
	errSendQueueFull = errors.New("send queue full")
	errClientClosed  = errors.New("client closed")
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// wsCommand is an inbound client message.
type wsCommand struct {
	Action  string `json:"action"`
	URL     string `json:"url"`
	SrcLang string `json:"src_lang"`
	Task    string `json:"task"`
}

// wsClient is one WebSocket subscriber. Outbound events go through a bounded
// queue drained by the write pump; a full queue counts as a failed delivery.
type wsClient struct {
	conn *websocket.Conn
	send chan status.Event
	done chan struct{}
	once sync.Once
}

func newWSClient(conn *websocket.Conn) *wsClient {
	return &wsClient{
		conn: conn,
		send: make(chan status.Event, sendQueueSize),
		done: make(chan struct{}),
	}
}

// Send queues e without blocking. A full queue closes the client so a
// subscriber dropped by the hub does not linger half connected.
func (c *wsClient) Send(e status.Event) error {
	select {
	case <-c.done:
		return errClientClosed
	default:
	}
	select {
	case c.send <- e:
		return nil
	default:
		c.close()
		return errSendQueueFull
	}
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *wsClient) readPump(ctx context.Context, handle func(context.Context, []byte) status.Event) error {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				return err
			}
			return nil
		}
		if err := c.Send(handle(ctx, data)); err != nil {
			return err
		}
	}
}

func (c *wsClient) writePump(ctx context.Context) error {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.writeClose()
			return nil
		case <-c.done:
			c.writeClose()
			return nil
		case event := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(event); err != nil {
				return err
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

func (c *wsClient) writeClose() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func (a *api) websocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger.Infow("websocket upgrade failed", "error", err)
		return
	}

	client := newWSClient(conn)
	if !a.controller.Subscribe(client) {
		_ = conn.Close()
		return
	}
	defer a.controller.Unsubscribe(client)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error { return client.readPump(ctx, a.handleCommand) })
	g.Go(func() error { return client.writePump(ctx) })
	if err := g.Wait(); err != nil {
		a.logger.Infow("websocket closed", "error", err)
	}
}

// handleCommand executes one client command and returns the reply.
func (a *api) handleCommand(ctx context.Context, data []byte) status.Event {
	var cmd wsCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return status.Error("Invalid message: " + err.Error())
	}

	switch cmd.Action {
	case "start":
		req := admission.StartRequest{URL: cmd.URL, SourceLanguage: cmd.SrcLang, Task: cmd.Task}
		outcome, err := a.controller.RequestStart(ctx, req)
		if err != nil {
			return status.Error(startErrorMessage(req, err))
		}
		if outcome == admission.Joined {
			return status.Status(status.MsgJoined)
		}
		return status.Status(status.MsgResolving)
	case "stop":
		if err := a.controller.RequestStop(); err != nil {
			return status.Error(status.MsgNoActive)
		}
		return status.Status(status.MsgStopping)
	default:
		return status.Error(status.MsgUnknownAction)
	}
}
