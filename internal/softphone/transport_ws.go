package softphone

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout   = 10 * time.Second
	wsIncomingBuffer = 8
)

// wsFrame is the JSON envelope exchanged with the signaling gateway.
type wsFrame struct {
	Type   string `json:"type"`
	Token  string `json:"token,omitempty"`
	CallID string `json:"call_id,omitempty"`
	From   string `json:"from,omitempty"`
	Muted  *bool  `json:"muted,omitempty"`
	Error  string `json:"error,omitempty"`
}

// WebsocketTransport speaks the provider's websocket signaling protocol:
// one "listen" frame carrying the signaling token, then incoming-call and
// call-control frames over the same socket.
type WebsocketTransport struct {
	url    string
	dialer *websocket.Dialer
	log    *slog.Logger
}

func NewWebsocketTransport(url string, log *slog.Logger) *WebsocketTransport {
	if log == nil {
		log = slog.Default()
	}
	return &WebsocketTransport{
		url:    url,
		dialer: websocket.DefaultDialer,
		log:    log,
	}
}

func (t *WebsocketTransport) Connect(ctx context.Context, token, identity string) (Conn, error) {
	ws, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return nil, &Failure{Kind: FailureTransport, Message: "signaling dial failed", err: err}
	}

	c := &wsConn{
		ws:       ws,
		incoming: make(chan IncomingCall, wsIncomingBuffer),
		log:      t.log.With("identity", identity),
	}
	if err := c.write(ctx, wsFrame{Type: "listen", Token: token, From: identity}); err != nil {
		ws.Close()
		return nil, &Failure{Kind: FailureTransport, Message: "signaling registration failed", err: err}
	}

	go c.readLoop()
	return c, nil
}

type wsConn struct {
	ws       *websocket.Conn
	incoming chan IncomingCall
	log      *slog.Logger

	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

func (c *wsConn) Incoming() <-chan IncomingCall { return c.incoming }

func (c *wsConn) Accept(ctx context.Context, callID string) error {
	return c.write(ctx, wsFrame{Type: "accept", CallID: callID})
}

func (c *wsConn) Reject(ctx context.Context, callID string) error {
	return c.write(ctx, wsFrame{Type: "reject", CallID: callID})
}

func (c *wsConn) Hangup(ctx context.Context, callID string) error {
	return c.write(ctx, wsFrame{Type: "hangup", CallID: callID})
}

func (c *wsConn) SetMuted(ctx context.Context, callID string, muted bool) error {
	return c.write(ctx, wsFrame{Type: "mute", CallID: callID, Muted: &muted})
}

func (c *wsConn) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(wsWriteTimeout)
		if d, ok := ctx.Deadline(); ok {
			deadline = d
		}
		c.writeMu.Lock()
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.writeMu.Unlock()
		// The read loop owns the incoming channel and closes it on exit.
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

func (c *wsConn) write(ctx context.Context, f wsFrame) error {
	deadline := time.Now().Add(wsWriteTimeout)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := c.ws.WriteJSON(f); err != nil {
		return fmt.Errorf("signaling write %q: %w", f.Type, err)
	}
	return nil
}

func (c *wsConn) readLoop() {
	defer close(c.incoming)
	for {
		var f wsFrame
		if err := c.ws.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("signaling connection dropped", "err", err)
			}
			return
		}
		switch f.Type {
		case "incoming":
			c.incoming <- IncomingCall{CallID: f.CallID, From: f.From}
		case "error":
			c.log.Warn("signaling error frame", "detail", f.Error)
		default:
			// Keepalives and unrecognized frames are ignored.
		}
	}
}
