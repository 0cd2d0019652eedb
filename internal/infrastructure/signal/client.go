package signal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dcbench/internal/core/domain"
	"dcbench/internal/core/ports"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var _ ports.SignalingClient = (*Client)(nil)

const clientWriteTimeout = 10 * time.Second

// Client is the websocket connection to the signaling server. Register
// the message handler before Connect; the read pump starts as soon as the
// dial succeeds.
type Client struct {
	url    string
	logger *zap.SugaredLogger

	onMessage func(payload []byte, isText bool)

	writeMu sync.Mutex
	conn    *websocket.Conn

	closeOnce sync.Once
	closed    chan struct{}
}

func NewClient(url string, logger *zap.SugaredLogger) *Client {
	return &Client{
		url:    url,
		logger: logger,
		closed: make(chan struct{}),
	}
}

// OnMessage registers the inbound payload handler. Must be called before
// Connect.
func (c *Client) OnMessage(handler func(payload []byte, isText bool)) {
	c.onMessage = handler
}

// Connect dials the signaling server and starts the read pump. The dial
// is the one-time blocking wait gating the benchmark: a failure here is a
// setup error, not a recoverable one.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dialing signaling server %s: %w", c.url, err)
	}
	c.conn = conn
	c.logger.Infow("signaling connected", "url", c.url)

	go c.readPump()
	return nil
}

// SendEnvelope writes one envelope to the signaling server. Writes are
// serialized; gorilla connections allow only one concurrent writer.
func (c *Client) SendEnvelope(env domain.SignalEnvelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("signaling not connected: %w", domain.ErrTransportSend)
	}
	c.conn.SetWriteDeadline(time.Now().Add(clientWriteTimeout))
	if err := c.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("sending %s envelope for %s: %w", env.Type, env.ID, err)
	}
	return nil
}

func (c *Client) readPump() {
	for {
		msgType, payload, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.closed:
				// Local close, nothing to report.
			default:
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.logger.Warnw("signaling read failed", "error", err)
				} else {
					c.logger.Infow("signaling connection closed")
				}
			}
			return
		}
		if c.onMessage != nil {
			c.onMessage(payload, msgType == websocket.TextMessage)
		}
	}
}

// Close sends a close frame and tears the connection down.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.conn == nil {
			return
		}
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(clientWriteTimeout))
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}
