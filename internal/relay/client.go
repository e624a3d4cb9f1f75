package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sealrelay/internal/domain"
	"sealrelay/internal/protocol/wire"
)

const defaultWriteTimeout = 10 * time.Second

// ErrClosed is returned by Client operations after Close.
var ErrClosed = errors.New("relay: connection closed")

// Client is a WebSocket connection to the relay. Writes may be issued from
// any goroutine; Receive must be called from a single reader.
type Client struct {
	ws    *websocket.Conn
	codec wire.Codec
	mt    int

	mu     sync.Mutex
	closed bool
}

// Dial connects to the relay's WebSocket endpoint at url.
func Dial(ctx context.Context, url string, codec wire.Codec) (*Client, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial relay %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("dial relay %s: %w", url, err)
	}
	mt := websocket.TextMessage
	if codec == wire.CBOR {
		mt = websocket.BinaryMessage
	}
	return &Client{ws: ws, codec: codec, mt: mt}, nil
}

// Join announces our display name and identity public key.
func (c *Client) Join(ctx context.Context, displayName string, pub domain.PublicKey) error {
	return c.write(ctx, wire.Join{DisplayName: displayName, PublicKey: pub})
}

// SendSessionKey posts a sealed session key for env.To.
func (c *Client) SendSessionKey(ctx context.Context, env domain.SessionKeyEnvelope) error {
	env.From = ""
	return c.write(ctx, wire.SessionKey{SessionKeyEnvelope: env})
}

// SendMessage posts an encrypted message for env.To.
func (c *Client) SendMessage(ctx context.Context, env domain.EncryptedEnvelope) error {
	env.From = ""
	return c.write(ctx, wire.Message{EncryptedEnvelope: env})
}

// Receive blocks for the next frame from the relay. Frames that fail to
// decode are reported with a wire error and the connection stays usable.
func (c *Client) Receive() (wire.Frame, error) {
	mt, data, err := c.ws.ReadMessage()
	if err != nil {
		if c.isClosed() {
			return nil, ErrClosed
		}
		return nil, err
	}
	codec := wire.JSON
	if mt == websocket.BinaryMessage {
		codec = wire.CBOR
	}
	return codec.Unmarshal(data)
}

// Close sends a close message and tears down the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.mu.Unlock()
	return c.ws.Close()
}

func (c *Client) write(ctx context.Context, f wire.Frame) error {
	data, err := c.codec.Marshal(f)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultWriteTimeout)
	}
	_ = c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(c.mt, data); err != nil {
		return fmt.Errorf("relay write %s: %w", f.Kind(), err)
	}
	return nil
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Compile-time assertion that Client implements domain.RelayClient.
var _ domain.RelayClient = (*Client)(nil)
