package relay

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"sealrelay/internal/domain"
	"sealrelay/internal/protocol/wire"
)

// wsConn is the relay's side of one WebSocket connection. Frames for the
// peer are queued on send and written by a single writer goroutine.
type wsConn struct {
	id      domain.PeerID
	ws      *websocket.Conn
	send    chan wire.Frame
	done    chan struct{}
	once    sync.Once
	binary  atomic.Bool
	limiter *rate.Limiter
	timeout time.Duration
	log     logrus.FieldLogger
}

func (c *wsConn) ID() domain.PeerID { return c.id }

// Send never blocks: a full queue or a closed connection drops the frame.
func (c *wsConn) Send(f wire.Frame) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

func (c *wsConn) close() {
	c.once.Do(func() { close(c.done) })
}

// codec answers in the encoding of the most recent inbound frame.
func (c *wsConn) codec() (wire.Codec, int) {
	if c.binary.Load() {
		return wire.CBOR, websocket.BinaryMessage
	}
	return wire.JSON, websocket.TextMessage
}

// readPump decodes inbound frames and hands them to the router until the
// connection fails.
func (c *wsConn) readPump(r *Router) error {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithError(err).Debug("read failed")
			}
			return nil
		}

		var codec wire.Codec
		switch mt {
		case websocket.TextMessage:
			codec = wire.JSON
			c.binary.Store(false)
		case websocket.BinaryMessage:
			codec = wire.CBOR
			c.binary.Store(true)
		default:
			continue
		}

		if c.limiter != nil && !c.limiter.Allow() {
			r.metrics.dropped.WithLabelValues("inbound", dropRateLimited).Inc()
			_ = r.Reject(c.id, "rate_limited", errRateLimited)
			continue
		}

		f, err := codec.Unmarshal(data)
		if err != nil {
			reason := "malformed"
			if errors.Is(err, wire.ErrUnknownKind) {
				reason = "unknown_kind"
			}
			_ = r.Reject(c.id, reason, err)
			continue
		}
		_ = r.Dispatch(c.id, f)
	}
}

// writePump drains the send queue until the connection is closed or ctx is
// cancelled, then sends a close message.
func (c *wsConn) writePump(ctx context.Context) error {
	defer c.ws.Close()
	for {
		select {
		case <-ctx.Done():
			c.writeClose()
			return nil
		case <-c.done:
			c.writeClose()
			return nil
		case f := <-c.send:
			codec, mt := c.codec()
			data, err := codec.Marshal(f)
			if err != nil {
				c.log.WithError(err).WithField("kind", f.Kind()).Error("marshal frame")
				continue
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.timeout))
			if err := c.ws.WriteMessage(mt, data); err != nil {
				c.close()
				return err
			}
		}
	}
}

func (c *wsConn) writeClose() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

var errRateLimited = errors.New("relay: rate limit exceeded; frame dropped")
