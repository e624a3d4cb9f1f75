package relay

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"sealrelay/internal/domain"
	"sealrelay/internal/protocol/wire"
)

var (
	// ErrIllegalFrame is returned for frame kinds clients may not send.
	ErrIllegalFrame = errors.New("relay: frame kind not accepted from clients")

	// ErrNoDestination is returned for forwarded frames without a recipient.
	ErrNoDestination = errors.New("relay: frame has no destination")
)

// Conn is one connected party as seen by the Router.
type Conn interface {
	ID() domain.PeerID
	// Send queues f for delivery and reports whether it was queued. It must
	// not block.
	Send(f wire.Frame) bool
}

// Router is the relay's registry of connections and joined identities.
//
// The mutex guards the registry. Directory broadcasts are queued while it is
// held; forwarded frames are handed over after it is released. No network
// I/O happens under the lock.
type Router struct {
	mu     sync.Mutex
	conns  map[domain.PeerID]Conn
	joined map[domain.PeerID]domain.Identity
	order  []domain.PeerID

	log     logrus.FieldLogger
	metrics *Metrics
}

// NewRouter returns an empty Router.
func NewRouter(log logrus.FieldLogger, metrics *Metrics) *Router {
	return &Router{
		conns:   make(map[domain.PeerID]Conn),
		joined:  make(map[domain.PeerID]domain.Identity),
		log:     log.WithField("module", "router"),
		metrics: metrics,
	}
}

// Connect registers c and tells it its id. The welcome frame is queued
// before the connection becomes visible to broadcasts, so it is always the
// first frame c receives.
func (r *Router) Connect(c Conn) {
	c.Send(wire.Welcome{ID: c.ID()})

	r.mu.Lock()
	r.conns[c.ID()] = c
	r.mu.Unlock()

	r.metrics.connections.Inc()
	r.log.WithField("conn", c.ID()).Info("connection registered")
}

// Join records the identity announced by id and broadcasts the directory.
// A repeated join overwrites the previous entry but keeps its position.
func (r *Router) Join(id domain.PeerID, displayName string, pub domain.PublicKey) {
	r.mu.Lock()
	if _, ok := r.joined[id]; !ok {
		r.order = append(r.order, id)
	}
	r.joined[id] = domain.Identity{ID: id, DisplayName: displayName, PublicKey: pub}
	r.metrics.joined.Set(float64(len(r.joined)))
	r.broadcastLocked()
	r.mu.Unlock()

	r.log.WithFields(logrus.Fields{"conn": id, "peer": displayName}).Info("identity joined")
}

// Disconnect removes id from the registry and broadcasts the directory.
func (r *Router) Disconnect(id domain.PeerID) {
	r.mu.Lock()
	if _, ok := r.conns[id]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, id)
	delete(r.joined, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.metrics.joined.Set(float64(len(r.joined)))
	r.broadcastLocked()
	r.mu.Unlock()

	r.metrics.connections.Dec()
	r.log.WithField("conn", id).Info("connection closed")
}

// ForwardSessionKey delivers a sealed session key from one party to another.
func (r *Router) ForwardSessionKey(from domain.PeerID, env domain.SessionKeyEnvelope) {
	r.forward(from, env.To, wire.SessionKey{SessionKeyEnvelope: domain.SessionKeyEnvelope{
		From:    from,
		Payload: env.Payload,
	}})
}

// ForwardMessage delivers an encrypted message verbatim apart from the sender
// id, which is always taken from the carrying connection.
func (r *Router) ForwardMessage(from domain.PeerID, env domain.EncryptedEnvelope) {
	env.From = from
	r.forward(from, env.To, wire.Message{EncryptedEnvelope: env})
}

// Dispatch handles one inbound frame from id. Frames clients may not send
// are answered with an error frame and reported as ErrIllegalFrame.
func (r *Router) Dispatch(id domain.PeerID, f wire.Frame) error {
	switch f := f.(type) {
	case wire.Join:
		r.metrics.frames.WithLabelValues(string(f.Kind())).Inc()
		r.Join(id, f.DisplayName, f.PublicKey)
		return nil
	case wire.SessionKey:
		if f.To == "" {
			return r.Reject(id, "missing_destination", ErrNoDestination)
		}
		r.metrics.frames.WithLabelValues(string(f.Kind())).Inc()
		r.ForwardSessionKey(id, f.SessionKeyEnvelope)
		return nil
	case wire.Message:
		if f.To == "" {
			return r.Reject(id, "missing_destination", ErrNoDestination)
		}
		r.metrics.frames.WithLabelValues(string(f.Kind())).Inc()
		r.ForwardMessage(id, f.EncryptedEnvelope)
		return nil
	case wire.Welcome, wire.Directory, wire.Error:
		return r.Reject(id, "illegal_kind", fmt.Errorf("%w: %s", ErrIllegalFrame, f.Kind()))
	default:
		return r.Reject(id, "illegal_kind", ErrIllegalFrame)
	}
}

// Reject sends an error frame describing err to id and returns err.
func (r *Router) Reject(id domain.PeerID, reason string, err error) error {
	r.metrics.rejected.WithLabelValues(reason).Inc()
	r.log.WithField("conn", id).WithError(err).Debug("frame rejected")

	r.mu.Lock()
	c, ok := r.conns[id]
	r.mu.Unlock()
	if ok {
		r.send(c, wire.Error{Reason: err.Error()})
	}
	return err
}

// Directory returns the current snapshot in join order.
func (r *Router) Directory() []domain.Identity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked().Peers
}

// Connections reports how many connections are registered.
func (r *Router) Connections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

func (r *Router) forward(from, to domain.PeerID, f wire.Frame) {
	r.mu.Lock()
	c, ok := r.conns[to]
	r.mu.Unlock()

	if !ok {
		r.metrics.dropped.WithLabelValues(string(f.Kind()), dropNoDestination).Inc()
		r.log.WithFields(logrus.Fields{
			"conn": from,
			"to":   to,
			"kind": f.Kind(),
		}).Debug("destination not connected; frame dropped")
		return
	}
	r.send(c, f)
}

func (r *Router) send(c Conn, f wire.Frame) {
	if !c.Send(f) {
		r.metrics.dropped.WithLabelValues(string(f.Kind()), dropBufferFull).Inc()
		r.log.WithFields(logrus.Fields{
			"conn": c.ID(),
			"kind": f.Kind(),
		}).Warn("outbound buffer full; frame dropped")
	}
}

// broadcastLocked queues the current directory on every connection.
// Callers must hold r.mu so that snapshots are queued in the order the
// registry changed. Conn.Send never blocks.
func (r *Router) broadcastLocked() {
	dir := r.snapshotLocked()
	for _, c := range r.conns {
		r.send(c, dir)
	}
}

// snapshotLocked copies the directory in join order. Callers must hold r.mu.
func (r *Router) snapshotLocked() wire.Directory {
	peers := make([]domain.Identity, 0, len(r.order))
	for _, id := range r.order {
		peers = append(peers, r.joined[id])
	}
	return wire.Directory{Peers: peers}
}
