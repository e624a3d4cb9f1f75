package relay

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealrelay/internal/domain"
	"sealrelay/internal/logging"
	"sealrelay/internal/protocol/wire"
)

type fakeConn struct {
	id     domain.PeerID
	mu     sync.Mutex
	frames []wire.Frame
	full   bool
	jitter time.Duration
}

func (c *fakeConn) ID() domain.PeerID { return c.id }

func (c *fakeConn) Send(f wire.Frame) bool {
	if c.jitter > 0 {
		time.Sleep(time.Duration(rand.Int63n(int64(c.jitter))))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full {
		return false
	}
	c.frames = append(c.frames, f)
	return true
}

func (c *fakeConn) last() wire.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.frames) == 0 {
		return nil
	}
	return c.frames[len(c.frames)-1]
}

func newTestRouter() (*Router, *Metrics) {
	m := NewMetrics(prometheus.NewRegistry())
	return NewRouter(logging.Discard(), m), m
}

func TestRouter_ConnectSendsWelcomeFirst(t *testing.T) {
	r, m := newTestRouter()
	a := &fakeConn{id: "a"}
	r.Connect(a)

	require.Len(t, a.frames, 1)
	assert.Equal(t, wire.Welcome{ID: "a"}, a.frames[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connections))
}

func TestRouter_JoinBroadcastsOrderedDirectory(t *testing.T) {
	r, _ := newTestRouter()
	a, b := &fakeConn{id: "a"}, &fakeConn{id: "b"}
	r.Connect(a)
	r.Connect(b)

	require.NoError(t, r.Dispatch("b", wire.Join{DisplayName: "Bob", PublicKey: "pkB"}))
	require.NoError(t, r.Dispatch("a", wire.Join{DisplayName: "Alice", PublicKey: "pkA"}))

	want := wire.Directory{Peers: []domain.Identity{
		{ID: "b", DisplayName: "Bob", PublicKey: "pkB"},
		{ID: "a", DisplayName: "Alice", PublicKey: "pkA"},
	}}
	assert.Equal(t, want, a.last())
	assert.Equal(t, want, b.last())

	// Rejoin overwrites in place.
	require.NoError(t, r.Dispatch("b", wire.Join{DisplayName: "Robert", PublicKey: "pkB2"}))
	dir := r.Directory()
	require.Len(t, dir, 2)
	assert.Equal(t, "Robert", dir[0].DisplayName)
}

func TestRouter_UnjoinedConnectionsReceiveDirectory(t *testing.T) {
	r, _ := newTestRouter()
	a, lurker := &fakeConn{id: "a"}, &fakeConn{id: "l"}
	r.Connect(a)
	r.Connect(lurker)
	r.Join("a", "Alice", "pkA")

	assert.Equal(t, wire.Directory{Peers: []domain.Identity{{ID: "a", DisplayName: "Alice", PublicKey: "pkA"}}}, lurker.last())
}

func TestRouter_DisconnectBroadcasts(t *testing.T) {
	r, m := newTestRouter()
	a, b := &fakeConn{id: "a"}, &fakeConn{id: "b"}
	r.Connect(a)
	r.Connect(b)
	r.Join("a", "Alice", "pkA")
	r.Join("b", "Bob", "pkB")

	r.Disconnect("b")
	assert.Equal(t, wire.Directory{Peers: []domain.Identity{{ID: "a", DisplayName: "Alice", PublicKey: "pkA"}}}, a.last())
	assert.Equal(t, 1, r.Connections())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.joined))

	// A second disconnect is a no-op.
	n := len(a.frames)
	r.Disconnect("b")
	assert.Len(t, a.frames, n)
}

func TestRouter_ForwardSessionKeyStampsSender(t *testing.T) {
	r, _ := newTestRouter()
	a, b, c := &fakeConn{id: "a"}, &fakeConn{id: "b"}, &fakeConn{id: "c"}
	r.Connect(a)
	r.Connect(b)
	r.Connect(c)

	err := r.Dispatch("a", wire.SessionKey{SessionKeyEnvelope: domain.SessionKeyEnvelope{
		To: "b", From: "c", Payload: "sealed",
	}})
	require.NoError(t, err)

	assert.Equal(t, wire.SessionKey{SessionKeyEnvelope: domain.SessionKeyEnvelope{From: "a", Payload: "sealed"}}, b.last())
	assert.Equal(t, wire.Welcome{ID: "c"}, c.last())
}

func TestRouter_ForwardMessageVerbatim(t *testing.T) {
	r, _ := newTestRouter()
	a, b := &fakeConn{id: "a"}, &fakeConn{id: "b"}
	r.Connect(a)
	r.Connect(b)

	env := domain.EncryptedEnvelope{To: "b", From: "spoofed", Ciphertext: "ct", Nonce: "n", IntegrityTag: "tag"}
	require.NoError(t, r.Dispatch("a", wire.Message{EncryptedEnvelope: env}))

	env.From = "a"
	assert.Equal(t, wire.Message{EncryptedEnvelope: env}, b.last())
}

func TestRouter_MissingDestinationIsDroppedAndCounted(t *testing.T) {
	r, m := newTestRouter()
	a := &fakeConn{id: "a"}
	r.Connect(a)

	require.NoError(t, r.Dispatch("a", wire.Message{EncryptedEnvelope: domain.EncryptedEnvelope{To: "gone"}}))
	require.NoError(t, r.Dispatch("a", wire.SessionKey{SessionKeyEnvelope: domain.SessionKeyEnvelope{To: "gone"}}))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("message", dropNoDestination)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("session-key", dropNoDestination)))
	assert.Equal(t, wire.Welcome{ID: "a"}, a.last(), "sender is not told about silent drops")
}

func TestRouter_RejectsIllegalKinds(t *testing.T) {
	r, m := newTestRouter()
	a := &fakeConn{id: "a"}
	r.Connect(a)

	for _, f := range []wire.Frame{
		wire.Welcome{ID: "x"},
		wire.Directory{},
		wire.Error{Reason: "x"},
	} {
		err := r.Dispatch("a", f)
		assert.ErrorIs(t, err, ErrIllegalFrame)
		assert.IsType(t, wire.Error{}, a.last())
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(m.rejected.WithLabelValues("illegal_kind")))

	err := r.Dispatch("a", wire.Message{})
	assert.ErrorIs(t, err, ErrNoDestination)
}

func TestRouter_FullBufferIsCounted(t *testing.T) {
	r, m := newTestRouter()
	a, b := &fakeConn{id: "a"}, &fakeConn{id: "b", full: true}
	r.Connect(a)
	r.Connect(b)

	require.NoError(t, r.Dispatch("a", wire.Message{EncryptedEnvelope: domain.EncryptedEnvelope{To: "b"}}))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dropped.WithLabelValues("message", dropBufferFull)))
}

func TestRouter_ConcurrentJoinsDeliverDirectoriesInOrder(t *testing.T) {
	const joiners = 4
	for iter := 0; iter < 50; iter++ {
		r, _ := newTestRouter()
		observer := &fakeConn{id: "observer", jitter: 200 * time.Microsecond}
		r.Connect(observer)

		var wg sync.WaitGroup
		for i := 0; i < joiners; i++ {
			id := domain.PeerID(fmt.Sprintf("p%d", i))
			r.Connect(&fakeConn{id: id})
			wg.Add(1)
			go func() {
				defer wg.Done()
				r.Join(id, string(id), "pk")
			}()
		}
		wg.Wait()

		observer.mu.Lock()
		seen := 0
		for _, f := range observer.frames {
			dir, ok := f.(wire.Directory)
			if !ok {
				continue
			}
			require.Greater(t, len(dir.Peers), seen, "iteration %d: directory shrank", iter)
			seen = len(dir.Peers)
		}
		observer.mu.Unlock()
		require.Equal(t, joiners, seen, "iteration %d: final directory is stale", iter)
	}
}
