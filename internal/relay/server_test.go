package relay_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealrelay/internal/config"
	"sealrelay/internal/domain"
	"sealrelay/internal/logging"
	"sealrelay/internal/protocol/wire"
	"sealrelay/internal/relay"
)

func startRelay(t *testing.T, mutate func(*config.Relay)) (*relay.Server, string) {
	t.Helper()
	cfg := config.DefaultRelay()
	if mutate != nil {
		mutate(cfg)
	}
	s := relay.NewServer(cfg, logging.Discard())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts.URL
}

func wsURL(base string) string {
	return "ws" + strings.TrimPrefix(base, "http") + "/ws"
}

func dial(t *testing.T, base string, codec wire.Codec) *relay.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := relay.Dial(ctx, wsURL(base), codec)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func welcome(t *testing.T, c *relay.Client) domain.PeerID {
	t.Helper()
	f, err := c.Receive()
	require.NoError(t, err)
	w, ok := f.(wire.Welcome)
	require.True(t, ok, "first frame is %T", f)
	require.NotEmpty(t, w.ID)
	return w.ID
}

// nextOf reads frames until one of type T arrives.
func nextOf[T wire.Frame](t *testing.T, c *relay.Client) T {
	t.Helper()
	for i := 0; i < 16; i++ {
		f, err := c.Receive()
		require.NoError(t, err)
		if v, ok := f.(T); ok {
			return v
		}
	}
	var zero T
	t.Fatalf("no %T frame received", zero)
	return zero
}

func TestServer_JoinAndForward(t *testing.T) {
	_, base := startRelay(t, nil)
	ctx := context.Background()

	alice := dial(t, base, wire.JSON)
	aliceID := welcome(t, alice)
	bob := dial(t, base, wire.CBOR)
	bobID := welcome(t, bob)

	require.NoError(t, alice.Join(ctx, "Alice", "pkA"))
	dir := nextOf[wire.Directory](t, bob)
	require.Len(t, dir.Peers, 1)
	assert.Equal(t, domain.Identity{ID: aliceID, DisplayName: "Alice", PublicKey: "pkA"}, dir.Peers[0])

	require.NoError(t, bob.Join(ctx, "Bob", "pkB"))
	dir = nextOf[wire.Directory](t, alice)
	for len(dir.Peers) < 2 {
		dir = nextOf[wire.Directory](t, alice)
	}
	assert.Equal(t, bobID, dir.Peers[1].ID)

	require.NoError(t, alice.SendSessionKey(ctx, domain.SessionKeyEnvelope{To: bobID, Payload: "sealed"}))
	sk := nextOf[wire.SessionKey](t, bob)
	assert.Equal(t, aliceID, sk.From)
	assert.Equal(t, "sealed", sk.Payload)

	env := domain.EncryptedEnvelope{To: aliceID, Ciphertext: "ct", Nonce: "n", IntegrityTag: "tag"}
	require.NoError(t, bob.SendMessage(ctx, env))
	msg := nextOf[wire.Message](t, alice)
	assert.Equal(t, bobID, msg.From)
	assert.Equal(t, "ct", msg.Ciphertext)
	assert.Equal(t, "tag", msg.IntegrityTag)
}

func TestServer_DisconnectUpdatesDirectory(t *testing.T) {
	s, base := startRelay(t, nil)
	ctx := context.Background()

	alice := dial(t, base, wire.JSON)
	welcome(t, alice)
	bob := dial(t, base, wire.JSON)
	welcome(t, bob)
	require.NoError(t, alice.Join(ctx, "Alice", "pkA"))
	require.NoError(t, bob.Join(ctx, "Bob", "pkB"))

	for len(nextOf[wire.Directory](t, alice).Peers) < 2 {
	}
	require.NoError(t, bob.Close())
	require.Eventually(t, func() bool { return s.Router().Connections() == 1 }, 5*time.Second, 10*time.Millisecond)

	for {
		dir := nextOf[wire.Directory](t, alice)
		if len(dir.Peers) == 1 {
			assert.Equal(t, "Alice", dir.Peers[0].DisplayName)
			break
		}
	}
}

func TestServer_RejectsUnknownAndMalformedFrames(t *testing.T) {
	_, base := startRelay(t, nil)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(base), nil)
	require.NoError(t, err)
	defer ws.Close()

	readError := func() wire.Error {
		for {
			_, data, err := ws.ReadMessage()
			require.NoError(t, err)
			f, err := wire.JSON.Unmarshal(data)
			require.NoError(t, err)
			if e, ok := f.(wire.Error); ok {
				return e
			}
		}
	}

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"kind":"shout","body":{}}`)))
	assert.Contains(t, readError().Reason, "unknown frame kind")

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"kind":"join"`)))
	assert.Contains(t, readError().Reason, "malformed")

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"kind":"directory","body":{"peers":[]}}`)))
	assert.Contains(t, readError().Reason, "not accepted from clients")
}

func TestServer_RateLimit(t *testing.T) {
	_, base := startRelay(t, func(c *config.Relay) {
		c.RateLimit = 0.001
		c.RateBurst = 1
	})
	ctx := context.Background()

	c := dial(t, base, wire.JSON)
	welcome(t, c)
	require.NoError(t, c.Join(ctx, "A", "pk"))
	require.NoError(t, c.Join(ctx, "A", "pk"))

	e := nextOf[wire.Error](t, c)
	assert.Contains(t, e.Reason, "rate limit")
}

func TestServer_OriginAllowList(t *testing.T) {
	_, base := startRelay(t, func(c *config.Relay) {
		c.AllowedOrigins = []string{"https://chat.example"}
	})

	h := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(base), h)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	h.Set("Origin", "https://chat.example")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL(base), h)
	require.NoError(t, err)
	_ = ws.Close()
}

func TestServer_HealthAndMetrics(t *testing.T) {
	_, base := startRelay(t, nil)

	c := dial(t, base, wire.JSON)
	welcome(t, c)
	require.NoError(t, c.SendMessage(context.Background(), domain.EncryptedEnvelope{To: "nobody"}))

	resp, err := http.Get(base + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	var h struct {
		Status      string `json:"status"`
		Connections int    `json:"connections"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, 1, h.Connections)

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return strings.Contains(string(body), `sealrelay_dropped_frames_total{kind="message",reason="no_destination"} 1`)
	}, 5*time.Second, 20*time.Millisecond)
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	cfg := config.DefaultRelay()
	cfg.Listen = "127.0.0.1:0"
	s := relay.NewServer(cfg, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
