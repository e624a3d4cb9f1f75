package commands

import (
	"context"
	"fmt"
	"io"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sealrelay/internal/app"
	"sealrelay/internal/client"
	"sealrelay/internal/config"
	"sealrelay/internal/domain"
	"sealrelay/internal/logging"
	"sealrelay/internal/relay"
)

const waitFor = 5 * time.Second

// scriptConsole feeds lines from in and records everything printed.
type scriptConsole struct {
	in chan string

	mu  sync.Mutex
	out strings.Builder
}

func newScriptConsole() *scriptConsole {
	return &scriptConsole{in: make(chan string)}
}

func (c *scriptConsole) ReadLine() (string, error) {
	line, ok := <-c.in
	if !ok {
		return "", io.EOF
	}
	return line, nil
}

func (c *scriptConsole) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(&c.out, format, args...)
}

func (c *scriptConsole) Close() error { return nil }

func (c *scriptConsole) Output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.String()
}

func (c *scriptConsole) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out.Reset()
}

func testRelayURL(t *testing.T) string {
	t.Helper()
	s := relay.NewServer(config.DefaultRelay(), logging.Discard())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

// startApp connects a client named name and runs it until the test ends.
func startApp(t *testing.T, url, name string, notify func(client.Event)) (*app.App, *app.Wire) {
	t.Helper()
	c := config.DefaultClient()
	c.RelayURL = url
	c.DisplayName = name

	w, err := app.NewWire(app.Config{Client: c, LogOutput: io.Discard, Notify: notify})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	a, err := w.Connect(ctx)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = a.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = w.Close()
	})

	require.Eventually(t, func() bool { return a.Engine.Self() != "" }, waitFor, 10*time.Millisecond)
	return a, w
}

func TestChatUI_SelectSendHistory(t *testing.T) {
	url := testRelayURL(t)
	ctx := context.Background()

	con := newScriptConsole()
	ui := &chatUI{con: con}
	alice, aliceWire := startApp(t, url, "Alice", ui.onEvent)
	ui.app, ui.wire = alice, aliceWire
	bob, _ := startApp(t, url, "Bob", nil)

	_, err := ui.handle(ctx, "hello?")
	require.ErrorContains(t, err, "no peer selected")

	require.Eventually(t, func() bool {
		_, err := alice.Engine.FindPeer("Bob")
		return err == nil
	}, waitFor, 10*time.Millisecond)

	quit, err := ui.handle(ctx, "/peers")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Contains(t, con.Output(), "Bob")
	assert.Contains(t, con.Output(), "online")

	con.Reset()
	_, err = ui.handle(ctx, "/select Bob")
	require.NoError(t, err)
	assert.Contains(t, con.Output(), "* talking to Bob (established)")
	assert.Equal(t, bob.Engine.Self(), ui.current())

	_, err = ui.handle(ctx, "hello bob")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		h := bob.Engine.History(alice.Engine.Self())
		return len(h) == 1 && h[0].Text == "hello bob" && h[0].IntegrityOK
	}, waitFor, 10*time.Millisecond)
	assert.Equal(t, "Alice", bob.Engine.History(alice.Engine.Self())[0].Sender)

	con.Reset()
	_, err = ui.handle(ctx, "/history")
	require.NoError(t, err)
	assert.Contains(t, con.Output(), "You: hello bob")

	_, err = ui.handle(ctx, "/frobnicate now")
	require.ErrorContains(t, err, "unknown command /frobnicate")

	quit, err = ui.handle(ctx, "/quit")
	require.NoError(t, err)
	assert.True(t, quit)
}

func TestChatUI_SelectUnknownPeer(t *testing.T) {
	url := testRelayURL(t)
	con := newScriptConsole()
	ui := &chatUI{con: con}
	ui.app, ui.wire = startApp(t, url, "Alice", ui.onEvent)

	_, err := ui.handle(context.Background(), "/select Nobody")
	require.Error(t, err)
	assert.Equal(t, domain.PeerID(""), ui.current())

	_, err = ui.handle(context.Background(), "/select")
	require.ErrorContains(t, err, "usage")
}

func TestChatUI_ReceivedMessageIsPrinted(t *testing.T) {
	url := testRelayURL(t)
	ctx := context.Background()

	con := newScriptConsole()
	ui := &chatUI{con: con}
	alice, aliceWire := startApp(t, url, "Alice", ui.onEvent)
	ui.app, ui.wire = alice, aliceWire
	bob, _ := startApp(t, url, "Bob", nil)

	require.Eventually(t, func() bool {
		_, ok := bob.Engine.Peer(alice.Engine.Self())
		return ok
	}, waitFor, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		_, err := alice.Engine.FindPeer("Bob")
		return err == nil
	}, waitFor, 10*time.Millisecond)
	_, err := ui.handle(ctx, "/select Bob")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		rec, _ := bob.Engine.Peer(alice.Engine.Self())
		return rec.State == domain.StateEstablished
	}, waitFor, 10*time.Millisecond)

	_, err = bob.Engine.Send(ctx, alice.Engine.Self(), "hi alice")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return strings.Contains(con.Output(), "Bob: hi alice")
	}, waitFor, 10*time.Millisecond)
}

func TestChatUI_LoopStopsOnQuitAndEOF(t *testing.T) {
	con := newScriptConsole()
	ui := &chatUI{con: con}

	done := make(chan error, 1)
	go func() { done <- ui.loop(context.Background()) }()
	con.in <- "/help"
	con.in <- "/quit"
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("loop did not return on /quit")
	}
	assert.Contains(t, con.Output(), "Commands:")

	go func() { done <- ui.loop(context.Background()) }()
	close(con.in)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("loop did not return on end of input")
	}
}

func TestChatUI_LoopReleasesReaderAfterCancel(t *testing.T) {
	con := newScriptConsole()
	ui := &chatUI{con: con}
	before := runtime.NumGoroutine()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ui.loop(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("loop did not return on cancel")
	}

	// The reader is still blocked in ReadLine. A line arriving now must not
	// strand it.
	con.in <- "late line"
	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, waitFor, 10*time.Millisecond)
}
