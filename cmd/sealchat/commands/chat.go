package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"sealrelay/internal/app"
	"sealrelay/internal/client"
	"sealrelay/internal/crypto"
	"sealrelay/internal/domain"
)

const chatHelp = `Commands:
  /peers              list peers seen on this connection
  /select <name|id>   choose who to talk to (establishes a session key)
  /history            show the conversation with the selected peer
  /log                show the security audit log
  /quit               leave
Any other line is sent to the selected peer.
`

func chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Connect to the relay and chat interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.DisplayName == "" {
				return fmt.Errorf("display name required (--name or DisplayName in config)")
			}
			if cfg.IdentityFile != "" && passphrase == "" {
				return fmt.Errorf("passphrase required (-p) to unlock %s", cfg.IdentityFile)
			}

			con, err := newConsole(os.Stdin, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer con.Close()

			ui := &chatUI{con: con}
			w, err := newWire(io.Discard, app.Config{Notify: ui.onEvent})
			if err != nil {
				return err
			}
			defer w.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := w.Connect(ctx)
			if err != nil {
				return err
			}
			ui.app, ui.wire = a, w
			con.Printf("Connected as %s. Fingerprint: %s\n%s", cfg.DisplayName, a.Fingerprint, chatHelp)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return a.Run(gctx) })
			g.Go(func() error {
				err := ui.loop(gctx)
				stop()
				return err
			})
			return g.Wait()
		},
	}
}

type chatUI struct {
	con  console
	app  *app.App
	wire *app.Wire

	mu       sync.Mutex
	selected domain.PeerID
}

func (u *chatUI) current() domain.PeerID {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.selected
}

func (u *chatUI) onEvent(ev client.Event) {
	switch ev.Kind {
	case client.EventMessage:
		if ev.Peer == u.current() {
			u.con.Printf("%s\n", formatMessage(ev.Message))
		} else {
			u.con.Printf("* new message from %s\n", ev.Message.Sender)
		}
	case client.EventSession:
		u.con.Printf("* secure channel established with %s\n", ev.Peer)
	case client.EventRelayError:
		u.con.Printf("! relay: %s\n", ev.Reason)
	}
}

// loop reads commands until /quit, end of input or ctx is done.
func (u *chatUI) loop(ctx context.Context) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		for {
			line, err := u.con.ReadLine()
			if err != nil {
				errc <- err
				return
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		case line := <-lines:
			quit, err := u.handle(ctx, strings.TrimSpace(line))
			if err != nil {
				u.con.Printf("! %v\n", err)
			}
			if quit {
				return nil
			}
		}
	}
}

func (u *chatUI) handle(ctx context.Context, line string) (bool, error) {
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		to := u.current()
		if to == "" {
			return false, errors.New("no peer selected; use /select <name>")
		}
		_, err := u.app.Engine.Send(ctx, to, line)
		return false, err
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		u.con.Printf("%s", chatHelp)
	case "/peers":
		u.printPeers()
	case "/select":
		if arg == "" {
			return false, errors.New("usage: /select <name|id>")
		}
		return false, u.selectPeer(ctx, arg)
	case "/history":
		u.printHistory()
	case "/log":
		for _, l := range u.wire.Audit.Lines() {
			u.con.Printf("%s\n", l)
		}
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", cmd)
	}
	return false, nil
}

func (u *chatUI) selectPeer(ctx context.Context, query string) error {
	rec, err := u.app.Engine.FindPeer(query)
	if err != nil {
		return err
	}
	rec, err = u.app.Engine.SelectPeer(ctx, rec.Identity.ID)
	if err != nil {
		return err
	}
	u.mu.Lock()
	u.selected = rec.Identity.ID
	u.mu.Unlock()
	u.con.Printf("* talking to %s (%s)\n", peerLabel(rec), rec.State)
	return nil
}

func (u *chatUI) printPeers() {
	peers := u.app.Engine.Peers()
	if len(peers) == 0 {
		u.con.Printf("no peers yet\n")
		return
	}
	for _, rec := range peers {
		status := "offline"
		if rec.Online {
			status = "online"
		}
		fp := domain.Fingerprint("-")
		if rec.Identity.PublicKey != "" {
			fp = crypto.Fingerprint(rec.Identity.PublicKey)
		}
		u.con.Printf("  %-16s %-8s %-16s %s  %s\n", peerLabel(rec), status, rec.State, fp, rec.Identity.ID)
	}
}

func (u *chatUI) printHistory() {
	id := u.current()
	if id == "" {
		u.con.Printf("no peer selected\n")
		return
	}
	for _, m := range u.app.Engine.History(id) {
		u.con.Printf("%s\n", formatMessage(m))
	}
}

func formatMessage(m domain.Message) string {
	mark := ""
	if !m.IntegrityOK {
		mark = " [!]"
	}
	return fmt.Sprintf("[%s] %s: %s%s", m.At.Format("15:04"), m.Sender, m.Text, mark)
}

func peerLabel(rec domain.PeerRecord) string {
	if rec.Identity.DisplayName != "" {
		return rec.Identity.DisplayName
	}
	return "Stranger"
}
