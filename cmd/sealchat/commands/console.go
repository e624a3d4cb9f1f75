package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// console is the chat front end's line I/O. Printf may be called from any
// goroutine while ReadLine is blocked.
type console interface {
	ReadLine() (string, error)
	Printf(format string, args ...any)
	Close() error
}

// newConsole returns a line-editing terminal when stdin is a TTY and a plain
// line reader otherwise.
func newConsole(in *os.File, out io.Writer) (console, error) {
	fd := int(in.Fd())
	if !term.IsTerminal(fd) {
		return &plainConsole{in: bufio.NewScanner(in), out: out}, nil
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	rw := struct {
		io.Reader
		io.Writer
	}{in, out}
	return &ttyConsole{t: term.NewTerminal(rw, "> "), fd: fd, state: state}, nil
}

type ttyConsole struct {
	t     *term.Terminal
	fd    int
	state *term.State
}

func (c *ttyConsole) ReadLine() (string, error) { return c.t.ReadLine() }

func (c *ttyConsole) Printf(format string, args ...any) {
	fmt.Fprintf(c.t, format, args...)
}

func (c *ttyConsole) Close() error { return term.Restore(c.fd, c.state) }

type plainConsole struct {
	in  *bufio.Scanner
	mu  sync.Mutex
	out io.Writer
}

func (c *plainConsole) ReadLine() (string, error) {
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return c.in.Text(), nil
}

func (c *plainConsole) Printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *plainConsole) Close() error { return nil }
