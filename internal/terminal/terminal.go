package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/p-n-ai/pim/internal/shared"
)

// Options configures a Terminal.
type Options struct {
	In  io.Reader
	Out io.Writer
	// Interrupts delivers the user's interrupt signal, usually SIGINT.
	Interrupts <-chan os.Signal
	// NoClear keeps the screen when a menu is drawn.
	NoClear bool
}

// Terminal is the interactive Console.
type Terminal struct {
	in         *bufio.Reader
	fd         int
	isTTY      bool
	out        io.Writer
	interrupts <-chan os.Signal
	noClear    bool

	// pending is a read that outlived an interrupted prompt; the next prompt
	// receives its result.
	pending chan readResult
}

type readResult struct {
	line string
	err  error
}

// New creates a terminal. Defaults are stdin and stdout.
func New(opts Options) *Terminal {
	in := opts.In
	if in == nil {
		in = os.Stdin
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	t := &Terminal{
		in:         bufio.NewReader(in),
		fd:         -1,
		out:        out,
		interrupts: opts.Interrupts,
		noClear:    opts.NoClear,
	}
	if f, ok := in.(*os.File); ok {
		t.fd = int(f.Fd())
		t.isTTY = term.IsTerminal(t.fd)
	}
	return t
}

func (t *Terminal) Menu(title string, lines ...string) {
	if !t.noClear {
		fmt.Fprint(t.out, clearScreen)
	}
	RenderMenu(t.out, title, lines)
}

func (t *Terminal) Message(lines ...string) {
	for _, l := range lines {
		fmt.Fprintln(t.out, l)
	}
}

func (t *Terminal) Choose(ctx context.Context, prompt string, options []string, def string) (string, error) {
	line, err := t.ReadLine(ctx, prompt)
	if err != nil {
		return "", err
	}
	return ParseChoice(line, options, def)
}

func (t *Terminal) ReadLine(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(t.out, prompt)
	return t.read(ctx, t.readLine)
}

// ReadPassword reads without echo when the input is a terminal.
func (t *Terminal) ReadPassword(ctx context.Context, prompt string) (string, error) {
	fmt.Fprint(t.out, prompt)
	if !t.isTTY {
		return t.read(ctx, t.readLine)
	}
	s, err := t.read(ctx, func() (string, error) {
		b, err := term.ReadPassword(t.fd)
		return string(b), err
	})
	fmt.Fprintln(t.out)
	return s, err
}

func (t *Terminal) Pause(ctx context.Context, prompt string) error {
	_, err := t.ReadLine(ctx, prompt)
	return err
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if errors.Is(err, io.EOF) && line != "" {
		err = nil
	}
	return strings.TrimRight(line, "\r\n"), err
}

// read runs fn in the background so an interrupt or a cancelled context can
// end the prompt while the read is still blocked.
func (t *Terminal) read(ctx context.Context, fn func() (string, error)) (string, error) {
	if t.pending == nil {
		ch := make(chan readResult, 1)
		t.pending = ch
		go func() {
			line, err := fn()
			ch <- readResult{line: line, err: err}
		}()
	}

	select {
	case r := <-t.pending:
		t.pending = nil
		if errors.Is(r.err, io.EOF) {
			return "", fmt.Errorf("input closed: %w", shared.ErrInterrupted)
		}
		return r.line, r.err
	case <-t.interrupts:
		fmt.Fprintln(t.out)
		return "", shared.ErrInterrupted
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
