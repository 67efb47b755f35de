// Package console drives the catalog over a plain line-oriented stream such
// as a serial terminal or a pipe.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/eigenbahn/dynix/internal/render"
	"github.com/eigenbahn/dynix/internal/screen"
)

type line struct {
	text string
	err  error
}

// Console implements screen.UI. A single reader goroutine feeds lines into a
// channel so ReadCommand can give up after a timeout without losing input.
type Console struct {
	out      io.Writer
	renderer *render.Renderer
	lines    chan line
	start    sync.Once
	in       *bufio.Scanner
	logger   *slog.Logger
}

var _ screen.UI = (*Console)(nil)

func New(in io.Reader, out io.Writer, r *render.Renderer) *Console {
	return &Console{
		out:      out,
		renderer: r,
		lines:    make(chan line),
		in:       bufio.NewScanner(in),
		logger:   slog.Default().With("component", "console"),
	}
}

func (c *Console) Draw(f screen.Frame) error {
	_, err := io.WriteString(c.out, "\n"+c.renderer.Render(f).String())
	return err
}

func (c *Console) ReadCommand(ctx context.Context, timeout time.Duration) (string, bool, error) {
	c.start.Do(func() { go c.read() })

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case l, ok := <-c.lines:
		if !ok {
			return "", false, io.EOF
		}
		if l.err != nil {
			return "", false, l.err
		}
		return l.text, true, nil
	case <-expired:
		return "", false, nil
	case <-ctx.Done():
		return "", false, ctx.Err()
	}
}

func (c *Console) read() {
	defer close(c.lines)
	for c.in.Scan() {
		c.lines <- line{text: c.in.Text()}
	}
	if err := c.in.Err(); err != nil {
		c.logger.Error("reading input", "error", err)
		c.lines <- line{err: fmt.Errorf("console input: %w", err)}
	}
}
