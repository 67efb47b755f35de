package screen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// UI draws frames and reads patron commands. ReadCommand waits at most
// timeout; ok is false when nothing was entered in time.
type UI interface {
	Draw(f Frame) error
	ReadCommand(ctx context.Context, timeout time.Duration) (cmd string, ok bool, err error)
}

// Run drives m until the patron quits, ctx ends or input closes. Each read
// timeout gives the machine a chance to advance on its own.
func Run(ctx context.Context, m *Machine, ui UI, timeout time.Duration) error {
	for !m.Done() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := ui.Draw(m.Frame()); err != nil {
			return fmt.Errorf("drawing %s: %w", m.Current().ID, err)
		}
		cmd, ok, err := ui.ReadCommand(ctx, timeout)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading command: %w", err)
		}
		if !ok {
			m.Advance(ctx)
			continue
		}
		m.Handle(ctx, cmd)
	}
	return nil
}
