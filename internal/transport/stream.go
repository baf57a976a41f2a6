package transport

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/muurk/improv/internal/provision"
)

// readBufferSize covers the largest frame with room to spare
const readBufferSize = 512

// Attacher wires a new session to the provisioning logic
type Attacher interface {
	Attach(sess provision.Session) (detach func())
}

// Serve runs a session over rw until a read fails, rw reaches EOF or ctx
// is done. A read returning no bytes and no error is a read timeout and
// lets the session drop a stale partial frame.
//
// Serve does not interrupt a blocked Read; callers close rw when ctx is
// cancelled.
func Serve(ctx context.Context, transport, remote string, rw io.ReadWriter, app Attacher, opts ...SessionOption) error {
	sess := NewSession(transport, remote, rw, opts...)
	defer sess.Close()

	detach := app.Attach(sess)
	defer detach()

	buf := make([]byte, readBufferSize)
	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := rw.Read(buf)
		if n > 0 {
			sess.Feed(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read from %s: %w", remote, err)
		}
		if n == 0 {
			sess.Idle()
		}
	}
}
