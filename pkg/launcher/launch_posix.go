//go:build !windows

package launcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/riftlab/cdpkit/pkg/transport"
	"github.com/riftlab/cdpkit/pkg/transport/pipeconn"
	"github.com/riftlab/cdpkit/pkg/wire"
)

// transportArgs selects the pipe transport: fds 3 and 4, inherited by
// the child via cmd.ExtraFiles, carry CDP traffic directly with no
// network port involved.
func transportArgs() map[string]interface{} {
	return map[string]interface{}{"remote-debugging-pipe": true}
}

// transportHandle holds the parent-side ends of the pipe pair wired into
// the child's fd 3 (child reads commands) and fd 4 (child writes replies).
type transportHandle struct {
	toChild   *os.File // parent writes here; child reads on fd 3.
	fromChild *os.File // parent reads here; child writes on fd 4.
}

// prepareTransport creates the two pipe pairs and appends the child-side
// ends to cmd.ExtraFiles so they land on fd 3 and fd 4 (os/exec assigns
// ExtraFiles starting at fd 3). Must run before cmd.Start.
func prepareTransport(cmd *exec.Cmd) (transportHandle, error) {
	parentToChildR, parentToChildW, err := os.Pipe()
	if err != nil {
		return transportHandle{}, fmt.Errorf("%w: stdin pipe: %v", wire.ErrLaunchFailed, err)
	}
	childToParentR, childToParentW, err := os.Pipe()
	if err != nil {
		parentToChildR.Close()
		parentToChildW.Close()
		return transportHandle{}, fmt.Errorf("%w: stdout pipe: %v", wire.ErrLaunchFailed, err)
	}
	cmd.ExtraFiles = []*os.File{parentToChildR, childToParentW}
	return transportHandle{toChild: parentToChildW, fromChild: childToParentR}, nil
}

// connect closes the child-side fds in this process (no longer needed
// once inherited) and wraps the parent-side ends as a transport.Transport.
// No startup banner scan is needed: the pipe is live as soon as the
// child has the fds open.
func (h transportHandle) connect(ctx context.Context, cmd *exec.Cmd, stderr io.Reader, timeout time.Duration, log logrus.FieldLogger) (transport.Transport, error) {
	for _, f := range cmd.ExtraFiles {
		f.Close()
	}
	return pipeconn.New(h.toChild, h.fromChild, log), nil
}

// abort releases all four fds when cmd.Start never succeeded.
func (h transportHandle) abort(cmd *exec.Cmd) {
	h.toChild.Close()
	h.fromChild.Close()
	for _, f := range cmd.ExtraFiles {
		f.Close()
	}
}
