package launcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/riftlab/cdpkit/pkg/conn"
	"github.com/riftlab/cdpkit/pkg/transport"
	"github.com/riftlab/cdpkit/pkg/wire"
)

// devToolsBanner is the literal stderr prefix Chrome emits once a
// TCP devtools endpoint is ready to accept connections. Only used on
// platforms that launch with --remote-debugging-port (see
// launch_windows.go); the pipe transport needs no banner.
const devToolsBanner = "DevTools listening on "

// DefaultStartupTimeout bounds how long Launch waits for the transport
// to become ready before giving up.
const DefaultStartupTimeout = 20 * time.Second

// Options configures Launch.
type Options struct {
	// ExecutablePath overrides FindChrome's discovery.
	ExecutablePath string
	// Flags overrides DefaultFlags(). Opt-in flags (no-sandbox,
	// ignore-certificate-errors, window-size, user-data-dir) are merged
	// in verbatim if present.
	Flags map[string]interface{}
	// Headless selects "--headless=new" when true (the default).
	Headless *bool
	// UserDataDir pins the profile directory; empty creates a temp one
	// under OutputRoot.
	UserDataDir string
	// OutputRoot is the directory under which a temp profile dir is
	// created when UserDataDir is empty; empty means os.MkdirTemp's
	// default (os.TempDir()).
	OutputRoot string
	// StartupTimeout overrides DefaultStartupTimeout.
	StartupTimeout time.Duration
	// Log receives process lifecycle diagnostics.
	Log logrus.FieldLogger
}

// Process is a running browser child process: its command handle, the
// live transport to it, and the temp user-data-dir to clean up on
// Close, if cdpkit created one.
type Process struct {
	cmd         *exec.Cmd
	transport   transport.Transport
	userDataDir string
	ownsUserDir bool
	log         logrus.FieldLogger

	exited  chan struct{}
	exitErr error
	once    sync.Once
}

// Transport is the live channel to the child's devtools endpoint: a
// pipeconn.Conn on POSIX, a wsconn.Conn on Windows.
func (p *Process) Transport() transport.Transport { return p.transport }

// Exited is closed once the child process has exited, for any reason.
func (p *Process) Exited() <-chan struct{} { return p.exited }

// Launch starts a browser child process, wires up its devtools
// transport (a pipe pair on POSIX, a WebSocket dial on Windows — see
// launch_posix.go/launch_windows.go), and returns once the transport is
// ready or the startup timeout elapses.
func Launch(ctx context.Context, opts Options) (*Process, error) {
	path := opts.ExecutablePath
	if path == "" {
		found, err := FindChrome()
		if err != nil {
			return nil, err
		}
		path = found
	}

	flags := opts.Flags
	if flags == nil {
		flags = DefaultFlags()
	}
	headless := true
	if opts.Headless != nil {
		headless = *opts.Headless
	}

	userDataDir := opts.UserDataDir
	ownsUserDir := false
	if userDataDir == "" {
		dir, err := os.MkdirTemp(opts.OutputRoot, "cdpkit-profile-*")
		if err != nil {
			return nil, fmt.Errorf("%w: create temp user-data-dir: %v", wire.ErrLaunchFailed, err)
		}
		userDataDir = dir
		ownsUserDir = true
	}
	flags["user-data-dir"] = userDataDir

	args := buildArgs(flags, headless, transportArgs())
	cmd := exec.CommandContext(ctx, path, args...)

	handle, err := prepareTransport(cmd)
	if err != nil {
		if ownsUserDir {
			os.RemoveAll(userDataDir)
		}
		return nil, err
	}

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		handle.abort(cmd)
		if ownsUserDir {
			os.RemoveAll(userDataDir)
		}
		return nil, fmt.Errorf("%w: stderr pipe: %v", wire.ErrLaunchFailed, err)
	}
	cmd.Stdout = io.Discard

	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	if err := cmd.Start(); err != nil {
		handle.abort(cmd)
		if ownsUserDir {
			os.RemoveAll(userDataDir)
		}
		return nil, fmt.Errorf("%w: %v", wire.ErrLaunchFailed, err)
	}
	log.WithField("pid", cmd.Process.Pid).Info("browser process started")

	p := &Process{cmd: cmd, userDataDir: userDataDir, ownsUserDir: ownsUserDir, log: log, exited: make(chan struct{})}

	go func() {
		err := cmd.Wait()
		p.exitErr = err
		close(p.exited)
	}()

	timeout := opts.StartupTimeout
	if timeout == 0 {
		timeout = DefaultStartupTimeout
	}
	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	t, err := handle.connect(connectCtx, cmd, stderrPipe, timeout, log)
	if err != nil {
		p.kill()
		<-p.exited
		if ownsUserDir {
			os.RemoveAll(userDataDir)
		}
		return nil, err
	}
	p.transport = t
	return p, nil
}

func (p *Process) kill() {
	if p.cmd.Process != nil {
		p.cmd.Process.Kill()
	}
}

// Close tears the process down: best-effort Browser.close through conn
// (if non-nil), then conn.Close, then kill+wait if the child is still
// alive, then remove the temp user-data-dir if cdpkit created one.
func (p *Process) Close(ctx context.Context, c *conn.Connection) error {
	var err error
	p.once.Do(func() {
		if c != nil {
			closeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if _, cerr := c.Call(closeCtx, "Browser.close", nil, ""); cerr != nil {
				p.log.WithError(cerr).Debug("best-effort Browser.close failed")
			}
			cancel()
			c.Close()
		}

		select {
		case <-p.exited:
		case <-time.After(3 * time.Second):
			p.kill()
			<-p.exited
		}

		if p.ownsUserDir {
			if rmErr := os.RemoveAll(p.userDataDir); rmErr != nil {
				err = fmt.Errorf("remove user-data-dir: %w", rmErr)
			}
		}
	})
	return err
}
