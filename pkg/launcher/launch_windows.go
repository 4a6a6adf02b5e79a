//go:build windows

package launcher

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/riftlab/cdpkit/pkg/transport"
	"github.com/riftlab/cdpkit/pkg/transport/wsconn"
	"github.com/riftlab/cdpkit/pkg/wire"
)

// transportArgs selects an OS-assigned TCP debugging port: fd-based CDP
// transport isn't available on Windows, so the browser endpoint is
// dialed over WebSocket using the URL scraped from the startup banner.
func transportArgs() map[string]interface{} {
	return map[string]interface{}{"remote-debugging-port": 0}
}

// transportHandle is a no-op on Windows: there is nothing to prepare
// before cmd.Start, the endpoint is discovered from stderr afterward.
type transportHandle struct{}

func prepareTransport(cmd *exec.Cmd) (transportHandle, error) {
	return transportHandle{}, nil
}

// connect scans stderr for the first "DevTools listening on " line and
// dials the reported WebSocket endpoint.
func (h transportHandle) connect(ctx context.Context, cmd *exec.Cmd, stderr io.Reader, timeout time.Duration, log logrus.FieldLogger) (transport.Transport, error) {
	wsURL, err := scanForBanner(stderr, timeout)
	if err != nil {
		return nil, err
	}
	return wsconn.Dial(ctx, wsURL, wsconn.Options{Log: log})
}

func (h transportHandle) abort(cmd *exec.Cmd) {}

// scanForBanner reads r line by line looking for the first
// "DevTools listening on " line, stopping at the first match even if a
// second banner later appears (e.g. from a renderer subprocess).
func scanForBanner(r io.Reader, timeout time.Duration) (string, error) {
	type result struct {
		url string
		err error
	}
	done := make(chan result, 1)

	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, devToolsBanner) {
				done <- result{url: strings.TrimPrefix(line, devToolsBanner)}
				return
			}
		}
		done <- result{err: fmt.Errorf("%w: stderr closed before banner appeared", wire.ErrStartupTimeout)}
	}()

	select {
	case r := <-done:
		return r.url, r.err
	case <-time.After(timeout):
		return "", wire.ErrStartupTimeout
	}
}
