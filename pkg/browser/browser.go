// Package browser is the public façade over launcher, conn and session:
// it starts or attaches to a browser process, tracks the root devtools
// connection, and exposes page-level lifecycle operations (NewPage,
// Pages, ClosePage) without requiring callers to touch the lower layers
// directly.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/riftlab/cdpkit/pkg/conn"
	"github.com/riftlab/cdpkit/pkg/launcher"
	"github.com/riftlab/cdpkit/pkg/session"
	"github.com/riftlab/cdpkit/pkg/transport/wsconn"
	"github.com/riftlab/cdpkit/pkg/wire"
)

// Environment variable overrides, read on every Launch/Attach by
// defaultOptions (call timeout, output root) and connectTimeout.
const (
	// OutputRootEnv overrides where temp user-data-dirs are created;
	// unset falls back to os.TempDir().
	OutputRootEnv = "CDP_OUTPUT_ROOT"
	// ConnectTimeoutEnv overrides DefaultConnectTimeout.
	ConnectTimeoutEnv = "CDP_CONNECT_TIMEOUT"
	// CallTimeoutEnv overrides conn.DefaultCallTimeout.
	CallTimeoutEnv = "CDP_CALL_TIMEOUT"
)

// DefaultConnectTimeout bounds Attach's WebSocket dial.
const DefaultConnectTimeout = 10 * time.Second

// Browser is a live handle to one browser process or remote endpoint:
// the root Connection plus (if this process started the browser) the
// child Process to tear down on Close.
type Browser struct {
	conn     *conn.Connection
	sessions *session.Registry
	proc     *launcher.Process
	log      logrus.FieldLogger
}

// Option configures Launch.
type Option func(*options)

type options struct {
	launcherOpts launcher.Options
	callTimeout  time.Duration
	log          logrus.FieldLogger
}

// WithExecutablePath overrides FindChrome's discovery.
func WithExecutablePath(path string) Option {
	return func(o *options) { o.launcherOpts.ExecutablePath = path }
}

// WithFlags overrides DefaultFlags.
func WithFlags(flags map[string]interface{}) Option {
	return func(o *options) { o.launcherOpts.Flags = flags }
}

// WithHeadless overrides the default headless=true.
func WithHeadless(headless bool) Option {
	return func(o *options) { o.launcherOpts.Headless = &headless }
}

// WithUserDataDir pins the profile directory instead of a temp one.
func WithUserDataDir(dir string) Option {
	return func(o *options) { o.launcherOpts.UserDataDir = dir }
}

// WithCallTimeout overrides conn.DefaultCallTimeout for every Call made
// through this Browser and its sessions.
func WithCallTimeout(d time.Duration) Option {
	return func(o *options) { o.callTimeout = d }
}

// WithLogger overrides the default logrus.StandardLogger().
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) { o.log = log }
}

func defaultOptions() *options {
	o := &options{log: logrus.StandardLogger()}
	if v := os.Getenv(CallTimeoutEnv); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			o.callTimeout = d
		}
	}
	if dir := os.Getenv(OutputRootEnv); dir != "" {
		o.launcherOpts.OutputRoot = dir
	}
	return o
}

func connectTimeout() time.Duration {
	if v := os.Getenv(ConnectTimeoutEnv); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return DefaultConnectTimeout
}

// Launch starts a new browser process and returns a Browser bound to it.
// Close on the result tears the process down.
func Launch(ctx context.Context, opts ...Option) (*Browser, error) {
	o := defaultOptions()
	for _, apply := range opts {
		apply(o)
	}
	o.launcherOpts.Log = o.log

	proc, err := launcher.Launch(ctx, o.launcherOpts)
	if err != nil {
		return nil, err
	}

	connOpts := []conn.Option{conn.WithLogger(o.log)}
	if o.callTimeout > 0 {
		connOpts = append(connOpts, conn.WithCallTimeout(o.callTimeout))
	}
	c := conn.New(proc.Transport(), connOpts...)

	return &Browser{conn: c, sessions: session.NewRegistry(c), proc: proc, log: o.log}, nil
}

// Attach connects to an already-running browser's devtools WebSocket
// endpoint without launching or owning a child process: Close releases
// the connection but never kills anything.
func Attach(ctx context.Context, wsURL string, opts ...Option) (*Browser, error) {
	o := defaultOptions()
	for _, apply := range opts {
		apply(o)
	}

	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout())
	defer cancel()
	t, err := wsconn.Dial(dialCtx, wsURL, wsconn.Options{Log: o.log})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", wire.ErrWsURLParseError, err)
	}

	connOpts := []conn.Option{conn.WithLogger(o.log)}
	if o.callTimeout > 0 {
		connOpts = append(connOpts, conn.WithCallTimeout(o.callTimeout))
	}
	c := conn.New(t, connOpts...)

	return &Browser{conn: c, sessions: session.NewRegistry(c)}, nil
}

// Conn exposes the root Connection for callers building their own
// per-domain wrappers (see pkg/devtools/*).
func (b *Browser) Conn() *conn.Connection { return b.conn }

// Sessions exposes the session registry for attach/detach.
func (b *Browser) Sessions() *session.Registry { return b.sessions }

type createTargetParams struct {
	URL string `json:"url"`
}

type createTargetResult struct {
	TargetID string `json:"targetId"`
}

// Page is one attached browser tab: its target id, its CDP session, and
// the Browser it belongs to.
type Page struct {
	TargetID string
	Session  *session.Session

	browser *Browser
}

// NewPage opens a new blank tab and attaches a session to it.
func (b *Browser) NewPage(ctx context.Context) (*Page, error) {
	params, err := json.Marshal(createTargetParams{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	raw, err := b.conn.Call(ctx, "Target.createTarget", params, "")
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	var result createTargetResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("new page: %w: %v", wire.ErrInvalidMessage, err)
	}

	s, err := b.sessions.Attach(ctx, result.TargetID)
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	return &Page{TargetID: result.TargetID, Session: s, browser: b}, nil
}

// TargetInfo mirrors the subset of target.TargetInfo pages() cares about.
type TargetInfo struct {
	TargetID string `json:"targetId"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Attached bool   `json:"attached"`
}

type getTargetsResult struct {
	TargetInfos []TargetInfo `json:"targetInfos"`
}

// Pages lists every page-type target currently open.
func (b *Browser) Pages(ctx context.Context) ([]TargetInfo, error) {
	raw, err := b.conn.Call(ctx, "Target.getTargets", nil, "")
	if err != nil {
		return nil, fmt.Errorf("pages: %w", err)
	}
	var result getTargetsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("pages: %w: %v", wire.ErrInvalidMessage, err)
	}
	pages := result.TargetInfos[:0]
	for _, info := range result.TargetInfos {
		if info.Type == "page" {
			pages = append(pages, info)
		}
	}
	return pages, nil
}

type closeTargetParams struct {
	TargetID string `json:"targetId"`
}

// ClosePage closes the tab identified by targetID.
func (b *Browser) ClosePage(ctx context.Context, targetID string) error {
	params, err := json.Marshal(closeTargetParams{TargetID: targetID})
	if err != nil {
		return fmt.Errorf("close page %s: %w", targetID, err)
	}
	if _, err := b.conn.Call(ctx, "Target.closeTarget", params, ""); err != nil {
		return fmt.Errorf("close page %s: %w", targetID, err)
	}
	return nil
}

// VersionInfo mirrors browser.GetVersionResult.
type VersionInfo struct {
	ProtocolVersion string `json:"protocolVersion"`
	Product         string `json:"product"`
	Revision        string `json:"revision"`
	UserAgent       string `json:"userAgent"`
	JsVersion       string `json:"jsVersion"`
}

// Version reports the browser's protocol and product version strings.
func (b *Browser) Version(ctx context.Context) (VersionInfo, error) {
	raw, err := b.conn.Call(ctx, "Browser.getVersion", nil, "")
	if err != nil {
		return VersionInfo{}, fmt.Errorf("version: %w", err)
	}
	var v VersionInfo
	if err := json.Unmarshal(raw, &v); err != nil {
		return VersionInfo{}, fmt.Errorf("version: %w: %v", wire.ErrInvalidMessage, err)
	}
	return v, nil
}

// Close tears down what this Browser owns. With an owned process it
// sends Browser.close, waits briefly for a graceful shutdown, and kills
// the process if it is still running; without one (Attach) it only
// closes the connection and sends nothing. A second call is a no-op via
// launcher.Process's own idempotent Close when a process is owned, or
// the connection's idempotent Close otherwise.
func (b *Browser) Close(ctx context.Context) error {
	if b.proc == nil {
		return b.conn.Close()
	}
	return b.proc.Close(ctx, b.conn)
}

// Disconnect releases the connection without killing the browser
// process, even if this Browser started it. Useful when handing the
// browser off to run unattended.
func (b *Browser) Disconnect() error {
	return b.conn.Close()
}
