// Package browserdomain wraps two CDP Browser domain commands
// (getVersion, close). Named browserdomain rather than browser to avoid
// colliding with the public pkg/browser façade package.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Browser/
package browserdomain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/riftlab/cdpkit/pkg/conn"
)

// GetVersion reports the browser's protocol and product version strings.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Browser/#method-getVersion
type GetVersion struct{}

// NewGetVersion constructs a GetVersion command.
func NewGetVersion() *GetVersion { return &GetVersion{} }

// GetVersionResult is the parsed result of GetVersion.Do.
type GetVersionResult struct {
	ProtocolVersion string `json:"protocolVersion"`
	Product         string `json:"product"`
	Revision        string `json:"revision"`
	UserAgent       string `json:"userAgent"`
	JsVersion       string `json:"jsVersion"`
}

// Do sends Browser.getVersion over c.
func (g *GetVersion) Do(ctx context.Context, c *conn.Connection) (*GetVersionResult, error) {
	raw, err := c.Call(ctx, "Browser.getVersion", nil, "")
	if err != nil {
		return nil, fmt.Errorf("getVersion: %w", err)
	}
	var result GetVersionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("getVersion: parse result: %w", err)
	}
	return &result, nil
}

// Close asks the browser to close itself gracefully.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Browser/#method-close
type Close struct{}

// NewClose constructs a Close command.
func NewClose() *Close { return &Close{} }

// Do sends Browser.close over c.
func (cl *Close) Do(ctx context.Context, c *conn.Connection) error {
	if _, err := c.Call(ctx, "Browser.close", nil, ""); err != nil {
		return fmt.Errorf("browser close: %w", err)
	}
	return nil
}
