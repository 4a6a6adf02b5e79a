// Package page wraps two CDP Page domain commands (navigate, enable) in
// the generated-wrapper shape, scoped to one attached session.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Page/
package page

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/riftlab/cdpkit/pkg/session"
)

// Navigate navigates the frame to a URL.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Page/#method-navigate
type Navigate struct {
	URL string `json:"url"`
}

// NewNavigate constructs a Navigate command for the given URL.
func NewNavigate(url string) *Navigate {
	return &Navigate{URL: url}
}

// NavigateResult is the parsed result of Navigate.Do.
type NavigateResult struct {
	FrameID   string `json:"frameId"`
	ErrorText string `json:"errorText,omitempty"`
}

// Do sends Page.navigate over s.
func (n *Navigate) Do(ctx context.Context, s *session.Session) (*NavigateResult, error) {
	b, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	raw, err := s.Call(ctx, "Page.navigate", b)
	if err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	var result NavigateResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("navigate: parse result: %w", err)
	}
	if result.ErrorText != "" {
		return &result, fmt.Errorf("navigate: %s", result.ErrorText)
	}
	return &result, nil
}

// Enable enables page domain notifications (frameNavigated,
// loadEventFired, etc.) for the session.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Page/#method-enable
type Enable struct{}

// NewEnable constructs an Enable command.
func NewEnable() *Enable { return &Enable{} }

// Do sends Page.enable over s.
func (e *Enable) Do(ctx context.Context, s *session.Session) error {
	if _, err := s.Call(ctx, "Page.enable", nil); err != nil {
		return fmt.Errorf("page enable: %w", err)
	}
	return nil
}
