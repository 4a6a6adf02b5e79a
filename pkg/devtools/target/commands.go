// Package target wraps a handful of CDP Target domain commands
// (createTarget, attachToTarget, detachFromTarget, getTargets,
// closeTarget) in the generated-wrapper shape: a params struct, a
// constructor, and a Do method that sends the command and parses the
// result.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Target/
package target

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/riftlab/cdpkit/pkg/conn"
)

// CreateTarget creates a new page target.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Target/#method-createTarget
type CreateTarget struct {
	URL string `json:"url"`
}

// NewCreateTarget constructs a CreateTarget for the given starting URL.
func NewCreateTarget(url string) *CreateTarget {
	return &CreateTarget{URL: url}
}

// CreateTargetResult is the parsed result of CreateTarget.Do.
type CreateTargetResult struct {
	TargetID string `json:"targetId"`
}

// Do sends Target.createTarget over c and parses the new target's id.
func (t *CreateTarget) Do(ctx context.Context, c *conn.Connection) (*CreateTargetResult, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("createTarget: %w", err)
	}
	raw, err := c.Call(ctx, "Target.createTarget", b, "")
	if err != nil {
		return nil, fmt.Errorf("createTarget: %w", err)
	}
	var result CreateTargetResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("createTarget: parse result: %w", err)
	}
	return &result, nil
}

// AttachToTarget attaches to the target with the given id in flattened
// session mode.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Target/#method-attachToTarget
type AttachToTarget struct {
	TargetID string `json:"targetId"`
	Flatten  bool   `json:"flatten"`
}

// NewAttachToTarget constructs an AttachToTarget with flatten enabled,
// matching how cdpkit's session package always attaches.
func NewAttachToTarget(targetID string) *AttachToTarget {
	return &AttachToTarget{TargetID: targetID, Flatten: true}
}

// AttachToTargetResult is the parsed result of AttachToTarget.Do.
type AttachToTargetResult struct {
	SessionID string `json:"sessionId"`
}

// Do sends Target.attachToTarget over c and parses the assigned sessionId.
func (t *AttachToTarget) Do(ctx context.Context, c *conn.Connection) (*AttachToTargetResult, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("attachToTarget: %w", err)
	}
	raw, err := c.Call(ctx, "Target.attachToTarget", b, "")
	if err != nil {
		return nil, fmt.Errorf("attachToTarget: %w", err)
	}
	var result AttachToTargetResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("attachToTarget: parse result: %w", err)
	}
	return &result, nil
}

// DetachFromTarget detaches an attached session, without closing its
// target.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Target/#method-detachFromTarget
type DetachFromTarget struct {
	SessionID string `json:"sessionId"`
}

// NewDetachFromTarget constructs a DetachFromTarget for the given session.
func NewDetachFromTarget(sessionID string) *DetachFromTarget {
	return &DetachFromTarget{SessionID: sessionID}
}

// Do sends Target.detachFromTarget over c.
func (t *DetachFromTarget) Do(ctx context.Context, c *conn.Connection) error {
	b, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("detachFromTarget: %w", err)
	}
	if _, err := c.Call(ctx, "Target.detachFromTarget", b, ""); err != nil {
		return fmt.Errorf("detachFromTarget: %w", err)
	}
	return nil
}

// GetTargets lists every target the browser currently knows about.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Target/#method-getTargets
type GetTargets struct{}

// NewGetTargets constructs a GetTargets command.
func NewGetTargets() *GetTargets { return &GetTargets{} }

// TargetInfo mirrors target.TargetInfo's commonly-needed fields.
type TargetInfo struct {
	TargetID string `json:"targetId"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Attached bool   `json:"attached"`
}

// GetTargetsResult is the parsed result of GetTargets.Do.
type GetTargetsResult struct {
	TargetInfos []TargetInfo `json:"targetInfos"`
}

// Do sends Target.getTargets over c.
func (t *GetTargets) Do(ctx context.Context, c *conn.Connection) (*GetTargetsResult, error) {
	raw, err := c.Call(ctx, "Target.getTargets", nil, "")
	if err != nil {
		return nil, fmt.Errorf("getTargets: %w", err)
	}
	var result GetTargetsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("getTargets: parse result: %w", err)
	}
	return &result, nil
}

// CloseTarget closes the target tab identified by TargetID.
//
// https://chromedevtools.github.io/devtools-protocol/tot/Target/#method-closeTarget
type CloseTarget struct {
	TargetID string `json:"targetId"`
}

// NewCloseTarget constructs a CloseTarget for the given target.
func NewCloseTarget(targetID string) *CloseTarget {
	return &CloseTarget{TargetID: targetID}
}

// Do sends Target.closeTarget over c.
func (t *CloseTarget) Do(ctx context.Context, c *conn.Connection) error {
	b, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("closeTarget: %w", err)
	}
	if _, err := c.Call(ctx, "Target.closeTarget", b, ""); err != nil {
		return fmt.Errorf("closeTarget: %w", err)
	}
	return nil
}
