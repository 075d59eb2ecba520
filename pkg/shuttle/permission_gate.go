// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package shuttle

import (
	"context"
	"fmt"
	"time"

	"github.com/teradata-labs/loom/internal/permission"
)

// PermissionGateConfig configures the fast-path rules a PermissionGate
// applies before ever asking an approver.
type PermissionGateConfig struct {
	// YOLO bypasses every check and approves unconditionally.
	YOLO bool
	// AllowedTools are always approved without a round trip.
	AllowedTools []string
	// DisabledTools are always denied, taking precedence over AllowedTools.
	DisabledTools []string
	// DefaultAction is the decision returned when a request times out
	// waiting for an approver: "allow" or "deny". Defaults to "deny".
	DefaultAction string
	// Timeout bounds how long Request waits for an approver's decision.
	// Defaults to 5 minutes.
	Timeout time.Duration
}

// PermissionGate is the ApprovalGate that sits in front of
// internal/permission.Service: it resolves the obvious cases itself (YOLO,
// disabled/allowed tool lists, ApprovalClassNone, a session already marked
// auto-approved) and only publishes a PermissionRequest and waits on the
// service's notification stream for anything genuinely ambiguous.
type PermissionGate struct {
	service       *permission.DefaultService
	allowedTools  map[string]bool
	disabledTools map[string]bool
	yolo          bool
	defaultAllow  bool
	timeout       time.Duration
}

// NewPermissionGate builds a PermissionGate backed by svc.
func NewPermissionGate(svc *permission.DefaultService, cfg PermissionGateConfig) *PermissionGate {
	allowed := make(map[string]bool, len(cfg.AllowedTools))
	for _, t := range cfg.AllowedTools {
		allowed[t] = true
	}
	disabled := make(map[string]bool, len(cfg.DisabledTools))
	for _, t := range cfg.DisabledTools {
		disabled[t] = true
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &PermissionGate{
		service:       svc,
		allowedTools:  allowed,
		disabledTools: disabled,
		yolo:          cfg.YOLO,
		defaultAllow:  cfg.DefaultAction == "allow",
		timeout:       timeout,
	}
}

// Request resolves an approval decision for pc. It implements ApprovalGate.
func (g *PermissionGate) Request(ctx context.Context, pc PermissionContext) (ApprovalDecision, error) {
	if pc.Class == ApprovalClassNone {
		return ApprovalApproved, nil
	}
	if g.yolo || g.service.SkipRequests() {
		return ApprovalApproved, nil
	}
	if g.disabledTools[pc.ToolName] {
		return ApprovalDenied, nil
	}
	if g.allowedTools[pc.ToolName] {
		return ApprovalApproved, nil
	}
	if g.service.IsSessionAutoApproved(pc.SessionID, pc.ToolName) {
		return ApprovalApprovedSession, nil
	}

	callID := pc.CallID
	if callID == "" {
		callID = fmt.Sprintf("%s:%s", pc.SessionID, pc.ToolName)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	notifications := g.service.SubscribeNotifications(ctx)
	g.service.Publish(permission.PermissionRequest{
		ID:          callID,
		ToolName:    pc.ToolName,
		ToolCallID:  callID,
		SessionID:   pc.SessionID,
		Description: pc.Description,
		Path:        pc.Resource,
	})

	for {
		select {
		case evt, ok := <-notifications:
			if !ok {
				return g.timeoutDecision(), nil
			}
			if evt.Payload.ToolCallID != callID {
				continue
			}
			if evt.Payload.Granted {
				return ApprovalApproved, nil
			}
			return ApprovalDenied, nil
		case <-ctx.Done():
			return g.timeoutDecision(), nil
		}
	}
}

func (g *PermissionGate) timeoutDecision() ApprovalDecision {
	if g.defaultAllow {
		return ApprovalApproved
	}
	return ApprovalDenied
}
