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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/loom/internal/permission"
)

func TestPermissionGateApprovalClassNoneNeedsNoDecision(t *testing.T) {
	gate := NewPermissionGate(permission.NewDefaultService(), PermissionGateConfig{})
	decision, err := gate.Request(context.Background(), PermissionContext{Class: ApprovalClassNone})
	require.NoError(t, err)
	assert.Equal(t, ApprovalApproved, decision)
}

func TestPermissionGateYOLOApprovesEverything(t *testing.T) {
	gate := NewPermissionGate(permission.NewDefaultService(), PermissionGateConfig{YOLO: true})
	decision, err := gate.Request(context.Background(), PermissionContext{
		Class: ApprovalClassDeleteOperation, ToolName: "delete_file",
	})
	require.NoError(t, err)
	assert.Equal(t, ApprovalApproved, decision)
}

func TestPermissionGateDisabledToolsTakePrecedenceOverAllowedTools(t *testing.T) {
	gate := NewPermissionGate(permission.NewDefaultService(), PermissionGateConfig{
		AllowedTools:  []string{"execute_command"},
		DisabledTools: []string{"execute_command"},
	})
	decision, err := gate.Request(context.Background(), PermissionContext{
		Class: ApprovalClassExecuteCommand, ToolName: "execute_command",
	})
	require.NoError(t, err)
	assert.Equal(t, ApprovalDenied, decision)
}

func TestPermissionGateAllowedToolsBypassApproval(t *testing.T) {
	gate := NewPermissionGate(permission.NewDefaultService(), PermissionGateConfig{
		AllowedTools: []string{"write_file"},
	})
	decision, err := gate.Request(context.Background(), PermissionContext{
		Class: ApprovalClassWriteFile, ToolName: "write_file",
	})
	require.NoError(t, err)
	assert.Equal(t, ApprovalApproved, decision)
}

func TestPermissionGateSessionAutoApprovalShortCircuits(t *testing.T) {
	svc := permission.NewDefaultService()
	svc.AutoApproveSession("session-1")
	gate := NewPermissionGate(svc, PermissionGateConfig{})

	decision, err := gate.Request(context.Background(), PermissionContext{
		Class: ApprovalClassGitWrite, ToolName: "git_push", SessionID: "session-1",
	})
	require.NoError(t, err)
	assert.Equal(t, ApprovalApprovedSession, decision)
}

func TestPermissionGateWaitsForApproverGrant(t *testing.T) {
	svc := permission.NewDefaultService()
	gate := NewPermissionGate(svc, PermissionGateConfig{Timeout: 2 * time.Second})

	requests := svc.Subscribe(context.Background())
	go func() {
		req := <-requests
		svc.Grant(permission.PermissionRequest{ToolCallID: req.Payload.ToolCallID})
	}()

	decision, err := gate.Request(context.Background(), PermissionContext{
		Class: ApprovalClassWriteFile, ToolName: "write_file", CallID: "call-42",
	})
	require.NoError(t, err)
	assert.Equal(t, ApprovalApproved, decision)
}

func TestPermissionGateWaitsForApproverDeny(t *testing.T) {
	svc := permission.NewDefaultService()
	gate := NewPermissionGate(svc, PermissionGateConfig{Timeout: 2 * time.Second})

	requests := svc.Subscribe(context.Background())
	go func() {
		req := <-requests
		svc.Deny(permission.PermissionRequest{ToolCallID: req.Payload.ToolCallID})
	}()

	decision, err := gate.Request(context.Background(), PermissionContext{
		Class: ApprovalClassExecuteCommand, ToolName: "execute_command", CallID: "call-43",
	})
	require.NoError(t, err)
	assert.Equal(t, ApprovalDenied, decision)
}

func TestPermissionGateFallsBackToDefaultActionOnTimeout(t *testing.T) {
	svc := permission.NewDefaultService()
	gate := NewPermissionGate(svc, PermissionGateConfig{
		Timeout:       50 * time.Millisecond,
		DefaultAction: "allow",
	})

	decision, err := gate.Request(context.Background(), PermissionContext{
		Class: ApprovalClassExecuteCommand, ToolName: "execute_command", CallID: "call-44",
	})
	require.NoError(t, err)
	assert.Equal(t, ApprovalApproved, decision)
}

func TestPermissionGateDefaultActionIsDenyWhenUnconfigured(t *testing.T) {
	svc := permission.NewDefaultService()
	gate := NewPermissionGate(svc, PermissionGateConfig{Timeout: 50 * time.Millisecond})

	decision, err := gate.Request(context.Background(), PermissionContext{
		Class: ApprovalClassExecuteCommand, ToolName: "execute_command", CallID: "call-45",
	})
	require.NoError(t, err)
	assert.Equal(t, ApprovalDenied, decision)
}

func TestPermissionGateRespectsCallerContextCancellation(t *testing.T) {
	svc := permission.NewDefaultService()
	gate := NewPermissionGate(svc, PermissionGateConfig{Timeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	decision, err := gate.Request(ctx, PermissionContext{
		Class: ApprovalClassExecuteCommand, ToolName: "execute_command", CallID: "call-46",
	})
	require.NoError(t, err)
	assert.Equal(t, ApprovalDenied, decision)
}
