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
package permission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultServiceGrantMarksGranted(t *testing.T) {
	svc := NewDefaultService()
	perm := PermissionRequest{ToolCallID: "call-1", ToolName: "write_file", SessionID: "s1"}

	assert.False(t, svc.IsGranted("call-1"))
	svc.Grant(perm)
	assert.True(t, svc.IsGranted("call-1"))
}

func TestDefaultServiceDenyMarksNotGranted(t *testing.T) {
	svc := NewDefaultService()
	perm := PermissionRequest{ToolCallID: "call-1"}

	svc.Grant(perm)
	require.True(t, svc.IsGranted("call-1"))
	svc.Deny(perm)
	assert.False(t, svc.IsGranted("call-1"))
}

func TestDefaultServiceGrantPersistentAutoApprovesFutureCalls(t *testing.T) {
	svc := NewDefaultService()
	perm := PermissionRequest{ToolCallID: "call-1", ToolName: "run_command", SessionID: "s1"}

	svc.GrantPersistent(perm)
	assert.True(t, svc.IsSessionAutoApproved("s1", "run_command"))
	assert.False(t, svc.IsSessionAutoApproved("s1", "delete_file"))
}

func TestDefaultServiceAutoApproveSessionCoversEveryTool(t *testing.T) {
	svc := NewDefaultService()
	svc.AutoApproveSession("s1")
	assert.True(t, svc.IsSessionAutoApproved("s1", "anything"))
}

func TestDefaultServiceSkipRequestsToggle(t *testing.T) {
	svc := NewDefaultService()
	assert.False(t, svc.SkipRequests())
	svc.SetSkipRequests(true)
	assert.True(t, svc.SkipRequests())
}

func TestDefaultServiceSubscribeReceivesPublishedRequests(t *testing.T) {
	svc := NewDefaultService()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := svc.Subscribe(ctx)
	perm := PermissionRequest{ToolCallID: "call-1", ToolName: "write_file"}
	svc.Publish(perm)

	select {
	case evt := <-ch:
		assert.Equal(t, perm, evt.Payload)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published request")
	}
}

func TestDefaultServiceSubscribeNotificationsReceivesGrantDecision(t *testing.T) {
	svc := NewDefaultService()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := svc.SubscribeNotifications(ctx)
	svc.Grant(PermissionRequest{ToolCallID: "call-1"})

	select {
	case evt := <-ch:
		assert.Equal(t, "call-1", evt.Payload.ToolCallID)
		assert.True(t, evt.Payload.Granted)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for grant notification")
	}
}

func TestDefaultServiceSubscribeNotificationsReceivesDenyDecision(t *testing.T) {
	svc := NewDefaultService()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := svc.SubscribeNotifications(ctx)
	svc.Deny(PermissionRequest{ToolCallID: "call-2"})

	select {
	case evt := <-ch:
		assert.Equal(t, "call-2", evt.Payload.ToolCallID)
		assert.False(t, evt.Payload.Granted)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for deny notification")
	}
}
