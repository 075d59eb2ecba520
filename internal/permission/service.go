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
	"sync"

	"github.com/teradata-labs/loom/internal/pubsub"
)

// DefaultService is the concrete, in-process Service: an approver (a CLI
// prompt, a future TUI) subscribes to Subscribe/SubscribeNotifications,
// calls Grant/Deny as the user decides, and a caller waiting on a decision
// polls IsGranted or watches SubscribeNotifications for its ToolCallID.
type DefaultService struct {
	mu                  sync.Mutex
	skip                bool
	granted             map[string]bool
	autoApproveSessions map[string]bool

	requests      *pubsub.Broker[PermissionRequest]
	notifications *pubsub.Broker[PermissionNotification]
}

// NewDefaultService returns an empty DefaultService.
func NewDefaultService() *DefaultService {
	return &DefaultService{
		granted:             make(map[string]bool),
		autoApproveSessions: make(map[string]bool),
		requests:            pubsub.NewBroker[PermissionRequest](),
		notifications:       pubsub.NewBroker[PermissionNotification](),
	}
}

// SetSkipRequests enables or disables YOLO mode: every subsequent request is
// granted without being published for approval.
func (s *DefaultService) SetSkipRequests(skip bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skip = skip
}

// SkipRequests reports whether YOLO mode is active.
func (s *DefaultService) SkipRequests() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skip
}

// Grant records perm as approved and notifies anyone waiting on its
// ToolCallID. The grant does not persist beyond this one call.
func (s *DefaultService) Grant(perm PermissionRequest) {
	s.mu.Lock()
	s.granted[perm.ToolCallID] = true
	s.mu.Unlock()
	s.notifications.PublishUpdated(PermissionNotification{ToolCallID: perm.ToolCallID, Granted: true})
}

// GrantPersistent records perm as approved and additionally auto-approves
// every future request for the same tool in the same session.
func (s *DefaultService) GrantPersistent(perm PermissionRequest) {
	s.mu.Lock()
	s.granted[perm.ToolCallID] = true
	s.autoApproveSessions[perm.SessionID+":"+perm.ToolName] = true
	s.mu.Unlock()
	s.notifications.PublishUpdated(PermissionNotification{ToolCallID: perm.ToolCallID, Granted: true})
}

// Deny records perm as denied and notifies anyone waiting on its ToolCallID.
func (s *DefaultService) Deny(perm PermissionRequest) {
	s.mu.Lock()
	s.granted[perm.ToolCallID] = false
	s.mu.Unlock()
	s.notifications.PublishUpdated(PermissionNotification{ToolCallID: perm.ToolCallID, Granted: false})
}

// IsGranted reports the last recorded decision for toolCallID. It returns
// false both when the call was denied and when no decision was ever
// recorded — callers needing to distinguish the two should watch
// SubscribeNotifications instead.
func (s *DefaultService) IsGranted(toolCallID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.granted[toolCallID]
}

// Subscribe streams every PermissionRequest Publish emits.
func (s *DefaultService) Subscribe(ctx context.Context) <-chan pubsub.Event[PermissionRequest] {
	return s.requests.Subscribe(ctx)
}

// SubscribeNotifications streams every Grant/Deny decision as it happens.
func (s *DefaultService) SubscribeNotifications(ctx context.Context) <-chan pubsub.Event[PermissionNotification] {
	return s.notifications.Subscribe(ctx)
}

// AutoApproveSession marks sessionID so every tool request for it is
// approved without a round trip through Subscribe/Grant.
func (s *DefaultService) AutoApproveSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoApproveSessions[sessionID] = true
}

// Publish submits perm for approval, delivered to Subscribe's channel. It is
// not part of the Service interface since only a request originator (not
// every Service consumer) needs it.
func (s *DefaultService) Publish(perm PermissionRequest) {
	s.requests.PublishCreated(perm)
}

// IsSessionAutoApproved reports whether sessionID, or the sessionID+toolName
// pair set by GrantPersistent, was marked for auto-approval.
func (s *DefaultService) IsSessionAutoApproved(sessionID, toolName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoApproveSessions[sessionID] || s.autoApproveSessions[sessionID+":"+toolName]
}
