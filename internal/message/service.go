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
package message

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/teradata-labs/loom/internal/pubsub"
	"github.com/teradata-labs/loom/pkg/storage"
	"github.com/teradata-labs/loom/pkg/types"
)

// DefaultService implements Service on top of a storage.SessionStore,
// translating types.Message (the on-disk, LLM-provider-facing shape) into
// the part-based Message this package exposes, and broadcasting appended
// messages over a pubsub.Broker for a CLI or TUI to render as they stream
// in.
type DefaultService struct {
	store  *storage.SessionStore
	broker *pubsub.Broker[Message]
}

// NewDefaultService returns a DefaultService backed by store.
func NewDefaultService(store *storage.SessionStore) *DefaultService {
	return &DefaultService{
		store:  store,
		broker: pubsub.NewBroker[Message](),
	}
}

// List returns every message persisted for sessionID, in order.
func (s *DefaultService) List(ctx context.Context, sessionID string) ([]Message, error) {
	sess, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("message: list for session %s: %w", sessionID, err)
	}
	out := make([]Message, len(sess.Messages))
	for i, m := range sess.Messages {
		out[i] = fromTypesMessage(sessionID, i, m)
	}
	return out, nil
}

// Subscribe streams messages as they are appended.
func (s *DefaultService) Subscribe(ctx context.Context) <-chan pubsub.Event[Message] {
	return s.broker.Subscribe(ctx)
}

// PublishAppended announces that msg was just appended to its session, for
// callers (the agent loop) driving a live transcript view.
func (s *DefaultService) PublishAppended(sessionID string, index int, msg types.Message) {
	s.broker.PublishCreated(fromTypesMessage(sessionID, index, msg))
}

func fromTypesMessage(sessionID string, index int, m types.Message) Message {
	out := NewMessage(fmt.Sprintf("%s-%08d", sessionID, index), sessionID, Role(m.Role))
	if m.Content != "" {
		out.AddPart(ContentText{Text: m.Content})
	}
	for _, tc := range m.ToolCalls {
		args, _ := json.Marshal(tc.Input)
		out.AddPart(ToolCall{ID: tc.ID, Name: tc.Name, Arguments: string(args), Input: string(args), Finished: true})
	}
	if m.ToolUseID != "" {
		result := ToolResult{ToolCallID: m.ToolUseID, Content: m.Content}
		if m.ToolResult != nil {
			result.IsError = !m.ToolResult.Success
		}
		out.AddPart(result)
	}
	return out
}
