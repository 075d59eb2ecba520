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
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/teradata-labs/loom/internal/pubsub"
	"github.com/teradata-labs/loom/pkg/storage"
	"github.com/teradata-labs/loom/pkg/types"
)

// agentToolSessionSeparator joins a parent message ID to a tool call ID to
// form the synthetic session id a sub-agent tool run is stored under.
const agentToolSessionSeparator = "::tool::"

// DefaultService implements Service on top of a storage.SessionStore,
// translating between the on-disk types.Session and the leaner Session
// shape this package exposes, and broadcasting every Create/Delete over a
// pubsub.Broker so a CLI or TUI can render live session-list updates.
type DefaultService struct {
	store  *storage.SessionStore
	broker *pubsub.Broker[Session]
}

// NewDefaultService returns a DefaultService backed by store.
func NewDefaultService(store *storage.SessionStore) *DefaultService {
	return &DefaultService{
		store:  store,
		broker: pubsub.NewBroker[Session](),
	}
}

// Create starts a new, empty session titled title.
func (s *DefaultService) Create(ctx context.Context, title string) (Session, error) {
	now := time.Now()
	sess := &types.Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return Session{}, fmt.Errorf("session: create: %w", err)
	}
	out := fromTypesSession(sess)
	s.broker.PublishCreated(out)
	return out, nil
}

// Get loads the session with the given id.
func (s *DefaultService) Get(ctx context.Context, id string) (Session, error) {
	sess, err := s.store.Load(ctx, id)
	if err != nil {
		return Session{}, fmt.Errorf("session: get %s: %w", id, err)
	}
	return fromTypesSession(sess), nil
}

// List returns every known session.
func (s *DefaultService) List(ctx context.Context) ([]Session, error) {
	ids, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: list: %w", err)
	}
	sessions := make([]Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.store.Load(ctx, id)
		if err != nil {
			continue // a session deleted between List and Load is not an error here
		}
		sessions = append(sessions, fromTypesSession(sess))
	}
	return sessions, nil
}

// Delete removes the session with the given id.
func (s *DefaultService) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("session: delete %s: %w", id, err)
	}
	s.broker.PublishDeleted(Session{ID: id})
	return nil
}

// Subscribe streams session create/update/delete events.
func (s *DefaultService) Subscribe(ctx context.Context) <-chan pubsub.Event[Session] {
	return s.broker.Subscribe(ctx)
}

// PublishUpdated announces a change to an already-persisted session (e.g.
// after the agent loop appends messages and calls store.Save directly).
func (s *DefaultService) PublishUpdated(sess Session) {
	s.broker.PublishUpdated(sess)
}

// ParseAgentToolSessionID splits a synthetic sub-agent session id back into
// the parent message id and tool call id that created it, reporting false
// if sessionID isn't one.
func (s *DefaultService) ParseAgentToolSessionID(sessionID string) (string, string, bool) {
	parts := strings.SplitN(sessionID, agentToolSessionSeparator, 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// CreateAgentToolSessionID builds the synthetic session id a sub-agent tool
// run is stored under, scoped to the message and tool call that spawned it.
func (s *DefaultService) CreateAgentToolSessionID(messageID, toolCallID string) string {
	return messageID + agentToolSessionSeparator + toolCallID
}

func fromTypesSession(sess *types.Session) Session {
	return Session{
		ID:               sess.ID,
		Title:            sess.Title,
		CreatedAt:        sess.CreatedAt.Unix(),
		UpdatedAt:        sess.UpdatedAt.Unix(),
		CompletionTokens: sess.TotalTokens,
		Cost:             sess.TotalCostUSD,
		Model:            sess.ModelName,
	}
}
