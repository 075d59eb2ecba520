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
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teradata-labs/loom/pkg/storage/sqlite"
	"github.com/teradata-labs/loom/pkg/types"
)

// sessionMetadataFile is everything about a session that does NOT grow with
// the length of its transcript: config, title, timestamps, todo list, and
// the ordered list of message file IDs. Message bodies never appear here —
// that is what keeps this file's size roughly constant regardless of how
// many messages the session accumulates.
type sessionMetadataFile struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	AgentID         string          `json:"agent_id"`
	ParentSessionID string          `json:"parent_session_id"`
	WorkspacePath   string          `json:"workspace_path"`
	ModelName       string          `json:"model_name"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	TotalCostUSD    float64         `json:"total_cost_usd"`
	TotalTokens     int             `json:"total_tokens"`
	Todo            *types.TodoList `json:"todo,omitempty"`
	ActiveBranch    string          `json:"active_branch,omitempty"`
	MessageOrder    []string        `json:"message_order"`
}

// SessionStore persists sessions to <root>/sessions/<id>/ as a metadata.json
// file plus one file per message under messages/, per the session-store
// on-disk layout. Writes are atomic (tmp file + rename); Save is append-only
// for message bodies, so an already-persisted message is never rewritten.
type SessionStore struct {
	root string

	mu             sync.Mutex
	persistedCount map[string]int

	// index is an optional SQLite-backed accelerator for List; nil unless
	// WithIndex is used. The JSON layout is always the source of truth —
	// index writes are best-effort and never fail a Save/Delete.
	index *sqlite.Index
}

// NewSessionStore returns a SessionStore rooted at root (created on first
// use if it doesn't exist).
func NewSessionStore(root string) *SessionStore {
	return &SessionStore{
		root:           root,
		persistedCount: make(map[string]int),
	}
}

// NewSessionStoreWithIndex returns a SessionStore backed additionally by a
// SQLite session index at indexPath, so List can answer without walking
// <root>/sessions. Index population failures are logged, never fatal — the
// JSON files remain authoritative.
func NewSessionStoreWithIndex(root, indexPath string) (*SessionStore, error) {
	idx, err := sqlite.OpenIndex(indexPath)
	if err != nil {
		return nil, fmt.Errorf("storage: open session index: %w", err)
	}
	return &SessionStore{
		root:           root,
		persistedCount: make(map[string]int),
		index:          idx,
	}, nil
}

// Close releases the session index database, if one was opened.
func (s *SessionStore) Close() error {
	if s.index == nil {
		return nil
	}
	return s.index.Close()
}

// BackupIndex snapshots the session index database, if one is in use. It
// returns ("", nil) when no index is configured — the JSON files under
// <root>/sessions are the canonical store and need no separate backup step.
func (s *SessionStore) BackupIndex() (string, error) {
	if s.index == nil {
		return "", nil
	}
	return s.index.Backup()
}

func (s *SessionStore) sessionDir(id string) string {
	return filepath.Join(s.root, "sessions", id)
}

func (s *SessionStore) messagesDir(id string) string {
	return filepath.Join(s.sessionDir(id), "messages")
}

func messageFileID(index int) string {
	return fmt.Sprintf("%08d", index)
}

// Save persists session, writing any messages appended since the last Save
// and rewriting metadata.json. It satisfies pkg/agent.SessionSaver.
func (s *SessionStore) Save(ctx context.Context, session *types.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	logger, _ := zap.NewProduction()
	if logger == nil {
		logger = zap.NewNop()
	}
	defer func() { _ = logger.Sync() }()

	dir := s.sessionDir(session.ID)
	msgDir := s.messagesDir(session.ID)
	if err := os.MkdirAll(msgDir, 0o755); err != nil {
		return fmt.Errorf("storage: create session directory: %w", err)
	}

	messages := session.GetMessages()
	order := make([]string, len(messages))
	alreadyWritten := s.persistedCount[session.ID]

	for i, msg := range messages {
		id := messageFileID(i)
		order[i] = id
		if i < alreadyWritten {
			continue
		}
		if err := writeJSONAtomic(filepath.Join(msgDir, id+".json"), msg); err != nil {
			return fmt.Errorf("storage: write message %s: %w", id, err)
		}
	}
	s.persistedCount[session.ID] = len(messages)

	meta := sessionMetadataFile{
		ID:              session.ID,
		Title:           session.Title,
		AgentID:         session.AgentID,
		ParentSessionID: session.ParentSessionID,
		WorkspacePath:   session.WorkspacePath,
		ModelName:       session.ModelName,
		CreatedAt:       session.CreatedAt,
		UpdatedAt:       session.UpdatedAt,
		TotalCostUSD:    session.TotalCostUSD,
		TotalTokens:     session.TotalTokens,
		Todo:            session.Todo,
		MessageOrder:    order,
	}
	if err := writeJSONAtomic(filepath.Join(dir, "metadata.json"), meta); err != nil {
		return fmt.Errorf("storage: write session metadata: %w", err)
	}

	if s.index != nil {
		if err := s.index.Upsert(ctx, sqlite.IndexEntry{
			ID:           meta.ID,
			Title:        meta.Title,
			ModelName:    meta.ModelName,
			UpdatedAt:    meta.UpdatedAt,
			TotalCostUSD: meta.TotalCostUSD,
		}); err != nil {
			logger.Warn("session index upsert failed, list will fall back to directory walk",
				zap.String("session_id", session.ID), zap.Error(err))
		}
	}

	logger.Debug("saved session",
		zap.String("session_id", session.ID),
		zap.Int("message_count", len(messages)))
	return nil
}

// Load reconstructs a session from disk, reading metadata.json and every
// message file it references, in order.
func (s *SessionStore) Load(ctx context.Context, id string) (*types.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := s.sessionDir(id)
	metaBytes, err := os.ReadFile(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return nil, fmt.Errorf("storage: read session metadata: %w", err)
	}
	var meta sessionMetadataFile
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return nil, fmt.Errorf("storage: parse session metadata: %w", err)
	}

	msgDir := s.messagesDir(id)
	messages := make([]types.Message, 0, len(meta.MessageOrder))
	for _, msgID := range meta.MessageOrder {
		raw, err := os.ReadFile(filepath.Join(msgDir, msgID+".json"))
		if err != nil {
			return nil, fmt.Errorf("storage: read message %s: %w", msgID, err)
		}
		var msg types.Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("storage: parse message %s: %w", msgID, err)
		}
		messages = append(messages, msg)
	}

	session := &types.Session{
		ID:              meta.ID,
		AgentID:         meta.AgentID,
		ParentSessionID: meta.ParentSessionID,
		Messages:        messages,
		Context:         make(map[string]interface{}),
		CreatedAt:       meta.CreatedAt,
		UpdatedAt:       meta.UpdatedAt,
		TotalCostUSD:    meta.TotalCostUSD,
		TotalTokens:     meta.TotalTokens,
		Title:           meta.Title,
		WorkspacePath:   meta.WorkspacePath,
		ModelName:       meta.ModelName,
		Todo:            meta.Todo,
	}

	s.mu.Lock()
	s.persistedCount[id] = len(messages)
	s.mu.Unlock()

	return session, nil
}

// List returns every session ID currently persisted under root, most
// recently updated first when a session index is in use; alphabetically
// otherwise.
func (s *SessionStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if s.index != nil {
		rows, err := s.index.List(ctx)
		if err == nil {
			ids := make([]string, len(rows))
			for i, row := range rows {
				ids[i] = row.ID
			}
			return ids, nil
		}
		// Index unreadable: fall through to the directory walk rather than
		// fail List outright — the JSON files are still the source of truth.
	}

	entries, err := os.ReadDir(filepath.Join(s.root, "sessions"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: list sessions: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes a session and all of its messages from disk.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.persistedCount, id)
	s.mu.Unlock()

	if err := os.RemoveAll(s.sessionDir(id)); err != nil {
		return fmt.Errorf("storage: delete session %s: %w", id, err)
	}

	if s.index != nil {
		if err := s.index.Delete(ctx, id); err != nil {
			return fmt.Errorf("storage: delete session %s from index: %w", id, err)
		}
	}
	return nil
}

// SaveBranches persists a session's named branch → ordered message-id
// mapping to branches.json. Branches are optional: sessions that never
// branch never write this file.
func (s *SessionStore) SaveBranches(ctx context.Context, sessionID string, branches map[string][]string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := s.sessionDir(sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: create session directory: %w", err)
	}
	return writeJSONAtomic(filepath.Join(dir, "branches.json"), branches)
}

// LoadBranches reads a session's branches.json, returning an empty map if
// the session never wrote one.
func (s *SessionStore) LoadBranches(ctx context.Context, sessionID string) (map[string][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(filepath.Join(s.sessionDir(sessionID), "branches.json"))
	if os.IsNotExist(err) {
		return map[string][]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read branches: %w", err)
	}
	var branches map[string][]string
	if err := json.Unmarshal(raw, &branches); err != nil {
		return nil, fmt.Errorf("storage: parse branches: %w", err)
	}
	return branches, nil
}

// writeJSONAtomic marshals v and writes it to path via a temp file plus
// rename, so a reader never observes a partially written file and a crash
// mid-write never corrupts the previous version.
func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal json: %w", err)
	}
	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("storage: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("storage: close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("storage: rename temp file: %w", err)
	}
	return nil
}
