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
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/teradata-labs/loom/internal/csync"
	"github.com/teradata-labs/loom/pkg/types"
)

// Registry enforces the multi-user safety invariant that exactly one Agent
// Loop task runs per session id at a time. A Loop itself has no such
// guard (see its own doc comment) — Registry is what a server or CLI
// wraps around it when more than one caller might dispatch into the same
// session concurrently.
type Registry struct {
	// mu serializes TryAcquire so its check-then-set is atomic; active's
	// own locking only protects individual Get/Set calls, not the compound
	// operation. The release func is a single Delete and does not take mu.
	mu     sync.Mutex
	active *csync.Map[string, time.Time]
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{active: csync.NewMap[string, time.Time]()}
}

// ErrSessionBusy is returned when a caller tries to acquire a session that
// already has an Agent Loop task running.
type ErrSessionBusy struct {
	SessionID string
}

func (e *ErrSessionBusy) Error() string {
	return fmt.Sprintf("agent: session %s already has a running Agent Loop task", e.SessionID)
}

// TryAcquire claims sessionID for the duration of one Run call. The second
// return value is false if the session is already claimed; the caller must
// not start a Run in that case. The returned release func must be called
// exactly once, when the task finishes, regardless of outcome.
func (r *Registry) TryAcquire(sessionID string) (release func(), ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.active.Get(sessionID); busy {
		return nil, false
	}
	r.active.Set(sessionID, time.Now())

	var once sync.Once
	release = func() {
		once.Do(func() { r.active.Delete(sessionID) })
	}
	return release, true
}

// IsActive reports whether sessionID currently has a running task.
func (r *Registry) IsActive(sessionID string) bool {
	_, ok := r.active.Get(sessionID)
	return ok
}

// ActiveSessions returns the session IDs with a task currently running.
func (r *Registry) ActiveSessions() []string {
	var ids []string
	r.active.Seq(func(id string, _ time.Time) bool {
		ids = append(ids, id)
		return true
	})
	return ids
}

// Run acquires sessionID, runs loop.Run, and releases it on return. It
// returns ErrSessionBusy instead of running if the session is already
// claimed by another in-flight task.
func (r *Registry) Run(ctx context.Context, loop *Loop, session *types.Session, initialUserMessage string, cfg Config) (*Result, error) {
	release, ok := r.TryAcquire(session.ID)
	if !ok {
		return nil, &ErrSessionBusy{SessionID: session.ID}
	}
	defer release()

	return loop.Run(ctx, session, initialUserMessage, cfg), nil
}
