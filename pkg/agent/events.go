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

// Package agent implements the Agent Loop: the round-by-round driver that
// assembles a prompt, invokes the LLM, dispatches tool calls through the
// Tool Execution Coordinator, and persists the session as it goes.
package agent

import (
	"github.com/teradata-labs/loom/internal/pubsub"
	"github.com/teradata-labs/loom/pkg/types"
)

// EventKind names the variants published on a session's event stream.
type EventKind string

const (
	EventToken                EventKind = "token"
	EventRoundCompleted        EventKind = "round_completed"
	EventToolApprovalRequested EventKind = "tool_approval_requested"
	EventToolDenied            EventKind = "tool_denied"
	EventToolStarted           EventKind = "tool_started"
	EventToolCompleted         EventKind = "tool_completed"
	EventToolFailed            EventKind = "tool_failed"
	EventTokenBudgetUpdated    EventKind = "token_budget_updated"
	EventAwaitingClarification EventKind = "awaiting_clarification"
	EventCancelled             EventKind = "cancelled"
	EventFailed                EventKind = "failed"
)

// Event is one item on a session's event bus.
type Event struct {
	Kind       EventKind
	SessionID  string
	Token      string
	ToolName   string
	ToolCallID string
	Text       string
	Error      string
	Usage      types.Usage
	TTFTMillis int64
	RetryCount int
}

// EventSink is where the loop publishes Events. *pubsub.Broker[Event]
// satisfies this directly.
type EventSink interface {
	Publish(pubsub.Event[Event])
}

func publish(sink EventSink, kind EventKind, mutate func(*Event)) {
	if sink == nil {
		return
	}
	e := Event{Kind: kind}
	if mutate != nil {
		mutate(&e)
	}
	sink.Publish(pubsub.NewUpdatedEvent(e))
}
