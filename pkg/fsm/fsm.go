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

// Package fsm implements the per-session state machine that tracks where a
// conversation round currently is: waiting on the LLM, streaming a response,
// running a tool, waiting on approval, or working through a todo list.
// Handle is a pure function: it never blocks and never performs I/O.
package fsm

import "time"

// State identifies where a session currently sits in a round.
type State string

const (
	Idle                   State = "idle"
	Paused                 State = "paused"
	Failed                 State = "failed"
	Cancelled              State = "cancelled"
	Cancelling             State = "cancelling"
	ProcessingUserMessage  State = "processing_user_message"
	AwaitingLLMResponse    State = "awaiting_llm_response"
	StreamingLLMResponse   State = "streaming_llm_response"
	ProcessingLLMResponse  State = "processing_llm_response"
	AwaitingToolApproval   State = "awaiting_tool_approval"
	ExecutingTool          State = "executing_tool"
	ProcessingToolResults  State = "processing_tool_results"
	ToolAutoLoop           State = "tool_auto_loop"
	TransientFailure       State = "transient_failure"
	AwaitingClarification  State = "awaiting_clarification"
	CreatingTodoList       State = "creating_todo_list"
	ExecutingTodoList      State = "executing_todo_list"
	ExecutingTodoItem      State = "executing_todo_item"
	AwaitingSubContext     State = "awaiting_sub_context"
)

// EventKind names the event variants the FSM reacts to.
type EventKind string

const (
	UserMessageSent         EventKind = "user_message_sent"
	LLMRequestInitiated     EventKind = "llm_request_initiated"
	LLMStreamStarted        EventKind = "llm_stream_started"
	LLMStreamChunkReceived  EventKind = "llm_stream_chunk_received"
	LLMStreamEnded          EventKind = "llm_stream_ended"
	LLMResponseProcessed    EventKind = "llm_response_processed"
	ToolApprovalRequested   EventKind = "tool_approval_requested"
	ToolApprovalResolved    EventKind = "tool_approval_resolved"
	ToolExecutionStarted    EventKind = "tool_execution_started"
	ToolExecutionCompleted  EventKind = "tool_execution_completed"
	ToolExecutionFailed     EventKind = "tool_execution_failed"
	ToolCallsDenied         EventKind = "tool_calls_denied"
	NeedClarification       EventKind = "need_clarification"
	TodoListCreated         EventKind = "todo_list_created"
	TodoItemStarted         EventKind = "todo_item_started"
	TodoItemCompleted       EventKind = "todo_item_completed"
	TodoListCompleted       EventKind = "todo_list_completed"
	SubContextSpawned       EventKind = "sub_context_spawned"
	SubContextReturned      EventKind = "sub_context_returned"
	Retry                   EventKind = "retry"
	FatalError              EventKind = "fatal_error"
	UserCancelled           EventKind = "user_cancelled"
	UserPaused              EventKind = "user_paused"
	UserResumed             EventKind = "user_resumed"
)

// Event is a single input to Handle. Fields not relevant to a given Kind are
// left zero-valued.
type Event struct {
	Kind         EventKind
	ToolName     string
	ToolID       string
	RequestID    string
	Error        string
	RetryCount   int
	MaxRetries   int
	HasToolCalls bool
	HasTodoList  bool
}

// Transition is the pure result of Handle: where the session came from, where
// it went, the event that drove it, and whether anything actually changed.
type Transition struct {
	From      State
	To        State
	Event     Event
	Changed   bool
	At        time.Time
}

// Session holds a session's current FSM state plus a bounded transition
// history. Session itself does no I/O; callers persist it as part of the
// broader session record.
type Session struct {
	State   State
	History []Transition

	// PendingApprovals accumulates tool-call ids awaiting a decision while
	// in AwaitingToolApproval; a new request appends, a resolution removes.
	PendingApprovals map[string]string // request id -> tool name

	// RetryCount and MaxRetries track the TransientFailure retry budget.
	RetryCount int
	MaxRetries int

	// TodoIndex/TodoTotal track progress through ExecutingTodoList.
	TodoIndex int
	TodoTotal int

	historyCap int
}

// NewSession creates an FSM starting in Idle with the default 50-entry
// bounded history.
func NewSession() *Session {
	return &Session{
		State:            Idle,
		PendingApprovals: make(map[string]string),
		historyCap:       50,
	}
}

// Handle applies an event to the session's current state and returns the
// resulting transition. It is pure aside from updating s in place and
// appending to history; it performs no I/O and never blocks.
func (s *Session) Handle(ev Event, at time.Time) Transition {
	from := s.State
	to := s.next(ev)
	changed := to != from

	s.State = to
	s.applySideEffects(ev, to)

	t := Transition{From: from, To: to, Event: ev, Changed: changed, At: at}
	s.History = append(s.History, t)
	if len(s.History) > s.historyCap {
		s.History = s.History[len(s.History)-s.historyCap:]
	}
	return t
}

// next computes the destination state for (s.State, ev) without mutating s.
// Invalid pairs are no-ops: the state is returned unchanged.
func (s *Session) next(ev Event) State {
	// UserCancelled is accepted from every non-terminal state.
	if ev.Kind == UserCancelled && !isTerminal(s.State) {
		return Cancelling
	}
	if s.State == Cancelling {
		// Any next event finishes the cancellation back to Idle.
		return Idle
	}

	switch s.State {
	case Idle:
		switch ev.Kind {
		case UserMessageSent:
			return ProcessingUserMessage
		}
	case ProcessingUserMessage:
		switch ev.Kind {
		case LLMRequestInitiated:
			return AwaitingLLMResponse
		}
	case AwaitingLLMResponse:
		switch ev.Kind {
		case LLMStreamStarted:
			return StreamingLLMResponse
		case FatalError:
			return Failed
		}
	case StreamingLLMResponse:
		switch ev.Kind {
		case LLMStreamChunkReceived:
			return StreamingLLMResponse
		case LLMStreamEnded:
			return ProcessingLLMResponse
		case FatalError:
			return Failed
		}
	case ProcessingLLMResponse:
		switch ev.Kind {
		case LLMResponseProcessed:
			if ev.HasTodoList {
				return CreatingTodoList
			}
			if ev.HasToolCalls {
				return AwaitingToolApproval
			}
			return Idle
		}
	case AwaitingToolApproval:
		switch ev.Kind {
		case ToolApprovalRequested:
			return AwaitingToolApproval
		case ToolApprovalResolved:
			if len(s.PendingApprovals) <= 1 {
				return ExecutingTool
			}
			return AwaitingToolApproval
		case ToolCallsDenied:
			return Idle
		}
	case ExecutingTool:
		switch ev.Kind {
		case ToolExecutionCompleted:
			return ProcessingToolResults
		case ToolExecutionFailed:
			if ev.RetryCount < ev.MaxRetries {
				return TransientFailure
			}
			return Failed
		case NeedClarification:
			return AwaitingClarification
		}
	case TransientFailure:
		switch ev.Kind {
		case Retry:
			if s.RetryCount < s.MaxRetries {
				return ExecutingTool
			}
			return Failed
		case FatalError:
			return Failed
		}
	case ProcessingToolResults:
		switch ev.Kind {
		case ToolExecutionStarted:
			return ExecutingTool
		case LLMRequestInitiated:
			return AwaitingLLMResponse
		}
		// Multiple tool calls from one round loop back through ExecutingTool;
		// when the batch is exhausted the loop driver fires LLMRequestInitiated.
	case CreatingTodoList:
		switch ev.Kind {
		case TodoListCreated:
			return ExecutingTodoList
		}
	case ExecutingTodoList:
		switch ev.Kind {
		case TodoItemStarted:
			return ExecutingTodoItem
		case TodoListCompleted:
			return Idle
		}
	case ExecutingTodoItem:
		switch ev.Kind {
		case SubContextSpawned:
			return AwaitingSubContext
		case TodoItemCompleted:
			return ExecutingTodoList
		case NeedClarification:
			return AwaitingClarification
		}
	case AwaitingSubContext:
		switch ev.Kind {
		case SubContextReturned:
			return ExecutingTodoItem
		}
	case Paused:
		switch ev.Kind {
		case UserResumed:
			return Idle
		}
	}

	if ev.Kind == UserPaused && !isTerminal(s.State) {
		return Paused
	}

	return s.State
}

// applySideEffects updates bookkeeping fields (pending approvals, retry
// counters, todo progress) alongside the state transition.
func (s *Session) applySideEffects(ev Event, to State) {
	switch ev.Kind {
	case ToolApprovalRequested:
		s.PendingApprovals[ev.RequestID] = ev.ToolName
	case ToolApprovalResolved, ToolCallsDenied:
		delete(s.PendingApprovals, ev.RequestID)
	case ToolExecutionFailed:
		s.RetryCount = ev.RetryCount
		s.MaxRetries = ev.MaxRetries
	case ToolExecutionCompleted:
		s.RetryCount = 0
	case TodoItemStarted:
		s.TodoIndex++
	}

	if to == Idle || to == Failed || to == Cancelled {
		s.PendingApprovals = make(map[string]string)
		s.RetryCount = 0
	}
}

func isTerminal(st State) bool {
	switch st {
	case Failed, Cancelled:
		return true
	default:
		return false
	}
}

// CanRetry reports whether a TransientFailure state still has retry budget.
func (s *Session) CanRetry() bool {
	return s.State == TransientFailure && s.RetryCount < s.MaxRetries
}
