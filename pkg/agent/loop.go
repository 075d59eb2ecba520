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
	"time"

	"github.com/teradata-labs/loom/pkg/budget"
	"github.com/teradata-labs/loom/pkg/fsm"
	"github.com/teradata-labs/loom/pkg/prompts"
	sessionctx "github.com/teradata-labs/loom/pkg/session"
	"github.com/teradata-labs/loom/pkg/retry"
	"github.com/teradata-labs/loom/pkg/shuttle"
	"github.com/teradata-labs/loom/pkg/types"
)

// Outcome classifies how a Run invocation ended.
type Outcome string

const (
	OutcomeCompleted             Outcome = "completed"
	OutcomeAwaitingClarification Outcome = "awaiting_clarification"
	OutcomeCancelled             Outcome = "cancelled"
	OutcomeFailed                Outcome = "failed"
)

// Result is what Run returns.
type Result struct {
	Outcome Outcome
	Text    string
	Rounds  int
	Error   error
}

// SessionSaver persists a session; implementations typically wrap
// pkg/storage's session store.
type SessionSaver interface {
	Save(ctx context.Context, session *types.Session) error
}

// MetricsCollector receives per-round and per-tool timing observations.
// Both methods must be safe to call from a single loop goroutine; no
// concurrency guarantees are made or required.
type MetricsCollector interface {
	RecordRound(d time.Duration)
	RecordTool(name string, d time.Duration, success bool)
}

// Config controls one Run invocation, per the Agent Loop contract.
type Config struct {
	MaxRounds              int
	SystemPrompt           string
	Role                   prompts.Role
	WorkspaceRoot          string
	Skills                 []types.SkillDefinition
	PromptEnhancers        []prompts.Enhancer
	MaxPromptBytes         int
	AdditionalToolSchemas  []shuttle.Tool
	SkipInitialUserMessage bool
	Storage                SessionSaver
	MetricsCollector       MetricsCollector
	ModelName              string

	BudgetStrategy budget.Strategy
	SafetyMargin   budget.SafetyMargin
	Summariser     budget.Summariser

	Retry retry.RetryConfig
}

// DefaultConfig returns the documented defaults: 50 max rounds, truncate-
// oldest budget strategy, exponential retry.
func DefaultConfig() Config {
	return Config{
		MaxRounds:      50,
		BudgetStrategy: budget.TruncateOldest,
		SafetyMargin:   budget.SafetyMargin(0),
		Retry:          retry.DefaultRetryConfig(),
	}
}

// LLM is the boundary the loop drives. Providers implementing
// types.StreamingLLMProvider satisfy this directly.
type LLM interface {
	types.LLMProvider
}

// Loop drives rounds for a single session. A Loop is not safe for concurrent
// Run calls on the same session; Registry enforces that constraint.
type Loop struct {
	LLM          LLM
	Executor     *shuttle.Executor
	ApprovalGate shuttle.ApprovalGate
	EventSink    EventSink
	Counter      *budget.Counter
	ModelLimits  budget.ModelLimits
}

// Run executes rounds until completion, a round-limit failure, a
// clarification request, or cancellation, per the Agent Loop contract.
func (l *Loop) Run(ctx context.Context, session *types.Session, initialUserMessage string, cfg Config) *Result {
	ctx = sessionctx.WithSessionID(ctx, session.ID)

	if cfg.MaxRounds == 0 {
		cfg.MaxRounds = 50
	}
	if l.Counter == nil {
		l.Counter = budget.GetCounter()
	}

	machine := fsm.NewSession()

	if !cfg.SkipInitialUserMessage && initialUserMessage != "" {
		session.AddMessage(types.Message{
			Role:      "user",
			Content:   initialUserMessage,
			Timestamp: time.Now(),
		})
	}
	machine.Handle(fsm.Event{Kind: fsm.UserMessageSent}, time.Now())

	round := 0
	for {
		if ctx.Err() != nil {
			return l.finishCancelled(ctx, session, cfg, round)
		}

		round++
		if round > cfg.MaxRounds {
			machine.State = fsm.Failed
			return l.finishFailed(ctx, session, cfg, round, fmt.Errorf("max rounds exceeded (%d)", cfg.MaxRounds))
		}

		roundStart := time.Now()
		outcome, result := l.runRound(ctx, session, machine, cfg)
		if cfg.MetricsCollector != nil {
			cfg.MetricsCollector.RecordRound(time.Since(roundStart))
		}

		switch outcome {
		case roundOutcomeContinue:
			continue
		case roundOutcomeDone:
			result.Rounds = round
			publish(l.EventSink, EventRoundCompleted, func(e *Event) { e.SessionID = session.ID; e.Text = result.Text })
			l.save(ctx, session, cfg)
			return result
		case roundOutcomeClarification:
			result.Rounds = round
			l.save(ctx, session, cfg)
			return result
		case roundOutcomeCancelled:
			return l.finishCancelled(ctx, session, cfg, round)
		case roundOutcomeFailed:
			result.Rounds = round
			l.save(ctx, session, cfg)
			return result
		}
	}
}

type roundOutcome int

const (
	roundOutcomeContinue roundOutcome = iota
	roundOutcomeDone
	roundOutcomeClarification
	roundOutcomeCancelled
	roundOutcomeFailed
)

// runRound performs steps 1-7 of the round algorithm for a single LLM
// round-trip.
func (l *Loop) runRound(ctx context.Context, session *types.Session, machine *fsm.Session, cfg Config) (roundOutcome, *Result) {
	// Step 1: assemble prompt for this call only (prepended, not persisted).
	messages, err := l.assemblePrompt(session, cfg)
	if err != nil {
		machine.Handle(fsm.Event{Kind: fsm.FatalError}, time.Now())
		return roundOutcomeFailed, &Result{Outcome: OutcomeFailed, Error: err}
	}

	// Step 2: budget enforcement.
	limits := l.ModelLimits
	if limits.MaxContextTokens == 0 {
		limits = budget.ResolveLimits("", cfg.ModelName, 0, 0)
	}
	b := budget.NewBudget(limits)
	kept, err := budget.Enforce(cfg.BudgetStrategy, messages, l.Counter, b, cfg.SafetyMargin, cfg.Summariser)
	if err != nil {
		return roundOutcomeFailed, &Result{Outcome: OutcomeFailed, Error: err}
	}
	messages = kept
	publish(l.EventSink, EventTokenBudgetUpdated, func(e *Event) {
		e.SessionID = session.ID
		e.Usage = types.Usage{TotalTokens: l.Counter.EstimateMessagesTokens(messages)}
	})

	if ctx.Err() != nil {
		return roundOutcomeCancelled, nil
	}

	machine.Handle(fsm.Event{Kind: fsm.LLMRequestInitiated}, time.Now())

	// Step 3: invoke LLM via streaming, accumulating into a StreamingMessage.
	streamStart := time.Now()
	streamMsg := types.NewStreamingMessage(fmt.Sprintf("msg-%d", streamStart.UnixNano()), streamStart)
	machine.Handle(fsm.Event{Kind: fsm.LLMStreamStarted}, streamStart)

	var resp *types.LLMResponse
	var ttft int64
	firstToken := true

	streaming, isStreaming := l.LLM.(types.StreamingLLMProvider)
	if isStreaming {
		resp, err = streaming.ChatStream(ctx, messages, toolSchemas(cfg), func(token string) {
			if ctx.Err() != nil {
				return
			}
			if firstToken {
				ttft = time.Since(streamStart).Milliseconds()
				firstToken = false
			}
			streamMsg.AppendChunk(token, time.Now())
			machine.Handle(fsm.Event{Kind: fsm.LLMStreamChunkReceived}, time.Now())
			publish(l.EventSink, EventToken, func(e *Event) {
				e.SessionID = session.ID
				e.Token = token
				e.TTFTMillis = ttft
			})
		})
	} else {
		err = retryChat(ctx, cfg.Retry, func() error {
			var chatErr error
			resp, chatErr = l.LLM.Chat(ctx, messages, toolSchemas(cfg))
			return chatErr
		})
	}

	if ctx.Err() != nil {
		if streamMsg.Content.Len() > 0 {
			streamMsg.Finalize(types.FinishCancelled, types.Usage{}, time.Now())
			session.AddMessage(streamMsg.ToMessage())
		}
		return roundOutcomeCancelled, nil
	}
	if err != nil {
		machine.Handle(fsm.Event{Kind: fsm.FatalError}, time.Now())
		return roundOutcomeFailed, &Result{Outcome: OutcomeFailed, Error: err}
	}

	if resp.Content != "" && streamMsg.Content.Len() == 0 {
		streamMsg.AppendChunk(resp.Content, time.Now())
	}
	streamMsg.SetToolCalls(resp.ToolCalls)
	finishReason := mapFinishReason(resp.StopReason)
	streamMsg.Finalize(finishReason, resp.Usage, time.Now())
	machine.Handle(fsm.Event{Kind: fsm.LLMStreamEnded}, time.Now())

	assistantMsg := streamMsg.ToMessage()
	session.AddMessage(assistantMsg)
	l.save(ctx, session, cfg)

	hasToolCalls := len(resp.ToolCalls) > 0
	machine.Handle(fsm.Event{Kind: fsm.LLMResponseProcessed, HasToolCalls: hasToolCalls}, time.Now())

	// Step 4: no tool calls means the round (and the call) is complete.
	if !hasToolCalls {
		return roundOutcomeDone, &Result{Outcome: OutcomeCompleted, Text: assistantMsg.Content}
	}

	// Step 5: dispatch each tool call through the coordinator.
	for _, call := range resp.ToolCalls {
		if ctx.Err() != nil {
			return roundOutcomeCancelled, nil
		}

		toolOutcome, toolResult := l.dispatchTool(ctx, session, machine, cfg, call)
		switch toolOutcome {
		case toolOutcomeClarification:
			return roundOutcomeClarification, &Result{Outcome: OutcomeAwaitingClarification, Text: toolResult}
		case toolOutcomeDenied, toolOutcomeDone:
			// continue to next call
		case toolOutcomeCancelled:
			return roundOutcomeCancelled, nil
		}
	}

	l.save(ctx, session, cfg)
	return roundOutcomeContinue, nil
}

type toolOutcome int

const (
	toolOutcomeDone toolOutcome = iota
	toolOutcomeDenied
	toolOutcomeClarification
	toolOutcomeCancelled
)

// dispatchTool runs the approval gate, executes the tool (with the retry
// policy on retryable failures), interprets the agentic result envelope,
// and appends a Tool message recording the outcome.
func (l *Loop) dispatchTool(ctx context.Context, session *types.Session, machine *fsm.Session, cfg Config, call types.ToolCall) (toolOutcome, string) {
	req, err := shuttle.NormalizeToolCall(call.ID, call.Name, "")
	if err != nil {
		session.AddMessage(toolMessage(call.ID, fmt.Sprintf("Error: %v", err)))
		return toolOutcomeDone, ""
	}
	req.Arguments = call.Input

	contexts := shuttle.PermissionContextsFor(req, session.ID)
	if len(contexts) > 0 && l.ApprovalGate != nil {
		for _, pc := range contexts {
			machine.Handle(fsm.Event{Kind: fsm.ToolApprovalRequested, RequestID: call.ID, ToolName: call.Name}, time.Now())
			publish(l.EventSink, EventToolApprovalRequested, func(e *Event) {
				e.SessionID = session.ID
				e.ToolName = call.Name
				e.ToolCallID = call.ID
			})

			decision, err := l.ApprovalGate.Request(ctx, pc)
			if err != nil || decision == shuttle.ApprovalDenied {
				machine.Handle(fsm.Event{Kind: fsm.ToolCallsDenied, RequestID: call.ID}, time.Now())
				publish(l.EventSink, EventToolDenied, func(e *Event) { e.SessionID = session.ID; e.ToolName = call.Name })
				session.AddMessage(toolMessage(call.ID, "Error: permission denied"))
				return toolOutcomeDenied, ""
			}
			machine.Handle(fsm.Event{Kind: fsm.ToolApprovalResolved, RequestID: call.ID}, time.Now())
		}
	}

	result, execErr, outcome := l.executeWithRetry(ctx, session, machine, cfg, call)
	if outcome != toolOutcomeDone {
		return outcome, ""
	}
	if execErr != nil {
		session.AddMessage(toolMessage(call.ID, fmt.Sprintf("Error: %v", execErr)))
		return toolOutcomeDone, ""
	}

	machine.Handle(fsm.Event{Kind: fsm.ToolExecutionCompleted, ToolName: call.Name}, time.Now())
	publish(l.EventSink, EventToolCompleted, func(e *Event) { e.SessionID = session.ID; e.ToolName = call.Name; e.ToolCallID = call.ID })

	return l.interpretResult(ctx, session, machine, cfg, call, result)
}

// executeWithRetry drives the coordinator's retry policy: it calls the
// executor once per attempt (attempt 1 plus up to cfg.Retry.MaxRetries
// retries), emitting a ToolExecutionStarted event each time and waiting out
// the configured backoff between attempts. A failure is only retried when
// the executor returned no error and the result's structured Error is
// marked Retryable; an executor error (such as "tool not found"), any other
// failure, or exhausting the retry budget ends the attempt loop immediately.
//
// It returns the last (result, execErr) observed and toolOutcomeDone unless
// the context was cancelled mid-wait, in which case it returns
// toolOutcomeCancelled and the caller should stop without recording a tool
// message (the round is already unwinding).
func (l *Loop) executeWithRetry(ctx context.Context, session *types.Session, machine *fsm.Session, cfg Config, call types.ToolCall) (*shuttle.Result, error, toolOutcome) {
	maxRetries := cfg.Retry.MaxRetries
	var result *shuttle.Result
	var execErr error

	for attempt := 1; ; attempt++ {
		retryCount := attempt - 1
		machine.Handle(fsm.Event{Kind: fsm.ToolExecutionStarted, ToolName: call.Name}, time.Now())
		publish(l.EventSink, EventToolStarted, func(e *Event) {
			e.SessionID = session.ID
			e.ToolName = call.Name
			e.ToolCallID = call.ID
			e.RetryCount = retryCount
		})

		start := time.Now()
		result, execErr = l.Executor.Execute(ctx, call.Name, call.Input)
		success := execErr == nil && (result == nil || result.Success)
		if cfg.MetricsCollector != nil {
			cfg.MetricsCollector.RecordTool(call.Name, time.Since(start), success)
		}

		if success {
			return result, nil, toolOutcomeDone
		}

		retryable := execErr == nil && result != nil && shuttle.RetryableError(result.Error)
		machine.Handle(fsm.Event{Kind: fsm.ToolExecutionFailed, ToolName: call.Name, RetryCount: retryCount, MaxRetries: maxRetries}, time.Now())

		if !retryable || retryCount >= maxRetries {
			errMsg := failureMessage(execErr, result)
			publish(l.EventSink, EventToolFailed, func(e *Event) { e.SessionID = session.ID; e.ToolName = call.Name; e.Error = errMsg; e.RetryCount = retryCount })
			if execErr == nil {
				execErr = fmt.Errorf("%s", errMsg)
			}
			return result, execErr, toolOutcomeDone
		}

		delay := cfg.Retry.Delay(attempt)
		select {
		case <-ctx.Done():
			return result, execErr, toolOutcomeCancelled
		case <-time.After(delay):
		}
		machine.Handle(fsm.Event{Kind: fsm.Retry, RetryCount: retryCount}, time.Now())
	}
}

func failureMessage(execErr error, result *shuttle.Result) string {
	if execErr != nil {
		return execErr.Error()
	}
	if result != nil && result.Error != nil {
		return result.Error.Message
	}
	return "tool failed"
}

// interpretResult inspects the agentic result envelope (if present) and
// records the appropriate Tool message, per the coordinator's variant rules.
func (l *Loop) interpretResult(ctx context.Context, session *types.Session, machine *fsm.Session, cfg Config, call types.ToolCall, result *shuttle.Result) (toolOutcome, string) {
	if result == nil {
		session.AddMessage(toolMessage(call.ID, ""))
		return toolOutcomeDone, ""
	}

	if !result.Success {
		errMsg := "tool failed"
		if result.Error != nil {
			errMsg = result.Error.Message
		}
		session.AddMessage(toolMessage(call.ID, "Error: "+errMsg))
		return toolOutcomeDone, ""
	}

	env, ok := shuttle.ParseEnvelope(result.Data)
	if !ok {
		session.AddMessage(toolMessage(call.ID, fmt.Sprintf("%v", result.Data)))
		return toolOutcomeDone, ""
	}

	switch env.Kind {
	case shuttle.ResultError:
		session.AddMessage(toolMessage(call.ID, "Error: "+env.Error))
		return toolOutcomeDone, ""
	case shuttle.ResultNeedClarification:
		machine.Handle(fsm.Event{Kind: fsm.NeedClarification, ToolName: call.Name}, time.Now())
		session.AddMessage(toolMessage(call.ID, env.Question))
		return toolOutcomeClarification, env.Question
	case shuttle.ResultNeedMoreActions:
		return l.expandSubActions(ctx, session, machine, cfg, call, env)
	default: // ResultSuccess
		session.AddMessage(toolMessage(call.ID, env.Result))
		return toolOutcomeDone, ""
	}
}

// expandSubActions drains a FIFO queue of follow-up tool calls requested via
// the NeedMoreActions envelope, executing each through the same approval and
// dispatch path as a top-level call. The queue (and any further
// NeedMoreActions it produces) is bounded at shuttle.MaxSubActions total
// sub-actions for this dispatch; a tool that keeps asking for more past the
// cap has its last request recorded as an error instead of looping forever.
func (l *Loop) expandSubActions(ctx context.Context, session *types.Session, machine *fsm.Session, cfg Config, call types.ToolCall, env shuttle.Envelope) (toolOutcome, string) {
	queue := append([]shuttle.ToolCallSpec{}, env.NextActions...)
	executed := 0
	var lastText string

	for len(queue) > 0 {
		if ctx.Err() != nil {
			return toolOutcomeCancelled, ""
		}
		if executed >= shuttle.MaxSubActions {
			session.AddMessage(toolMessage(call.ID, fmt.Sprintf("Error: sub-action limit (%d) exceeded for %s", shuttle.MaxSubActions, call.Name)))
			return toolOutcomeDone, ""
		}

		spec := queue[0]
		queue = queue[1:]
		executed++

		subCall := types.ToolCall{
			ID:    fmt.Sprintf("%s_sub_%d", call.ID, executed),
			Name:  spec.Name,
			Input: spec.Params,
		}

		outcome, text := l.dispatchTool(ctx, session, machine, cfg, subCall)
		switch outcome {
		case toolOutcomeClarification, toolOutcomeCancelled, toolOutcomeDenied:
			return outcome, text
		}
		lastText = text
	}

	session.AddMessage(toolMessage(call.ID, fmt.Sprintf("resolved via %d sub-action(s): %s", executed, lastText)))
	return toolOutcomeDone, ""
}

func toolMessage(toolUseID, content string) types.Message {
	return types.Message{
		Role:      "tool",
		Content:   content,
		ToolUseID: toolUseID,
		Timestamp: time.Now(),
	}
}

func toolSchemas(cfg Config) []shuttle.Tool {
	return cfg.AdditionalToolSchemas
}

func mapFinishReason(stopReason string) types.FinishReason {
	switch stopReason {
	case "tool_use", "tool_calls":
		return types.FinishToolUse
	case "max_tokens":
		return types.FinishMaxTokens
	case "", "end_turn", "stop":
		return types.FinishEndTurn
	default:
		return types.FinishEndTurn
	}
}

func retryChat(ctx context.Context, cfg retry.RetryConfig, fn func() error) error {
	return retry.WithRetry(ctx, cfg, func(error) bool { return true }, nil, fn)
}

// assemblePrompt runs the prompt assembly pipeline against cfg's system
// prompt, role, workspace, tool schemas, skills, and enhancers, and prepends
// the result as a system message. A PromptOverflow from the pipeline (the
// base prompt alone exceeds the size cap) propagates as a round failure.
func (l *Loop) assemblePrompt(session *types.Session, cfg Config) ([]types.Message, error) {
	messages := session.GetMessages()
	if cfg.SystemPrompt == "" {
		return messages, nil
	}

	var userMessage string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			userMessage = messages[i].Content
			break
		}
	}

	systemPrompt, err := prompts.Assemble(prompts.AssemblyContext{
		BasePrompt:     cfg.SystemPrompt,
		Role:           cfg.Role,
		UserMessage:    userMessage,
		WorkspaceRoot:  cfg.WorkspaceRoot,
		Tools:          cfg.AdditionalToolSchemas,
		Skills:         cfg.Skills,
		Enhancers:      cfg.PromptEnhancers,
		MaxPromptBytes: cfg.MaxPromptBytes,
	})
	if err != nil {
		return nil, err
	}

	out := make([]types.Message, 0, len(messages)+1)
	out = append(out, types.Message{Role: "system", Content: systemPrompt, Timestamp: time.Now()})
	out = append(out, messages...)
	return out, nil
}

func (l *Loop) save(ctx context.Context, session *types.Session, cfg Config) {
	if cfg.Storage == nil || !session.IsDirty() {
		return
	}
	if err := cfg.Storage.Save(ctx, session); err != nil {
		return // save failures are logged upstream by the storage collaborator; non-fatal here
	}
	session.ClearDirty()
}

func (l *Loop) finishCancelled(ctx context.Context, session *types.Session, cfg Config, round int) *Result {
	publish(l.EventSink, EventCancelled, func(e *Event) { e.SessionID = session.ID })
	// Persistence on cancellation: the partial streaming message and any
	// completed tool messages are saved unconditionally if Storage is wired.
	l.save(ctx, session, cfg)
	return &Result{Outcome: OutcomeCancelled, Rounds: round}
}

func (l *Loop) finishFailed(ctx context.Context, session *types.Session, cfg Config, round int, err error) *Result {
	publish(l.EventSink, EventFailed, func(e *Event) { e.SessionID = session.ID; e.Error = err.Error() })
	l.save(ctx, session, cfg)
	return &Result{Outcome: OutcomeFailed, Rounds: round, Error: err}
}
