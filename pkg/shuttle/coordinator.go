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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/teradata-labs/loom/pkg/retry"
)

// MaxSubActions bounds the total number of NeedMoreActions-expanded tool
// calls the coordinator will execute within a single top-level dispatch,
// regardless of how many rounds of expansion occur.
const MaxSubActions = 64

// toolAliases maps legacy/alternate tool names onto their canonical
// registered name.
var toolAliases = map[string]string{
	"run_command": "execute_command",
}

// ApprovalGate decides what happens to a tool call that requires approval.
// Implementations typically wrap internal/permission.Service.
type ApprovalGate interface {
	Request(ctx context.Context, pc PermissionContext) (ApprovalDecision, error)
}

// approvalClassRules maps a tool name to the approval class(es) its calls
// require. A tool absent from this table needs no approval.
var approvalClassRules = map[string][]ApprovalClass{
	"write_file":       {ApprovalClassWriteFile},
	"execute_command":  {ApprovalClassExecuteCommand},
	"http_request":     {ApprovalClassHTTPRequest},
	"open_terminal":    {ApprovalClassTerminalSession},
	"git_commit":       {ApprovalClassGitWrite},
	"git_push":         {ApprovalClassGitWrite},
}

// destructiveCommandMarkers flags execute_command invocations that also
// require DeleteOperation approval on top of ExecuteCommand.
var destructiveCommandMarkers = []string{"rm ", "rm\t", "rmdir", "drop table", "truncate "}

// ResultKind discriminates the tagged variants a tool result's body may
// parse as, per the agentic result envelope.
type ResultKind string

const (
	ResultSuccess           ResultKind = "success"
	ResultError             ResultKind = "error"
	ResultNeedClarification ResultKind = "need_clarification"
	ResultNeedMoreActions   ResultKind = "need_more_actions"
)

// Envelope is the parsed agentic result body.
type Envelope struct {
	Kind        ResultKind
	Result      string
	Error       string
	Question    string
	Options     []string
	Reason      string
	NextActions []ToolCallSpec
}

// ToolCallSpec is a follow-up tool invocation requested by NeedMoreActions.
type ToolCallSpec struct {
	Name   string                 `json:"name"`
	Params map[string]interface{} `json:"params"`
}

// envelopeWire is the JSON shape a tool's Result.Data may take when it wants
// to drive follow-up FSM behavior instead of being treated as a plain value.
type envelopeWire struct {
	Type        string         `json:"type"`
	Result      string         `json:"result"`
	Error       string         `json:"error"`
	Question    string         `json:"question"`
	Options     []string       `json:"options"`
	Reason      string         `json:"reason"`
	NextActions []ToolCallSpec `json:"actions"`
}

// ParseEnvelope inspects a tool result's Data field for the agentic result
// envelope shape. ok is false when Data does not look like a tagged
// envelope, in which case callers should treat the result as plain Success.
func ParseEnvelope(data interface{}) (Envelope, bool) {
	raw, ok := data.(map[string]interface{})
	if !ok {
		if s, ok := data.(string); ok {
			raw2, ok2 := tryUnmarshalMap(s)
			if !ok2 {
				return Envelope{}, false
			}
			raw = raw2
		} else {
			return Envelope{}, false
		}
	}

	typeVal, ok := raw["type"]
	if !ok {
		return Envelope{}, false
	}
	kind, _ := typeVal.(string)

	b, err := json.Marshal(raw)
	if err != nil {
		return Envelope{}, false
	}
	var w envelopeWire
	if err := json.Unmarshal(b, &w); err != nil {
		return Envelope{}, false
	}

	switch ResultKind(kind) {
	case ResultSuccess:
		return Envelope{Kind: ResultSuccess, Result: w.Result}, true
	case ResultError:
		return Envelope{Kind: ResultError, Error: w.Error}, true
	case ResultNeedClarification:
		return Envelope{Kind: ResultNeedClarification, Question: w.Question, Options: w.Options}, true
	case ResultNeedMoreActions:
		return Envelope{Kind: ResultNeedMoreActions, Reason: w.Reason, NextActions: w.NextActions}, true
	default:
		return Envelope{}, false
	}
}

func tryUnmarshalMap(s string) (map[string]interface{}, bool) {
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, false
	}
	return m, true
}

// NormalizeToolCall canonicalises a raw tool call (provider-formatted or
// legacy inline DSL) into a ToolCallRequest: resolves aliases, trims the
// name, and parses the argument string ("" becomes {}).
func NormalizeToolCall(callID, name, argumentsJSON string) (ToolCallRequest, error) {
	name = strings.TrimSpace(name)
	if canonical, ok := toolAliases[name]; ok {
		name = canonical
	}

	args := map[string]interface{}{}
	if strings.TrimSpace(argumentsJSON) != "" {
		if err := json.Unmarshal([]byte(argumentsJSON), &args); err != nil {
			return ToolCallRequest{}, fmt.Errorf("invalid arguments for %s: %w", name, err)
		}
	}

	return ToolCallRequest{
		CallID:         callID,
		ToolName:       name,
		Arguments:      args,
		ApprovalStatus: ApprovalPending,
	}, nil
}

// PermissionContextsFor builds the permission contexts a tool call requires,
// splitting a destructive execute_command into both ExecuteCommand and
// DeleteOperation contexts.
func PermissionContextsFor(req ToolCallRequest, sessionID string) []PermissionContext {
	classes, ok := approvalClassRules[req.ToolName]
	if !ok {
		return nil
	}

	contexts := make([]PermissionContext, 0, len(classes)+1)
	for _, class := range classes {
		contexts = append(contexts, PermissionContext{
			Class:       class,
			Resource:    resourceFor(req),
			Description: fmt.Sprintf("%s: %s", req.ToolName, resourceFor(req)),
			ToolName:    req.ToolName,
			CallID:      req.CallID,
			SessionID:   sessionID,
			Arguments:   req.Arguments,
		})
	}

	if req.ToolName == "execute_command" && isDestructiveCommand(req.Arguments) {
		contexts = append(contexts, PermissionContext{
			Class:       ApprovalClassDeleteOperation,
			Resource:    resourceFor(req),
			Description: fmt.Sprintf("destructive command: %s", resourceFor(req)),
			ToolName:    req.ToolName,
			CallID:      req.CallID,
			SessionID:   sessionID,
			Arguments:   req.Arguments,
		})
	}

	return contexts
}

func resourceFor(req ToolCallRequest) string {
	for _, key := range []string{"command", "path", "url", "file_path"} {
		if v, ok := req.Arguments[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

func isDestructiveCommand(args map[string]interface{}) bool {
	cmd, _ := args["command"].(string)
	cmd = strings.ToLower(cmd)
	for _, marker := range destructiveCommandMarkers {
		if strings.Contains(cmd, marker) {
			return true
		}
	}
	return false
}

// RetryableError classifies a tool execution error as retryable (I/O,
// transient) by inspecting the coordinator-facing Error code; unknown codes
// default to non-retryable.
func RetryableError(toolErr *Error) bool {
	if toolErr == nil {
		return false
	}
	return toolErr.Retryable
}

// DefaultCoordinatorRetryConfig is the coordinator's per-tool retry policy:
// exponential backoff, initial=100ms, multiplier=2.0, max=5s, 3 retries.
func DefaultCoordinatorRetryConfig() retry.RetryConfig {
	return retry.DefaultRetryConfig()
}
