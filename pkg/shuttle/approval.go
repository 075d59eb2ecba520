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

import "time"

// ApprovalDecision is the outcome of an approval request for a tool call.
type ApprovalDecision string

const (
	ApprovalPending         ApprovalDecision = "pending"
	ApprovalApproved        ApprovalDecision = "approved"
	ApprovalDenied          ApprovalDecision = "denied"
	ApprovalApprovedSession ApprovalDecision = "approved_for_session"
)

// ApprovalClass classifies the kind of action a tool call performs, used to
// decide whether (and how) it needs approval.
type ApprovalClass string

const (
	ApprovalClassWriteFile       ApprovalClass = "write-file"
	ApprovalClassExecuteCommand  ApprovalClass = "execute-command"
	ApprovalClassDeleteOperation ApprovalClass = "delete-operation"
	ApprovalClassHTTPRequest     ApprovalClass = "http-request"
	ApprovalClassTerminalSession ApprovalClass = "terminal-session"
	ApprovalClassGitWrite        ApprovalClass = "git-write"
	ApprovalClassNone            ApprovalClass = ""
)

// PermissionContext describes a single action awaiting approval: what kind
// of action, what resource it touches, and a human-readable description to
// show an approver.
type PermissionContext struct {
	Class       ApprovalClass
	Resource    string
	Description string
	ToolName    string
	CallID      string
	SessionID   string
	Arguments   map[string]any
}

// ApprovalRecord tracks the lifecycle of one approval request. Decision is
// set exactly once; DecidedAt is zero until then.
type ApprovalRecord struct {
	RequestID string
	ToolName  string
	Resource  string
	Decision  ApprovalDecision
	DecidedAt time.Time
}

// IsResolved reports whether a decision other than Pending has been recorded.
func (a *ApprovalRecord) IsResolved() bool {
	return a.Decision != "" && a.Decision != ApprovalPending
}

// ToolCallRequest is the normalised shape of a tool call regardless of
// whether it arrived as a provider-formatted call or an inline legacy DSL
// invocation in assistant text.
type ToolCallRequest struct {
	CallID            string
	ToolName          string
	Arguments         map[string]any
	ApprovalStatus    ApprovalDecision
	DisplayPreference string
}
