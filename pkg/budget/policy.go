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
package budget

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/teradata-labs/loom/pkg/types"
)

// Strategy selects how the Budget Manager reacts when projected usage
// would exceed the available context window.
type Strategy string

const (
	TruncateOldest   Strategy = "truncate_oldest"
	SummariseOldest  Strategy = "summarise_oldest"
	RejectOnOverflow Strategy = "reject_on_overflow"
)

// ErrBudgetExceeded is returned by Enforce under RejectOnOverflow when the
// log does not fit and must not be modified.
var ErrBudgetExceeded = errors.New("budget: context window exceeded")

// SafetyMargin is additional headroom subtracted from the available window
// on top of the model's reserved output tokens, absorbing estimation error
// between the tiktoken approximation and the provider's own tokenizer.
type SafetyMargin int

// Summariser produces a condensed message standing in for a removed
// message prefix. The default implementation (DefaultSummariser) needs no
// LLM call; callers may supply an LLM-backed one instead.
type Summariser interface {
	Summarise(removed []types.Message) types.Message
}

// Enforce applies strategy to messages so that the counter's estimate of
// the kept log fits within budget's available window minus margin. The
// first message, if it has Role "system", and the most recent user message
// are never removed. Every message with a ToolUseID set (a tool result) is
// also protected from removal, since dropping the message a tool call
// answers would corrupt the turn.
func Enforce(strategy Strategy, messages []types.Message, counter *Counter, budget *Budget, margin SafetyMargin, summariser Summariser) ([]types.Message, error) {
	if summariser == nil {
		summariser = DefaultSummariser{}
	}

	limit := budget.AvailableTokens() - int(margin)
	if limit < 0 {
		limit = 0
	}

	fits := func(msgs []types.Message) bool {
		return counter.EstimateMessagesTokens(msgs) <= limit
	}

	if fits(messages) {
		return messages, nil
	}

	switch strategy {
	case RejectOnOverflow:
		return nil, ErrBudgetExceeded

	case TruncateOldest:
		kept := truncateOldest(messages, fits)
		return kept, nil

	case SummariseOldest:
		kept, removed := splitForSummary(messages, fits)
		if len(removed) == 0 {
			return kept, nil
		}
		summary := summariser.Summarise(removed)
		result := make([]types.Message, 0, len(kept)+1)
		insertAt := protectedPrefixLen(messages)
		result = append(result, kept[:insertAt]...)
		result = append(result, summary)
		result = append(result, kept[insertAt:]...)
		return result, nil

	default:
		return nil, fmt.Errorf("budget: unknown strategy %q", strategy)
	}
}

// protectedPrefixLen returns the number of leading messages that must never
// be removed: a leading system message, if present.
func protectedPrefixLen(messages []types.Message) int {
	if len(messages) > 0 && messages[0].Role == "system" {
		return 1
	}
	return 0
}

// lastUserIndex returns the index of the most recent user message, or -1.
func lastUserIndex(messages []types.Message) int {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return i
		}
	}
	return -1
}

// removable reports whether messages[i] may be dropped: not the protected
// system prefix, not the most recent user message, and not the answer to a
// pending tool call (ToolUseID set, meaning some later message depends on it).
func removable(messages []types.Message, i, protectedPrefix, lastUser int) bool {
	if i < protectedPrefix || i == lastUser {
		return false
	}
	if messages[i].ToolUseID != "" {
		return false
	}
	return true
}

// truncateOldest drops removable messages from the front (oldest first)
// until the remainder fits.
func truncateOldest(messages []types.Message, fits func([]types.Message) bool) []types.Message {
	protectedPrefix := protectedPrefixLen(messages)
	lastUser := lastUserIndex(messages)

	dropped := make(map[int]bool, len(messages))
	remaining := func() []types.Message {
		out := make([]types.Message, 0, len(messages))
		for i, m := range messages {
			if !dropped[i] {
				out = append(out, m)
			}
		}
		return out
	}

	for i := protectedPrefix; i < len(messages); i++ {
		if fits(remaining()) {
			break
		}
		if removable(messages, i, protectedPrefix, lastUser) {
			dropped[i] = true
		}
	}
	return remaining()
}

// splitForSummary finds the oldest removable run of messages to replace
// with a summary, growing it one message at a time (skipping any
// non-removable message it encounters) until the protected prefix plus the
// messages after the run would fit. That check counts neither the summary
// message nor the non-removable messages kept from inside the run.
func splitForSummary(messages []types.Message, fits func([]types.Message) bool) ([]types.Message, []types.Message) {
	protectedPrefix := protectedPrefixLen(messages)
	lastUser := lastUserIndex(messages)

	cut := protectedPrefix
	for cut < len(messages) {
		kept := append(append([]types.Message(nil), messages[:protectedPrefix]...), messages[cut+1:]...)
		if fits(kept) {
			cut++
			break
		}
		if removable(messages, cut, protectedPrefix, lastUser) {
			cut++
			continue
		}
		// Can't remove this one; try extending past it so later removable
		// messages still get folded into the summary run.
		cut++
	}

	removed := make([]types.Message, 0, cut-protectedPrefix)
	kept := append([]types.Message(nil), messages[:protectedPrefix]...)
	for i := protectedPrefix; i < cut; i++ {
		if removable(messages, i, protectedPrefix, lastUser) {
			removed = append(removed, messages[i])
		} else {
			kept = append(kept, messages[i])
		}
	}
	kept = append(kept, messages[cut:]...)
	return kept, removed
}

// DefaultSummariser replaces a removed message prefix with a heuristic
// digest: the most recent user questions (up to 10), a note on tool usage,
// and the last 3 assistant responses. All excerpts are truncated at a
// rune boundary so the result is always valid UTF-8.
type DefaultSummariser struct{}

// Summarise implements Summariser.
func (DefaultSummariser) Summarise(removed []types.Message) types.Message {
	var questions []string
	var usedTools bool
	var assistantResponses []string

	for _, msg := range removed {
		switch msg.Role {
		case "user":
			questions = append(questions, truncateRunes(msg.Content, 280))
		case "assistant":
			if len(msg.ToolCalls) > 0 {
				usedTools = true
			}
			if msg.Content != "" {
				assistantResponses = append(assistantResponses, truncateRunes(msg.Content, 280))
			}
		}
	}

	if len(questions) > 10 {
		questions = questions[len(questions)-10:]
	}
	if len(assistantResponses) > 3 {
		assistantResponses = assistantResponses[len(assistantResponses)-3:]
	}

	var b strings.Builder
	b.WriteString("Summary of earlier conversation:")
	if len(questions) > 0 {
		b.WriteString(" Questions asked: ")
		b.WriteString(strings.Join(questions, " | "))
	}
	if usedTools {
		b.WriteString(" Tools were used.")
	}
	if len(assistantResponses) > 0 {
		b.WriteString(" Recent responses: ")
		b.WriteString(strings.Join(assistantResponses, " | "))
	}

	return types.Message{
		Role:    "system",
		Content: b.String(),
	}
}

// truncateRunes truncates s to at most n runes, always on a rune boundary,
// appending an ellipsis when truncation occurred. Unlike slicing s[:n],
// this never splits a multi-byte UTF-8 sequence.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
