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
	"context"
	"fmt"
	"strings"

	"github.com/teradata-labs/loom/pkg/types"
)

// LLMCaller condenses conversation text into a short summary. Implementations
// should be cheap and fast; SummariseOldest runs synchronously inside the
// Agent Loop's round algorithm.
type LLMCaller interface {
	CompressConversation(ctx context.Context, conversationText string) (string, error)
}

// LLMSummariser is a Summariser that delegates to an LLMCaller, falling back
// to DefaultSummariser on error, empty output, or when no caller is set.
type LLMSummariser struct {
	ctx    context.Context
	caller LLMCaller
}

// NewLLMSummariser creates an LLM-backed summariser bound to ctx. If caller
// is nil, Summarise always falls back to the heuristic default.
func NewLLMSummariser(ctx context.Context, caller LLMCaller) *LLMSummariser {
	return &LLMSummariser{ctx: ctx, caller: caller}
}

// Summarise implements Summariser.
func (s *LLMSummariser) Summarise(removed []types.Message) types.Message {
	if s.caller == nil {
		return DefaultSummariser{}.Summarise(removed)
	}

	parts := make([]string, 0, len(removed))
	for _, msg := range removed {
		parts = append(parts, fmt.Sprintf("[%s]: %s", msg.Role, msg.Content))
	}
	conversationText := strings.Join(parts, "\n")

	summary, err := s.caller.CompressConversation(s.ctx, conversationText)
	if err != nil || summary == "" {
		return DefaultSummariser{}.Summarise(removed)
	}

	return types.Message{
		Role:    "system",
		Content: strings.TrimSpace(summary),
	}
}
