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
	"fmt"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/teradata-labs/loom/pkg/storage"
	"github.com/teradata-labs/loom/pkg/types"
)

// Counter provides token counting for LLM context management, using
// tiktoken's cl100k_base encoding as a Claude-compatible approximation.
type Counter struct {
	encoder *tiktoken.Tiktoken
	mu      sync.Mutex
}

var (
	globalCounter *Counter
	counterOnce   sync.Once
)

// GetCounter returns a process-wide singleton Counter.
func GetCounter() *Counter {
	counterOnce.Do(func() {
		tkm, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			globalCounter = &Counter{encoder: nil}
			return
		}
		globalCounter = &Counter{encoder: tkm}
	})
	return globalCounter
}

// CountTokens returns the estimated token count for text. Falls back to a
// char/4 heuristic if the tiktoken encoder failed to load.
func (c *Counter) CountTokens(text string) int {
	if c.encoder == nil {
		return len(text) / 4
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.encoder.Encode(text, nil, nil))
}

// CountTokensMultiple sums CountTokens over several segments.
func (c *Counter) CountTokensMultiple(texts ...string) int {
	total := 0
	for _, text := range texts {
		total += c.CountTokens(text)
	}
	return total
}

// EstimateMessagesTokens estimates the token cost of a message slice,
// including a fixed per-message formatting overhead.
func (c *Counter) EstimateMessagesTokens(messages []types.Message) int {
	total := 0
	for _, msg := range messages {
		total += 10 // role + structural overhead
		total += c.CountTokens(msg.Content)
		if len(msg.ToolCalls) > 0 {
			total += c.CountTokens(fmt.Sprintf("%v", msg.ToolCalls))
		}
		if msg.ToolResult != nil {
			total += c.CountTokens(fmt.Sprintf("%v", *msg.ToolResult))
		}
	}
	return total
}

// CachedToolResult is a recent tool execution retained for context
// assembly. Large results are spilled to the shared store and referenced
// by DataRef rather than inlined, so the budget only pays a fixed
// reference cost for them.
type CachedToolResult struct {
	ToolName  string
	Args      map[string]any
	Result    string // inline summary, used only when DataRef is nil
	Timestamp time.Time
	DataRef   *storage.DataRef
}

// referenceTokenCost is the fixed token charge for a cached result that
// has been spilled to shared storage and is represented only by its
// DataRef metadata.
const referenceTokenCost = 50

// EstimateToolResultTokens estimates the token cost of cached tool results.
func (c *Counter) EstimateToolResultTokens(results []CachedToolResult) int {
	total := 0
	for _, result := range results {
		total += 20 // name + args formatting overhead
		total += c.CountTokens(result.ToolName)
		total += c.CountTokens(fmt.Sprintf("%v", result.Args))

		if result.DataRef != nil {
			total += referenceTokenCost
		} else {
			total += c.CountTokens(result.Result)
		}
	}
	return total
}
