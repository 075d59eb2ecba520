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

import "sync"

// Budget tracks token usage against a model's context window, holding back
// ReservedTokens for the model's own output.
type Budget struct {
	MaxTokens      int
	UsedTokens     int
	ReservedTokens int
	mu             sync.RWMutex
}

// NewBudget creates a budget from resolved model limits.
func NewBudget(limits ModelLimits) *Budget {
	return &Budget{
		MaxTokens:      limits.MaxContextTokens,
		ReservedTokens: limits.ReservedOutputTokens,
	}
}

// AvailableTokens returns the number of tokens free for new input content.
func (b *Budget) AvailableTokens() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.MaxTokens - b.ReservedTokens - b.UsedTokens
}

// CanFit reports whether tokens additional tokens fit in the remaining budget.
func (b *Budget) CanFit(tokens int) bool {
	return b.AvailableTokens() >= tokens
}

// Use charges tokens against the budget. Returns false, making no change,
// if doing so would exceed the available budget.
func (b *Budget) Use(tokens int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if tokens > b.MaxTokens-b.ReservedTokens-b.UsedTokens {
		return false
	}
	b.UsedTokens += tokens
	return true
}

// Free returns tokens to the budget, clamped at zero.
func (b *Budget) Free(tokens int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.UsedTokens -= tokens
	if b.UsedTokens < 0 {
		b.UsedTokens = 0
	}
}

// Reset clears usage back to zero.
func (b *Budget) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.UsedTokens = 0
}

// GetUsage returns used, available, and total token counts.
func (b *Budget) GetUsage() (used, available, total int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.UsedTokens, b.MaxTokens - b.ReservedTokens - b.UsedTokens, b.MaxTokens
}

// UsagePercentage returns used tokens as a percentage of the available
// (non-reserved) window.
func (b *Budget) UsagePercentage() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	maxAvailable := b.MaxTokens - b.ReservedTokens
	if maxAvailable <= 0 {
		return 0
	}
	return float64(b.UsedTokens) / float64(maxAvailable) * 100
}

// IsNearLimit reports whether usage is at or above thresholdPct.
func (b *Budget) IsNearLimit(thresholdPct float64) bool {
	return b.UsagePercentage() >= thresholdPct
}

// IsCritical reports usage above 85%, the threshold at which the budget
// manager should refuse further additions without truncation or summary.
func (b *Budget) IsCritical() bool {
	return b.IsNearLimit(85.0)
}

// NeedsWarning reports usage above 70%, the threshold at which callers
// should surface a budget warning event.
func (b *Budget) NeedsWarning() bool {
	return b.IsNearLimit(70.0)
}
