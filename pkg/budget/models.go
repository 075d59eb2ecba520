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

// ModelLimits defines the context window and output reservation for a model.
type ModelLimits struct {
	MaxContextTokens     int
	ReservedOutputTokens int
}

// modelLimits is a lookup table for known model context limits, keyed by
// base model name (without version/date suffixes). Unknown models fall
// back to provider defaults, then a global default.
var modelLimits = map[string]ModelLimits{
	"claude-sonnet-4":   {MaxContextTokens: 200000, ReservedOutputTokens: 20000},
	"claude-3-5-sonnet": {MaxContextTokens: 200000, ReservedOutputTokens: 20000},
	"claude-3-opus":     {MaxContextTokens: 200000, ReservedOutputTokens: 20000},
	"claude-3-sonnet":   {MaxContextTokens: 200000, ReservedOutputTokens: 20000},
	"claude-3-haiku":    {MaxContextTokens: 200000, ReservedOutputTokens: 20000},
	"claude-2.1":        {MaxContextTokens: 200000, ReservedOutputTokens: 20000},
	"claude-2.0":        {MaxContextTokens: 100000, ReservedOutputTokens: 10000},

	"gpt-4-turbo":       {MaxContextTokens: 128000, ReservedOutputTokens: 12800},
	"gpt-4":             {MaxContextTokens: 8192, ReservedOutputTokens: 819},
	"gpt-3.5-turbo":     {MaxContextTokens: 16385, ReservedOutputTokens: 1638},
	"gpt-3.5-turbo-16k": {MaxContextTokens: 16385, ReservedOutputTokens: 1638},
}

// globalDefaultLimits is the last-resort fallback when neither a model nor
// its provider is recognised.
var globalDefaultLimits = ModelLimits{MaxContextTokens: 8192, ReservedOutputTokens: 819}

// GetModelLimits looks up context limits for modelName using exact match
// first, then the longest matching prefix (so "claude-3-5-sonnet-20241022"
// resolves via "claude-3-5-sonnet" rather than a shorter ambiguous prefix).
// Returns nil if nothing matches.
func GetModelLimits(modelName string) *ModelLimits {
	if limits, ok := modelLimits[modelName]; ok {
		return &limits
	}

	var bestMatch string
	var bestLimits *ModelLimits
	for base, limits := range modelLimits {
		if len(modelName) >= len(base) && modelName[:len(base)] == base {
			if len(base) > len(bestMatch) {
				bestMatch = base
				l := limits
				bestLimits = &l
			}
		}
	}
	return bestLimits
}

// GetProviderDefaultLimits returns sensible defaults for a provider when no
// model-specific entry exists.
func GetProviderDefaultLimits(provider string) ModelLimits {
	switch provider {
	case "anthropic":
		return ModelLimits{MaxContextTokens: 200000, ReservedOutputTokens: 20000}
	case "bedrock":
		return ModelLimits{MaxContextTokens: 200000, ReservedOutputTokens: 20000}
	case "openai":
		return ModelLimits{MaxContextTokens: 128000, ReservedOutputTokens: 12800}
	default:
		return globalDefaultLimits
	}
}

// ResolveLimits determines the context limits to use, in precedence order:
//  1. explicit configuration (both values supplied)
//  2. explicit max with a derived 10% output reservation
//  3. the model lookup table
//  4. the provider default
//  5. the global default
func ResolveLimits(provider, model string, configuredMax, configuredReserved int) ModelLimits {
	if configuredMax > 0 && configuredReserved > 0 {
		return ModelLimits{MaxContextTokens: configuredMax, ReservedOutputTokens: configuredReserved}
	}
	if configuredMax > 0 {
		return ModelLimits{MaxContextTokens: configuredMax, ReservedOutputTokens: configuredMax / 10}
	}
	if limits := GetModelLimits(model); limits != nil {
		if configuredReserved > 0 {
			limits.ReservedOutputTokens = configuredReserved
		}
		return *limits
	}
	limits := GetProviderDefaultLimits(provider)
	if configuredReserved > 0 {
		limits.ReservedOutputTokens = configuredReserved
	}
	return limits
}
