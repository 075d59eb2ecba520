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
	"sync/atomic"
	"time"
	"unicode"

	"github.com/teradata-labs/loom/pkg/storage"
)

// Executor executes tools with large-parameter/result offloading and
// permission checking.
type Executor struct {
	registry          *Registry
	sharedMemory      *storage.SharedMemoryStore
	threshold         int64 // byte threshold above which results/params move to shared memory
	permissionChecker *PermissionChecker

	largeParamStores      atomic.Int64
	largeParamDerefs      atomic.Int64
	largeParamBytesStored atomic.Int64
	largeParamDerefErrors atomic.Int64
}

// NewExecutor creates a new tool executor.
func NewExecutor(registry *Registry) *Executor {
	return &Executor{
		registry:  registry,
		threshold: storage.DefaultSharedMemoryThreshold,
	}
}

// SetSharedMemory configures shared memory for large result handling.
func (e *Executor) SetSharedMemory(sharedMemory *storage.SharedMemoryStore, threshold int64) {
	e.sharedMemory = sharedMemory
	if threshold >= 0 {
		e.threshold = threshold
	}
}

// SetPermissionChecker configures permission checking for tool execution.
func (e *Executor) SetPermissionChecker(checker *PermissionChecker) {
	e.permissionChecker = checker
}

// Execute executes a tool by name with the given parameters.
func (e *Executor) Execute(ctx context.Context, toolName string, params map[string]interface{}) (*Result, error) {
	tool, ok := e.registry.Get(toolName)
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", toolName)
	}
	return e.ExecuteWithTool(ctx, tool, params)
}

// ExecuteWithTool executes a specific tool instance (not necessarily from the registry).
func (e *Executor) ExecuteWithTool(ctx context.Context, tool Tool, params map[string]interface{}) (*Result, error) {
	if e.permissionChecker != nil {
		toolName := tool.Name()
		if err := e.permissionChecker.CheckPermission(ctx, toolName, params); err != nil {
			return &Result{
				Success: false,
				Error:   &Error{Code: "permission_denied", Message: err.Error(), Retryable: false},
			}, nil
		}
	}

	normalizedParams := normalizeParametersToSchema(tool, params)

	referencedParams, err := e.handleLargeParameters(normalizedParams)
	if err != nil {
		return &Result{
			Success: false,
			Error:   &Error{Code: "LARGE_PARAM_ERROR", Message: fmt.Sprintf("failed to handle large parameters: %v", err), Retryable: false},
		}, nil
	}

	finalParams, err := e.dereferenceLargeParameters(referencedParams)
	if err != nil {
		return &Result{
			Success: false,
			Error:   &Error{Code: "DEREF_ERROR", Message: fmt.Sprintf("failed to dereference parameters: %v", err), Retryable: false},
		}, nil
	}

	start := time.Now()
	result, err := tool.Execute(ctx, finalParams)
	duration := time.Since(start)

	if err != nil {
		return &Result{
			Success:         false,
			Error:           &Error{Code: "execution_failed", Message: err.Error(), Retryable: false},
			ExecutionTimeMs: duration.Milliseconds(),
		}, nil
	}

	if result == nil {
		result = &Result{Success: true, ExecutionTimeMs: duration.Milliseconds()}
		return result, nil
	}

	result.ExecutionTimeMs = duration.Milliseconds()
	if err := e.handleLargeResult(result); err != nil {
		if result.Metadata == nil {
			result.Metadata = make(map[string]interface{})
		}
		result.Metadata["shared_memory_error"] = err.Error()
	}

	return result, nil
}

// handleLargeResult stores oversized result payloads in shared memory,
// replacing the inline data with a reference and a short summary.
func (e *Executor) handleLargeResult(result *Result) error {
	if result.Data == nil || e.sharedMemory == nil {
		return nil
	}

	data, err := json.Marshal(result.Data)
	if err != nil {
		return fmt.Errorf("failed to serialize result: %w", err)
	}
	if int64(len(data)) <= e.threshold {
		return nil
	}

	id := storage.GenerateID()
	ref, err := e.sharedMemory.Store(id, data, "application/json", nil)
	if err != nil {
		return fmt.Errorf("failed to store in shared memory: %w", err)
	}

	meta, err := e.sharedMemory.GetMetadata(ref)
	if err != nil {
		result.DataReference = ref
		result.Data = fmt.Sprintf("[large result stored in shared memory: %s]", storage.RefToString(ref))
		return nil
	}

	result.DataReference = ref
	result.Data = fmt.Sprintf("stored %s result: %d bytes (~%d tokens), retrieve via reference %q",
		meta.DataType, meta.SizeBytes, meta.EstimatedTokens, id)
	return nil
}

// estimateValueSize calculates approximate byte size of a parameter value.
func estimateValueSize(value interface{}) int64 {
	switch v := value.(type) {
	case string:
		return int64(len(v))
	case []byte:
		return int64(len(v))
	case map[string]interface{}, []interface{}:
		data, err := json.Marshal(v)
		if err != nil {
			return 0
		}
		return int64(len(data))
	default:
		return 0
	}
}

// handleLargeParameters stores oversized parameter values in shared memory,
// replacing them with DataRef placeholders.
func (e *Executor) handleLargeParameters(params map[string]interface{}) (map[string]interface{}, error) {
	if e.sharedMemory == nil {
		return params, nil
	}

	result := make(map[string]interface{})
	modified := false

	for key, value := range params {
		size := estimateValueSize(value)
		if size > e.threshold {
			data, err := json.Marshal(value)
			if err != nil {
				return nil, fmt.Errorf("failed to serialize large parameter %s: %w", key, err)
			}

			id := storage.GenerateID()
			ref, err := e.sharedMemory.Store(id, data, "application/json", map[string]string{
				"parameter_name": key,
				"original_size":  fmt.Sprintf("%d", size),
				"source":         "parameter_optimization",
			})
			if err != nil {
				return nil, fmt.Errorf("failed to store large parameter %s: %w", key, err)
			}

			result[key] = ref
			modified = true
			e.largeParamStores.Add(1)
			e.largeParamBytesStored.Add(size)
		} else {
			result[key] = value
		}
	}

	if !modified {
		return params, nil
	}
	return result, nil
}

// dereferenceLargeParameters replaces DataRef placeholders with their
// original values before the tool sees them.
func (e *Executor) dereferenceLargeParameters(params map[string]interface{}) (map[string]interface{}, error) {
	if e.sharedMemory == nil {
		return params, nil
	}

	result := make(map[string]interface{})
	hasRefs := false

	for key, value := range params {
		if ref, ok := value.(*storage.DataRef); ok {
			hasRefs = true
			data, err := e.sharedMemory.Get(ref)
			if err != nil {
				e.largeParamDerefErrors.Add(1)
				return nil, fmt.Errorf("failed to dereference parameter %s: %w", key, err)
			}

			var originalValue interface{}
			if err := json.Unmarshal(data, &originalValue); err != nil {
				e.largeParamDerefErrors.Add(1)
				return nil, fmt.Errorf("failed to deserialize parameter %s: %w", key, err)
			}

			result[key] = originalValue
			e.largeParamDerefs.Add(1)
		} else {
			result[key] = value
		}
	}

	if !hasRefs {
		return params, nil
	}
	return result, nil
}

// ListAvailableTools returns all tools available in the executor's registry.
func (e *Executor) ListAvailableTools() []Tool {
	return e.registry.ListTools()
}

// ListToolsByBackend returns all tools for a specific backend.
func (e *Executor) ListToolsByBackend(backend string) []Tool {
	return e.registry.ListByBackend(backend)
}

// ExecutorStats holds metrics about executor operations.
type ExecutorStats struct {
	LargeParamStores      int64
	LargeParamDerefs      int64
	LargeParamBytesStored int64
	LargeParamDerefErrors int64
}

// Stats returns metrics about executor operations.
func (e *Executor) Stats() ExecutorStats {
	return ExecutorStats{
		LargeParamStores:      e.largeParamStores.Load(),
		LargeParamDerefs:      e.largeParamDerefs.Load(),
		LargeParamBytesStored: e.largeParamBytesStored.Load(),
		LargeParamDerefErrors: e.largeParamDerefErrors.Load(),
	}
}

// normalizeParametersToSchema maps parameter keys onto the tool's declared
// schema names regardless of the naming convention the LLM used
// (snake_case, camelCase, PascalCase).
func normalizeParametersToSchema(tool Tool, params map[string]interface{}) map[string]interface{} {
	if len(params) == 0 {
		return params
	}

	schema := tool.InputSchema()
	if schema == nil || schema.Properties == nil {
		return params
	}

	schemaKeys := make(map[string]string)
	for key := range schema.Properties {
		schemaKeys[toLowerUnderscore(key)] = key
	}

	normalized := make(map[string]interface{}, len(params))
	for key, value := range params {
		normalizedKey := toLowerUnderscore(key)
		if schemaKey, exists := schemaKeys[normalizedKey]; exists {
			normalized[schemaKey] = value
		} else {
			normalized[key] = value
		}
	}
	return normalized
}

// toLowerUnderscore converts any naming convention to lowercase with
// underscores so keys in different conventions can be compared.
func toLowerUnderscore(s string) string {
	if s == "" {
		return ""
	}

	var result []rune
	for i, r := range s {
		lower := unicode.ToLower(r)
		if i > 0 && unicode.IsUpper(r) {
			result = append(result, '_')
		}
		result = append(result, lower)
	}
	return string(result)
}
