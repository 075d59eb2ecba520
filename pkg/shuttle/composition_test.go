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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type compTool struct {
	name    string
	delay   time.Duration
	success bool
	data    interface{}
}

func (t *compTool) Name() string        { return t.name }
func (t *compTool) Description() string { return "composition test tool" }
func (t *compTool) Backend() string     { return "" }
func (t *compTool) InputSchema() *JSONSchema {
	return &JSONSchema{Type: "object"}
}
func (t *compTool) Execute(ctx context.Context, _ map[string]interface{}) (*Result, error) {
	if t.delay > 0 {
		select {
		case <-time.After(t.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &Result{Success: t.success, Data: t.data}, nil
}

func newCompositionExecutor(tools ...Tool) *Executor {
	reg := NewRegistry()
	for _, tool := range tools {
		reg.Register(tool)
	}
	return NewExecutor(reg)
}

func TestSequentialRunsStepsInOrderAndStopsOnFailure(t *testing.T) {
	exec := newCompositionExecutor(
		&compTool{name: "ok-1", success: true, data: "first"},
		&compTool{name: "fails", success: false},
		&compTool{name: "ok-2", success: true, data: "never reached"},
	)

	seq := Sequential{Steps: []Expr{
		Call{Tool: "ok-1"},
		Call{Tool: "fails"},
		Call{Tool: "ok-2"},
	}}

	result, err := seq.Execute(context.Background(), exec)
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestSequentialReturnsFinalResultOnFullSuccess(t *testing.T) {
	exec := newCompositionExecutor(
		&compTool{name: "ok-1", success: true, data: "first"},
		&compTool{name: "ok-2", success: true, data: "second"},
	)

	seq := Sequential{Steps: []Expr{
		Call{Tool: "ok-1"},
		Call{Tool: "ok-2"},
	}}

	result, err := seq.Execute(context.Background(), exec)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "second", result.Data)
}

func TestParallelJoinAllRequiresEverySuccess(t *testing.T) {
	exec := newCompositionExecutor(
		&compTool{name: "a", success: true},
		&compTool{name: "b", success: false},
	)

	par := Parallel{Join: JoinAll, Branches: []Expr{Call{Tool: "a"}, Call{Tool: "b"}}}
	result, err := par.Execute(context.Background(), exec)
	require.NoError(t, err)
	assert.False(t, result.Success)
}

func TestParallelJoinAnySucceedsIfOneDoes(t *testing.T) {
	exec := newCompositionExecutor(
		&compTool{name: "a", success: true},
		&compTool{name: "b", success: false},
	)

	par := Parallel{Join: JoinAny, Branches: []Expr{Call{Tool: "a"}, Call{Tool: "b"}}}
	result, err := par.Execute(context.Background(), exec)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestParallelJoinFirstSuccessReturnsFastestWinner(t *testing.T) {
	exec := newCompositionExecutor(
		&compTool{name: "slow", delay: 50 * time.Millisecond, success: true, data: "slow"},
		&compTool{name: "fast", delay: 5 * time.Millisecond, success: true, data: "fast"},
	)

	par := Parallel{Join: JoinFirstSuccess, Branches: []Expr{Call{Tool: "slow"}, Call{Tool: "fast"}}}
	result, err := par.Execute(context.Background(), exec)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "fast", result.Data)
}

func TestParallelEmptyBranchesSucceedsTrivially(t *testing.T) {
	exec := newCompositionExecutor()
	par := Parallel{Join: JoinAll}
	result, err := par.Execute(context.Background(), exec)
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestSequentialNestedInsideParallelBranch(t *testing.T) {
	exec := newCompositionExecutor(
		&compTool{name: "step-1", success: true, data: "one"},
		&compTool{name: "step-2", success: true, data: "two"},
		&compTool{name: "other", success: true, data: "other"},
	)

	par := Parallel{Join: JoinAll, Branches: []Expr{
		Sequential{Steps: []Expr{Call{Tool: "step-1"}, Call{Tool: "step-2"}}},
		Call{Tool: "other"},
	}}

	result, err := par.Execute(context.Background(), exec)
	require.NoError(t, err)
	assert.True(t, result.Success)
}
