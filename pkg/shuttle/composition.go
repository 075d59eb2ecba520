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
	"fmt"
)

// JoinStrategy controls how a Parallel composition combines its branch
// results, per spec.md §4.3's composition-expression model.
type JoinStrategy int

const (
	// JoinAll waits for every branch and succeeds only if all of them do.
	JoinAll JoinStrategy = iota
	// JoinAny waits for every branch and succeeds if at least one does.
	JoinAny
	// JoinFirstSuccess returns as soon as one branch succeeds, cancelling
	// the remaining branches (best-effort; a branch already mid-flight in
	// a tool's own Execute keeps running to completion, but its result is
	// discarded).
	JoinFirstSuccess
)

// Expr is a composition expression: a single tool call, a sequence, or a
// parallel fan-out of further expressions. Expressions execute against an
// Executor so a Call behaves identically to a top-level tool dispatch
// (shared-memory overflow handling, permission-checker hooks, everything).
type Expr interface {
	Execute(ctx context.Context, exec *Executor) (*Result, error)
}

// Call is a leaf expression: one tool invocation.
type Call struct {
	Tool string
	Args map[string]interface{}
}

// Execute runs the call through exec, identically to a direct Executor.Execute.
func (c Call) Execute(ctx context.Context, exec *Executor) (*Result, error) {
	return exec.Execute(ctx, c.Tool, c.Args)
}

// Sequential runs Steps in order, stopping at the first step whose Result
// reports Success=false (or whose execution itself errors) and returning
// that failing result. The final step's Result is returned on full success.
type Sequential struct {
	Steps []Expr
}

// Execute runs each step in turn, short-circuiting on the first failure.
func (s Sequential) Execute(ctx context.Context, exec *Executor) (*Result, error) {
	if len(s.Steps) == 0 {
		return &Result{Success: true}, nil
	}

	var last *Result
	for i, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := step.Execute(ctx, exec)
		if err != nil {
			return nil, fmt.Errorf("composition: sequence step %d: %w", i, err)
		}
		last = result
		if result != nil && !result.Success {
			return result, nil
		}
	}
	return last, nil
}

// Parallel runs Branches concurrently and combines their results per Join.
type Parallel struct {
	Branches []Expr
	Join     JoinStrategy
}

// branchOutcome pairs a branch's position with its execution result, so the
// combined result can report per-branch data in a stable order.
type branchOutcome struct {
	index  int
	result *Result
	err    error
}

// Execute runs every branch in its own goroutine and combines the results
// according to p.Join. All branches execute against the same Executor
// (which is safe for concurrent use — it is a thin stateless wrapper over
// the tool registry and shared-memory store).
func (p Parallel) Execute(ctx context.Context, exec *Executor) (*Result, error) {
	if len(p.Branches) == 0 {
		return &Result{Success: true}, nil
	}

	if p.Join == JoinFirstSuccess {
		return p.executeFirstSuccess(ctx, exec)
	}

	outcomes := make(chan branchOutcome, len(p.Branches))
	for i, branch := range p.Branches {
		go func(i int, branch Expr) {
			result, err := branch.Execute(ctx, exec)
			outcomes <- branchOutcome{index: i, result: result, err: err}
		}(i, branch)
	}

	results := make([]*Result, len(p.Branches))
	var firstErr error
	successCount := 0
	for range p.Branches {
		o := <-outcomes
		if o.err != nil {
			if firstErr == nil {
				firstErr = o.err
			}
			continue
		}
		results[o.index] = o.result
		if o.result != nil && o.result.Success {
			successCount++
		}
	}

	if firstErr != nil && successCount == 0 {
		return nil, fmt.Errorf("composition: parallel branch failed: %w", firstErr)
	}

	success := false
	switch p.Join {
	case JoinAll:
		success = successCount == len(p.Branches)
	case JoinAny:
		success = successCount > 0
	}

	data := make([]interface{}, len(results))
	for i, r := range results {
		if r != nil {
			data[i] = r.Data
		}
	}

	return &Result{Success: success, Data: data}, nil
}

// executeFirstSuccess races the branches, returning the first Result with
// Success=true. If every branch fails (or errors), the last-seen outcome is
// returned so the caller can inspect why.
func (p Parallel) executeFirstSuccess(ctx context.Context, exec *Executor) (*Result, error) {
	branchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make(chan branchOutcome, len(p.Branches))
	for i, branch := range p.Branches {
		go func(i int, branch Expr) {
			result, err := branch.Execute(branchCtx, exec)
			outcomes <- branchOutcome{index: i, result: result, err: err}
		}(i, branch)
	}

	var lastResult *Result
	var lastErr error
	for range p.Branches {
		o := <-outcomes
		if o.err == nil && o.result != nil && o.result.Success {
			return o.result, nil
		}
		if o.err != nil {
			lastErr = o.err
		} else {
			lastResult = o.result
		}
	}

	if lastResult != nil {
		return lastResult, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("composition: no branch succeeded: %w", lastErr)
	}
	return &Result{Success: false}, nil
}
