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
package prompts

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teradata-labs/loom/pkg/shuttle"
	"github.com/teradata-labs/loom/pkg/types"
)

func TestAssembleBaseOnly(t *testing.T) {
	out, err := Assemble(AssemblyContext{BasePrompt: "be helpful"})
	require.NoError(t, err)
	assert.Equal(t, "be helpful", out)
}

func TestAssembleOverflowsOnOversizedBasePrompt(t *testing.T) {
	huge := strings.Repeat("x", DefaultMaxPromptBytes+1)
	_, err := Assemble(AssemblyContext{BasePrompt: huge})
	require.Error(t, err)
	var overflow *PromptOverflow
	require.ErrorAs(t, err, &overflow)
}

func TestAssembleAddsRoleFragment(t *testing.T) {
	out, err := Assemble(AssemblyContext{BasePrompt: "base", Role: RolePlanner})
	require.NoError(t, err)
	assert.Contains(t, out, "Role: Planner")
}

func TestAssembleExpandsFileReference(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n\nfunc main() {}\n"), 0o644))

	out, err := Assemble(AssemblyContext{
		BasePrompt:    "base",
		UserMessage:   "look at @main.go for context",
		WorkspaceRoot: dir,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "File Context")
	assert.Contains(t, out, "```go")
	assert.Contains(t, out, "package main")
}

func TestAssembleFileReferenceLineRange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\ntwo\nthree\nfour\n"), 0o644))

	out, err := Assemble(AssemblyContext{
		BasePrompt:    "base",
		UserMessage:   "see @notes.txt:2-3",
		WorkspaceRoot: dir,
	})
	require.NoError(t, err)
	assert.Contains(t, out, "two\nthree")
	assert.NotContains(t, out, "one\ntwo\nthree\nfour")
}

func TestAssembleFileReferenceEscapingWorkspaceIsSkipped(t *testing.T) {
	dir := t.TempDir()
	out, err := Assemble(AssemblyContext{
		BasePrompt:    "base",
		UserMessage:   "see @../../etc/passwd",
		WorkspaceRoot: dir,
	})
	require.NoError(t, err)
	assert.Equal(t, "base", out)
}

func TestAssembleGroupsToolsByBackend(t *testing.T) {
	out, err := Assemble(AssemblyContext{
		BasePrompt: "base",
		Tools: []shuttle.Tool{
			&namedTool{name: "read_file", description: "reads a file", backend: ""},
			&namedTool{name: "query_db", description: "runs a query", backend: "sqlite"},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "### general")
	assert.Contains(t, out, "### sqlite")
	assert.Contains(t, out, "read_file")
	assert.Contains(t, out, "query_db")
}

func TestAssembleAddsSkillFragments(t *testing.T) {
	out, err := Assemble(AssemblyContext{
		BasePrompt: "base",
		Skills: []types.SkillDefinition{
			{ID: "skill-1", Name: "Code Review", PromptFragment: "Review diffs for correctness."},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Skill: Code Review")
	assert.Contains(t, out, "Review diffs for correctness.")
}

type stubEnhancer struct {
	fragments []Fragment
}

func (s *stubEnhancer) Enhance(AssemblyContext) ([]Fragment, error) {
	return s.fragments, nil
}

func TestAssembleDropsLowestPriorityFragmentsWhenOverBudget(t *testing.T) {
	out, err := Assemble(AssemblyContext{
		BasePrompt:     "base",
		MaxPromptBytes: len("base") + len("keep-me") + 4,
		Enhancers: []Enhancer{
			&stubEnhancer{fragments: []Fragment{
				{Content: "keep-me", Priority: 100},
				{Content: "drop-me-" + strings.Repeat("z", 200), Priority: 1},
			}},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "keep-me")
	assert.NotContains(t, out, "drop-me")
}

// namedTool is a minimal shuttle.Tool used only to exercise the tool-
// enhancement stage's grouping-by-backend behavior.
type namedTool struct {
	name, description, backend string
}

func (n *namedTool) Name() string        { return n.name }
func (n *namedTool) Description() string { return n.description }
func (n *namedTool) Backend() string     { return n.backend }
func (n *namedTool) InputSchema() *shuttle.JSONSchema {
	return &shuttle.JSONSchema{Type: "object"}
}
func (n *namedTool) Execute(_ context.Context, _ map[string]interface{}) (*shuttle.Result, error) {
	return nil, nil
}
