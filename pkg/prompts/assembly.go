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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/teradata-labs/loom/pkg/shuttle"
	"github.com/teradata-labs/loom/pkg/types"
)

// DefaultFileReferenceMaxBytes caps how much of a single @path reference gets
// read into the prompt.
const DefaultFileReferenceMaxBytes = 1 << 20 // 1 MiB

// DefaultMaxPromptBytes caps the assembled system prompt.
const DefaultMaxPromptBytes = 100 * 1024

// Role selects which role-definition fragment step 2 contributes.
type Role string

const (
	RoleNone    Role = ""
	RolePlanner Role = "planner"
	RoleActor   Role = "actor"
)

// Fragment is one piece the pipeline contributes to the final prompt, per
// spec.md §4.8: content plus the stage it came from plus a priority used to
// decide what survives the size cap.
type Fragment struct {
	Content  string
	Source   string
	Priority int
}

// Enhancer supplies additional fragments beyond the five fixed pipeline
// stages (step 6). Priority follows the same "higher first" convention as
// the fixed-stage fragments.
type Enhancer interface {
	Enhance(ctx AssemblyContext) ([]Fragment, error)
}

// AssemblyContext carries everything Assemble needs to run the pipeline.
type AssemblyContext struct {
	BasePrompt     string
	Role           Role
	UserMessage    string
	WorkspaceRoot  string
	Tools          []shuttle.Tool
	Skills         []types.SkillDefinition
	Enhancers      []Enhancer
	MaxFileBytes   int
	MaxPromptBytes int
}

// PromptOverflow is returned when the base prompt alone already exceeds the
// configured maximum — there is nothing left to trim.
type PromptOverflow struct {
	BaseBytes int
	Max       int
}

func (e *PromptOverflow) Error() string {
	return fmt.Sprintf("prompts: base prompt (%d bytes) exceeds max prompt size (%d bytes)", e.BaseBytes, e.Max)
}

var fileRefPattern = regexp.MustCompile(`@([\w./-]+)(?::(\d+)(?:-(\d+))?)?`)

// Assemble runs the six-stage system-prompt pipeline: base prompt, role
// definitions, file-reference expansion, tool enhancement, skill fragments,
// then priority-sorted enhancer fragments. Fragments beyond the base prompt
// are dropped lowest-priority-first until the result fits MaxPromptBytes.
func Assemble(ctx AssemblyContext) (string, error) {
	maxFileBytes := ctx.MaxFileBytes
	if maxFileBytes <= 0 {
		maxFileBytes = DefaultFileReferenceMaxBytes
	}
	maxPromptBytes := ctx.MaxPromptBytes
	if maxPromptBytes <= 0 {
		maxPromptBytes = DefaultMaxPromptBytes
	}

	base := strings.TrimSpace(ctx.BasePrompt)
	if len(base) > maxPromptBytes {
		return "", &PromptOverflow{BaseBytes: len(base), Max: maxPromptBytes}
	}

	var fragments []Fragment

	if frag := roleFragment(ctx.Role); frag != nil {
		fragments = append(fragments, *frag)
	}
	if frag := fileReferenceFragment(ctx.UserMessage, ctx.WorkspaceRoot, maxFileBytes); frag != nil {
		fragments = append(fragments, *frag)
	}
	if frag := toolFragment(ctx.Tools); frag != nil {
		fragments = append(fragments, *frag)
	}
	fragments = append(fragments, skillFragments(ctx.Skills)...)

	for _, enh := range ctx.Enhancers {
		extra, err := enh.Enhance(ctx)
		if err != nil {
			return "", fmt.Errorf("prompts: enhancer failed: %w", err)
		}
		fragments = append(fragments, extra...)
	}

	fragments = fitToBudget(base, fragments, maxPromptBytes)

	var b strings.Builder
	b.WriteString(base)
	for _, f := range fragments {
		b.WriteString("\n\n")
		b.WriteString(f.Content)
	}
	return b.String(), nil
}

// fitToBudget repeatedly drops the lowest-priority remaining fragment until
// base plus all survivors fits within maxBytes.
func fitToBudget(base string, fragments []Fragment, maxBytes int) []Fragment {
	kept := append([]Fragment{}, fragments...)

	for {
		total := len(base)
		for _, f := range kept {
			total += len(f.Content) + 2
		}
		if total <= maxBytes || len(kept) == 0 {
			return kept
		}

		lowest := 0
		for i, f := range kept {
			if f.Priority < kept[lowest].Priority {
				lowest = i
			}
		}
		kept = append(kept[:lowest], kept[lowest+1:]...)
	}
}

func roleFragment(role Role) *Fragment {
	var content string
	switch role {
	case RolePlanner:
		content = "## Role: Planner\nDecompose the user's goal into a todo list and delegate execution to the Actor; do not call tools directly."
	case RoleActor:
		content = "## Role: Actor\nExecute one todo item at a time using the available tools; report completion back to the Planner."
	default:
		return nil
	}
	return &Fragment{Content: content, Source: "role", Priority: 90}
}

// fileReferenceFragment scans userMessage for @path(:start(-end)?)? references,
// resolves each against workspaceRoot, and renders a single "## File Context"
// fragment with one language-hinted code fence per resolved reference.
// References that fail to resolve (missing file, outside workspace, too
// large) are silently skipped rather than failing the whole prompt.
func fileReferenceFragment(userMessage, workspaceRoot string, maxBytes int) *Fragment {
	matches := fileRefPattern.FindAllStringSubmatch(userMessage, -1)
	if len(matches) == 0 || workspaceRoot == "" {
		return nil
	}

	var b strings.Builder
	b.WriteString("## File Context\n")
	found := false
	for _, m := range matches {
		relPath := m[1]
		content, lang, err := readFileReference(workspaceRoot, relPath, m[2], m[3], maxBytes)
		if err != nil {
			continue
		}
		found = true
		fmt.Fprintf(&b, "\n%s:\n```%s\n%s\n```\n", relPath, lang, content)
	}
	if !found {
		return nil
	}
	return &Fragment{Content: b.String(), Source: "file-reference", Priority: 70}
}

func readFileReference(workspaceRoot, relPath, startStr, endStr string, maxBytes int) (string, string, error) {
	cleanRoot := filepath.Clean(workspaceRoot)
	full := filepath.Clean(filepath.Join(cleanRoot, relPath))
	if full != cleanRoot && !strings.HasPrefix(full, cleanRoot+string(filepath.Separator)) {
		return "", "", fmt.Errorf("prompts: file reference escapes workspace: %s", relPath)
	}

	info, err := os.Stat(full)
	if err != nil {
		return "", "", err
	}
	if info.Size() > int64(maxBytes) {
		return "", "", fmt.Errorf("prompts: file reference too large: %s", relPath)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return "", "", err
	}

	content := string(data)
	if startStr != "" {
		start, _ := strconv.Atoi(startStr)
		end := start
		if endStr != "" {
			end, _ = strconv.Atoi(endStr)
		}
		content = extractLines(content, start, end)
	}

	return content, languageHint(relPath), nil
}

func extractLines(content string, start, end int) string {
	lines := strings.Split(content, "\n")
	if start < 1 {
		start = 1
	}
	if end < start {
		end = start
	}
	if start > len(lines) {
		return ""
	}
	if end > len(lines) {
		end = len(lines)
	}
	return strings.Join(lines[start-1:end], "\n")
}

func languageHint(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".py":
		return "python"
	case ".js":
		return "javascript"
	case ".ts":
		return "typescript"
	case ".rs":
		return "rust"
	case ".sql":
		return "sql"
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	case ".md":
		return "markdown"
	case ".sh":
		return "bash"
	default:
		return ""
	}
}

// toolFragment renders every tool's name, description, and parameter schema,
// grouped by Backend() (empty backend groups under "general").
func toolFragment(tools []shuttle.Tool) *Fragment {
	if len(tools) == 0 {
		return nil
	}

	byCategory := make(map[string][]shuttle.Tool)
	for _, t := range tools {
		category := t.Backend()
		if category == "" {
			category = "general"
		}
		byCategory[category] = append(byCategory[category], t)
	}
	categories := make([]string, 0, len(byCategory))
	for c := range byCategory {
		categories = append(categories, c)
	}
	sort.Strings(categories)

	var b strings.Builder
	b.WriteString("## Available Tools\n")
	for _, category := range categories {
		fmt.Fprintf(&b, "\n### %s\n", category)
		for _, t := range byCategory[category] {
			schema, _ := json.Marshal(t.InputSchema())
			fmt.Fprintf(&b, "- **%s**: %s\n  schema: %s\n", t.Name(), t.Description(), schema)
		}
	}
	return &Fragment{Content: b.String(), Source: "tool-enhancement", Priority: 60}
}

// skillFragments renders one fragment per enabled skill. Enablement
// filtering happens upstream (the caller passes only enabled skills in);
// this stage just renders.
func skillFragments(skills []types.SkillDefinition) []Fragment {
	frags := make([]Fragment, 0, len(skills))
	for _, s := range skills {
		content := fmt.Sprintf("## Skill: %s\n%s", s.Name, s.PromptFragment)
		frags = append(frags, Fragment{Content: content, Source: "skill:" + s.ID, Priority: 50})
	}
	return frags
}
