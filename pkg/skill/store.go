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

// Package skill implements the file-backed Skill Definition store: a
// read-only-at-runtime registry of prompt fragments loaded from YAML files
// on disk, kept current by an fsnotify watch plus a belt-and-suspenders
// periodic rescan.
package skill

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/teradata-labs/loom/pkg/types"
)

// Update describes a change observed by Watch.
type Update struct {
	ID        string
	Action    string // "created", "modified", "deleted", "error"
	Timestamp time.Time
	Error     error
}

// skillFile is the on-disk YAML shape for one skill definition.
type skillFile struct {
	ID               string   `yaml:"id"`
	Name             string   `yaml:"name"`
	Description      string   `yaml:"description"`
	Category         string   `yaml:"category"`
	ToolRefs         []string `yaml:"tool_refs"`
	WorkflowRefs     []string `yaml:"workflow_refs"`
	Version          string   `yaml:"version"`
	Visibility       string   `yaml:"visibility"`
	EnabledByDefault bool     `yaml:"enabled_by_default"`
	PromptFragment   string   `yaml:"prompt_fragment"`
}

// Store loads SkillDefinitions from YAML files under a root directory.
//
// Directory structure:
//
//	skills/
//	  code-review.yaml
//	  sql-migration.yaml
//
// YAML format:
//
//	---
//	id: code-review
//	name: Code Review
//	description: Reviews diffs for correctness and style
//	category: engineering
//	version: 1.0.0
//	visibility: public
//	enabled_by_default: true
//	tool_refs: [read_file, grep]
//	---
//	Review the diff for correctness, security, and style issues.
type Store struct {
	rootDir string

	mu     sync.RWMutex
	skills map[string]types.SkillDefinition
}

// NewStore creates a Store rooted at rootDir. Call Reload once before first
// use to populate it.
func NewStore(rootDir string) *Store {
	return &Store{
		rootDir: rootDir,
		skills:  make(map[string]types.SkillDefinition),
	}
}

// Get returns a skill by ID.
func (s *Store) Get(id string) (types.SkillDefinition, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	skill, ok := s.skills[id]
	return skill, ok
}

// List returns every skill matching the given category filter ("" matches
// all categories).
func (s *Store) List(category string) []types.SkillDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	skills := make([]types.SkillDefinition, 0, len(s.skills))
	for _, skill := range s.skills {
		if category != "" && skill.Category != category {
			continue
		}
		skills = append(skills, skill)
	}
	return skills
}

// EnabledByDefault returns every skill with EnabledByDefault set and public
// visibility — the set a fresh session would load without explicit opt-in.
func (s *Store) EnabledByDefault() []types.SkillDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var skills []types.SkillDefinition
	for _, skill := range s.skills {
		if skill.EnabledByDefault && skill.Visibility != types.SkillVisibilityHidden {
			skills = append(skills, skill)
		}
	}
	return skills
}

// Reload re-reads every *.yaml/*.yml file under rootDir, atomically
// replacing the in-memory skill map.
func (s *Store) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	loaded := make(map[string]types.SkillDefinition)
	err := filepath.Walk(s.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		skill, err := loadSkillFile(path)
		if err != nil {
			return fmt.Errorf("skill: load %s: %w", path, err)
		}
		loaded[skill.ID] = skill
		return nil
	})
	if os.IsNotExist(err) {
		s.mu.Lock()
		s.skills = loaded
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("skill: reload: %w", err)
	}

	s.mu.Lock()
	s.skills = loaded
	s.mu.Unlock()
	return nil
}

func loadSkillFile(path string) (types.SkillDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.SkillDefinition{}, err
	}

	parts := strings.SplitN(string(data), "---", 3)
	if len(parts) < 3 {
		return types.SkillDefinition{}, fmt.Errorf("invalid format: expected YAML frontmatter with --- separator")
	}

	var sf skillFile
	if err := yaml.Unmarshal([]byte(parts[1]), &sf); err != nil {
		return types.SkillDefinition{}, fmt.Errorf("parse metadata: %w", err)
	}
	fragment := strings.TrimSpace(parts[2])

	if sf.ID == "" {
		sf.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	visibility := types.SkillVisibility(sf.Visibility)
	if visibility == "" {
		visibility = types.SkillVisibilityPublic
	}

	return types.SkillDefinition{
		ID:               sf.ID,
		Name:             sf.Name,
		Description:      sf.Description,
		Category:         sf.Category,
		PromptFragment:   fragment,
		ToolRefs:         sf.ToolRefs,
		WorkflowRefs:     sf.WorkflowRefs,
		Version:          sf.Version,
		Visibility:       visibility,
		EnabledByDefault: sf.EnabledByDefault,
	}, nil
}

// Watch keeps the store current two ways at once: an fsnotify watch for
// near-immediate pickup of edits, and a periodic cron-driven rescan as a
// backstop for changes fsnotify misses (network filesystems, editors that
// replace-by-rename outside the watched inode, etc). The returned function
// stops both and must be called to release the cron scheduler and watcher.
func (s *Store) Watch(ctx context.Context, rescanSchedule string) (<-chan Update, func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("skill: create file watcher: %w", err)
	}
	if err := s.watchDirectory(watcher); err != nil {
		watcher.Close()
		return nil, nil, err
	}

	updates := make(chan Update, 10)
	sched := cron.New()
	if rescanSchedule != "" {
		_, err := sched.AddFunc(rescanSchedule, func() {
			if err := s.Reload(context.Background()); err != nil {
				updates <- Update{Action: "error", Timestamp: time.Now(), Error: err}
			}
		})
		if err != nil {
			watcher.Close()
			return nil, nil, fmt.Errorf("skill: invalid rescan schedule %q: %w", rescanSchedule, err)
		}
		sched.Start()
	}

	done := make(chan struct{})
	go func() {
		defer watcher.Close()
		defer close(updates)

		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.HasSuffix(event.Name, ".yaml") && !strings.HasSuffix(event.Name, ".yml") {
					continue
				}
				s.handleFileChange(updates, event)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				updates <- Update{Action: "error", Timestamp: time.Now(), Error: err}
			}
		}
	}()

	stop := func() {
		sched.Stop()
		close(done)
	}
	return updates, stop, nil
}

func (s *Store) watchDirectory(watcher *fsnotify.Watcher) error {
	if err := os.MkdirAll(s.rootDir, 0o755); err != nil {
		return fmt.Errorf("skill: create skill directory: %w", err)
	}
	if err := watcher.Add(s.rootDir); err != nil {
		return fmt.Errorf("skill: watch directory %s: %w", s.rootDir, err)
	}
	return filepath.Walk(s.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() && path != s.rootDir {
			if err := watcher.Add(path); err != nil {
				return fmt.Errorf("skill: watch directory %s: %w", path, err)
			}
		}
		return nil
	})
}

func (s *Store) handleFileChange(ch chan<- Update, event fsnotify.Event) {
	id := strings.TrimSuffix(filepath.Base(event.Name), filepath.Ext(event.Name))

	if err := s.Reload(context.Background()); err != nil {
		ch <- Update{ID: id, Action: "error", Timestamp: time.Now(), Error: err}
		return
	}

	action := "modified"
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		action = "created"
	case event.Op&fsnotify.Remove == fsnotify.Remove:
		action = "deleted"
	}
	ch <- Update{ID: id, Action: action, Timestamp: time.Now()}
}
