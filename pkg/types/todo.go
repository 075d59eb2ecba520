// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package types

// TodoStatus is the lifecycle state of a TodoItem.
type TodoStatus string

const (
	TodoPending    TodoStatus = "pending"
	TodoInProgress TodoStatus = "in_progress"
	TodoCompleted  TodoStatus = "completed"
	TodoBlocked    TodoStatus = "blocked"
)

// TodoItem is one entry in a Session's todo list. An item may only move to
// InProgress once every id in DependsOn is Completed; TodoList.NextEligible
// enforces this.
type TodoItem struct {
	ID         string
	Description string
	Status     TodoStatus
	DependsOn  []string
	Notes      string
	ActiveForm string
}

// TodoList is an ordered collection of TodoItems.
type TodoList struct {
	ID    string
	Items []TodoItem
}

// byID indexes items for dependency lookups.
func (l *TodoList) byID() map[string]*TodoItem {
	idx := make(map[string]*TodoItem, len(l.Items))
	for i := range l.Items {
		idx[l.Items[i].ID] = &l.Items[i]
	}
	return idx
}

// dependenciesSatisfied reports whether every dependency of item is Completed.
func (l *TodoList) dependenciesSatisfied(item *TodoItem, idx map[string]*TodoItem) bool {
	for _, dep := range item.DependsOn {
		depItem, ok := idx[dep]
		if !ok || depItem.Status != TodoCompleted {
			return false
		}
	}
	return true
}

// NextEligible returns the first item, in list order, that is Pending and
// whose dependencies are all Completed. Returns nil if none qualify.
func (l *TodoList) NextEligible() *TodoItem {
	idx := l.byID()
	for i := range l.Items {
		item := &l.Items[i]
		if item.Status == TodoPending && l.dependenciesSatisfied(item, idx) {
			return item
		}
	}
	return nil
}

// StartItem transitions item to InProgress, enforcing the dependency
// invariant. Returns false (no-op) if dependencies are not satisfied.
func (l *TodoList) StartItem(id string) bool {
	idx := l.byID()
	item, ok := idx[id]
	if !ok || item.Status != TodoPending {
		return false
	}
	if !l.dependenciesSatisfied(item, idx) {
		return false
	}
	item.Status = TodoInProgress
	return true
}

// CompleteItem transitions an InProgress item to Completed.
func (l *TodoList) CompleteItem(id string) bool {
	idx := l.byID()
	item, ok := idx[id]
	if !ok || item.Status != TodoInProgress {
		return false
	}
	item.Status = TodoCompleted
	return true
}

// Done reports whether every item in the list is Completed.
func (l *TodoList) Done() bool {
	for _, item := range l.Items {
		if item.Status != TodoCompleted {
			return false
		}
	}
	return true
}

// SkillVisibility controls whether a skill appears to users/agents by default.
type SkillVisibility string

const (
	SkillVisibilityPublic  SkillVisibility = "public"
	SkillVisibilityHidden  SkillVisibility = "hidden"
	SkillVisibilityPreview SkillVisibility = "preview"
)

// SkillDefinition is an immutable, file-backed prompt fragment plus optional
// tool/workflow references, injected into the system prompt when enabled.
// The skill store is read-only at runtime; edits happen externally on disk.
type SkillDefinition struct {
	ID                string
	Name              string
	Description       string
	Category          string
	PromptFragment    string
	ToolRefs          []string
	WorkflowRefs      []string
	Version           string
	Visibility        SkillVisibility
	EnabledByDefault  bool
}
