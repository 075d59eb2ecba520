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
package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/teradata-labs/loom/internal/fsext"
	"github.com/teradata-labs/loom/internal/home"
	"github.com/teradata-labs/loom/internal/log"
	"github.com/teradata-labs/loom/internal/permission"
	"github.com/teradata-labs/loom/internal/pubsub"
	"github.com/teradata-labs/loom/pkg/agent"
	"github.com/teradata-labs/loom/pkg/llm/factory"
	"github.com/teradata-labs/loom/pkg/shuttle"
	"github.com/teradata-labs/loom/pkg/skill"
	"github.com/teradata-labs/loom/pkg/storage"
	"github.com/teradata-labs/loom/pkg/types"
	"go.uber.org/zap"
)

var (
	flagSessionID string
	flagWorkspace string
)

func newChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Run one agent session to completion, streaming assistant output to stdout",
		Args:  cobra.ArbitraryArgs,
		RunE:  runChat,
	}
	cmd.Flags().StringVar(&flagSessionID, "session", "", "resume an existing session by id (a new one is created if omitted)")
	cmd.Flags().StringVar(&flagWorkspace, "workspace", "", "workspace root the agent operates in (default: current directory)")
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	message := strings.TrimSpace(strings.Join(args, " "))
	if message == "" {
		return fmt.Errorf("chat requires a message argument")
	}

	workspace := flagWorkspace
	if workspace == "" {
		var err error
		workspace, err = filepath.Abs(".")
		if err != nil {
			return fmt.Errorf("resolve workspace: %w", err)
		}
	}

	if !fsext.IsDir(workspace) {
		return fmt.Errorf("workspace %s is not a directory", workspace)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := storage.NewSessionStoreWithIndex(
		filepath.Join(flagDataDir, "sessions"),
		filepath.Join(flagDataDir, "sessions", "index.db"),
	)
	if err != nil {
		log.Warn("session index unavailable, falling back to directory listing", zap.Error(err))
		store = storage.NewSessionStore(filepath.Join(flagDataDir, "sessions"))
	}
	defer store.Close()

	sess, err := loadOrCreateSession(ctx, store, flagSessionID, workspace, flagModel)
	if err != nil {
		return err
	}

	llmProvider, err := newLLMProvider()
	if err != nil {
		return fmt.Errorf("create LLM provider: %w", err)
	}

	toolRegistry := shuttle.NewRegistry()
	executor := shuttle.NewExecutor(toolRegistry)

	permService := permission.NewDefaultService()
	permService.SetSkipRequests(flagYOLO)
	gate := shuttle.NewPermissionGate(permService, shuttle.PermissionGateConfig{
		YOLO:          flagYOLO,
		DefaultAction: "deny",
		Timeout:       5 * time.Minute,
	})

	skills := loadSkills()

	events := pubsub.NewBroker[agent.Event]()
	stop := streamEventsToStdout(ctx, events)
	defer stop()

	loop := &agent.Loop{
		LLM:          llmProvider,
		Executor:     executor,
		ApprovalGate: gate,
		EventSink:    events,
	}

	cfg := agent.DefaultConfig()
	cfg.WorkspaceRoot = workspace
	cfg.Skills = skills
	cfg.Storage = store
	cfg.ModelName = sess.ModelName

	registry := agent.NewRegistry()
	result, err := registry.Run(ctx, loop, sess, message, cfg)
	if err != nil {
		return fmt.Errorf("run agent loop: %w", err)
	}

	fmt.Println()
	switch result.Outcome {
	case agent.OutcomeCompleted:
		fmt.Printf("(session %s, %d round(s), workspace %s)\n", sess.ID, result.Rounds, home.Short(workspace))
	case agent.OutcomeAwaitingClarification:
		fmt.Printf("(session %s is awaiting clarification — rerun with --session %s to continue)\n", sess.ID, sess.ID)
	case agent.OutcomeCancelled:
		fmt.Printf("(session %s cancelled)\n", sess.ID)
	case agent.OutcomeFailed:
		return fmt.Errorf("session %s failed: %w", sess.ID, result.Error)
	}
	return nil
}

func loadOrCreateSession(ctx context.Context, store *storage.SessionStore, id, workspace, model string) (*types.Session, error) {
	if id != "" {
		sess, err := store.Load(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load session %s: %w", id, err)
		}
		return sess, nil
	}

	now := time.Now()
	sess := &types.Session{
		ID:            uuid.NewString(),
		WorkspacePath: workspace,
		ModelName:     model,
		CreatedAt:     now,
		UpdatedAt:     now,
		Context:       make(map[string]interface{}),
	}
	return sess, nil
}

func newLLMProvider() (types.StreamingLLMProvider, error) {
	f := factory.NewProviderFactory(factory.FactoryConfig{
		DefaultProvider: flagProvider,
		DefaultModel:    flagModel,
	})
	provider, err := f.CreateProvider(flagProvider, flagModel)
	if err != nil {
		return nil, err
	}
	streaming, ok := provider.(types.StreamingLLMProvider)
	if !ok {
		return nil, fmt.Errorf("provider %q does not support streaming", flagProvider)
	}
	return streaming, nil
}

func loadSkills() []types.SkillDefinition {
	store := skill.NewStore(filepath.Join(flagDataDir, "skills"))
	if err := store.Reload(context.Background()); err != nil {
		log.Warn("skill store reload failed, continuing without skills", zap.Error(err))
		return nil
	}
	return store.EnabledByDefault()
}

// streamEventsToStdout prints assistant tokens as they arrive and a short
// marker for tool activity, returning a func to stop the subscription.
func streamEventsToStdout(ctx context.Context, events *pubsub.Broker[agent.Event]) func() {
	subCtx, cancel := context.WithCancel(ctx)
	ch := events.Subscribe(subCtx)

	go func() {
		for evt := range ch {
			switch evt.Payload.Kind {
			case agent.EventToken:
				fmt.Print(evt.Payload.Token)
			case agent.EventToolStarted:
				fmt.Printf("\n[running %s]\n", evt.Payload.ToolName)
			case agent.EventToolFailed:
				fmt.Printf("\n[%s failed: %s]\n", evt.Payload.ToolName, evt.Payload.Error)
			case agent.EventToolDenied:
				fmt.Printf("\n[%s denied]\n", evt.Payload.ToolName)
			}
		}
	}()

	return cancel
}
