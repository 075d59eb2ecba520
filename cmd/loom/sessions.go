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
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	internalsession "github.com/teradata-labs/loom/internal/session"
	"github.com/teradata-labs/loom/pkg/storage"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List and manage saved sessions",
	}
	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsDeleteCmd())
	return cmd
}

func newSessionsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every saved session, most recently updated first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.NewSessionStoreWithIndex(
				filepath.Join(flagDataDir, "sessions"),
				filepath.Join(flagDataDir, "sessions", "index.db"),
			)
			if err != nil {
				store = storage.NewSessionStore(filepath.Join(flagDataDir, "sessions"))
			} else {
				defer store.Close()
			}

			svc := internalsession.NewDefaultService(store)
			list, err := svc.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}
			if len(list) == 0 {
				fmt.Println("no sessions found")
				return nil
			}
			for _, s := range list {
				fmt.Printf("%s\t%s\t$%.4f\n", s.ID, s.Title, s.Cost)
			}
			return nil
		},
	}
}

func newSessionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a saved session and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := storage.NewSessionStoreWithIndex(
				filepath.Join(flagDataDir, "sessions"),
				filepath.Join(flagDataDir, "sessions", "index.db"),
			)
			if err != nil {
				store = storage.NewSessionStore(filepath.Join(flagDataDir, "sessions"))
			} else {
				defer store.Close()
			}

			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete session %s: %w", args[0], err)
			}
			fmt.Printf("deleted session %s\n", args[0])
			return nil
		},
	}
}
