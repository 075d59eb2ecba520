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

	"github.com/teradata-labs/loom/internal/fsext"
)

var (
	flagWorkspaceDepth int
	flagWorkspaceLimit int
)

func newWorkspaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspace",
		Short: "Inspect the directory an agent session would operate in",
	}
	cmd.AddCommand(newWorkspaceLsCmd())
	return cmd
}

func newWorkspaceLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List files under the workspace root, the same walk the agent uses for context",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := flagWorkspace
			if root == "" {
				var err error
				root, err = filepath.Abs(".")
				if err != nil {
					return fmt.Errorf("resolve workspace: %w", err)
				}
			}
			if len(args) == 1 {
				root = filepath.Join(root, args[0])
			}
			if !fsext.IsDir(root) {
				return fmt.Errorf("%s is not a directory", root)
			}

			files, truncated, err := fsext.ListDirectory(root, nil, flagWorkspaceDepth, flagWorkspaceLimit)
			if err != nil {
				return fmt.Errorf("list %s: %w", root, err)
			}
			for _, f := range files {
				fmt.Println(fsext.PrettyPath(f))
			}
			if truncated {
				fmt.Printf("(truncated at %d entries; pass --limit to see more)\n", flagWorkspaceLimit)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flagWorkspace, "workspace", "", "workspace root to list (default: current directory)")
	cmd.Flags().IntVar(&flagWorkspaceDepth, "depth", 3, "maximum directory depth to descend")
	cmd.Flags().IntVar(&flagWorkspaceLimit, "limit", 100, "maximum number of entries to print")
	return cmd
}
