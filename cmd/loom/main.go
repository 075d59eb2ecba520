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

// Command loom is a minimal CLI front end for the Agent Loop: point it at a
// workspace and a prompt, and it drives one session to completion, printing
// assistant tokens to stdout as they stream in.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/teradata-labs/loom/internal/log"
	"github.com/teradata-labs/loom/internal/version"
	"github.com/teradata-labs/loom/pkg/config"
)

var (
	flagDataDir  string
	flagProvider string
	flagModel    string
	flagYOLO     bool
	flagVerbose  bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "loom",
		Short:         "Run an agentic coding session from the command line",
		Version:       version.Get(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return bindConfig(cmd)
		},
	}
	root.SetVersionTemplate("loom {{.Version}}\n")

	root.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "directory for sessions, skills and the shared-memory store (default: $LOOM_DATA_DIR or ~/.loom)")
	root.PersistentFlags().StringVar(&flagProvider, "provider", "anthropic", "LLM provider: anthropic or bedrock")
	root.PersistentFlags().StringVar(&flagModel, "model", "", "model identifier (provider-specific default if omitted)")
	root.PersistentFlags().BoolVar(&flagYOLO, "yolo", false, "approve every tool call automatically, skipping the permission gate")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newChatCmd())
	root.AddCommand(newSessionsCmd())
	root.AddCommand(newWorkspaceCmd())

	return root
}

// bindConfig wires cobra flags, environment variables (LOOM_*), and an
// optional config file at $LOOM_DATA_DIR/config.yaml into a single viper
// instance, and initialises the process-wide logger from --verbose.
func bindConfig(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvPrefix("loom")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Root().PersistentFlags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	dataDir := v.GetString("data-dir")
	if dataDir == "" {
		dataDir = config.GetLoomDataDir()
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dataDir)
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return fmt.Errorf("read config: %w", err)
		}
	}

	flagDataDir = dataDir
	if p := v.GetString("provider"); p != "" {
		flagProvider = p
	}
	if m := v.GetString("model"); m != "" {
		flagModel = m
	}
	flagYOLO = v.GetBool("yolo")
	flagVerbose = v.GetBool("verbose")

	var logger *zap.Logger
	var err error
	if flagVerbose {
		logger, err = zap.NewDevelopment()
	} else {
		if mkErr := os.MkdirAll(dataDir, 0o755); mkErr == nil {
			cfg := zap.NewProductionConfig()
			cfg.OutputPaths = []string{fmt.Sprintf("%s/loom.log", dataDir)}
			logger, err = cfg.Build()
		} else {
			logger, err = zap.NewProduction()
		}
	}
	if err != nil {
		logger = zap.NewNop()
	}
	log.SetLogger(logger)

	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "loom:", err)
		os.Exit(1)
	}
}
