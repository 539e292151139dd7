// Package main provides the CLI entry point for the Memento memories bot.
//
// Memento is a Telegram bot that stores shared event memories. It runs
// an LLM agent loop with tools for creating events, saving memories
// with photos, and sharing invite links.
//
// # Basic Usage
//
// Start the bot:
//
//	memento serve --config memento.yaml
//
// Validate a configuration file:
//
//	memento config check --config memento.yaml
//
// # Environment Variables
//
// Configuration values can reference environment variables, which are
// expanded when the file is loaded:
//
//   - TELEGRAM_BOT_TOKEN: Telegram bot token
//   - ANTHROPIC_API_KEY: Anthropic API key for Claude models
//   - OPENAI_API_KEY: OpenAI API key for GPT models
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mementolabs/memento/internal/config"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()

	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// This is separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "memento",
		Short: "Memento - Telegram memories bot",
		Long: `Memento connects Telegram to an LLM agent that stores shared event memories.

Supported providers: Anthropic (Claude), OpenAI (GPT)
Storage: SQLite for records, S3-compatible object storage for photos`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildConfigCmd(),
	)

	return rootCmd
}

// buildConfigCmd creates the "config" command group.
func buildConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(buildConfigCheckCmd())
	return cmd
}

func buildConfigCheckCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration OK")
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "memento.yaml",
		"Path to YAML configuration file")

	return cmd
}
