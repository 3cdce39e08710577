// Package main provides the loom CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/arcreflex/loom-engine-sub001/cli"
)

var (
	// Global flags
	provider string
	model    string
	dbPath   string
	verbose  bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "loom",
		Short: "Branching conversations with interchangeable LLM backends",
		Long: `Hold branching, tree-structured conversations with interchangeable
LLM backends, including multi-round tool calling.

Conversations persist in a SQLite forest: every turn is an immutable node,
any node can be branched from, and bookmarks pin the branches you care about.`,
	}

	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "anthropic", "LLM provider (anthropic, openai, google)")
	rootCmd.PersistentFlags().StringVarP(&model, "model", "m", "", "Model name (defaults per provider)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", ".loom/loom.db", "Database path for the conversation forest")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	rootCmd.AddCommand(chatCmd())
	rootCmd.AddCommand(treesCmd())
	rootCmd.AddCommand(siblingsCmd())
	rootCmd.AddCommand(bookmarksCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func globalOptions() cli.Options {
	return cli.Options{
		Provider: provider,
		Model:    model,
		DBPath:   dbPath,
		Verbose:  verbose,
		N:        1,
	}
}

func chatCmd() *cobra.Command {
	var systemPrompt string
	var enableTools bool
	var n int
	var from string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Start an interactive chat session against the conversation forest.

Each turn extends the current branch; rerunning chat with the same system
prompt resumes the same tree, and other branches stay intact.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := globalOptions()
			opts.N = n
			opts.From = from
			return cli.Chat(context.Background(), systemPrompt, enableTools, opts)
		},
	}

	cmd.Flags().StringVar(&systemPrompt, "system", "", "System prompt for the conversation tree")
	cmd.Flags().BoolVar(&enableTools, "tools", false, "Expose built-in tools to the model")
	cmd.Flags().IntVarP(&n, "n", "n", 1, "Completions per turn (tools require 1)")
	cmd.Flags().StringVar(&from, "from", "", "Resume below a bookmark title or node ID")

	return cmd
}

func siblingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "siblings [node-id]",
		Short: "List the alternatives at a branch point",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Siblings(context.Background(), args[0], globalOptions())
		},
	}
}

func treesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trees",
		Short: "List conversation trees and their nodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.Trees(context.Background(), globalOptions())
		},
	}
}

func bookmarksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookmarks",
		Short: "Manage bookmarks",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all bookmarks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.ListBookmarks(context.Background(), globalOptions())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set [title] [node-id]",
		Short: "Create or move a bookmark",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.SetBookmark(context.Background(), args[0], args[1], globalOptions())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete [title]",
		Short: "Delete a bookmark",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.DeleteBookmark(context.Background(), args[0], globalOptions())
		},
	})

	return cmd
}
