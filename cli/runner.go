// Package cli implements the loom command surface: interactive chat over a
// persistent conversation forest, tree inspection, and bookmark management.
//
// Information Hiding:
// - Store selection (SQLite vs in-memory) hidden behind openStore
// - Event stream consumption and rendering internalized
// - Engine/provider/tool wiring hidden from command definitions
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/arcreflex/loom-engine-sub001/config"
	"github.com/arcreflex/loom-engine-sub001/engine"
	"github.com/arcreflex/loom-engine-sub001/forest"
	"github.com/arcreflex/loom-engine-sub001/llm"
	"github.com/arcreflex/loom-engine-sub001/tools"
)

// Options carries the global CLI flags.
type Options struct {
	Provider string
	Model    string
	DBPath   string
	N        int
	Verbose  bool
	// From resumes the chat below an existing node instead of the tree root.
	// Resolved as a bookmark title first, then as a raw node ID.
	From string
}

// DefaultOptions returns the options used when no flags are given.
func DefaultOptions() Options {
	return Options{Provider: "anthropic", N: 1}
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

func openStore(path string, log zerolog.Logger) (forest.Store, error) {
	if path == "" {
		return forest.NewMemoryStore(), nil
	}
	store, err := forest.OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	return store.WithLogger(log), nil
}

func buildSettings(opts Options) (config.Settings, error) {
	settings, err := config.New(opts.Provider)
	if err != nil {
		return config.Settings{}, err
	}
	if opts.Model != "" {
		settings.LLM.Model = opts.Model
	}
	if opts.DBPath != "" {
		settings.Store.Path = opts.DBPath
	}
	return settings, nil
}

// Chat starts an interactive session. Each turn appends the user message to
// the current branch, generates below it, and advances to the terminal
// assistant node, so the whole session is one ever-deepening path that later
// runs can branch from.
func Chat(ctx context.Context, systemPrompt string, enableTools bool, opts Options) error {
	settings, err := buildSettings(opts)
	if err != nil {
		return err
	}
	log := newLogger(opts.Verbose)

	store, err := openStore(settings.Store.Path, log)
	if err != nil {
		return err
	}
	defer store.Close()

	registry := tools.NewRegistry()
	var activeTools []string
	if enableTools {
		fetcher := tools.NewHTTPFetcher(time.Duration(settings.Generation.ToolTimeoutSecs) * time.Second)
		if err := fetcher.Register(registry); err != nil {
			return err
		}
		activeTools = registry.Names()
	}

	eng := engine.New(llm.NewRegistry(), store, registry,
		time.Duration(settings.Generation.ToolTimeoutSecs)*time.Second, log)

	var current forest.NodeID
	if opts.From != "" {
		current, err = resolveStartNode(ctx, store, opts.From)
		if err != nil {
			return err
		}
	} else {
		root, err := store.GetOrCreateRoot(ctx, systemPrompt)
		if err != nil {
			return err
		}
		current = forest.NodeID(root.ID)
	}

	genOpts := engine.Options{
		N:                 opts.N,
		Temperature:       &settings.LLM.Temperature,
		MaxTokens:         &settings.LLM.MaxTokens,
		MaxToolIterations: settings.Generation.MaxToolIterations,
	}

	fmt.Printf("Chat with %s (%s). Type 'exit' to quit.\n\n", settings.LLM.Provider, settings.LLM.Model)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		userNode, err := store.Append(ctx, current, []llm.Message{llm.NewUserMessage(input)},
			forest.NodeMetadata{Source: forest.SourceInfo{Kind: forest.SourceUser}})
		if err != nil {
			return err
		}
		current = userNode.ID

		final, err := runGeneration(ctx, eng, userNode.ID, settings.LLM.Provider, settings.LLM.Model, genOpts, activeTools, opts.Verbose)
		if err != nil {
			fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
			continue
		}
		if final != nil {
			current = final.ID
		}
	}

	return scanner.Err()
}

// resolveStartNode interprets ref as a bookmark title, then as a node ID.
func resolveStartNode(ctx context.Context, store forest.Store, ref string) (forest.NodeID, error) {
	b, err := store.GetBookmark(ctx, ref)
	if err == nil {
		return b.NodeID, nil
	}
	var notFound *forest.BookmarkNotFoundError
	if !errors.As(err, &notFound) {
		return "", err
	}
	node, err := store.GetNode(ctx, forest.NodeID(ref))
	if err != nil {
		return "", fmt.Errorf("resolving start point %q: %w", ref, err)
	}
	return node.NodeIdentity(), nil
}

// runGeneration consumes one generation stream, rendering progress, and
// returns the first terminal assistant node.
func runGeneration(ctx context.Context, eng *engine.Engine, nodeID forest.NodeID, provider llm.ProviderName, model string, opts engine.Options, activeTools []string, verbose bool) (*forest.ChildNode, error) {
	stream := eng.GenerateStream(ctx, nodeID, provider, model, opts, activeTools)

	var final *forest.ChildNode
	for ev := range stream.Events() {
		switch ev := ev.(type) {
		case engine.ProviderRequestEvent:
			if verbose {
				fmt.Fprintf(os.Stderr, "[request] %s %s (%d messages)\n",
					ev.Provider, ev.Request.Model, len(ev.Request.Messages))
			}
		case engine.AssistantNodeEvent:
			printAssistantNode(ev.Node)
		case engine.ToolResultNodeEvent:
			if verbose {
				fmt.Fprintf(os.Stderr, "[tool results appended at %s]\n", ev.Node.ID)
			}
		case engine.DoneEvent:
			if len(ev.Final) > 0 {
				final = ev.Final[0]
			}
			for i := 1; i < len(ev.Final); i++ {
				fmt.Printf("--- alternative %d: node %s ---\n", i+1, ev.Final[i].ID)
			}
		case engine.ErrorEvent:
			return nil, ev.Err
		}
	}
	return final, nil
}

func printAssistantNode(node *forest.ChildNode) {
	assistant, ok := node.Message.(llm.AssistantMessage)
	if !ok {
		return
	}
	if text, ok := llm.ExtractText(assistant.Content); ok {
		fmt.Printf("\n%s\n\n", text)
	}
	for _, call := range assistant.ToolUses() {
		fmt.Printf("[calling %s]\n", call.Name)
	}
}

// Trees prints every root with its node topology.
func Trees(ctx context.Context, opts Options) error {
	settings, err := buildSettings(opts)
	if err != nil {
		return err
	}
	store, err := openStore(settings.Store.Path, zerolog.Nop())
	if err != nil {
		return err
	}
	defer store.Close()

	roots, err := store.ListRoots(ctx)
	if err != nil {
		return err
	}
	structures, err := store.ListNodeStructures(ctx)
	if err != nil {
		return err
	}

	byRoot := make(map[forest.RootID][]forest.NodeStructure)
	for _, s := range structures {
		if s.ParentID != "" {
			byRoot[s.RootID] = append(byRoot[s.RootID], s)
		}
	}

	for _, root := range roots {
		prompt := root.Config.SystemPrompt
		if prompt == "" {
			prompt = "(no system prompt)"
		}
		fmt.Printf("%s  %s\n", root.ID, prompt)
		for _, s := range byRoot[root.ID] {
			fmt.Printf("  %s  parent=%s  role=%s  %s\n",
				s.ID, s.ParentID, s.Role, s.Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// Siblings prints the alternatives at a branch point: every child of the
// given node's parent, the node itself included.
func Siblings(ctx context.Context, nodeID string, opts Options) error {
	settings, err := buildSettings(opts)
	if err != nil {
		return err
	}
	store, err := openStore(settings.Store.Path, zerolog.Nop())
	if err != nil {
		return err
	}
	defer store.Close()

	siblings, err := store.GetSiblings(ctx, forest.NodeID(nodeID))
	if err != nil {
		return err
	}
	for _, node := range siblings {
		marker := " "
		if node.ID == forest.NodeID(nodeID) {
			marker = "*"
		}
		fmt.Printf("%s %s  %s\n", marker, node.ID, messageSnippet(node.Message))
	}
	return nil
}

func messageSnippet(msg llm.Message) string {
	text, _ := llm.MessageText(msg)
	text = strings.ReplaceAll(text, "\n", " ")
	if runes := []rune(text); len(runes) > 72 {
		text = string(runes[:72]) + "..."
	}
	return fmt.Sprintf("[%s] %s", msg.MessageRole(), text)
}

// ListBookmarks prints every bookmark.
func ListBookmarks(ctx context.Context, opts Options) error {
	settings, err := buildSettings(opts)
	if err != nil {
		return err
	}
	store, err := openStore(settings.Store.Path, zerolog.Nop())
	if err != nil {
		return err
	}
	defer store.Close()

	bookmarks, err := store.ListBookmarks(ctx)
	if err != nil {
		return err
	}
	if len(bookmarks) == 0 {
		fmt.Println("No bookmarks.")
		return nil
	}
	for _, b := range bookmarks {
		fmt.Printf("%-20s -> node %s (tree %s, updated %s)\n",
			b.Title, b.NodeID, b.RootID, b.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

// SetBookmark creates or moves a bookmark.
func SetBookmark(ctx context.Context, title, nodeID string, opts Options) error {
	settings, err := buildSettings(opts)
	if err != nil {
		return err
	}
	store, err := openStore(settings.Store.Path, zerolog.Nop())
	if err != nil {
		return err
	}
	defer store.Close()

	b, err := store.SetBookmark(ctx, title, forest.NodeID(nodeID))
	if err != nil {
		return err
	}
	fmt.Printf("Bookmark %q -> node %s\n", b.Title, b.NodeID)
	return nil
}

// DeleteBookmark removes a bookmark by title.
func DeleteBookmark(ctx context.Context, title string, opts Options) error {
	settings, err := buildSettings(opts)
	if err != nil {
		return err
	}
	store, err := openStore(settings.Store.Path, zerolog.Nop())
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeleteBookmark(ctx, title); err != nil {
		return err
	}
	fmt.Printf("Deleted bookmark %q\n", title)
	return nil
}
