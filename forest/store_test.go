package forest

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/arcreflex/loom-engine-sub001/llm"
)

// Both stores must satisfy the same invariants; every test runs against each.
func withStores(t *testing.T, fn func(t *testing.T, store Store)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		store, err := NewSQLiteInMemory()
		if err != nil {
			t.Fatalf("NewSQLiteInMemory failed: %v", err)
		}
		defer store.Close()
		fn(t, store)
	})
}

func userMeta() NodeMetadata {
	return NodeMetadata{Source: SourceInfo{Kind: SourceUser}}
}

func TestGetOrCreateRootIdempotentPerPrompt(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		a, err := store.GetOrCreateRoot(ctx, "prompt one")
		if err != nil {
			t.Fatalf("GetOrCreateRoot failed: %v", err)
		}
		b, err := store.GetOrCreateRoot(ctx, "prompt one")
		if err != nil {
			t.Fatalf("GetOrCreateRoot failed: %v", err)
		}
		if a.ID != b.ID {
			t.Errorf("expected same root for same prompt, got %s and %s", a.ID, b.ID)
		}

		c, err := store.GetOrCreateRoot(ctx, "prompt two")
		if err != nil {
			t.Fatalf("GetOrCreateRoot failed: %v", err)
		}
		if c.ID == a.ID {
			t.Error("expected distinct root for distinct prompt")
		}
	})
}

func TestCreateRootAlwaysFresh(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		a, err := store.CreateRoot(ctx, "same prompt")
		if err != nil {
			t.Fatalf("CreateRoot failed: %v", err)
		}
		b, err := store.CreateRoot(ctx, "same prompt")
		if err != nil {
			t.Fatalf("CreateRoot failed: %v", err)
		}
		if a.ID == b.ID {
			t.Error("expected distinct roots")
		}

		roots, err := store.ListRoots(ctx)
		if err != nil {
			t.Fatalf("ListRoots failed: %v", err)
		}
		if len(roots) != 2 {
			t.Errorf("expected 2 roots, got %d", len(roots))
		}
	})
}

func TestAppendChainsMessagesInOrder(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		root, err := store.CreateRoot(ctx, "sys")
		if err != nil {
			t.Fatalf("CreateRoot failed: %v", err)
		}

		last, err := store.Append(ctx, NodeID(root.ID), []llm.Message{
			llm.NewUserMessage("first"),
			llm.NewAssistantTextMessage("second"),
			llm.NewUserMessage("third"),
		}, userMeta())
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		path, err := store.GetPath(ctx, nil, last.ID)
		if err != nil {
			t.Fatalf("GetPath failed: %v", err)
		}
		if path.Root.ID != root.ID {
			t.Errorf("path root mismatch: %s vs %s", path.Root.ID, root.ID)
		}
		msgs := path.Messages()
		if len(msgs) != 3 {
			t.Fatalf("expected 3 messages on path, got %d", len(msgs))
		}
		if msgs[0].MessageRole() != llm.RoleUser || msgs[1].MessageRole() != llm.RoleAssistant {
			t.Errorf("message order not preserved: %v, %v", msgs[0].MessageRole(), msgs[1].MessageRole())
		}

		// Every node's parent chain must terminate at the root of its tree.
		for _, n := range path.Nodes {
			if n.RootID != root.ID {
				t.Errorf("node %s carries root %s, want %s", n.ID, n.RootID, root.ID)
			}
		}
	})
}

func TestAppendUnknownParent(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		_, err := store.Append(context.Background(), NodeID("missing"),
			[]llm.Message{llm.NewUserMessage("x")}, userMeta())
		var parentErr *ParentNotFoundError
		if !errors.As(err, &parentErr) {
			t.Fatalf("expected ParentNotFoundError, got %v", err)
		}
	})
}

func TestGetSiblingsIncludesSelf(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		root, _ := store.CreateRoot(ctx, "sys")
		a, err := store.Append(ctx, NodeID(root.ID), []llm.Message{llm.NewUserMessage("a")}, userMeta())
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		b, err := store.Append(ctx, NodeID(root.ID), []llm.Message{llm.NewUserMessage("b")}, userMeta())
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		siblings, err := store.GetSiblings(ctx, a.ID)
		if err != nil {
			t.Fatalf("GetSiblings failed: %v", err)
		}
		if len(siblings) != 2 {
			t.Fatalf("expected 2 siblings, got %d", len(siblings))
		}
		ids := map[NodeID]bool{siblings[0].ID: true, siblings[1].ID: true}
		if !ids[a.ID] || !ids[b.ID] {
			t.Errorf("siblings must include the node itself: %v", ids)
		}
	})
}

func TestGetPathFromIntermediateNode(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		root, _ := store.CreateRoot(ctx, "sys")
		first, _ := store.Append(ctx, NodeID(root.ID), []llm.Message{llm.NewUserMessage("one")}, userMeta())
		last, _ := store.Append(ctx, first.ID, []llm.Message{
			llm.NewAssistantTextMessage("two"),
			llm.NewUserMessage("three"),
		}, userMeta())

		from := first.ID
		path, err := store.GetPath(ctx, &from, last.ID)
		if err != nil {
			t.Fatalf("GetPath failed: %v", err)
		}
		if len(path.Nodes) != 2 {
			t.Fatalf("expected 2 nodes below 'from', got %d", len(path.Nodes))
		}
		if path.Nodes[len(path.Nodes)-1].ID != last.ID {
			t.Errorf("path must end at requested node")
		}
	})
}

func TestDeleteNodeRefusesChildrenWithoutCascade(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		root, _ := store.CreateRoot(ctx, "sys")
		parent, _ := store.Append(ctx, NodeID(root.ID), []llm.Message{llm.NewUserMessage("p")}, userMeta())
		child, _ := store.Append(ctx, parent.ID, []llm.Message{llm.NewAssistantTextMessage("c")}, userMeta())

		err := store.DeleteNode(ctx, parent.ID, false)
		var hasChildren *HasChildrenError
		if !errors.As(err, &hasChildren) {
			t.Fatalf("expected HasChildrenError, got %v", err)
		}

		// Leaf deletion without cascade is fine.
		if err := store.DeleteNode(ctx, child.ID, false); err != nil {
			t.Fatalf("leaf DeleteNode failed: %v", err)
		}
		if _, err := store.GetNode(ctx, child.ID); err == nil {
			t.Error("expected deleted node to be gone")
		}

		// Parent's child list must drop the reference.
		children, err := store.GetChildren(ctx, parent.ID)
		if err != nil {
			t.Fatalf("GetChildren failed: %v", err)
		}
		if len(children) != 0 {
			t.Errorf("expected no children after deletion, got %d", len(children))
		}
	})
}

func TestDeleteNodeCascadeRemovesSubtree(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		root, _ := store.CreateRoot(ctx, "sys")
		top, _ := store.Append(ctx, NodeID(root.ID), []llm.Message{llm.NewUserMessage("top")}, userMeta())
		mid, _ := store.Append(ctx, top.ID, []llm.Message{llm.NewAssistantTextMessage("mid")}, userMeta())
		leaf, _ := store.Append(ctx, mid.ID, []llm.Message{llm.NewUserMessage("leaf")}, userMeta())

		if err := store.DeleteNode(ctx, top.ID, true); err != nil {
			t.Fatalf("cascade DeleteNode failed: %v", err)
		}
		for _, id := range []NodeID{top.ID, mid.ID, leaf.ID} {
			if _, err := store.GetNode(ctx, id); err == nil {
				t.Errorf("expected node %s removed", id)
			}
		}
	})
}

func TestDeleteRefusedWhenBookmarkWouldOrphan(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		root, _ := store.CreateRoot(ctx, "sys")
		top, _ := store.Append(ctx, NodeID(root.ID), []llm.Message{llm.NewUserMessage("top")}, userMeta())
		leaf, _ := store.Append(ctx, top.ID, []llm.Message{llm.NewAssistantTextMessage("leaf")}, userMeta())

		if _, err := store.SetBookmark(ctx, "pin", leaf.ID); err != nil {
			t.Fatalf("SetBookmark failed: %v", err)
		}

		// Deleting an ancestor subtree containing the bookmarked node is refused.
		err := store.DeleteNode(ctx, top.ID, true)
		var bookmarked *BookmarkedNodeError
		if !errors.As(err, &bookmarked) {
			t.Fatalf("expected BookmarkedNodeError, got %v", err)
		}
		if bookmarked.Title != "pin" {
			t.Errorf("expected bookmark title 'pin', got %q", bookmarked.Title)
		}

		// After removing the bookmark the deletion goes through.
		if err := store.DeleteBookmark(ctx, "pin"); err != nil {
			t.Fatalf("DeleteBookmark failed: %v", err)
		}
		if err := store.DeleteNode(ctx, top.ID, true); err != nil {
			t.Fatalf("DeleteNode after unbookmarking failed: %v", err)
		}
	})
}

func TestDeleteNodesSkipsAlreadyRemovedDescendants(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		root, _ := store.CreateRoot(ctx, "sys")
		top, _ := store.Append(ctx, NodeID(root.ID), []llm.Message{llm.NewUserMessage("top")}, userMeta())
		child, _ := store.Append(ctx, top.ID, []llm.Message{llm.NewAssistantTextMessage("child")}, userMeta())

		if err := store.DeleteNodes(ctx, []NodeID{top.ID, child.ID}); err != nil {
			t.Fatalf("DeleteNodes failed: %v", err)
		}
		if _, err := store.GetNode(ctx, child.ID); err == nil {
			t.Error("expected child removed with subtree")
		}
	})
}

func TestFindAllDescendants(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		root, _ := store.CreateRoot(ctx, "sys")
		top, _ := store.Append(ctx, NodeID(root.ID), []llm.Message{llm.NewUserMessage("top")}, userMeta())
		a, _ := store.Append(ctx, top.ID, []llm.Message{llm.NewAssistantTextMessage("a")}, userMeta())
		b, _ := store.Append(ctx, top.ID, []llm.Message{llm.NewAssistantTextMessage("b")}, userMeta())

		descendants, err := store.FindAllDescendants(ctx, top.ID)
		if err != nil {
			t.Fatalf("FindAllDescendants failed: %v", err)
		}
		if len(descendants) != 2 {
			t.Fatalf("expected 2 descendants, got %d", len(descendants))
		}
		set := map[NodeID]bool{descendants[0]: true, descendants[1]: true}
		if !set[a.ID] || !set[b.ID] {
			t.Errorf("unexpected descendant set: %v", set)
		}
	})
}

func TestListNodeStructures(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		root, _ := store.CreateRoot(ctx, "sys")
		node, _ := store.Append(ctx, NodeID(root.ID), []llm.Message{llm.NewUserMessage("hello")}, userMeta())

		structures, err := store.ListNodeStructures(ctx)
		if err != nil {
			t.Fatalf("ListNodeStructures failed: %v", err)
		}
		if len(structures) != 2 {
			t.Fatalf("expected 2 structures (root + child), got %d", len(structures))
		}

		var found bool
		for _, s := range structures {
			if s.ID == node.ID {
				found = true
				if s.ParentID != NodeID(root.ID) || s.Role != llm.RoleUser {
					t.Errorf("unexpected structure %+v", s)
				}
			}
		}
		if !found {
			t.Error("expected child node in structures")
		}
	})
}

func TestBookmarkLifecycle(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		root, _ := store.CreateRoot(ctx, "sys")
		a, _ := store.Append(ctx, NodeID(root.ID), []llm.Message{llm.NewUserMessage("a")}, userMeta())
		b, _ := store.Append(ctx, NodeID(root.ID), []llm.Message{llm.NewUserMessage("b")}, userMeta())

		if _, err := store.SetBookmark(ctx, "pin", a.ID); err != nil {
			t.Fatalf("SetBookmark failed: %v", err)
		}
		// Moving an existing bookmark keeps the title unique.
		if _, err := store.SetBookmark(ctx, "pin", b.ID); err != nil {
			t.Fatalf("SetBookmark move failed: %v", err)
		}

		got, err := store.GetBookmark(ctx, "pin")
		if err != nil {
			t.Fatalf("GetBookmark failed: %v", err)
		}
		if got.NodeID != b.ID {
			t.Errorf("expected bookmark moved to %s, got %s", b.ID, got.NodeID)
		}

		all, err := store.ListBookmarks(ctx)
		if err != nil {
			t.Fatalf("ListBookmarks failed: %v", err)
		}
		if len(all) != 1 {
			t.Errorf("expected 1 bookmark, got %d", len(all))
		}

		if err := store.DeleteBookmark(ctx, "pin"); err != nil {
			t.Fatalf("DeleteBookmark failed: %v", err)
		}
		var notFound *BookmarkNotFoundError
		if err := store.DeleteBookmark(ctx, "pin"); !errors.As(err, &notFound) {
			t.Errorf("expected BookmarkNotFoundError, got %v", err)
		}
	})
}

func TestMessageSurvivesPersistence(t *testing.T) {
	withStores(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		root, _ := store.CreateRoot(ctx, "sys")
		assistant := llm.AssistantMessage{Content: []llm.ContentBlock{
			llm.TextBlock{Text: "calling a tool"},
			llm.ToolUseBlock{ID: "call_1", Name: "fetch", Parameters: map[string]any{"url": "x"}},
		}}
		node, err := store.Append(ctx, NodeID(root.ID), []llm.Message{assistant}, NodeMetadata{
			Source: SourceInfo{Kind: SourceModel, Provider: llm.ProviderAnthropic, Model: "m", Tools: []string{"fetch"}},
		})
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		got, err := store.GetNode(ctx, node.ID)
		if err != nil {
			t.Fatalf("GetNode failed: %v", err)
		}
		child, ok := got.(*ChildNode)
		if !ok {
			t.Fatalf("expected ChildNode, got %T", got)
		}
		msg, ok := child.Message.(llm.AssistantMessage)
		if !ok {
			t.Fatalf("expected AssistantMessage, got %T", child.Message)
		}
		uses := msg.ToolUses()
		if len(uses) != 1 || uses[0].ID != "call_1" {
			t.Errorf("tool use lost in persistence: %+v", uses)
		}
		if child.Metadata.Source.Kind != SourceModel || child.Metadata.Source.Model != "m" {
			t.Errorf("source info lost: %+v", child.Metadata.Source)
		}
	})
}

func TestSQLiteWithLoggerTracesWrites(t *testing.T) {
	store, err := NewSQLiteInMemory()
	if err != nil {
		t.Fatalf("NewSQLiteInMemory failed: %v", err)
	}
	defer store.Close()

	var buf bytes.Buffer
	store.WithLogger(zerolog.New(&buf).Level(zerolog.DebugLevel))

	ctx := context.Background()
	root, err := store.CreateRoot(ctx, "sys")
	if err != nil {
		t.Fatalf("CreateRoot failed: %v", err)
	}
	node, err := store.Append(ctx, NodeID(root.ID), []llm.Message{llm.NewUserMessage("hi")}, userMeta())
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if !strings.Contains(buf.String(), "appended node chain") {
		t.Errorf("expected append trace, got %q", buf.String())
	}

	buf.Reset()
	if err := store.DeleteNode(ctx, node.ID, false); err != nil {
		t.Fatalf("DeleteNode failed: %v", err)
	}
	if !strings.Contains(buf.String(), "deleted subtree") {
		t.Errorf("expected delete trace, got %q", buf.String())
	}
}
