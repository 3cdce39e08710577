// Store interface and the in-memory arena implementation.
//
// The memory store backs tests and ephemeral sessions; the SQLite store in
// sqlite.go is the durable one. Both enforce the same invariants: acyclic
// trees, immutable nodes, and bookmark-guarded deletion.

package forest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/arcreflex/loom-engine-sub001/llm"
)

// Store is the conversation forest boundary consumed by the engine.
//
// Implementations must support concurrent appends to different parents;
// concurrent appends under the same parent produce distinct siblings, never
// lost writes.
type Store interface {
	// GetOrCreateRoot returns the existing root with the given system
	// prompt, or creates one. Idempotent per distinct prompt.
	GetOrCreateRoot(ctx context.Context, systemPrompt string) (*RootNode, error)

	// CreateRoot always creates a fresh root.
	CreateRoot(ctx context.Context, systemPrompt string) (*RootNode, error)

	// ListRoots returns every root in the forest.
	ListRoots(ctx context.Context) ([]*RootNode, error)

	// Append creates one node per message in order, chaining parent to
	// child under parentID, and returns the last node created. Fails with
	// ParentNotFoundError when parentID is unknown.
	Append(ctx context.Context, parentID NodeID, messages []llm.Message, meta NodeMetadata) (*ChildNode, error)

	// GetNode returns the node with the given id (root or child).
	GetNode(ctx context.Context, id NodeID) (Node, error)

	// GetPath returns the root and the ordered ancestor chain ending at
	// to. When from is non-nil the chain starts just below from.
	GetPath(ctx context.Context, from *NodeID, to NodeID) (*Path, error)

	// GetChildren returns the node's children in insertion order.
	GetChildren(ctx context.Context, id NodeID) ([]*ChildNode, error)

	// GetSiblings returns all children of the node's parent, the node
	// itself included.
	GetSiblings(ctx context.Context, id NodeID) ([]*ChildNode, error)

	// DeleteNode removes a node. With cascade it removes the whole
	// subtree; without, it refuses when the node has children. Deletion
	// that would orphan a bookmark fails with BookmarkedNodeError.
	DeleteNode(ctx context.Context, id NodeID, cascade bool) error

	// DeleteNodes removes the given nodes (each with its subtree),
	// skipping ids that are descendants of other ids in the set.
	DeleteNodes(ctx context.Context, ids []NodeID) error

	// FindAllDescendants returns the ids of every node below the given
	// one, not including the node itself.
	FindAllDescendants(ctx context.Context, id NodeID) ([]NodeID, error)

	// ListNodeStructures returns the flattened topology of the whole
	// forest, without message content.
	ListNodeStructures(ctx context.Context) ([]NodeStructure, error)

	// SetBookmark creates or moves a bookmark (keyed by title).
	SetBookmark(ctx context.Context, title string, nodeID NodeID) (*Bookmark, error)

	// GetBookmark returns the bookmark with the given title.
	GetBookmark(ctx context.Context, title string) (*Bookmark, error)

	// ListBookmarks returns all bookmarks ordered by title.
	ListBookmarks(ctx context.Context) ([]Bookmark, error)

	// DeleteBookmark removes a bookmark. Removing the bookmark never
	// touches the node it pointed at.
	DeleteBookmark(ctx context.Context, title string) error

	// Close releases underlying resources.
	Close() error
}

// MemoryStore is an in-process Store: an arena of nodes keyed by id behind
// one RWMutex.
type MemoryStore struct {
	mu        sync.RWMutex
	roots     map[RootID]*RootNode
	nodes     map[NodeID]*ChildNode
	rootOrder []RootID
	bookmarks map[string]Bookmark
}

// NewMemoryStore creates an empty in-memory forest.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		roots:     make(map[RootID]*RootNode),
		nodes:     make(map[NodeID]*ChildNode),
		bookmarks: make(map[string]Bookmark),
	}
}

// GetOrCreateRoot returns the root with a matching system prompt, creating
// it if absent.
func (s *MemoryStore) GetOrCreateRoot(_ context.Context, systemPrompt string) (*RootNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.rootOrder {
		if root := s.roots[id]; root.Config.SystemPrompt == systemPrompt {
			return root.clone(), nil
		}
	}
	return s.createRootLocked(systemPrompt), nil
}

// CreateRoot always creates a fresh root.
func (s *MemoryStore) CreateRoot(_ context.Context, systemPrompt string) (*RootNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createRootLocked(systemPrompt), nil
}

func (s *MemoryStore) createRootLocked(systemPrompt string) *RootNode {
	root := &RootNode{
		ID:        NewRootID(),
		Config:    RootConfig{SystemPrompt: systemPrompt},
		CreatedAt: time.Now().UTC(),
	}
	s.roots[root.ID] = root
	s.rootOrder = append(s.rootOrder, root.ID)
	return root.clone()
}

// ListRoots returns every root in creation order.
func (s *MemoryStore) ListRoots(_ context.Context) ([]*RootNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*RootNode, 0, len(s.rootOrder))
	for _, id := range s.rootOrder {
		out = append(out, s.roots[id].clone())
	}
	return out, nil
}

// Append creates one node per message, chaining parent to child.
func (s *MemoryStore) Append(_ context.Context, parentID NodeID, messages []llm.Message, meta NodeMetadata) (*ChildNode, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("append requires at least one message")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rootID, ok := s.resolveRootLocked(parentID)
	if !ok {
		return nil, &ParentNotFoundError{ID: parentID}
	}

	ts := meta.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	var last *ChildNode
	for _, msg := range messages {
		node := &ChildNode{
			ID:       NewNodeID(),
			ParentID: parentID,
			RootID:   rootID,
			Message:  msg,
			Metadata: NodeMetadata{Timestamp: ts, Source: meta.Source},
		}
		s.nodes[node.ID] = node
		s.addChildLocked(parentID, node.ID)
		parentID = node.ID
		last = node
	}
	return last.clone(), nil
}

func (s *MemoryStore) resolveRootLocked(id NodeID) (RootID, bool) {
	if root, ok := s.roots[RootID(id)]; ok {
		return root.ID, true
	}
	if node, ok := s.nodes[id]; ok {
		return node.RootID, true
	}
	return "", false
}

func (s *MemoryStore) addChildLocked(parentID, childID NodeID) {
	if root, ok := s.roots[RootID(parentID)]; ok {
		root.ChildIDs = append(root.ChildIDs, childID)
		return
	}
	if node, ok := s.nodes[parentID]; ok {
		node.ChildIDs = append(node.ChildIDs, childID)
	}
}

// GetNode returns the node with the given id.
func (s *MemoryStore) GetNode(_ context.Context, id NodeID) (Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getNodeLocked(id)
}

func (s *MemoryStore) getNodeLocked(id NodeID) (Node, error) {
	if root, ok := s.roots[RootID(id)]; ok {
		return root.clone(), nil
	}
	if node, ok := s.nodes[id]; ok {
		return node.clone(), nil
	}
	return nil, &NotFoundError{ID: id}
}

// GetPath returns the root and ancestor chain ending at to.
func (s *MemoryStore) GetPath(_ context.Context, from *NodeID, to NodeID) (*Path, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chain []*ChildNode
	id := to
	for {
		if root, ok := s.roots[RootID(id)]; ok {
			return truncatePath(&Path{Root: root.clone(), Nodes: chain}, from), nil
		}
		node, ok := s.nodes[id]
		if !ok {
			return nil, &NotFoundError{ID: id}
		}
		chain = append([]*ChildNode{node.clone()}, chain...)
		id = node.ParentID
	}
}

// truncatePath drops everything at or above from when from is set.
func truncatePath(p *Path, from *NodeID) *Path {
	if from == nil || *from == NodeID(p.Root.ID) {
		return p
	}
	for i, n := range p.Nodes {
		if n.ID == *from {
			p.Nodes = p.Nodes[i+1:]
			return p
		}
	}
	return p
}

// GetChildren returns a node's children in insertion order.
func (s *MemoryStore) GetChildren(_ context.Context, id NodeID) ([]*ChildNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, err := s.getNodeLocked(id)
	if err != nil {
		return nil, err
	}
	return s.childrenLocked(node.ChildIdentities()), nil
}

func (s *MemoryStore) childrenLocked(ids []NodeID) []*ChildNode {
	out := make([]*ChildNode, 0, len(ids))
	for _, id := range ids {
		if node, ok := s.nodes[id]; ok {
			out = append(out, node.clone())
		}
	}
	return out
}

// GetSiblings returns all children of the node's parent, itself included.
func (s *MemoryStore) GetSiblings(_ context.Context, id NodeID) ([]*ChildNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[id]
	if !ok {
		return nil, &NotFoundError{ID: id}
	}
	parent, err := s.getNodeLocked(node.ParentID)
	if err != nil {
		return nil, err
	}
	return s.childrenLocked(parent.ChildIdentities()), nil
}

// FindAllDescendants returns every node id below the given node.
func (s *MemoryStore) FindAllDescendants(_ context.Context, id NodeID) ([]NodeID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, err := s.getNodeLocked(id)
	if err != nil {
		return nil, err
	}
	return s.descendantsLocked(node.ChildIdentities()), nil
}

func (s *MemoryStore) descendantsLocked(frontier []NodeID) []NodeID {
	var out []NodeID
	queue := append([]NodeID(nil), frontier...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		node, ok := s.nodes[id]
		if !ok {
			continue
		}
		out = append(out, id)
		queue = append(queue, node.ChildIDs...)
	}
	return out
}

// DeleteNode removes a node, optionally with its subtree.
func (s *MemoryStore) DeleteNode(_ context.Context, id NodeID, cascade bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteNodeLocked(id, cascade)
}

func (s *MemoryStore) deleteNodeLocked(id NodeID, cascade bool) error {
	if root, ok := s.roots[RootID(id)]; ok {
		return s.deleteRootLocked(root, cascade)
	}

	node, ok := s.nodes[id]
	if !ok {
		return &NotFoundError{ID: id}
	}
	if !cascade && len(node.ChildIDs) > 0 {
		return &HasChildrenError{ID: id}
	}

	doomed := append([]NodeID{id}, s.descendantsLocked(node.ChildIDs)...)
	if err := s.checkBookmarksLocked(doomed); err != nil {
		return err
	}

	for _, d := range doomed {
		delete(s.nodes, d)
	}
	s.removeChildRefLocked(node.ParentID, id)
	return nil
}

func (s *MemoryStore) deleteRootLocked(root *RootNode, cascade bool) error {
	if !cascade && len(root.ChildIDs) > 0 {
		return &HasChildrenError{ID: NodeID(root.ID)}
	}
	doomed := append([]NodeID{NodeID(root.ID)}, s.descendantsLocked(root.ChildIDs)...)
	if err := s.checkBookmarksLocked(doomed); err != nil {
		return err
	}
	for _, d := range doomed {
		delete(s.nodes, d)
	}
	delete(s.roots, root.ID)
	for i, id := range s.rootOrder {
		if id == root.ID {
			s.rootOrder = append(s.rootOrder[:i], s.rootOrder[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) checkBookmarksLocked(doomed []NodeID) error {
	set := make(map[NodeID]bool, len(doomed))
	for _, id := range doomed {
		set[id] = true
	}
	for _, b := range s.bookmarks {
		if set[b.NodeID] {
			return &BookmarkedNodeError{ID: b.NodeID, Title: b.Title}
		}
	}
	return nil
}

func (s *MemoryStore) removeChildRefLocked(parentID, childID NodeID) {
	var ids *[]NodeID
	if root, ok := s.roots[RootID(parentID)]; ok {
		ids = &root.ChildIDs
	} else if node, ok := s.nodes[parentID]; ok {
		ids = &node.ChildIDs
	} else {
		return
	}
	for i, id := range *ids {
		if id == childID {
			*ids = append((*ids)[:i], (*ids)[i+1:]...)
			return
		}
	}
}

// DeleteNodes removes each listed node with its subtree, skipping ids whose
// ancestors are also in the set.
func (s *MemoryStore) DeleteNodes(_ context.Context, ids []NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if _, err := s.getNodeLocked(id); err != nil {
			// Already removed as part of an earlier subtree.
			continue
		}
		if err := s.deleteNodeLocked(id, true); err != nil {
			return err
		}
	}
	return nil
}

// ListNodeStructures returns the flattened topology of the forest.
func (s *MemoryStore) ListNodeStructures(_ context.Context) ([]NodeStructure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []NodeStructure
	for _, rootID := range s.rootOrder {
		root := s.roots[rootID]
		out = append(out, NodeStructure{
			ID:        NodeID(root.ID),
			RootID:    root.ID,
			Timestamp: root.CreatedAt,
		})
		queue := append([]NodeID(nil), root.ChildIDs...)
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			node, ok := s.nodes[id]
			if !ok {
				continue
			}
			out = append(out, NodeStructure{
				ID:        node.ID,
				ParentID:  node.ParentID,
				RootID:    node.RootID,
				Timestamp: node.Metadata.Timestamp,
				Role:      node.Message.MessageRole(),
			})
			queue = append(queue, node.ChildIDs...)
		}
	}
	return out, nil
}

// SetBookmark creates or moves a bookmark.
func (s *MemoryStore) SetBookmark(_ context.Context, title string, nodeID NodeID) (*Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, err := s.getNodeLocked(nodeID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	b, ok := s.bookmarks[title]
	if !ok {
		b = Bookmark{Title: title, CreatedAt: now}
	}
	b.NodeID = nodeID
	b.RootID = node.TreeRoot()
	b.UpdatedAt = now
	s.bookmarks[title] = b
	return &b, nil
}

// GetBookmark returns the bookmark with the given title.
func (s *MemoryStore) GetBookmark(_ context.Context, title string) (*Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookmarks[title]
	if !ok {
		return nil, &BookmarkNotFoundError{Title: title}
	}
	return &b, nil
}

// ListBookmarks returns all bookmarks ordered by title.
func (s *MemoryStore) ListBookmarks(_ context.Context) ([]Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Bookmark, 0, len(s.bookmarks))
	for _, b := range s.bookmarks {
		out = append(out, b)
	}
	sortBookmarks(out)
	return out, nil
}

// DeleteBookmark removes a bookmark by title.
func (s *MemoryStore) DeleteBookmark(_ context.Context, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.bookmarks[title]; !ok {
		return &BookmarkNotFoundError{Title: title}
	}
	delete(s.bookmarks, title)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

func sortBookmarks(bs []Bookmark) {
	sort.Slice(bs, func(i, j int) bool { return bs[i].Title < bs[j].Title })
}

// Verify MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
