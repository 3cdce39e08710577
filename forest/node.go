// Package forest provides the branching conversation store: a multi-rooted
// tree of immutable nodes, one per conversation turn.
//
// Information Hiding:
// - Nodes are stored as an arena keyed by id; parent/child relationships are
//   id references, never object pointers
// - Stores hand out copies; callers can never mutate persisted state
package forest

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/arcreflex/loom-engine-sub001/llm"
)

// NodeID identifies any node, roots included.
type NodeID string

// RootID identifies the root of a tree. A root's NodeID and RootID carry the
// same value.
type RootID string

// NewNodeID returns a fresh random node id.
func NewNodeID() NodeID {
	return NodeID(uuid.NewString())
}

// NewRootID returns a fresh random root id.
func NewRootID() RootID {
	return RootID(uuid.NewString())
}

// SourceKind tags the provenance of a child node.
type SourceKind string

const (
	// SourceUser marks content appended by the caller.
	SourceUser SourceKind = "user"
	// SourceModel marks content generated by a provider.
	SourceModel SourceKind = "model"
	// SourceSplit marks content divided out of a prior node.
	SourceSplit SourceKind = "split"
)

// SourceInfo records where a node's message came from. Provider, Model and
// Tools are set only for SourceModel.
type SourceInfo struct {
	Kind     SourceKind       `json:"kind"`
	Provider llm.ProviderName `json:"provider,omitempty"`
	Model    string           `json:"model,omitempty"`
	Tools    []string         `json:"tools,omitempty"`
}

// NodeMetadata is the per-node bookkeeping attached at append time.
type NodeMetadata struct {
	Timestamp time.Time  `json:"timestamp"`
	Source    SourceInfo `json:"source_info"`
}

// RootConfig is the configuration shared by every path in one tree.
type RootConfig struct {
	SystemPrompt string `json:"system_prompt"`
}

// Node is the sealed union over root and child nodes.
type Node interface {
	// NodeIdentity returns the node's id in the shared id space.
	NodeIdentity() NodeID
	// TreeRoot returns the id of the root this node belongs to.
	TreeRoot() RootID
	// ChildIdentities lists the node's children. Back-references only: a
	// parent does not own its children beyond listing them.
	ChildIdentities() []NodeID

	isNode()
}

// RootNode anchors one tree. It carries configuration, not a message.
type RootNode struct {
	ID        RootID
	Config    RootConfig
	ChildIDs  []NodeID
	CreatedAt time.Time
}

func (n *RootNode) NodeIdentity() NodeID        { return NodeID(n.ID) }
func (n *RootNode) TreeRoot() RootID            { return n.ID }
func (n *RootNode) ChildIdentities() []NodeID   { return n.ChildIDs }
func (n *RootNode) isNode()                     {}

// ChildNode is one conversation turn. Nodes are immutable once created:
// editing content means appending a new node, never mutating this one.
type ChildNode struct {
	ID       NodeID
	ParentID NodeID
	RootID   RootID
	ChildIDs []NodeID
	Message  llm.Message
	Metadata NodeMetadata
}

func (n *ChildNode) NodeIdentity() NodeID      { return n.ID }
func (n *ChildNode) TreeRoot() RootID          { return n.RootID }
func (n *ChildNode) ChildIdentities() []NodeID { return n.ChildIDs }
func (n *ChildNode) isNode()                   {}

// Bookmark is a weak named pointer into the forest. Titles are unique.
// Bookmarks never own the node they reference, but deletion of that node (or
// an ancestor subtree containing it) is refused while the bookmark exists.
type Bookmark struct {
	Title     string    `json:"title"`
	NodeID    NodeID    `json:"node_id"`
	RootID    RootID    `json:"root_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NodeStructure is a flattened topology record for visualization: ids and
// provenance without message content. ParentID is empty for roots.
type NodeStructure struct {
	ID        NodeID    `json:"id"`
	ParentID  NodeID    `json:"parent_id,omitempty"`
	RootID    RootID    `json:"root_id"`
	Timestamp time.Time `json:"timestamp"`
	Role      llm.Role  `json:"role,omitempty"`
}

// Path is a root plus the ordered ancestor chain ending at a requested node.
type Path struct {
	Root  *RootNode
	Nodes []*ChildNode
}

// Messages returns the canonical message sequence along the path.
func (p *Path) Messages() []llm.Message {
	msgs := make([]llm.Message, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		msgs = append(msgs, n.Message)
	}
	return msgs
}

// clone helpers so stores can hand out copies without aliasing internal state

func (n *RootNode) clone() *RootNode {
	c := *n
	c.ChildIDs = append([]NodeID(nil), n.ChildIDs...)
	return &c
}

func (n *ChildNode) clone() *ChildNode {
	c := *n
	c.ChildIDs = append([]NodeID(nil), n.ChildIDs...)
	return &c
}

// marshalMessage serializes a canonical message for storage.
func marshalMessage(msg llm.Message) ([]byte, error) {
	return json.Marshal(msg)
}

// unmarshalMessage restores a canonical message from storage.
func unmarshalMessage(data []byte) (llm.Message, error) {
	return llm.UnmarshalMessage(data)
}
