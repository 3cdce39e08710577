// SQLite-backed forest storage.
//
// Information Hiding:
// - SQLite connection management hidden behind the Store interface
// - Schema and serialization details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling; a mutex serializes
//   multi-statement operations so tree invariants hold under concurrency

package forest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"github.com/arcreflex/loom-engine-sub001/llm"
)

// SQLiteStore implements Store using a SQLite database file. Child order is
// preserved by an autoincrement rowid; parent links live in a parent_id
// column, so child id lists are derived by query rather than stored.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex
	log zerolog.Logger
}

// WithLogger sets the logger used for debug-level operation tracing.
func (s *SQLiteStore) WithLogger(log zerolog.Logger) *SQLiteStore {
	s.log = log
	return s
}

// OpenSQLite opens or creates a SQLite forest at the given path. Creates
// parent directories if they don't exist.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store := &SQLiteStore{db: db, log: zerolog.Nop()}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSQLiteInMemory creates an in-memory forest database (useful for testing).
func NewSQLiteInMemory() (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	// The in-memory database lives in a single connection.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db, log: zerolog.Nop()}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS roots (
			root_id TEXT PRIMARY KEY,
			system_prompt TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS nodes (
			node_id TEXT PRIMARY KEY,
			parent_id TEXT NOT NULL,
			root_id TEXT NOT NULL,
			message TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			source_kind TEXT NOT NULL,
			source_provider TEXT,
			source_model TEXT,
			source_tools TEXT,
			FOREIGN KEY (root_id) REFERENCES roots(root_id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_nodes_parent
		ON nodes(parent_id);

		CREATE INDEX IF NOT EXISTS idx_nodes_root
		ON nodes(root_id);

		CREATE TABLE IF NOT EXISTS bookmarks (
			title TEXT PRIMARY KEY,
			node_id TEXT NOT NULL,
			root_id TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// GetOrCreateRoot returns the oldest root with a matching system prompt,
// creating one if absent.
func (s *SQLiteStore) GetOrCreateRoot(ctx context.Context, systemPrompt string) (*RootNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var id string
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT root_id, created_at FROM roots WHERE system_prompt = ? ORDER BY created_at ASC LIMIT 1",
		systemPrompt).Scan(&id, &createdAt)
	if err == sql.ErrNoRows {
		return s.insertRoot(ctx, systemPrompt)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query roots: %w", err)
	}

	return s.loadRoot(ctx, RootID(id), systemPrompt, createdAt)
}

// CreateRoot always creates a fresh root.
func (s *SQLiteStore) CreateRoot(ctx context.Context, systemPrompt string) (*RootNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertRoot(ctx, systemPrompt)
}

func (s *SQLiteStore) insertRoot(ctx context.Context, systemPrompt string) (*RootNode, error) {
	root := &RootNode{
		ID:        NewRootID(),
		Config:    RootConfig{SystemPrompt: systemPrompt},
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO roots (root_id, system_prompt, created_at) VALUES (?, ?, ?)",
		string(root.ID), systemPrompt, root.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to insert root: %w", err)
	}
	return root, nil
}

func (s *SQLiteStore) loadRoot(ctx context.Context, id RootID, systemPrompt, createdAt string) (*RootNode, error) {
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid root timestamp %q: %w", createdAt, err)
	}
	children, err := s.childIDs(ctx, NodeID(id))
	if err != nil {
		return nil, err
	}
	return &RootNode{
		ID:        id,
		Config:    RootConfig{SystemPrompt: systemPrompt},
		ChildIDs:  children,
		CreatedAt: ts,
	}, nil
}

// childIDs derives a node's children from the parent_id column, in insertion
// order.
func (s *SQLiteStore) childIDs(ctx context.Context, parentID NodeID) ([]NodeID, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT node_id FROM nodes WHERE parent_id = ? ORDER BY rowid ASC",
		string(parentID))
	if err != nil {
		return nil, fmt.Errorf("failed to query children: %w", err)
	}
	defer rows.Close()

	var ids []NodeID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan child id: %w", err)
		}
		ids = append(ids, NodeID(id))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating children: %w", err)
	}
	return ids, nil
}

// ListRoots returns every root ordered by creation time.
func (s *SQLiteStore) ListRoots(ctx context.Context) ([]*RootNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT root_id, system_prompt, created_at FROM roots ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query roots: %w", err)
	}

	type rootRow struct {
		id, prompt, createdAt string
	}
	var raw []rootRow
	for rows.Next() {
		var r rootRow
		if err := rows.Scan(&r.id, &r.prompt, &r.createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan root: %w", err)
		}
		raw = append(raw, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating roots: %w", err)
	}
	rows.Close()

	roots := []*RootNode{}
	for _, r := range raw {
		root, err := s.loadRoot(ctx, RootID(r.id), r.prompt, r.createdAt)
		if err != nil {
			return nil, err
		}
		roots = append(roots, root)
	}
	return roots, nil
}

// Append creates one node per message, chaining parent to child, inside one
// transaction.
func (s *SQLiteStore) Append(ctx context.Context, parentID NodeID, messages []llm.Message, meta NodeMetadata) (*ChildNode, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("append requires at least one message")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rootID, ok, err := s.resolveRoot(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &ParentNotFoundError{ID: parentID}
	}

	ts := meta.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	toolsJSON, err := marshalTools(meta.Source.Tools)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	// defer tx.Rollback() is safe even after Commit() - it becomes a no-op
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO nodes
		(node_id, parent_id, root_id, message, timestamp, source_kind, source_provider, source_model, source_tools)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	var last *ChildNode
	for _, msg := range messages {
		payload, err := marshalMessage(msg)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize message: %w", err)
		}
		node := &ChildNode{
			ID:       NewNodeID(),
			ParentID: parentID,
			RootID:   rootID,
			Message:  msg,
			Metadata: NodeMetadata{Timestamp: ts, Source: meta.Source},
		}
		_, err = stmt.ExecContext(ctx,
			string(node.ID), string(parentID), string(rootID),
			string(payload), ts.Format(time.RFC3339Nano),
			string(meta.Source.Kind),
			nullable(string(meta.Source.Provider)), nullable(meta.Source.Model), toolsJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert node: %w", err)
		}
		parentID = node.ID
		last = node
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug().
		Str("root", string(rootID)).
		Str("tip", string(last.ID)).
		Int("messages", len(messages)).
		Msg("appended node chain")
	return last, nil
}

func (s *SQLiteStore) resolveRoot(ctx context.Context, id NodeID) (RootID, bool, error) {
	var rootID string
	err := s.db.QueryRowContext(ctx,
		"SELECT root_id FROM roots WHERE root_id = ?", string(id)).Scan(&rootID)
	if err == nil {
		return RootID(rootID), true, nil
	}
	if err != sql.ErrNoRows {
		return "", false, fmt.Errorf("failed to resolve root: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT root_id FROM nodes WHERE node_id = ?", string(id)).Scan(&rootID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve node root: %w", err)
	}
	return RootID(rootID), true, nil
}

// GetNode returns the node with the given id.
func (s *SQLiteStore) GetNode(ctx context.Context, id NodeID) (Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getNode(ctx, id)
}

func (s *SQLiteStore) getNode(ctx context.Context, id NodeID) (Node, error) {
	var prompt, createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT system_prompt, created_at FROM roots WHERE root_id = ?",
		string(id)).Scan(&prompt, &createdAt)
	if err == nil {
		return s.loadRoot(ctx, RootID(id), prompt, createdAt)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to query root: %w", err)
	}

	return s.getChildNode(ctx, id)
}

func (s *SQLiteStore) getChildNode(ctx context.Context, id NodeID) (*ChildNode, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT node_id, parent_id, root_id, message, timestamp, source_kind, source_provider, source_model, source_tools
		FROM nodes WHERE node_id = ?`, string(id))

	node, err := scanChildNode(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}

	node.ChildIDs, err = s.childIDs(ctx, node.ID)
	if err != nil {
		return nil, err
	}
	return node, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChildNode(row rowScanner) (*ChildNode, error) {
	var nodeID, parentID, rootID, payload, timestamp, kind string
	var provider, model, toolsJSON sql.NullString

	err := row.Scan(&nodeID, &parentID, &rootID, &payload, &timestamp, &kind, &provider, &model, &toolsJSON)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan node: %w", err)
	}

	msg, err := unmarshalMessage([]byte(payload))
	if err != nil {
		return nil, fmt.Errorf("invalid message for node %s: %w", nodeID, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, timestamp)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp for node %s: %w", nodeID, err)
	}
	tools, err := unmarshalTools(toolsJSON)
	if err != nil {
		return nil, fmt.Errorf("invalid tools for node %s: %w", nodeID, err)
	}

	return &ChildNode{
		ID:       NodeID(nodeID),
		ParentID: NodeID(parentID),
		RootID:   RootID(rootID),
		Message:  msg,
		Metadata: NodeMetadata{
			Timestamp: ts,
			Source: SourceInfo{
				Kind:     SourceKind(kind),
				Provider: llm.ProviderName(provider.String),
				Model:    model.String,
				Tools:    tools,
			},
		},
	}, nil
}

// GetPath returns the root and ancestor chain ending at to.
func (s *SQLiteStore) GetPath(ctx context.Context, from *NodeID, to NodeID) (*Path, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var chain []*ChildNode
	id := to
	for {
		var prompt, createdAt string
		err := s.db.QueryRowContext(ctx,
			"SELECT system_prompt, created_at FROM roots WHERE root_id = ?",
			string(id)).Scan(&prompt, &createdAt)
		if err == nil {
			root, err := s.loadRoot(ctx, RootID(id), prompt, createdAt)
			if err != nil {
				return nil, err
			}
			return truncatePath(&Path{Root: root, Nodes: chain}, from), nil
		}
		if err != sql.ErrNoRows {
			return nil, fmt.Errorf("failed to query root: %w", err)
		}

		node, err := s.getChildNode(ctx, id)
		if err != nil {
			return nil, err
		}
		chain = append([]*ChildNode{node}, chain...)
		id = node.ParentID
	}
}

// GetChildren returns a node's children in insertion order.
func (s *SQLiteStore) GetChildren(ctx context.Context, id NodeID) ([]*ChildNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getNode(ctx, id); err != nil {
		return nil, err
	}
	return s.childNodes(ctx, id)
}

func (s *SQLiteStore) childNodes(ctx context.Context, parentID NodeID) ([]*ChildNode, error) {
	ids, err := s.childIDs(ctx, parentID)
	if err != nil {
		return nil, err
	}
	children := []*ChildNode{}
	for _, id := range ids {
		node, err := s.getChildNode(ctx, id)
		if err != nil {
			return nil, err
		}
		children = append(children, node)
	}
	return children, nil
}

// GetSiblings returns all children of the node's parent, itself included.
func (s *SQLiteStore) GetSiblings(ctx context.Context, id NodeID) ([]*ChildNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, err := s.getChildNode(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.childNodes(ctx, node.ParentID)
}

// FindAllDescendants returns every node id below the given node.
func (s *SQLiteStore) FindAllDescendants(ctx context.Context, id NodeID) ([]NodeID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.getNode(ctx, id); err != nil {
		return nil, err
	}
	return s.descendants(ctx, id)
}

func (s *SQLiteStore) descendants(ctx context.Context, id NodeID) ([]NodeID, error) {
	var out []NodeID
	queue := []NodeID{id}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		children, err := s.childIDs(ctx, next)
		if err != nil {
			return nil, err
		}
		out = append(out, children...)
		queue = append(queue, children...)
	}
	return out, nil
}

// DeleteNode removes a node, optionally with its subtree.
func (s *SQLiteStore) DeleteNode(ctx context.Context, id NodeID, cascade bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteNode(ctx, id, cascade)
}

func (s *SQLiteStore) deleteNode(ctx context.Context, id NodeID, cascade bool) error {
	node, err := s.getNode(ctx, id)
	if err != nil {
		return err
	}
	if !cascade && len(node.ChildIdentities()) > 0 {
		return &HasChildrenError{ID: id}
	}

	doomed, err := s.descendants(ctx, id)
	if err != nil {
		return err
	}
	doomed = append([]NodeID{id}, doomed...)
	if err := s.checkBookmarks(ctx, doomed); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, d := range doomed {
		if _, err := tx.ExecContext(ctx, "DELETE FROM nodes WHERE node_id = ?", string(d)); err != nil {
			return fmt.Errorf("failed to delete node: %w", err)
		}
	}
	if _, isRoot := node.(*RootNode); isRoot {
		if _, err := tx.ExecContext(ctx, "DELETE FROM roots WHERE root_id = ?", string(id)); err != nil {
			return fmt.Errorf("failed to delete root: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Debug().
		Str("node", string(id)).
		Int("removed", len(doomed)).
		Msg("deleted subtree")
	return nil
}

func (s *SQLiteStore) checkBookmarks(ctx context.Context, doomed []NodeID) error {
	set := make(map[NodeID]bool, len(doomed))
	for _, id := range doomed {
		set[id] = true
	}

	rows, err := s.db.QueryContext(ctx, "SELECT title, node_id FROM bookmarks")
	if err != nil {
		return fmt.Errorf("failed to query bookmarks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var title, nodeID string
		if err := rows.Scan(&title, &nodeID); err != nil {
			return fmt.Errorf("failed to scan bookmark: %w", err)
		}
		if set[NodeID(nodeID)] {
			return &BookmarkedNodeError{ID: NodeID(nodeID), Title: title}
		}
	}
	return rows.Err()
}

// DeleteNodes removes each listed node with its subtree, skipping ids whose
// ancestors are also in the set.
func (s *SQLiteStore) DeleteNodes(ctx context.Context, ids []NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		err := s.deleteNode(ctx, id, true)
		if err == nil {
			continue
		}
		var notFound *NotFoundError
		if errors.As(err, &notFound) {
			// Already removed as part of an earlier subtree.
			continue
		}
		return err
	}
	return nil
}

// ListNodeStructures returns the flattened topology of the forest.
func (s *SQLiteStore) ListNodeStructures(ctx context.Context) ([]NodeStructure, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []NodeStructure

	rows, err := s.db.QueryContext(ctx,
		"SELECT root_id, created_at FROM roots ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query roots: %w", err)
	}
	for rows.Next() {
		var id, createdAt string
		if err := rows.Scan(&id, &createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan root: %w", err)
		}
		ts, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("invalid root timestamp %q: %w", createdAt, err)
		}
		out = append(out, NodeStructure{
			ID:        NodeID(id),
			RootID:    RootID(id),
			Timestamp: ts,
		})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating roots: %w", err)
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx, `
		SELECT node_id, parent_id, root_id, message, timestamp
		FROM nodes ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var nodeID, parentID, rootID, payload, timestamp string
		if err := rows.Scan(&nodeID, &parentID, &rootID, &payload, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		msg, err := unmarshalMessage([]byte(payload))
		if err != nil {
			return nil, fmt.Errorf("invalid message for node %s: %w", nodeID, err)
		}
		ts, err := time.Parse(time.RFC3339Nano, timestamp)
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp for node %s: %w", nodeID, err)
		}
		out = append(out, NodeStructure{
			ID:        NodeID(nodeID),
			ParentID:  NodeID(parentID),
			RootID:    RootID(rootID),
			Timestamp: ts,
			Role:      msg.MessageRole(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	return out, nil
}

// SetBookmark creates or moves a bookmark.
func (s *SQLiteStore) SetBookmark(ctx context.Context, title string, nodeID NodeID) (*Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, err := s.getNode(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	b := Bookmark{
		Title:     title,
		NodeID:    nodeID,
		RootID:    node.TreeRoot(),
		CreatedAt: now,
		UpdatedAt: now,
	}

	var createdAt string
	err = s.db.QueryRowContext(ctx,
		"SELECT created_at FROM bookmarks WHERE title = ?", title).Scan(&createdAt)
	if err == nil {
		if b.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("invalid bookmark timestamp %q: %w", createdAt, err)
		}
	} else if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to query bookmark: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO bookmarks (title, node_id, root_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		title, string(b.NodeID), string(b.RootID),
		b.CreatedAt.Format(time.RFC3339Nano), b.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("failed to store bookmark: %w", err)
	}
	return &b, nil
}

// GetBookmark returns the bookmark with the given title.
func (s *SQLiteStore) GetBookmark(ctx context.Context, title string) (*Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT title, node_id, root_id, created_at, updated_at FROM bookmarks WHERE title = ?",
		title)
	b, err := scanBookmark(row)
	if err == sql.ErrNoRows {
		return nil, &BookmarkNotFoundError{Title: title}
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ListBookmarks returns all bookmarks ordered by title.
func (s *SQLiteStore) ListBookmarks(ctx context.Context) ([]Bookmark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT title, node_id, root_id, created_at, updated_at FROM bookmarks ORDER BY title ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query bookmarks: %w", err)
	}
	defer rows.Close()

	bookmarks := []Bookmark{}
	for rows.Next() {
		b, err := scanBookmark(rows)
		if err != nil {
			return nil, err
		}
		bookmarks = append(bookmarks, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bookmarks: %w", err)
	}
	return bookmarks, nil
}

func scanBookmark(row rowScanner) (*Bookmark, error) {
	var title, nodeID, rootID, createdAt, updatedAt string
	err := row.Scan(&title, &nodeID, &rootID, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan bookmark: %w", err)
	}

	created, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid bookmark timestamp %q: %w", createdAt, err)
	}
	updated, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid bookmark timestamp %q: %w", updatedAt, err)
	}

	return &Bookmark{
		Title:     title,
		NodeID:    NodeID(nodeID),
		RootID:    RootID(rootID),
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

// DeleteBookmark removes a bookmark by title.
func (s *SQLiteStore) DeleteBookmark(ctx context.Context, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx, "DELETE FROM bookmarks WHERE title = ?", title)
	if err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check bookmark deletion: %w", err)
	}
	if affected == 0 {
		return &BookmarkNotFoundError{Title: title}
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func marshalTools(tools []string) (any, error) {
	if len(tools) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(tools)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize tools: %w", err)
	}
	return string(data), nil
}

func unmarshalTools(raw sql.NullString) ([]string, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var tools []string
	if err := json.Unmarshal([]byte(raw.String), &tools); err != nil {
		return nil, err
	}
	return tools, nil
}

// Verify SQLiteStore implements Store
var _ Store = (*SQLiteStore)(nil)
