package forest

import "fmt"

// NotFoundError reports a lookup for a node id the store does not hold.
type NotFoundError struct {
	ID NodeID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("node %s not found", e.ID)
}

// ParentNotFoundError reports an append under an unknown parent.
type ParentNotFoundError struct {
	ID NodeID
}

func (e *ParentNotFoundError) Error() string {
	return fmt.Sprintf("parent node %s not found", e.ID)
}

// BookmarkedNodeError reports a deletion refused because it would orphan a
// bookmark. The caller must delete the bookmark first or prune around it.
type BookmarkedNodeError struct {
	ID    NodeID
	Title string
}

func (e *BookmarkedNodeError) Error() string {
	return fmt.Sprintf("node %s is referenced by bookmark %q", e.ID, e.Title)
}

// HasChildrenError reports a non-cascade deletion of a node with children.
type HasChildrenError struct {
	ID NodeID
}

func (e *HasChildrenError) Error() string {
	return fmt.Sprintf("node %s has children; delete with cascade", e.ID)
}

// BookmarkNotFoundError reports a lookup for an unknown bookmark title.
type BookmarkNotFoundError struct {
	Title string
}

func (e *BookmarkNotFoundError) Error() string {
	return fmt.Sprintf("bookmark %q not found", e.Title)
}
