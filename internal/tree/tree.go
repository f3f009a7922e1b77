// Package tree holds the lazily loaded note hierarchy shown by the Tree mode.
//
// Nodes live in an arena keyed by note id. A parent owns the ordered list of
// its children's ids; children are fetched the first time a node is expanded
// and kept across collapse so a second expansion costs nothing.
package tree

import (
	"context"
	"errors"
	"fmt"

	"github.com/Paintersrp/notetree/internal/api"
)

// MaxDepth is the deepest level a node may be expanded at. Trilium allows a
// note to be cloned under its own descendant, so the cap also stops cycles
// that the visited set alone would render as an endless chain.
const MaxDepth = 10

var (
	ErrDepthLimit = errors.New("tree: depth limit reached")
	ErrNoFetcher  = errors.New("tree: children not loaded and no fetcher given")
)

type Fetcher interface {
	GetChildNotes(ctx context.Context, id string) ([]api.Note, error)
}

type Node struct {
	Note     api.Note
	ChildIDs []string
	Expanded bool
	Loaded   bool
	Depth    int
	ParentID string
	BranchID string
}

func (n Node) HasChildren() bool {
	return len(n.ChildIDs) > 0 || n.Note.HasChildren()
}

// Row is one visible line of the flattened tree.
type Row struct {
	ID          string
	Title       string
	Depth       int
	Expanded    bool
	HasChildren bool
}

type Store struct {
	rootID string
	nodes  map[string]*Node
	rows   []Row
	focus  int
}

func New() *Store {
	return &Store{nodes: make(map[string]*Node)}
}

// SetRoot discards the current tree and installs note at depth 0.
func (s *Store) SetRoot(note api.Note) {
	s.Reset()
	s.rootID = note.ID
	s.nodes[note.ID] = &Node{Note: note}
	s.reflow("")
}

func (s *Store) Reset() {
	s.rootID = ""
	s.nodes = make(map[string]*Node)
	s.rows = nil
	s.focus = 0
}

func (s *Store) RootID() string { return s.rootID }

func (s *Store) Node(id string) (Node, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

func (s *Store) Parent(id string) string {
	if n, ok := s.nodes[id]; ok {
		return n.ParentID
	}
	return ""
}

// Len is the number of visible rows.
func (s *Store) Len() int { return len(s.rows) }

// NeedsFetch reports whether expanding id has to go to the backend first.
func (s *Store) NeedsFetch(id string) bool {
	n, ok := s.nodes[id]
	if !ok || n.Expanded || n.Loaded || n.Depth >= MaxDepth {
		return false
	}
	return n.Note.HasChildren()
}

// Expand shows the children of id, fetching them only on first use. On a
// fetch error the node stays collapsed and the error is returned unchanged.
func (s *Store) Expand(ctx context.Context, id string, fetcher Fetcher) error {
	n, ok := s.nodes[id]
	if !ok {
		return &api.NotFoundError{Kind: "tree node", ID: id}
	}
	if n.Expanded {
		return nil
	}
	if n.Depth >= MaxDepth {
		return ErrDepthLimit
	}
	if n.Loaded || !n.Note.HasChildren() {
		n.Loaded = true
		n.Expanded = true
		s.reflow(s.FocusedID())
		return nil
	}
	if fetcher == nil {
		return ErrNoFetcher
	}

	children, err := fetcher.GetChildNotes(ctx, id)
	if err != nil {
		return err
	}
	return s.Attach(id, children)
}

// Attach records fetched children under id and expands it. Children that are
// already in the arena keep their own expansion state.
func (s *Store) Attach(id string, children []api.Note) error {
	n, ok := s.nodes[id]
	if !ok {
		return &api.NotFoundError{Kind: "tree node", ID: id}
	}
	if n.Depth >= MaxDepth {
		return ErrDepthLimit
	}

	n.ChildIDs = make([]string, 0, len(children))
	for _, child := range children {
		n.ChildIDs = append(n.ChildIDs, child.ID)
		if existing, ok := s.nodes[child.ID]; ok {
			existing.Note = child
			continue
		}
		s.nodes[child.ID] = &Node{
			Note:     child,
			Depth:    n.Depth + 1,
			ParentID: id,
			BranchID: child.BranchTo(id),
		}
	}
	n.Loaded = true
	n.Expanded = true
	s.reflow(s.FocusedID())
	return nil
}

// Collapse hides the children of id but keeps them loaded.
func (s *Store) Collapse(id string) {
	n, ok := s.nodes[id]
	if !ok || !n.Expanded {
		return
	}
	focused := s.FocusedID()
	n.Expanded = false
	if s.isDescendant(focused, id) {
		focused = id
	}
	s.reflow(focused)
}

func (s *Store) isDescendant(id, ancestor string) bool {
	seen := make(map[string]bool)
	for cur := s.Parent(id); cur != "" && !seen[cur]; cur = s.Parent(cur) {
		if cur == ancestor {
			return true
		}
		seen[cur] = true
	}
	return false
}

// Flatten walks the expanded part of the tree in pre-order. A note reached
// twice in one walk is listed once, so a clone shows only under the first
// parent that placed it in the arena.
func (s *Store) Flatten() []Row {
	if s.rootID == "" {
		return nil
	}
	var rows []Row
	visited := make(map[string]bool)

	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		n, ok := s.nodes[id]
		if !ok || visited[id] {
			return
		}
		visited[id] = true
		rows = append(rows, Row{
			ID:          id,
			Title:       n.Note.Title,
			Depth:       depth,
			Expanded:    n.Expanded,
			HasChildren: n.HasChildren(),
		})
		if !n.Expanded || depth >= MaxDepth {
			return
		}
		for _, child := range n.ChildIDs {
			walk(child, depth+1)
		}
	}
	walk(s.rootID, 0)
	return rows
}

// Rows returns the rows computed after the last mutation.
func (s *Store) Rows() []Row { return s.rows }

// Notes lists every loaded note in pre-order, collapsed branches included.
func (s *Store) Notes() []api.Note {
	if s.rootID == "" {
		return nil
	}
	var out []api.Note
	visited := make(map[string]bool)

	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		n, ok := s.nodes[id]
		if !ok || visited[id] {
			return
		}
		visited[id] = true
		out = append(out, n.Note)
		if depth >= MaxDepth {
			return
		}
		for _, child := range n.ChildIDs {
			walk(child, depth+1)
		}
	}
	walk(s.rootID, 0)
	return out
}

// ExpandDepth loads and expands every node above depth, level by level.
// Failures are collected and the walk continues with the remaining nodes.
func (s *Store) ExpandDepth(ctx context.Context, fetcher Fetcher, depth int) error {
	if s.rootID == "" {
		return nil
	}
	if depth > MaxDepth {
		depth = MaxDepth
	}

	var errs []error
	level := []string{s.rootID}
	for d := 0; d < depth && len(level) > 0; d++ {
		var next []string
		for _, id := range level {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.Expand(ctx, id, fetcher); err != nil {
				errs = append(errs, fmt.Errorf("expand %s: %w", id, err))
				continue
			}
			next = append(next, s.nodes[id].ChildIDs...)
		}
		level = next
	}
	return errors.Join(errs...)
}

func (s *Store) reflow(keep string) {
	s.rows = s.Flatten()
	if keep != "" && s.FocusID(keep) {
		return
	}
	s.SetFocus(s.focus)
}

// Focus is the index of the selected row.
func (s *Store) Focus() int { return s.focus }

func (s *Store) SetFocus(i int) {
	s.focus = clamp(i, len(s.rows))
}

// MoveFocus shifts the selection by delta, stopping at either end.
func (s *Store) MoveFocus(delta int) int {
	s.SetFocus(s.focus + delta)
	return s.focus
}

// FocusID selects the row showing id, if it is visible.
func (s *Store) FocusID(id string) bool {
	for i, r := range s.rows {
		if r.ID == id {
			s.focus = i
			return true
		}
	}
	return false
}

func (s *Store) FocusedID() string {
	if s.focus < 0 || s.focus >= len(s.rows) {
		return ""
	}
	return s.rows[s.focus].ID
}

func clamp(i, n int) int {
	if n == 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// Path returns the titles from the root down to id.
func (s *Store) Path(id string) []string {
	var titles []string
	seen := make(map[string]bool)
	for cur := id; cur != "" && !seen[cur]; cur = s.Parent(cur) {
		n, ok := s.nodes[cur]
		if !ok {
			break
		}
		seen[cur] = true
		titles = append(titles, n.Note.Title)
	}
	for i, j := 0, len(titles)-1; i < j; i, j = i+1, j-1 {
		titles[i], titles[j] = titles[j], titles[i]
	}
	return titles
}
