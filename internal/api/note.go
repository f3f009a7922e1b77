// Package api describes the note server collaborator: the note snapshot
// types, the client contract the interactive core consumes, and the error
// taxonomy shared by every layer above it.
package api

import (
	"context"
	"time"
)

// RootID is the id of the top-level note of every server.
const RootID = "root"

// Note is a backend-owned snapshot. It is never mutated after a fetch; a
// fresher copy replaces it instead.
type Note struct {
	ID              string
	Title           string
	Type            string
	Mime            string
	IsProtected     bool
	ParentIDs       []string
	ChildIDs        []string
	ParentBranchIDs []string
	ChildBranchIDs  []string
	Created         time.Time
	Modified        time.Time
}

// HasChildren reports whether the server listed any children for the note.
func (n Note) HasChildren() bool {
	return len(n.ChildIDs) > 0
}

// BranchTo returns the branch id linking the note to the given parent.
func (n Note) BranchTo(parentID string) string {
	want := parentID + "_" + n.ID
	for _, id := range n.ParentBranchIDs {
		if id == want {
			return id
		}
	}
	if parentID == "" {
		return ""
	}
	return want
}

// SearchParams is forwarded verbatim to the server search endpoint.
type SearchParams struct {
	Query           string
	FastSearch      bool
	IncludeArchived bool
	Limit           int
}

// SearchHit is a single server search match. Score is zero when the server
// does not report relevance; the hit order is then the relevance order.
type SearchHit struct {
	NoteID string
	Score  float64
}

// BranchPatch carries the mutable branch fields the client updates.
type BranchPatch struct {
	IsExpanded *bool `json:"isExpanded,omitempty"`
}

// Client is the note server contract. Every method is fallible and returns
// one of the typed errors in this package on failure.
type Client interface {
	GetNote(ctx context.Context, id string) (Note, error)
	GetChildNotes(ctx context.Context, parentID string) ([]Note, error)
	SearchNotes(ctx context.Context, params SearchParams) ([]SearchHit, error)
	GetNoteContent(ctx context.Context, id string) (string, error)
	UpdateNoteContent(ctx context.Context, id, content string) error
	UpdateBranch(ctx context.Context, branchID string, patch BranchPatch) error
}
