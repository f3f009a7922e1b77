// Package apitest provides an in-memory api.Client for tests.
package apitest

import (
	"context"
	"strings"
	"sync"

	"github.com/Paintersrp/notetree/internal/api"
)

// Fake serves a note tree from memory. Failures are injected per call key,
// for example "children:root" or "content:n1".
type Fake struct {
	mu       sync.Mutex
	notes    map[string]api.Note
	contents map[string]string
	hits     map[string][]api.SearchHit
	fail     map[string]error
	calls    map[string]int
	branches map[string]bool
}

func New() *Fake {
	f := &Fake{
		notes:    make(map[string]api.Note),
		contents: make(map[string]string),
		hits:     make(map[string][]api.SearchHit),
		fail:     make(map[string]error),
		calls:    make(map[string]int),
		branches: make(map[string]bool),
	}
	f.notes[api.RootID] = api.Note{ID: api.RootID, Title: "root", Type: "text", Mime: "text/html"}
	return f
}

// Add creates text notes titled after their ids under parent.
func (f *Fake) Add(parent string, ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p := f.notes[parent]
	for _, id := range ids {
		n, ok := f.notes[id]
		if !ok {
			n = api.Note{ID: id, Title: id, Type: "text", Mime: "text/html"}
		}
		n.ParentIDs = append(n.ParentIDs, parent)
		n.ParentBranchIDs = append(n.ParentBranchIDs, parent+"_"+id)
		f.notes[id] = n

		p.ChildIDs = append(p.ChildIDs, id)
		p.ChildBranchIDs = append(p.ChildBranchIDs, parent+"_"+id)
	}
	f.notes[parent] = p
}

func (f *Fake) SetNote(n api.Note) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes[n.ID] = n
}

func (f *Fake) SetContent(id, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contents[id] = body
}

func (f *Fake) Content(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contents[id]
}

func (f *Fake) SetHits(query string, hits ...api.SearchHit) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits[query] = hits
}

// Fail makes every call with key return err until cleared with a nil err.
func (f *Fake) Fail(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, key)
		return
	}
	f.fail[key] = err
}

func (f *Fake) Calls(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

// Expanded reports the last expansion state written for a branch.
func (f *Fake) Expanded(branchID string) (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.branches[branchID]
	return v, ok
}

func (f *Fake) enter(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[key]++
	return f.fail[key]
}

func (f *Fake) GetNote(ctx context.Context, id string) (api.Note, error) {
	if err := f.enter("note:" + id); err != nil {
		return api.Note{}, err
	}
	if err := ctx.Err(); err != nil {
		return api.Note{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notes[id]
	if !ok {
		return api.Note{}, &api.NotFoundError{Kind: "note", ID: id}
	}
	return n, nil
}

func (f *Fake) GetChildNotes(ctx context.Context, parentID string) ([]api.Note, error) {
	if err := f.enter("children:" + parentID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.notes[parentID]
	if !ok {
		return nil, &api.NotFoundError{Kind: "note", ID: parentID}
	}
	out := make([]api.Note, 0, len(p.ChildIDs))
	for _, id := range p.ChildIDs {
		out = append(out, f.notes[id])
	}
	return out, nil
}

func (f *Fake) SearchNotes(ctx context.Context, params api.SearchParams) ([]api.SearchHit, error) {
	if err := f.enter("search:" + params.Query); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if hits, ok := f.hits[params.Query]; ok {
		return hits, nil
	}
	var hits []api.SearchHit
	for id, n := range f.notes {
		if strings.Contains(strings.ToLower(n.Title), strings.ToLower(params.Query)) {
			hits = append(hits, api.SearchHit{NoteID: id})
		}
	}
	return hits, nil
}

func (f *Fake) GetNoteContent(ctx context.Context, id string) (string, error) {
	if err := f.enter("content:" + id); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.notes[id]; !ok {
		return "", &api.NotFoundError{Kind: "note", ID: id}
	}
	return f.contents[id], nil
}

func (f *Fake) UpdateNoteContent(ctx context.Context, id, content string) error {
	if err := f.enter("save:" + id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contents[id] = content
	return nil
}

func (f *Fake) UpdateBranch(ctx context.Context, branchID string, patch api.BranchPatch) error {
	if err := f.enter("branch:" + branchID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if patch.IsExpanded != nil {
		f.branches[branchID] = *patch.IsExpanded
	}
	return nil
}

var _ api.Client = (*Fake)(nil)
