package jump

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/Paintersrp/notetree/internal/api"
	"github.com/Paintersrp/notetree/internal/api/apitest"
	"github.com/Paintersrp/notetree/internal/config"
	"github.com/Paintersrp/notetree/internal/fzf"
	"github.com/Paintersrp/notetree/internal/state"
)

func newTestState(t *testing.T, fake *apitest.Fake) *state.State {
	t.Helper()
	cfg, err := config.Parse([]byte(`
profiles:
  test:
    server_url: http://localhost
    api_token: token
retry:
  max_attempts: 1
`))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if err := cfg.Resolve("", nil); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return state.NewWithClient(cfg, fake, nil, nil)
}

func TestLoadListsNotesToDepth(t *testing.T) {
	fake := apitest.New()
	fake.Add(api.RootID, "work", "home")
	fake.Add("work", "plans")
	fake.Add("plans", "q3")
	st := newTestState(t, fake)

	items, err := Load(context.Background(), st, 2)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	var ids []string
	for _, it := range items {
		ids = append(ids, it.Note.ID)
	}
	if got, want := len(ids), 4; got != want {
		t.Fatalf("items = %v", ids)
	}
	if ids[2] != "plans" || items[2].Label() != "plans [root / work]" {
		t.Fatalf("item %q label %q", ids[2], items[2].Label())
	}
	if fake.Calls("children:plans") != 0 {
		t.Fatalf("loaded past the requested depth")
	}
}

func TestLoadSkipsFailedBranches(t *testing.T) {
	fake := apitest.New()
	fake.Add(api.RootID, "work", "home")
	fake.Add("work", "plans")
	fake.Add("home", "garden")
	fake.Fail("children:work", &api.NetworkError{Op: "children", Err: errors.New("reset")})
	st := newTestState(t, fake)

	items, err := Load(context.Background(), st, 3)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("items = %+v", items)
	}
}

func TestLoadFailsWithoutRoot(t *testing.T) {
	fake := apitest.New()
	fake.Fail("note:root", &api.NotFoundError{Kind: "note", ID: "root"})
	if _, err := Load(context.Background(), newTestState(t, fake), 1); !api.IsNotFound(err) {
		t.Fatalf("err = %v", err)
	}
}

func TestPrintItem(t *testing.T) {
	var out bytes.Buffer
	item := fzf.Item{Note: api.Note{ID: "n1", Title: "Plans"}, Path: []string{"root", "Work", "Plans"}}
	if err := printItem(&out, item); err != nil {
		t.Fatalf("printItem: %v", err)
	}
	if out.String() != "n1\tPlans [root / Work]\n" {
		t.Fatalf("output %q", out.String())
	}
}
