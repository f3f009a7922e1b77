package state

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/Paintersrp/notetree/internal/api"
	"github.com/Paintersrp/notetree/internal/api/apitest"
	"github.com/Paintersrp/notetree/internal/config"
	"github.com/Paintersrp/notetree/internal/logging"
)

func newTestState(t *testing.T, fake *apitest.Fake) *State {
	t.Helper()
	cfg, err := config.Parse([]byte(`
profiles:
  test:
    server_url: http://localhost
    api_token: token
    bookmarks: [b1, gone]
retry:
  max_attempts: 3
  base_delay: 1ms
`))
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if err := cfg.Resolve("", nil); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	ring := logging.NewRing(50)
	logger := slog.New(logging.NewHandler(ring, slog.LevelDebug, nil))
	return NewWithClient(cfg, fake, logger, ring)
}

func TestContentIsCached(t *testing.T) {
	fake := apitest.New()
	fake.Add(api.RootID, "n1")
	fake.SetContent("n1", "<p>hi</p>")
	s := newTestState(t, fake)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res := s.Content(ctx, "n1")
		if res.Err != nil || res.Value != "<p>hi</p>" {
			t.Fatalf("content = %q %v", res.Value, res.Err)
		}
	}
	if got := fake.Calls("content:n1"); got != 1 {
		t.Fatalf("content fetched %d times", got)
	}

	if res := s.Save(ctx, "n1", "<p>bye</p>"); res.Err != nil {
		t.Fatalf("save: %v", res.Err)
	}
	if fake.Content("n1") != "<p>bye</p>" {
		t.Fatalf("server content = %q", fake.Content("n1"))
	}
	if res := s.Content(ctx, "n1"); res.Value != "<p>bye</p>" {
		t.Fatalf("cached content after save = %q", res.Value)
	}
}

func TestRetriesAreLogged(t *testing.T) {
	fake := apitest.New()
	fake.Fail("children:root", &api.NetworkError{Op: "children", Err: errors.New("refused")})
	s := newTestState(t, fake)

	res := s.Children(context.Background(), api.RootID)
	if !api.IsRetryable(res.Err) || res.Attempts != 3 {
		t.Fatalf("result = %+v", res)
	}

	var retries int
	var failed bool
	for _, e := range s.Logs.Entries() {
		if e.Message == "retrying request" && strings.Contains(e.Attrs, "slot=children:root") {
			retries++
		}
		if e.Message == "fetch children failed" {
			failed = true
		}
	}
	if retries != 2 || !failed {
		t.Fatalf("log entries = %v", s.Logs.Entries())
	}
}

func TestLoadRootAndFetcher(t *testing.T) {
	fake := apitest.New()
	fake.Add(api.RootID, "A", "B")
	fake.Add("A", "A1")
	s := newTestState(t, fake)
	ctx := context.Background()

	if err := s.LoadRoot(ctx); err != nil {
		t.Fatalf("load root: %v", err)
	}
	if err := s.Store.ExpandDepth(ctx, s.Fetcher(), 3); err != nil {
		t.Fatalf("expand: %v", err)
	}
	if got := len(s.Store.Notes()); got != 4 {
		t.Fatalf("notes = %d, want 4", got)
	}
}

func TestResolveNotesSkipsMissing(t *testing.T) {
	fake := apitest.New()
	fake.Add(api.RootID, "b1")
	s := newTestState(t, fake)

	res := s.ResolveNotes(context.Background(), SlotBookmarks, s.Bookmarks())
	if res.Err != nil {
		t.Fatalf("resolve: %v", res.Err)
	}
	if len(res.Value) != 1 || res.Value[0].ID != "b1" {
		t.Fatalf("notes = %+v", res.Value)
	}
}

func TestSetExpandedWritesBranch(t *testing.T) {
	fake := apitest.New()
	fake.Add(api.RootID, "A")
	s := newTestState(t, fake)

	if res := s.SetExpanded(context.Background(), "root_A", true); res.Err != nil {
		t.Fatalf("set expanded: %v", res.Err)
	}
	if v, ok := fake.Expanded("root_A"); !ok || !v {
		t.Fatalf("branch state = %v %v", v, ok)
	}
}

func TestRefreshPurgesCache(t *testing.T) {
	fake := apitest.New()
	fake.Add(api.RootID, "n1")
	fake.SetContent("n1", "old")
	s := newTestState(t, fake)
	ctx := context.Background()

	_ = s.Content(ctx, "n1")
	fake.SetContent("n1", "new")
	if err := s.Refresh(ctx); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if res := s.Content(ctx, "n1"); res.Value != "new" {
		t.Fatalf("content = %q", res.Value)
	}
	if s.Store.RootID() != api.RootID {
		t.Fatalf("root not reloaded")
	}
}
