// Package state assembles the long-lived collaborators of a session: the
// resolved profile, the backend client behind the retry gateway, the tree
// store, the content cache and the session logger.
package state

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/muesli/termenv"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/Paintersrp/notetree/internal/api"
	"github.com/Paintersrp/notetree/internal/cache"
	"github.com/Paintersrp/notetree/internal/config"
	"github.com/Paintersrp/notetree/internal/convert"
	"github.com/Paintersrp/notetree/internal/history"
	"github.com/Paintersrp/notetree/internal/logging"
	"github.com/Paintersrp/notetree/internal/render"
	"github.com/Paintersrp/notetree/internal/retry"
	"github.com/Paintersrp/notetree/internal/search"
	"github.com/Paintersrp/notetree/internal/tree"
)

// Slot names shared by every caller of the gateway.
const (
	SlotNote      = "note"
	SlotSearch    = "search"
	SlotContent   = "content"
	SlotBookmarks = "bookmarks"
)

func ChildrenSlot(id string) string { return "children:" + id }
func SaveSlot(id string) string     { return "save:" + id }
func BranchSlot(id string) string   { return "branch:" + id }
func EditSlot(id string) string     { return "edit:" + id }

type State struct {
	Config      *config.Config
	Profile     *config.Profile
	ProfileName string
	Home        string
	Client      api.Client
	Gateway     *retry.Gateway
	Store       *tree.Store
	History     *history.History
	Cache       *cache.LRU[string, string]
	Converter   *convert.Converter
	Renderer    *render.Renderer
	Logger      *slog.Logger
	Logs        *logging.Ring

	logCloser io.Closer
}

// Loader builds the session state on demand, after flags are parsed.
type Loader func() (*State, error)

type Options struct {
	Profile string
	Debug   bool
	LogFile string
	// Viper carries environment overrides for server_url and api_token.
	Viper *viper.Viper
}

func NewState(opts Options) (*State, error) {
	home, err := GetHomeDir()
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(config.GetConfigPath(home))
	if err != nil {
		return nil, err
	}

	var choose config.Chooser
	if term.IsTerminal(int(os.Stdin.Fd())) {
		choose = config.PromptProfile
	}
	if err := cfg.Resolve(opts.Profile, choose); err != nil {
		return nil, err
	}
	cfg.ApplyOverrides(opts.Viper)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logFile := opts.LogFile
	if logFile == "" {
		logFile = cfg.LogFile
	}
	logger, ring, closer, err := logging.Setup(logging.Options{Debug: opts.Debug, File: logFile})
	if err != nil {
		return nil, err
	}

	profile, _ := cfg.Active()
	client, err := api.NewHTTPClient(profile.ServerURL, profile.APIToken)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	s := NewWithClient(cfg, client, logger, ring)
	s.Home = home
	s.logCloser = closer
	return s, nil
}

// NewWithClient wires a session around an existing client. cfg must already
// have a resolved profile.
func NewWithClient(cfg *config.Config, client api.Client, logger *slog.Logger, ring *logging.Ring) *State {
	if logger == nil {
		logger = slog.New(logging.NewHandler(logging.NewRing(0), slog.LevelInfo, nil))
	}
	if ring == nil {
		ring = logging.NewRing(0)
	}
	profile, name := cfg.Active()
	if profile == nil {
		profile = &config.Profile{}
	}

	gateway := retry.New(cfg.Retry.Gateway(), retry.WithOnRetry(func(slot string, attempt int, err error) {
		logger.Warn("retrying request", "slot", slot, "attempt", attempt, "err", err)
	}))

	return &State{
		Config:      cfg,
		Profile:     profile,
		ProfileName: name,
		Client:      client,
		Gateway:     gateway,
		Store:       tree.New(),
		History:     history.New(0),
		Cache:       cache.NewLRU[string, string](cfg.CacheEntries),
		Converter:   convert.New(),
		Renderer:    render.New(render.DefaultStyle, termenv.ANSI256),
		Logger:      logger,
		Logs:        ring,
		logCloser:   nopCloser{},
	}
}

func GetHomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory. err: %s", err)
	}

	return home, nil
}

// Close releases the log file.
func (s *State) Close() error {
	if s == nil || s.logCloser == nil {
		return nil
	}
	err := s.logCloser.Close()
	s.logCloser = nil
	return err
}

// Bookmarks lists the bookmarked note ids of the active profile.
func (s *State) Bookmarks() []string {
	return append([]string(nil), s.Profile.Bookmarks...)
}

// LoadRoot fetches the root note and installs it in the store.
func (s *State) LoadRoot(ctx context.Context) error {
	res := s.GetNote(ctx, SlotNote, api.RootID)
	if res.Err != nil {
		return res.Err
	}
	s.Store.SetRoot(res.Value)
	return nil
}

// Issue registers a session on slot right away. Running the ticket later
// through one of the On methods cannot supersede a ticket issued after it.
func (s *State) Issue(slot string) retry.Ticket {
	return s.Gateway.Issue(context.Background(), slot)
}

func (s *State) GetNote(ctx context.Context, slot, id string) retry.Result[api.Note] {
	return s.NoteOn(s.Gateway.Issue(ctx, slot), id)
}

func (s *State) NoteOn(t retry.Ticket, id string) retry.Result[api.Note] {
	return retry.Run(s.Gateway, t, func(ctx context.Context) (api.Note, error) {
		return s.Client.GetNote(ctx, id)
	})
}

func (s *State) Children(ctx context.Context, id string) retry.Result[[]api.Note] {
	return s.ChildrenOn(s.Gateway.Issue(ctx, ChildrenSlot(id)), id)
}

func (s *State) ChildrenOn(t retry.Ticket, id string) retry.Result[[]api.Note] {
	res := retry.Run(s.Gateway, t, func(ctx context.Context) ([]api.Note, error) {
		return s.Client.GetChildNotes(ctx, id)
	})
	if res.Err != nil && !res.Cancelled {
		s.Logger.Error("fetch children failed", "note", id, "attempts", res.Attempts, "err", res.Err)
	}
	return res
}

// Content returns the body of id, served from the cache when possible.
func (s *State) Content(ctx context.Context, id string) retry.Result[string] {
	return s.ContentOn(s.Gateway.Issue(ctx, SlotContent), id)
}

// ContentOn is Content under an issued ticket.
func (s *State) ContentOn(t retry.Ticket, id string) retry.Result[string] {
	return retry.Run(s.Gateway, t, func(ctx context.Context) (string, error) {
		if body, ok := s.Cache.Get(id); ok {
			return body, nil
		}
		body, err := s.Client.GetNoteContent(ctx, id)
		if err != nil {
			return "", err
		}
		s.Cache.Put(id, body)
		return body, nil
	})
}

// Save stores content for id and refreshes the cached copy.
func (s *State) Save(ctx context.Context, id, content string) retry.Result[struct{}] {
	s.Cache.Remove(id)
	res := retry.Execute(ctx, s.Gateway, SaveSlot(id), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.Client.UpdateNoteContent(ctx, id, content)
	})
	if res.Err == nil {
		s.Cache.Put(id, content)
		s.Logger.Info("saved note", "note", id, "bytes", len(content))
	} else if !res.Cancelled {
		s.Logger.Error("save failed", "note", id, "err", res.Err)
	}
	return res
}

func (s *State) Search(ctx context.Context, q search.Query) retry.Result[[]search.Result] {
	return s.SearchOn(s.Gateway.Issue(ctx, SlotSearch), q)
}

func (s *State) SearchOn(t retry.Ticket, q search.Query) retry.Result[[]search.Result] {
	return retry.Run(s.Gateway, t, func(ctx context.Context) ([]search.Result, error) {
		return search.Server(ctx, s.Client, q)
	})
}

// SetExpanded records a branch's expansion state on the server.
func (s *State) SetExpanded(ctx context.Context, branchID string, expanded bool) retry.Result[struct{}] {
	return s.SetExpandedOn(s.Gateway.Issue(ctx, BranchSlot(branchID)), branchID, expanded)
}

func (s *State) SetExpandedOn(t retry.Ticket, branchID string, expanded bool) retry.Result[struct{}] {
	res := retry.Run(s.Gateway, t, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.Client.UpdateBranch(ctx, branchID, api.BranchPatch{IsExpanded: &expanded})
	})
	if res.Err != nil && !res.Cancelled {
		s.Logger.Warn("branch update failed", "branch", branchID, "err", res.Err)
	}
	return res
}

// ResolveNotes fetches each id in order, skipping notes that no longer exist.
func (s *State) ResolveNotes(ctx context.Context, slot string, ids []string) retry.Result[[]api.Note] {
	return s.ResolveNotesOn(s.Gateway.Issue(ctx, slot), ids)
}

func (s *State) ResolveNotesOn(t retry.Ticket, ids []string) retry.Result[[]api.Note] {
	return retry.Run(s.Gateway, t, func(ctx context.Context) ([]api.Note, error) {
		out := make([]api.Note, 0, len(ids))
		for _, id := range ids {
			n, err := s.Client.GetNote(ctx, id)
			if api.IsNotFound(err) {
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	})
}

// Fetcher adapts the gateway to the tree store.
func (s *State) Fetcher() tree.Fetcher {
	return stateFetcher{s}
}

type stateFetcher struct{ s *State }

func (f stateFetcher) GetChildNotes(ctx context.Context, id string) ([]api.Note, error) {
	res := f.s.Children(ctx, id)
	return res.Value, res.Err
}

// Refresh drops cached content and reloads the tree from the root.
func (s *State) Refresh(ctx context.Context) error {
	s.Cache.Purge()
	s.Store.Reset()
	return s.LoadRoot(ctx)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
