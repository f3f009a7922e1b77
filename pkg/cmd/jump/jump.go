package jump

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/Paintersrp/notetree/internal/editor"
	"github.com/Paintersrp/notetree/internal/fzf"
	"github.com/Paintersrp/notetree/internal/state"
	"github.com/Paintersrp/notetree/internal/tree"
	"github.com/Paintersrp/notetree/pkg/cmd/edit"
)

const defaultDepth = 3

func NewCmdJump(load state.Loader) *cobra.Command {
	var (
		depth    int
		editNote bool
	)

	cmd := &cobra.Command{
		Use:     "jump [query]",
		Aliases: []string{"j"},
		Short:   "Pick a note from the tree with a fuzzy finder.",
		Long: heredoc.Doc(`
			Loads the top levels of the note tree and lets you pick a note with a
			fuzzy finder and a rendered preview. The chosen note's id and path are
			printed, or the note is opened in your editor with --edit.
		`),
		Example: heredoc.Doc(`
			notetree jump
			notetree jump --depth 5 meeting
			notetree jump --edit
		`),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var query string
			if len(args) == 1 {
				query = args[0]
			}

			st, err := load()
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			items, err := Load(ctx, st, depth)
			if err != nil {
				return err
			}

			finder := fzf.NewFuzzyFinder("Jump to note", func(id string) (string, error) {
				res := st.Content(ctx, id)
				return res.Value, res.Err
			}, st.Renderer)
			item, err := finder.Run(items, query)
			if errors.Is(err, fzf.ErrNoSelection) {
				return nil
			}
			if err != nil {
				return err
			}

			if editNote {
				term := editor.NewSnapshotTerminal(int(os.Stdin.Fd()))
				return edit.Run(ctx, st, item.Note.ID, term, cmd.OutOrStdout())
			}
			return printItem(cmd.OutOrStdout(), item)
		},
	}

	cmd.Flags().IntVarP(&depth, "depth", "d", defaultDepth, "Tree levels to load before picking.")
	cmd.Flags().BoolVarP(&editNote, "edit", "e", false, "Open the chosen note in your editor.")
	return cmd
}

// Load reads the tree down to depth and lists every loaded note with its
// path. Branches that fail to load are logged and left out.
func Load(ctx context.Context, st *state.State, depth int) ([]fzf.Item, error) {
	if depth < 1 {
		depth = 1
	}
	if depth > tree.MaxDepth {
		depth = tree.MaxDepth
	}

	if err := st.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("load root: %w", err)
	}
	if err := st.Store.ExpandDepth(ctx, st.Fetcher(), depth); err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		st.Logger.Warn("partial tree", "depth", depth, "err", err)
	}

	notes := st.Store.Notes()
	items := make([]fzf.Item, 0, len(notes))
	for _, n := range notes {
		items = append(items, fzf.Item{Note: n, Path: st.Store.Path(n.ID)})
	}
	return items, nil
}

func printItem(out io.Writer, item fzf.Item) error {
	_, err := fmt.Fprintf(out, "%s\t%s\n", item.Note.ID, item.Label())
	return err
}
