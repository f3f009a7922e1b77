package edit

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"

	"github.com/Paintersrp/notetree/internal/editor"
	"github.com/Paintersrp/notetree/internal/state"
)

func NewCmdEdit(load state.Loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "edit <noteId>",
		Aliases: []string{"e"},
		Short:   "Edit a note's content in your editor.",
		Long: heredoc.Doc(`
			Opens the content of a note in $VISUAL or $EDITOR (vi when neither is
			set) and saves it back when it changed. HTML notes are edited as
			Markdown and converted back on save.
		`),
		Example: "notetree edit 3cXbTxHbOmTU",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := load()
			if err != nil {
				return err
			}
			defer st.Close()

			term := editor.NewSnapshotTerminal(int(os.Stdin.Fd()))
			return Run(cmd.Context(), st, args[0], term, cmd.OutOrStdout())
		},
	}
	return cmd
}

// Run edits note id with term handed to the editor and reports the result
// on out.
func Run(ctx context.Context, st *state.State, id string, term editor.Terminal, out io.Writer) error {
	note := st.GetNote(ctx, state.SlotNote, id)
	if note.Err != nil {
		return fmt.Errorf("get note %s: %w", id, note.Err)
	}
	body := st.Content(ctx, id)
	if body.Err != nil {
		return fmt.Errorf("get content of %s: %w", id, body.Err)
	}

	ed := &editor.Editor{Terminal: term, Logger: st.Logger}
	outcome, err := editor.NewEditSession(ed, st.Converter).Edit(ctx, note.Value, body.Value)
	if err != nil {
		return err
	}
	if !outcome.Changed {
		fmt.Fprintln(out, "No changes.")
		return nil
	}

	if res := st.Save(ctx, id, outcome.Content); res.Err != nil {
		return fmt.Errorf("save %s: %w", id, res.Err)
	}
	fmt.Fprintf(out, "Saved %s.\n", note.Value.Title)
	return nil
}
