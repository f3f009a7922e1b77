package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/araddon/dateparse"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Paintersrp/notetree/internal/api"
	"github.com/Paintersrp/notetree/internal/state"
	"github.com/Paintersrp/notetree/internal/tui/app"
)

type Options struct {
	Since string
	Mode  string
}

func NewCmdTui(load state.Loader) *cobra.Command {
	var opts Options

	cmd := &cobra.Command{
		Use:     "tui",
		Aliases: []string{"t", "browse"},
		Short:   "Open the interactive note browser.",
		Long: heredoc.Doc(`
			Opens the note tree in a full screen browser. Tab cycles through the
			tree, content, search, recent, bookmarks, split and log views; press ?
			inside the browser for every key.
		`),
		Example: heredoc.Doc(`
			notetree tui --mode search
			notetree tui --since 2024-05-01
		`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(load, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Since, "since", "", "Only list notes modified after this date in Recent.")
	cmd.Flags().StringVarP(&opts.Mode, "mode", "m", "tree", "View to open first.")
	return cmd
}

// appOptions validates the flags before anything touches the network.
func (o Options) appOptions() (app.Options, error) {
	var out app.Options

	if s := strings.TrimSpace(o.Since); s != "" {
		t, err := dateparse.ParseLocal(s)
		if err != nil {
			return out, &api.ValidationError{Field: "since", Msg: fmt.Sprintf("cannot parse %q as a date", s)}
		}
		out.Since = t
	}

	if s := strings.TrimSpace(o.Mode); s != "" {
		mode, ok := app.ParseMode(s)
		if !ok || mode == app.ModeHelp {
			return out, &api.ValidationError{Field: "mode", Msg: fmt.Sprintf("unknown view %q", s)}
		}
		out.Mode = mode
	}
	return out, nil
}

func Run(load state.Loader, o Options) error {
	opts, err := o.appOptions()
	if err != nil {
		return err
	}

	st, err := load()
	if err != nil {
		return err
	}
	defer st.Close()

	term := &programTerminal{}
	opts.Terminal = term
	p := tea.NewProgram(app.New(st, opts), tea.WithAltScreen())
	term.p = p

	started := time.Now()
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run browser: %w", err)
	}
	st.Logger.Debug("browser closed", "elapsed", time.Since(started))
	return nil
}

// programTerminal lets the model hold the editor terminal before the
// program that owns the screen exists.
type programTerminal struct {
	p *tea.Program
}

func (t *programTerminal) ReleaseTerminal() error {
	if t.p == nil {
		return nil
	}
	return t.p.ReleaseTerminal()
}

func (t *programTerminal) RestoreTerminal() error {
	if t.p == nil {
		return nil
	}
	return t.p.RestoreTerminal()
}
