package root

import (
	"github.com/MakeNowJust/heredoc/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Paintersrp/notetree/internal/constants"
	"github.com/Paintersrp/notetree/internal/logging"
	"github.com/Paintersrp/notetree/internal/state"
	"github.com/Paintersrp/notetree/pkg/cmd/edit"
	"github.com/Paintersrp/notetree/pkg/cmd/jump"
	"github.com/Paintersrp/notetree/pkg/cmd/tui"
)

func NewCmdRoot(v *viper.Viper) *cobra.Command {
	opts := state.Options{Viper: v}
	load := func() (*state.State, error) {
		return state.NewState(opts)
	}

	cmd := &cobra.Command{
		Use:     constants.AppName,
		Aliases: []string{"nt"},
		Short:   "Browse, search and edit a Trilium note tree from the terminal.",
		Long: heredoc.Doc(`
			notetree connects to a Trilium server through its ETAPI and opens the
			note tree in an interactive terminal browser.

			Profiles live in ~/.config/notetree/config.yaml. The active profile is
			taken from --profile, then current_profile, then a prompt.
			NOTETREE_SERVER_URL and NOTETREE_API_TOKEN override the profile.
		`),
		Version:      constants.Version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		// Run the browser by default
		RunE: func(cmd *cobra.Command, args []string) error {
			return tui.Run(load, tui.Options{})
		},
	}

	cmd.PersistentFlags().
		StringVarP(&opts.Profile, "profile", "p", "", "Profile to use from the config file.")
	cmd.PersistentFlags().
		BoolVar(&opts.Debug, "debug", false, "Record debug messages in the log.")
	cmd.PersistentFlags().
		StringVar(&opts.LogFile, "log-file", "", "Also write the log to this file.")
	cmd.PersistentFlags().Lookup("log-file").NoOptDefVal = logging.DefaultPath()

	cmd.AddCommand(
		tui.NewCmdTui(load),
		edit.NewCmdEdit(load),
		jump.NewCmdJump(load),
	)

	return cmd
}
