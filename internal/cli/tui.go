package cli

import (
	"booklet-cli/internal/tui"

	"github.com/spf13/cobra"
)

func newTUICmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tui <booklet-id>",
		Short: "Edit a booklet interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("booklet", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			b, err := app.backend(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := tui.Run(cmd.Context(), b, id, tui.Options{
				PageSize:       app.config().EffectivePageSize(),
				DisplaceOffset: app.config().DisplaceOffset,
				Logger:         app.logger(),
			}); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
}
