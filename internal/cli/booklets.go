package cli

import (
	"strconv"
	"strings"
	"time"

	"booklet-cli/internal/model"

	"github.com/spf13/cobra"
)

type bookletTable []model.Booklet

func (t bookletTable) Header() []string { return []string{"ID", "TITLE", "SUBJECT", "UPDATED"} }

func (t bookletTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, b := range t {
		rows = append(rows, []string{
			strconv.FormatInt(b.ID, 10),
			b.Title,
			b.Subject,
			b.UpdatedAt.Local().Format(time.DateTime),
		})
	}
	return rows
}

func newBookletsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "booklets",
		Aliases: []string{"booklet"},
		Short:   "Booklet commands",
	}
	cmd.AddCommand(newBookletsListCmd(app))
	cmd.AddCommand(newBookletsCreateCmd(app))
	cmd.AddCommand(newBookletsShowCmd(app))
	return cmd
}

func newBookletsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List booklets (most recently edited first)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := app.backend(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			list, err := b.ListBooklets(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeData(cmd, app, bookletTable(list))
		},
	}
}

func newBookletsCreateCmd(app *App) *cobra.Command {
	var title, subject string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an empty booklet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(title) == "" {
				return writeErr(cmd, errUsage("missing --title"))
			}
			b, err := app.backend(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			created, err := b.CreateBooklet(cmd.Context(), strings.TrimSpace(title), strings.TrimSpace(subject))
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": created})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Booklet title (required)")
	cmd.Flags().StringVar(&subject, "subject", "", "Subject the booklet covers")
	return cmd
}

type bookletView struct {
	Booklet model.Booklet `json:"booklet"`
	Items   []itemView    `json:"items"`
}

func newBookletsShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <booklet-id>",
		Short: "Show a booklet with its questions in rank order",
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
			booklet, err := b.GetBooklet(cmd.Context(), id)
			if err != nil {
				return writeErr(cmd, err)
			}
			items, err := listItemViews(cmd.Context(), b, id)
			if err != nil {
				return writeErr(cmd, err)
			}
			if isTable(app) {
				return writeData(cmd, app, itemTable(items))
			}
			return writeOut(cmd, app, map[string]any{"data": bookletView{Booklet: booklet, Items: items}})
		},
	}
}

func isTable(app *App) bool {
	return strings.EqualFold(strings.TrimSpace(app.Format), "table")
}
