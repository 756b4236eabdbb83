package cli

import (
	"context"
	"strconv"

	"booklet-cli/internal/model"
	"booklet-cli/internal/store"

	"github.com/spf13/cobra"
)

// itemView is a persisted item joined with the question version it points at.
type itemView struct {
	model.Item
	Question *model.Candidate `json:"question,omitempty"`
}

type itemTable []itemView

func (t itemTable) Header() []string {
	return []string{"RANK", "ITEM", "VERSION", "CODE", "TITLE", "DIFFICULTY"}
}

func (t itemTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, it := range t {
		code, title, diff := "", "(missing)", ""
		if it.Question != nil {
			code, title, diff = it.Question.Code, it.Question.Title, string(it.Question.Difficulty)
		}
		rows = append(rows, []string{
			strconv.Itoa(it.Rank),
			strconv.FormatInt(it.ID, 10),
			strconv.FormatInt(it.VersionID, 10),
			code,
			title,
			diff,
		})
	}
	return rows
}

func listItemViews(ctx context.Context, b store.Backend, bookletID int64) ([]itemView, error) {
	items, err := b.ListItems(ctx, bookletID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.VersionID)
	}
	cands, err := b.CandidatesByVersion(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]itemView, 0, len(items))
	for _, it := range items {
		v := itemView{Item: it}
		if c, ok := cands[it.VersionID]; ok {
			v.Question = &c
		}
		out = append(out, v)
	}
	return out, nil
}

func newItemsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Booklet item commands",
	}
	cmd.AddCommand(newItemsListCmd(app))
	return cmd
}

func newItemsListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list <booklet-id>",
		Short: "List the persisted items of a booklet in rank order",
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
			items, err := listItemViews(cmd.Context(), b, id)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeData(cmd, app, itemTable(items))
		},
	}
}
