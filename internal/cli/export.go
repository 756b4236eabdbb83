package cli

import (
	"strings"

	"booklet-cli/internal/publish"

	"github.com/spf13/cobra"
)

func newExportCmd(app *App) *cobra.Command {
	var to string
	var md, html, overwrite, term bool
	var width int

	cmd := &cobra.Command{
		Use:   "export <booklet-id>",
		Short: "Render a booklet as Markdown or HTML",
		Long: strings.TrimSpace(`
Render a booklet's questions in rank order.

Without --to the Markdown is printed to stdout (or a styled terminal rendering with --term).
With --to, booklet-<id>.md and/or booklet-<id>.html are written into that directory.
`),
		Example: strings.TrimSpace(`
booklet export 3 --term
booklet export 3 --to ./out --md --html
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID("booklet", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			b, err := app.backend(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			booklet, err := b.GetBooklet(ctx, id)
			if err != nil {
				return writeErr(cmd, err)
			}
			items, err := b.ListItems(ctx, id)
			if err != nil {
				return writeErr(cmd, err)
			}
			ids := make([]int64, 0, len(items))
			for _, it := range items {
				ids = append(ids, it.VersionID)
			}
			cands, err := b.CandidatesByVersion(ctx, ids)
			if err != nil {
				return writeErr(cmd, err)
			}
			doc := publish.Compose(booklet, items, cands)

			if strings.TrimSpace(to) != "" {
				res, err := publish.WriteBooklet(doc, to, publish.WriteOptions{Markdown: md, HTML: html, Overwrite: overwrite})
				if err != nil {
					return writeErr(cmd, err)
				}
				return writeOut(cmd, app, map[string]any{"data": res})
			}
			if term {
				out, err := publish.RenderTerminal(doc, width)
				if err != nil {
					return writeErr(cmd, err)
				}
				_, err = cmd.OutOrStdout().Write([]byte(out))
				return err
			}
			_, err = cmd.OutOrStdout().Write([]byte(publish.RenderMarkdown(doc)))
			return err
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Output directory")
	cmd.Flags().BoolVar(&md, "md", false, "Write Markdown (default when neither --md nor --html is set)")
	cmd.Flags().BoolVar(&html, "html", false, "Write HTML")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing files")
	cmd.Flags().BoolVar(&term, "term", false, "Render for the terminal instead of raw Markdown")
	cmd.Flags().IntVar(&width, "width", 80, "Wrap width for --term")
	return cmd
}
