package cli

import (
	"strconv"
	"strings"

	"booklet-cli/internal/model"
	"booklet-cli/internal/store"

	"github.com/spf13/cobra"
)

type candidateTable []model.Candidate

func (t candidateTable) Header() []string {
	return []string{"VERSION", "CODE", "TITLE", "SUBJECT", "DIFFICULTY"}
}

func (t candidateTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, c := range t {
		rows = append(rows, []string{
			strconv.FormatInt(c.VersionID, 10),
			c.Code,
			c.Title,
			c.Subject,
			string(c.Difficulty),
		})
	}
	return rows
}

func newQuestionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "questions",
		Aliases: []string{"q"},
		Short:   "Question catalogue commands",
	}
	cmd.AddCommand(newQuestionsAddCmd(app))
	cmd.AddCommand(newQuestionsSearchCmd(app))
	return cmd
}

func parseDifficulty(s string) (model.Difficulty, error) {
	d := model.Difficulty(strings.ToLower(strings.TrimSpace(s)))
	switch d {
	case "", model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard:
		return d, nil
	}
	return "", errUsage("invalid --difficulty %q (want easy|medium|hard)", s)
}

func newQuestionsAddCmd(app *App) *cobra.Command {
	var in store.QuestionInput
	var difficulty string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a question version (a new code creates the question)",
		Long: strings.TrimSpace(`
Add a question version to the catalogue.

Reusing an existing --code adds a new version of that question; earlier versions stay
referenceable by the booklets that already contain them.
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDifficulty(difficulty)
			if err != nil {
				return writeErr(cmd, err)
			}
			in.Difficulty = d
			if strings.TrimSpace(in.Title) == "" {
				return writeErr(cmd, errUsage("missing --title"))
			}
			b, err := app.backend(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			c, err := b.AddQuestionVersion(cmd.Context(), in)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": c})
		},
	}
	cmd.Flags().StringVar(&in.Code, "code", "", "Question code (stable across versions)")
	cmd.Flags().StringVar(&in.Title, "title", "", "Version title (required)")
	cmd.Flags().StringVar(&in.Subject, "subject", "", "Subject")
	cmd.Flags().StringVar(&difficulty, "difficulty", "", "easy|medium|hard")
	cmd.Flags().StringVar(&in.Stem, "stem", "", "Question text (markdown)")
	return cmd
}

type searchView struct {
	Page int `json:"page"`
	Size int `json:"size"`
	model.SearchResult
}

func newQuestionsSearchCmd(app *App) *cobra.Command {
	var filter model.SearchFilter
	var difficulty string
	var page, size int

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search question versions, one page at a time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := parseDifficulty(difficulty)
			if err != nil {
				return writeErr(cmd, err)
			}
			filter.Difficulty = d
			if page < 1 {
				return writeErr(cmd, errUsage("--page must be >= 1"))
			}
			if size < 1 {
				size = app.config().EffectivePageSize()
			}
			b, err := app.backend(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			res, err := b.SearchCandidates(cmd.Context(), filter, model.Page{Number: page, Size: size})
			if err != nil {
				return writeErr(cmd, err)
			}
			if isTable(app) {
				return writeData(cmd, app, candidateTable(res.Results))
			}
			return writeOut(cmd, app, map[string]any{"data": searchView{Page: page, Size: size, SearchResult: res}})
		},
	}
	cmd.Flags().StringVar(&filter.Query, "q", "", "Match code or title (case-insensitive)")
	cmd.Flags().StringVar(&filter.Subject, "subject", "", "Filter by subject")
	cmd.Flags().StringVar(&difficulty, "difficulty", "", "Filter by difficulty")
	cmd.Flags().IntVar(&page, "page", 1, "Page number (1-based)")
	cmd.Flags().IntVar(&size, "size", 0, "Page size (default: config page_size)")
	return cmd
}
