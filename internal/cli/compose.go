package cli

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"booklet-cli/internal/draft"
	"booklet-cli/internal/model"
	"booklet-cli/internal/reconcile"

	"github.com/spf13/cobra"
)

type composeEdits struct {
	removes []int64
	moves   [][2]int64
	adds    []int64
}

func parseMoves(specs []string) ([][2]int64, error) {
	out := make([][2]int64, 0, len(specs))
	for _, s := range specs {
		from, to, ok := strings.Cut(s, ":")
		if !ok {
			return nil, errUsage("invalid --move %q (want <version>:<version>)", s)
		}
		f, err := parseID("version", from)
		if err != nil {
			return nil, err
		}
		t, err := parseID("version", to)
		if err != nil {
			return nil, err
		}
		out = append(out, [2]int64{f, t})
	}
	return out, nil
}

func keyForVersion(items []draft.Item, versionID int64) (string, error) {
	for _, it := range items {
		if it.VersionID == versionID {
			return it.LocalKey, nil
		}
	}
	return "", errUsage("version %d is not in the booklet", versionID)
}

type composeOutcome struct {
	Target     []draft.Item
	Added      int
	Duplicates int
}

// applyEdits runs removes, then moves, then adds against the loaded draft.
func applyEdits(original []draft.Item, e composeEdits, cands map[int64]model.Candidate, keys draft.KeyGen) (composeOutcome, error) {
	target := original
	for _, v := range e.removes {
		k, err := keyForVersion(target, v)
		if err != nil {
			return composeOutcome{}, err
		}
		target = draft.RemoveByKey(target, k)
	}
	for _, mv := range e.moves {
		from, err := keyForVersion(target, mv[0])
		if err != nil {
			return composeOutcome{}, err
		}
		to, err := keyForVersion(target, mv[1])
		if err != nil {
			return composeOutcome{}, err
		}
		target = draft.Move(target, from, to)
	}

	picked := make([]model.Candidate, 0, len(e.adds))
	for _, v := range e.adds {
		c, ok := cands[v]
		if !ok {
			return composeOutcome{}, errUsage("unknown question version %d", v)
		}
		picked = append(picked, c)
	}
	merged := draft.MergeSelected(target, slices.Values(picked), keys)
	return composeOutcome{Target: merged.Items, Added: merged.Added, Duplicates: merged.Duplicates}, nil
}

type composeDryRun struct {
	Original   []draft.Item   `json:"original"`
	Target     []draft.Item   `json:"target"`
	Added      int            `json:"added"`
	Duplicates int            `json:"duplicates"`
	Plan       reconcile.Plan `json:"plan"`
}

type composeApplied struct {
	Mode       reconcile.Mode `json:"mode"`
	Items      []model.Item   `json:"items"`
	Ops        []reconcile.Op `json:"ops,omitempty"`
	Added      int            `json:"added"`
	Duplicates int            `json:"duplicates"`
}

func newComposeCmd(app *App) *cobra.Command {
	var add, remove string
	var moves []string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "compose <booklet-id>",
		Short: "Edit a booklet's questions and save them back",
		Long: strings.TrimSpace(`
Load a booklet, apply edits to the draft and reconcile it with the store.

Edits apply in this order: --remove, then each --move, then --add. All arguments are
question version ids. A move takes the first entry out and reinserts it where the second
one was (a list move, not a swap).

Saving tries an atomic replace first. If the server has replace disabled, the edits are
applied item by item (delete, displace, settle, create). A failure stops at the first
failed call and nothing is rolled back.
`),
		Example: strings.TrimSpace(`
# Append two versions
booklet compose 3 --add 41,42

# Move version 42 to where version 7 is, then drop version 9
booklet compose 3 --move 42:7 --remove 9

# Print the item-by-item plan without saving
booklet compose 3 --remove 9 --dry-run
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID("booklet", args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			var e composeEdits
			if e.removes, err = parseIDList("version", remove); err != nil {
				return writeErr(cmd, err)
			}
			if e.adds, err = parseIDList("version", add); err != nil {
				return writeErr(cmd, err)
			}
			if e.moves, err = parseMoves(moves); err != nil {
				return writeErr(cmd, err)
			}

			b, err := app.backend(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			keys := draft.UUIDKeys{}
			original, err := reconcile.Load(ctx, b, id, keys)
			if err != nil {
				return writeErr(cmd, err)
			}
			cands := map[int64]model.Candidate{}
			if len(e.adds) > 0 {
				if cands, err = b.CandidatesByVersion(ctx, e.adds); err != nil {
					return writeErr(cmd, err)
				}
			}
			out, err := applyEdits(original, e, cands, keys)
			if err != nil {
				return writeErr(cmd, err)
			}

			rec := app.reconciler(b)
			if dryRun {
				return writeOut(cmd, app, map[string]any{"data": composeDryRun{
					Original:   original,
					Target:     out.Target,
					Added:      out.Added,
					Duplicates: out.Duplicates,
					Plan:       rec.Plan(original, out.Target),
				}})
			}

			res, err := rec.Reconcile(ctx, id, original, out.Target)
			if err != nil {
				var pe *reconcile.PhaseError
				if errors.As(err, &pe) && pe.Partial() {
					err = withHint(err, fmt.Sprintf("%d change(s) were applied before the failure; run `booklet items list %d` and retry from the current state", pe.Completed, id))
				} else {
					err = withHint(err, fmt.Sprintf("run `booklet items list %d` to check the stored order before retrying", id))
				}
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": composeApplied{
				Mode:       res.Mode,
				Items:      res.Items,
				Ops:        res.Ops,
				Added:      out.Added,
				Duplicates: out.Duplicates,
			}})
		},
	}
	cmd.Flags().StringVar(&add, "add", "", "Comma-separated version ids to append")
	cmd.Flags().StringVar(&remove, "remove", "", "Comma-separated version ids to remove")
	cmd.Flags().StringArrayVar(&moves, "move", nil, "Move <version>:<version> (repeatable)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the target draft and fallback plan without saving")
	return cmd
}
