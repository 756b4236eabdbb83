package draft

import (
	"iter"

	"booklet-cli/internal/model"
)

type MergeResult struct {
	Items []Item `json:"items"`
	Added int    `json:"added"`
	// Duplicates counts candidates skipped because their version was already in the draft
	// (or appeared earlier in the same batch). Feedback only.
	Duplicates int `json:"duplicates"`
}

// MergeSelected appends a fresh entry for every candidate whose version is not yet in the
// draft. Existing entries keep their keys, ids and relative order.
func MergeSelected(items []Item, candidates iter.Seq[model.Candidate], keys KeyGen) MergeResult {
	present := VersionIDs(items)
	out := make([]Item, len(items), len(items)+8)
	copy(out, items)

	res := MergeResult{}
	if candidates != nil {
		for c := range candidates {
			if present[c.VersionID] {
				res.Duplicates++
				continue
			}
			present[c.VersionID] = true
			out = append(out, Item{
				LocalKey:  keys.NewKey(),
				VersionID: c.VersionID,
				Meta:      metaFromCandidate(c),
			})
			res.Added++
		}
	}
	res.Items = Normalize(out)
	return res
}
