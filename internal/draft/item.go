// Package draft holds the in-memory booklet draft: an ordered list of question-version
// entries with contiguous 1-based ranks.
//
// Every exported operation returns a new slice and leaves its input untouched, so the
// editing screen can keep the previous draft around (e.g. as the reconcile "original").
package draft

import (
	"sort"
	"strings"

	"booklet-cli/internal/model"
)

// Meta is a display cache copied from the candidate the entry was created from.
// It never participates in equality or dedup.
type Meta struct {
	Code       string           `json:"code,omitempty"`
	Title      string           `json:"title,omitempty"`
	Subject    string           `json:"subject,omitempty"`
	Difficulty model.Difficulty `json:"difficulty,omitempty"`
}

// Item is one draft entry. RemoteRank is the rank the remote held when the entry was
// loaded; it may have gaps and differ from Rank, and zero means unknown.
type Item struct {
	LocalKey   string `json:"localKey"`
	RemoteID   *int64 `json:"remoteId,omitempty"`
	RemoteRank int    `json:"remoteRank,omitempty"`
	VersionID  int64  `json:"versionId"`
	Rank       int    `json:"rank"`
	Meta       Meta   `json:"meta"`
}

func (it Item) Persisted() bool { return it.RemoteID != nil }

// CurrentRank is the rank the entry occupies on the remote right now, as far as the draft
// knows.
func (it Item) CurrentRank() int {
	if it.RemoteRank > 0 {
		return it.RemoteRank
	}
	return it.Rank
}

// Normalize reassigns ranks to 1..N following the current slice order.
func Normalize(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// RemoveByKey drops the entry with the given local key. An unknown key yields a
// renormalized copy of the input.
func RemoveByKey(items []Item, key string) []Item {
	key = strings.TrimSpace(key)
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.LocalKey == key {
			continue
		}
		out = append(out, it)
	}
	return Normalize(out)
}

// IndexOf returns the slice index of key, or -1.
func IndexOf(items []Item, key string) int {
	for i := range items {
		if items[i].LocalKey == key {
			return i
		}
	}
	return -1
}

// VersionIDs returns the set of version ids present in items.
func VersionIDs(items []Item) map[int64]bool {
	out := make(map[int64]bool, len(items))
	for _, it := range items {
		out[it.VersionID] = true
	}
	return out
}

// FromRemote builds a draft from a persisted listing. Items are ordered by rank, then id,
// so a remote with gaps or duplicate ranks still yields a valid draft.
func FromRemote(items []model.Item, meta map[int64]Meta, keys KeyGen) []Item {
	sorted := append([]model.Item{}, items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Rank != sorted[j].Rank {
			return sorted[i].Rank < sorted[j].Rank
		}
		return sorted[i].ID < sorted[j].ID
	})
	out := make([]Item, 0, len(sorted))
	for _, it := range sorted {
		id := it.ID
		out = append(out, Item{
			LocalKey:   keys.NewKey(),
			RemoteID:   &id,
			RemoteRank: it.Rank,
			VersionID:  it.VersionID,
			Meta:       meta[it.VersionID],
		})
	}
	return Normalize(out)
}

// ByRank returns a copy ordered by Rank. Entries with equal ranks keep their slice order.
func ByRank(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

// Specs describes the draft as a replace-all body.
func Specs(items []Item) []model.ItemSpec {
	out := make([]model.ItemSpec, 0, len(items))
	for _, it := range items {
		out = append(out, model.ItemSpec{VersionID: it.VersionID, Rank: it.Rank})
	}
	return out
}

// Candidate converts a draft entry back into a picker candidate, used when seeding a
// selection from the live draft.
func (it Item) Candidate() model.Candidate {
	return model.Candidate{
		VersionID:  it.VersionID,
		Code:       it.Meta.Code,
		Title:      it.Meta.Title,
		Subject:    it.Meta.Subject,
		Difficulty: it.Meta.Difficulty,
	}
}

func metaFromCandidate(c model.Candidate) Meta {
	return Meta{
		Code:       c.Code,
		Title:      c.Title,
		Subject:    c.Subject,
		Difficulty: c.Difficulty,
	}
}

// MetaFrom indexes candidate display data by version id for FromRemote.
func MetaFrom(cands map[int64]model.Candidate) map[int64]Meta {
	out := make(map[int64]Meta, len(cands))
	for id, c := range cands {
		out[id] = metaFromCandidate(c)
	}
	return out
}
