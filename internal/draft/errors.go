package draft

import (
	"fmt"
	"strings"
)

type Violation struct {
	Kind  string `json:"kind"`
	Key   string `json:"key,omitempty"`
	Value int64  `json:"value,omitempty"`
}

func (v Violation) String() string {
	if v.Key != "" {
		return fmt.Sprintf("%s (key %s, %d)", v.Kind, v.Key, v.Value)
	}
	return fmt.Sprintf("%s (%d)", v.Kind, v.Value)
}

const (
	ViolationRankGap          = "rank-gap"
	ViolationDuplicateRank    = "duplicate-rank"
	ViolationDuplicateVersion = "duplicate-version"
	ViolationDuplicateKey     = "duplicate-key"
	ViolationEmptyKey         = "empty-key"
)

// InvariantError lists every violation found by Validate.
type InvariantError struct {
	Violations []Violation
}

func (e *InvariantError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return "invalid draft: " + strings.Join(parts, "; ")
}

// Validate checks rank contiguity and the uniqueness of version ids and local keys.
func Validate(items []Item) error {
	var vs []Violation
	ranks := make(map[int]int, len(items))
	versions := make(map[int64]bool, len(items))
	keys := make(map[string]bool, len(items))
	for _, it := range items {
		ranks[it.Rank]++
		if ranks[it.Rank] == 2 {
			vs = append(vs, Violation{Kind: ViolationDuplicateRank, Key: it.LocalKey, Value: int64(it.Rank)})
		}
		if versions[it.VersionID] {
			vs = append(vs, Violation{Kind: ViolationDuplicateVersion, Key: it.LocalKey, Value: it.VersionID})
		}
		versions[it.VersionID] = true
		switch {
		case strings.TrimSpace(it.LocalKey) == "":
			vs = append(vs, Violation{Kind: ViolationEmptyKey, Value: it.VersionID})
		case keys[it.LocalKey]:
			vs = append(vs, Violation{Kind: ViolationDuplicateKey, Key: it.LocalKey, Value: it.VersionID})
		}
		keys[it.LocalKey] = true
	}
	for r := 1; r <= len(items); r++ {
		if ranks[r] == 0 {
			vs = append(vs, Violation{Kind: ViolationRankGap, Value: int64(r)})
		}
	}
	if len(vs) == 0 {
		return nil
	}
	return &InvariantError{Violations: vs}
}
