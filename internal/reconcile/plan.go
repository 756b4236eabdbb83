package reconcile

import (
	"fmt"

	"booklet-cli/internal/draft"
)

// DefaultDisplaceOffset lifts interim ranks well clear of 1..N for any realistic booklet.
const DefaultDisplaceOffset = 1000

type OpKind string

const (
	OpDelete OpKind = "delete"
	OpUpdate OpKind = "update"
	OpCreate OpKind = "create"
)

type Op struct {
	Phase     Phase  `json:"phase"`
	Kind      OpKind `json:"kind"`
	RemoteID  int64  `json:"remoteId,omitempty"`
	VersionID int64  `json:"versionId"`
	Rank      int    `json:"rank,omitempty"`
}

func (o Op) String() string {
	switch o.Kind {
	case OpDelete:
		return fmt.Sprintf("%s: delete item %d (version %d)", o.Phase, o.RemoteID, o.VersionID)
	case OpUpdate:
		return fmt.Sprintf("%s: item %d (version %d) -> rank %d", o.Phase, o.RemoteID, o.VersionID, o.Rank)
	default:
		return fmt.Sprintf("%s: create version %d at rank %d", o.Phase, o.VersionID, o.Rank)
	}
}

// Plan is the item-by-item diff used when the remote cannot replace atomically.
// Phases must run in field order.
type Plan struct {
	Deletes   []Op `json:"deletes"`
	Displaces []Op `json:"displaces"`
	Settles   []Op `json:"settles"`
	Creates   []Op `json:"creates"`
}

func (p Plan) Empty() bool { return p.Len() == 0 }

func (p Plan) Len() int {
	return len(p.Deletes) + len(p.Displaces) + len(p.Settles) + len(p.Creates)
}

type PhaseOps struct {
	Phase Phase
	Ops   []Op
}

// Phases returns the plan in execution order.
func (p Plan) Phases() []PhaseOps {
	return []PhaseOps{
		{PhaseDelete, p.Deletes},
		{PhaseDisplace, p.Displaces},
		{PhaseSettle, p.Settles},
		{PhaseCreate, p.Creates},
	}
}

// BuildPlan diffs original (as persisted) against target (as edited). Entries are matched by
// version id; only originals carrying a remote id take part, since anything else was never
// persisted. Target positions come from Rank, not slice order, so the result matches what an
// atomic replace of the same target would store.
//
// A target entry whose version matches a persisted original is a survivor and reuses that
// remote id even if the target itself lost it (e.g. removed and re-added in the same session).
func BuildPlan(original, target []draft.Item, displaceOffset int) Plan {
	if displaceOffset <= 0 {
		displaceOffset = DefaultDisplaceOffset
	}
	// Interim ranks start at displaceOffset+1, so the offset must reach the highest rank
	// an original holds on the remote, which can exceed N when the remote has gaps.
	floor := len(original) + len(target)
	for _, it := range original {
		if it.RemoteID != nil {
			floor = max(floor, it.CurrentRank())
		}
	}
	displaceOffset = max(displaceOffset, floor)
	target = draft.ByRank(target)

	persisted := make(map[int64]draft.Item, len(original))
	for _, it := range original {
		if it.RemoteID == nil {
			continue
		}
		persisted[it.VersionID] = it
	}
	inTarget := draft.VersionIDs(target)

	var p Plan
	for _, it := range original {
		if it.RemoteID == nil || inTarget[it.VersionID] {
			continue
		}
		p.Deletes = append(p.Deletes, Op{
			Phase:     PhaseDelete,
			Kind:      OpDelete,
			RemoteID:  *it.RemoteID,
			VersionID: it.VersionID,
		})
	}

	for i, it := range target {
		orig, ok := persisted[it.VersionID]
		if !ok {
			continue
		}
		p.Displaces = append(p.Displaces, Op{
			Phase:     PhaseDisplace,
			Kind:      OpUpdate,
			RemoteID:  *orig.RemoteID,
			VersionID: it.VersionID,
			Rank:      displaceOffset + i + 1,
		})
		p.Settles = append(p.Settles, Op{
			Phase:     PhaseSettle,
			Kind:      OpUpdate,
			RemoteID:  *orig.RemoteID,
			VersionID: it.VersionID,
			Rank:      i + 1,
		})
	}

	for i, it := range target {
		if _, ok := persisted[it.VersionID]; ok {
			continue
		}
		p.Creates = append(p.Creates, Op{
			Phase:     PhaseCreate,
			Kind:      OpCreate,
			VersionID: it.VersionID,
			Rank:      i + 1,
		})
	}
	return p
}
