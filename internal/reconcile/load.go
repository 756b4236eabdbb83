package reconcile

import (
	"context"
	"fmt"

	"booklet-cli/internal/draft"
	"booklet-cli/internal/model"
)

// Loader is a Remote that can also resolve display metadata for the versions it holds.
type Loader interface {
	ListItems(ctx context.Context, bookletID int64) ([]model.Item, error)
	CandidatesByVersion(ctx context.Context, versionIDs []int64) (map[int64]model.Candidate, error)
}

// Load reads the persisted booklet into a fresh draft. Callers use it both to open the
// editor and to resynchronise after a failed reconcile.
func Load(ctx context.Context, src Loader, bookletID int64, keys draft.KeyGen) ([]draft.Item, error) {
	items, err := src.ListItems(ctx, bookletID)
	if err != nil {
		return nil, fmt.Errorf("load booklet %d: %w", bookletID, err)
	}
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.VersionID)
	}
	cands, err := src.CandidatesByVersion(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load booklet %d metadata: %w", bookletID, err)
	}
	return draft.FromRemote(items, draft.MetaFrom(cands), keys), nil
}
