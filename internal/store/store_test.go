package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"booklet-cli/internal/draft"
	"booklet-cli/internal/model"
	"booklet-cli/internal/reconcile"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "booklets.sqlite"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// seedBooklet creates a booklet holding n fresh question-versions at ranks 1..n and returns
// the booklet plus every version created (including spare ones not in the booklet).
func seedBooklet(t *testing.T, s *Store, n, spare int) (model.Booklet, []model.Candidate) {
	t.Helper()
	ctx := context.Background()
	b, err := s.CreateBooklet(ctx, "Midterm", "Math")
	require.NoError(t, err)

	var cands []model.Candidate
	for i := 0; i < n+spare; i++ {
		c, err := s.AddQuestionVersion(ctx, QuestionInput{
			Code:       fmt.Sprintf("M-%02d", i+1),
			Title:      fmt.Sprintf("Question %d", i+1),
			Subject:    "Math",
			Difficulty: model.DifficultyMedium,
		})
		require.NoError(t, err)
		cands = append(cands, c)
	}
	for i := 0; i < n; i++ {
		_, err := s.CreateItem(ctx, b.ID, model.ItemSpec{VersionID: cands[i].VersionID, Rank: i + 1})
		require.NoError(t, err)
	}
	return b, cands
}

func versions(items []model.Item) []int64 {
	out := make([]int64, 0, len(items))
	for _, it := range items {
		out = append(out, it.VersionID)
	}
	return out
}

func TestStore_BookletCRUD(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := openTestStore(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	b, err := s.CreateBooklet(ctx, "  Final exam ", "Physics")
	require.NoError(t, err)
	require.Equal(t, "Final exam", b.Title)
	require.True(t, now.Equal(b.CreatedAt))

	_, err = s.CreateBooklet(ctx, " ", "")
	require.Error(t, err)

	list, err := s.ListBooklets(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = s.GetBooklet(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_RankUniqueness(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	b, cands := seedBooklet(t, s, 2, 1)

	_, err := s.CreateItem(ctx, b.ID, model.ItemSpec{VersionID: cands[2].VersionID, Rank: 1})
	require.ErrorIs(t, err, ErrConflict)

	_, err = s.CreateItem(ctx, b.ID, model.ItemSpec{VersionID: cands[0].VersionID, Rank: 3})
	require.ErrorIs(t, err, ErrConflict)

	items, err := s.ListItems(ctx, b.ID)
	require.NoError(t, err)
	two := 2
	_, err = s.UpdateItem(ctx, b.ID, items[0].ID, model.ItemPatch{Rank: &two})
	require.ErrorIs(t, err, ErrConflict)
}

func TestStore_CreateItemUnknownVersion(t *testing.T) {
	s := openTestStore(t)
	b, _ := seedBooklet(t, s, 0, 0)
	_, err := s.CreateItem(context.Background(), b.ID, model.ItemSpec{VersionID: 4242, Rank: 1})
	require.ErrorIs(t, err, ErrInvalidReference)
}

func TestStore_MissingItem(t *testing.T) {
	s := openTestStore(t)
	b, _ := seedBooklet(t, s, 1, 0)
	ctx := context.Background()
	one := 1
	_, err := s.UpdateItem(ctx, b.ID, 777, model.ItemPatch{Rank: &one})
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.DeleteItem(ctx, b.ID, 777), ErrNotFound)

	_, err = s.ListItems(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ReplaceItems(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	b, cands := seedBooklet(t, s, 3, 1)

	got, err := s.ReplaceItems(ctx, b.ID, []model.ItemSpec{
		{VersionID: cands[3].VersionID, Rank: 1},
		{VersionID: cands[0].VersionID, Rank: 2},
	})
	require.NoError(t, err)
	require.Equal(t, []int64{cands[3].VersionID, cands[0].VersionID}, versions(got))
}

func TestStore_ReplaceItemsRollsBackOnConflict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	b, cands := seedBooklet(t, s, 2, 0)

	_, err := s.ReplaceItems(ctx, b.ID, []model.ItemSpec{
		{VersionID: cands[0].VersionID, Rank: 1},
		{VersionID: cands[1].VersionID, Rank: 1},
	})
	require.ErrorIs(t, err, ErrConflict)

	items, err := s.ListItems(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{cands[0].VersionID, cands[1].VersionID}, versions(items))
}

func TestStore_ReplaceItemsUnsupported(t *testing.T) {
	s := openTestStore(t, WithBulkReplace(false))
	b, _ := seedBooklet(t, s, 1, 0)
	_, err := s.ReplaceItems(context.Background(), b.ID, nil)
	require.True(t, reconcile.IsUnsupported(err))
}

func TestStore_ReconcileFallbackAgainstUniqueRanks(t *testing.T) {
	s := openTestStore(t, WithBulkReplace(false))
	ctx := context.Background()
	b, cands := seedBooklet(t, s, 4, 1)

	remote, err := s.ListItems(ctx, b.ID)
	require.NoError(t, err)
	keys := &draft.CounterKeys{}
	original := draft.FromRemote(remote, nil, keys)

	// Reverse, drop the last original, add the spare.
	target := draft.Move(original, original[3].LocalKey, original[0].LocalKey)
	target = draft.Move(target, original[2].LocalKey, original[0].LocalKey)
	target = draft.Move(target, original[1].LocalKey, original[0].LocalKey)
	target = draft.RemoveByKey(target, original[3].LocalKey)
	target = draft.MergeSelected(target, func(yield func(model.Candidate) bool) {
		yield(cands[4])
	}, keys).Items

	res, err := reconcile.New(s, zap.NewNop()).Reconcile(ctx, b.ID, original, target)
	require.NoError(t, err)
	require.Equal(t, reconcile.ModeFallback, res.Mode)
	require.Equal(t, []int64{
		cands[2].VersionID, cands[1].VersionID, cands[0].VersionID, cands[4].VersionID,
	}, versions(res.Items))
	for i, it := range res.Items {
		require.Equal(t, i+1, it.Rank)
	}
}

func TestStore_ReconcileFallbackWithSparseRanks(t *testing.T) {
	s := openTestStore(t, WithBulkReplace(false))
	ctx := context.Background()
	b, cands := seedBooklet(t, s, 0, 2)
	_, err := s.CreateItem(ctx, b.ID, model.ItemSpec{VersionID: cands[0].VersionID, Rank: 1})
	require.NoError(t, err)
	_, err = s.CreateItem(ctx, b.ID, model.ItemSpec{VersionID: cands[1].VersionID, Rank: 1001})
	require.NoError(t, err)

	remote, err := s.ListItems(ctx, b.ID)
	require.NoError(t, err)
	original := draft.FromRemote(remote, nil, &draft.CounterKeys{})

	res, err := reconcile.New(s, zap.NewNop()).Reconcile(ctx, b.ID, original, original)
	require.NoError(t, err)
	require.Equal(t, []int64{cands[0].VersionID, cands[1].VersionID}, versions(res.Items))
	require.Equal(t, 1, res.Items[0].Rank)
	require.Equal(t, 2, res.Items[1].Rank)
}

func TestStore_ItemWritesFailWhenBookletTouchFails(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	b, cands := seedBooklet(t, s, 1, 1)
	before, err := s.ListItems(ctx, b.ID)
	require.NoError(t, err)

	_, err = s.db.ExecContext(ctx, `CREATE TRIGGER booklets_frozen BEFORE UPDATE ON booklets BEGIN SELECT RAISE(ABORT, 'booklet is frozen'); END`)
	require.NoError(t, err)

	_, err = s.CreateItem(ctx, b.ID, model.ItemSpec{VersionID: cands[1].VersionID, Rank: 2})
	require.Error(t, err)
	rank := 5
	_, err = s.UpdateItem(ctx, b.ID, before[0].ID, model.ItemPatch{Rank: &rank})
	require.Error(t, err)
	require.Error(t, s.DeleteItem(ctx, b.ID, before[0].ID))

	after, err := s.ListItems(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestStore_SearchCandidatesPaging(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := s.AddQuestionVersion(ctx, QuestionInput{Code: fmt.Sprintf("A-%d", i), Title: "Algebra", Subject: "Math"})
		require.NoError(t, err)
	}
	_, err := s.AddQuestionVersion(ctx, QuestionInput{Code: "H-1", Title: "Rome", Subject: "History", Difficulty: model.DifficultyHard})
	require.NoError(t, err)

	p1, err := s.SearchCandidates(ctx, model.SearchFilter{Subject: "math"}, model.Page{Number: 1, Size: 2})
	require.NoError(t, err)
	require.Len(t, p1.Results, 2)
	require.Equal(t, 5, p1.Total)
	require.True(t, p1.HasNext)
	require.False(t, p1.HasPrevious)

	p3, err := s.SearchCandidates(ctx, model.SearchFilter{Subject: "math"}, model.Page{Number: 3, Size: 2})
	require.NoError(t, err)
	require.Len(t, p3.Results, 1)
	require.False(t, p3.HasNext)
	require.True(t, p3.HasPrevious)

	hard, err := s.SearchCandidates(ctx, model.SearchFilter{Query: "rom", Difficulty: model.DifficultyHard}, model.Page{})
	require.NoError(t, err)
	require.Len(t, hard.Results, 1)
	require.Equal(t, "H-1", hard.Results[0].Code)
}

func TestStore_AddQuestionVersionIncrementsVersion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	v1, err := s.AddQuestionVersion(ctx, QuestionInput{Code: "P-1", Title: "Pendulum"})
	require.NoError(t, err)
	v2, err := s.AddQuestionVersion(ctx, QuestionInput{Code: "P-1", Title: "Pendulum (revised)"})
	require.NoError(t, err)
	require.Equal(t, v1.QuestionID, v2.QuestionID)
	require.NotEqual(t, v1.VersionID, v2.VersionID)

	gen, err := s.AddQuestionVersion(ctx, QuestionInput{Title: "No code"})
	require.NoError(t, err)
	require.Regexp(t, `^Q-[A-Z2-7]{8}$`, gen.Code)

	byID, err := s.CandidatesByVersion(ctx, []int64{v1.VersionID, v2.VersionID, 999})
	require.NoError(t, err)
	require.Len(t, byID, 2)
	require.Equal(t, "Pendulum (revised)", byID[v2.VersionID].Title)
}
