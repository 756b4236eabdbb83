package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"booklet-cli/internal/draft"
	"booklet-cli/internal/model"
	"booklet-cli/internal/reconcile"
	"booklet-cli/internal/store"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"
)

func keyRunes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var (
	keySpace = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
)

type fixture struct {
	store   *store.Store
	booklet model.Booklet
	vs      []model.Candidate
}

// newFixture opens a store holding `versions` questions T-1..T-n; the first `inBooklet` of
// them are already in the booklet at ranks 1..inBooklet.
func newFixture(t *testing.T, versions, inBooklet int, opts ...store.Option) fixture {
	t.Helper()
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "tui.sqlite"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	b, err := st.CreateBooklet(ctx, "Weekly quiz", "Geography")
	require.NoError(t, err)
	var vs []model.Candidate
	for i := 0; i < versions; i++ {
		c, err := st.AddQuestionVersion(ctx, store.QuestionInput{
			Code:    fmt.Sprintf("T-%d", i+1),
			Title:   fmt.Sprintf("Capital %d", i+1),
			Subject: "Geography",
		})
		require.NoError(t, err)
		vs = append(vs, c)
	}
	for i := 0; i < inBooklet; i++ {
		_, err := st.CreateItem(ctx, b.ID, model.ItemSpec{VersionID: vs[i].VersionID, Rank: i + 1})
		require.NoError(t, err)
	}
	return fixture{store: st, booklet: b, vs: vs}
}

func newTestEditor(t *testing.T, fx fixture, backend store.Backend) editorModel {
	t.Helper()
	if backend == nil {
		backend = fx.store
	}
	keygen := &draft.CounterKeys{}
	items, err := reconcile.Load(context.Background(), backend, fx.booklet.ID, keygen)
	require.NoError(t, err)
	return newEditorModel(context.Background(), backend, fx.booklet, items, keygen, Options{PageSize: 3})
}

// press sends msg and then runs every follow-up command synchronously.
func press(t *testing.T, m editorModel, msg tea.Msg) editorModel {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(editorModel)
	for cmd != nil {
		out := cmd()
		if out == nil {
			break
		}
		next, cmd = m.Update(out)
		m = next.(editorModel)
	}
	return m
}

func versionsOf(items []draft.Item) []int64 {
	out := make([]int64, 0, len(items))
	for _, it := range items {
		out = append(out, it.VersionID)
	}
	return out
}

func TestPicker_TogglePageSelectsAllThenClears(t *testing.T) {
	fx := newFixture(t, 5, 0)
	m := newTestEditor(t, fx, nil)

	m = press(t, m, keyRunes("a"))
	require.Equal(t, modePick, m.mode)
	require.Len(t, m.picker.result.Results, 3)

	// One row selected: the page is mixed, so toggle-page selects the rest.
	m = press(t, m, keySpace)
	require.Equal(t, 1, m.picker.sel.Len())
	m = press(t, m, keyRunes("A"))
	require.Equal(t, 3, m.picker.sel.Len())
	require.True(t, m.picker.sel.AllOnPageSelected(m.picker.result.Results))

	// Fully selected: toggle-page clears the whole page.
	m = press(t, m, keyRunes("A"))
	require.Equal(t, 0, m.picker.sel.Len())
}

func TestPicker_SelectionSpansPagesAndMergesInOrder(t *testing.T) {
	fx := newFixture(t, 5, 0)
	m := newTestEditor(t, fx, nil)

	m = press(t, m, keyRunes("a"))
	m = press(t, m, keyRunes("j"))
	m = press(t, m, keySpace) // T-2
	m = press(t, m, keyRunes("n"))
	require.Equal(t, 2, m.picker.page.Number)
	m = press(t, m, keySpace) // T-4
	m = press(t, m, keyRunes("p"))
	require.True(t, m.picker.sel.Has(fx.vs[1].VersionID), "selection survives paging")

	m = press(t, m, keyEnter)
	require.Equal(t, modeEdit, m.mode)
	require.Equal(t, []int64{fx.vs[1].VersionID, fx.vs[3].VersionID}, versionsOf(m.items))
	require.NoError(t, draft.Validate(m.items))
	require.True(t, m.dirty())
}

func TestPicker_SeededEntriesAreNotDuplicated(t *testing.T) {
	fx := newFixture(t, 3, 2)
	m := newTestEditor(t, fx, nil)

	m = press(t, m, keyRunes("a"))
	require.True(t, m.picker.sel.Has(fx.vs[0].VersionID))
	m = press(t, m, keyRunes("A")) // adds T-3 to the seeded T-1, T-2
	m = press(t, m, keyEnter)
	require.Equal(t, []int64{fx.vs[0].VersionID, fx.vs[1].VersionID, fx.vs[2].VersionID}, versionsOf(m.items))
	require.Equal(t, "added 1 question(s)", m.status)
}

func TestPicker_CancelledSessionLeavesNoResidue(t *testing.T) {
	fx := newFixture(t, 4, 1)
	m := newTestEditor(t, fx, nil)
	before := versionsOf(m.items)

	m = press(t, m, keyRunes("a"))
	m = press(t, m, keyRunes("j"))
	m = press(t, m, keySpace) // T-2
	require.True(t, m.picker.sel.Has(fx.vs[1].VersionID))
	m = press(t, m, keyEsc)
	require.Equal(t, modeEdit, m.mode)
	require.Equal(t, before, versionsOf(m.items))

	m = press(t, m, keyRunes("a"))
	require.False(t, m.picker.sel.Has(fx.vs[1].VersionID))
	require.True(t, m.picker.sel.Has(fx.vs[0].VersionID), "reopen re-seeds from the draft")
	require.Equal(t, 1, m.picker.sel.Len())
}

func TestPicker_DropsStalePages(t *testing.T) {
	fx := newFixture(t, 5, 0)
	m := newTestEditor(t, fx, nil)
	m = press(t, m, keyRunes("a"))

	stale := pageLoadedMsg{seq: m.picker.seq - 1, res: model.SearchResult{Total: 99}}
	m = press(t, m, stale)
	require.Equal(t, 5, m.picker.result.Total)
}

func TestPicker_SearchFiltersResults(t *testing.T) {
	fx := newFixture(t, 5, 0)
	m := newTestEditor(t, fx, nil)
	m = press(t, m, keyRunes("a"))

	next, _ := m.Update(keyRunes("/"))
	m = next.(editorModel)
	require.True(t, m.picker.editingQuery)
	for _, r := range "capital 4" {
		next, _ = m.Update(keyRunes(string(r)))
		m = next.(editorModel)
	}
	m = press(t, m, keyEnter)
	require.False(t, m.picker.editingQuery)
	require.Len(t, m.picker.result.Results, 1)
	require.Equal(t, "T-4", m.picker.result.Results[0].Code)
}

func TestEditor_ReorderRemoveAndSave(t *testing.T) {
	fx := newFixture(t, 3, 3)
	m := newTestEditor(t, fx, nil)

	m = press(t, m, keyRunes("J"))
	require.Equal(t, []int64{fx.vs[1].VersionID, fx.vs[0].VersionID, fx.vs[2].VersionID}, versionsOf(m.items))
	require.Equal(t, 1, m.cursor, "cursor follows the moved entry")

	m = press(t, m, keyRunes("j"))
	m = press(t, m, keyRunes("d"))
	require.Equal(t, []int64{fx.vs[1].VersionID, fx.vs[0].VersionID}, versionsOf(m.items))

	m = press(t, m, keyRunes("s"))
	require.NoError(t, m.err)
	require.Equal(t, "saved (replace)", m.status)
	require.False(t, m.dirty())

	remote, err := fx.store.ListItems(context.Background(), fx.booklet.ID)
	require.NoError(t, err)
	require.Len(t, remote, 2)
	require.Equal(t, fx.vs[1].VersionID, remote[0].VersionID)
}

func TestEditor_SaveUsesFallbackWhenReplaceUnsupported(t *testing.T) {
	fx := newFixture(t, 3, 2, store.WithBulkReplace(false))
	m := newTestEditor(t, fx, nil)

	m = press(t, m, keyRunes("J"))
	m = press(t, m, keyRunes("a"))
	m = press(t, m, keyRunes("A"))
	m = press(t, m, keyEnter)
	m = press(t, m, keyRunes("s"))
	require.NoError(t, m.err)
	require.True(t, strings.HasPrefix(m.status, "saved (fallback"), m.status)
	require.Equal(t, []int64{fx.vs[1].VersionID, fx.vs[0].VersionID, fx.vs[2].VersionID}, versionsOf(m.items))
	for _, it := range m.items {
		require.True(t, it.Persisted())
	}
}

type failingCreate struct{ *store.Store }

func (failingCreate) CreateItem(context.Context, int64, model.ItemSpec) (model.Item, error) {
	return model.Item{}, errors.New("remote unavailable")
}

func TestEditor_FailedSaveReloadsRemoteState(t *testing.T) {
	fx := newFixture(t, 3, 2, store.WithBulkReplace(false))
	m := newTestEditor(t, fx, failingCreate{fx.store})

	m = press(t, m, keyRunes("J"))
	m = press(t, m, keyRunes("a"))
	m = press(t, m, keyRunes("A"))
	m = press(t, m, keyEnter)
	require.Len(t, m.items, 3)

	m = press(t, m, keyRunes("s"))
	require.Error(t, m.err)
	var pe *reconcile.PhaseError
	require.ErrorAs(t, m.err, &pe)
	require.Equal(t, reconcile.PhaseCreate, pe.Phase)
	require.Contains(t, m.status, "reloaded from remote")

	// Displace and settle went through before the create failed.
	require.Equal(t, []int64{fx.vs[1].VersionID, fx.vs[0].VersionID}, versionsOf(m.items))
	require.False(t, m.dirty())
	require.False(t, m.needsReload)
}

func TestEditor_QuitAsksBeforeDiscarding(t *testing.T) {
	fx := newFixture(t, 2, 2)
	m := newTestEditor(t, fx, nil)

	_, cmd := m.Update(keyRunes("q"))
	require.NotNil(t, cmd, "clean draft quits immediately")

	m = press(t, m, keyRunes("d"))
	next, cmd := m.Update(keyRunes("q"))
	require.Nil(t, cmd)
	m = next.(editorModel)
	require.True(t, m.confirmQuit)
	_, cmd = m.Update(keyRunes("q"))
	require.NotNil(t, cmd)
}

func TestEditor_View(t *testing.T) {
	fx := newFixture(t, 2, 1)
	m := newTestEditor(t, fx, nil)
	m = press(t, m, tea.WindowSizeMsg{Width: 100, Height: 30})

	out := m.View()
	require.Contains(t, out, "Weekly quiz")
	require.Contains(t, out, "T-1")

	m = press(t, m, keyRunes("a"))
	out = m.View()
	require.Contains(t, out, "Add questions")
	require.Contains(t, out, "[x]")
}
