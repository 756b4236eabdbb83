package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"booklet-cli/internal/model"
	"booklet-cli/internal/reconcile"
	"booklet-cli/internal/store"
	"booklet-cli/internal/web"

	"github.com/stretchr/testify/require"
)

// isolate points config and db at a temp dir and clears env overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("BOOKLET_CONFIG_DIR", dir)
	t.Setenv("BOOKLET_DB", filepath.Join(dir, "booklets.sqlite"))
	t.Setenv("BOOKLET_REMOTE", "")
	t.Setenv("BOOKLET_FORMAT", "")
	t.Setenv("BOOKLET_LOG_LEVEL", "error")
	return dir
}

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, errOut, err := runCLI(t, args...)
	require.NoError(t, err, "stderr: %s", errOut)
	return out
}

func decodeData[T any](t *testing.T, out string) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &env), out)
	return env.Data
}

func seedBooklet(t *testing.T, args []string, questions int) (model.Booklet, []model.Candidate) {
	t.Helper()
	b := decodeData[model.Booklet](t, mustRun(t, append(args, "booklets", "create", "--title", "Midterm", "--subject", "Physics")...))
	var cs []model.Candidate
	for i := 1; i <= questions; i++ {
		c := decodeData[model.Candidate](t, mustRun(t, append(args, "questions", "add",
			"--code", "P-"+strconv.Itoa(i),
			"--title", "Problem "+strconv.Itoa(i),
			"--subject", "Physics",
			"--difficulty", "medium")...))
		cs = append(cs, c)
	}
	return b, cs
}

func ids(cs ...model.Candidate) string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, strconv.FormatInt(c.VersionID, 10))
	}
	return strings.Join(parts, ",")
}

func itemVersions(items []itemView) []int64 {
	out := make([]int64, 0, len(items))
	for _, it := range items {
		out = append(out, it.VersionID)
	}
	return out
}

func TestBooklets_CreateListShow(t *testing.T) {
	isolate(t)
	b, _ := seedBooklet(t, nil, 0)
	require.Equal(t, "Midterm", b.Title)

	list := decodeData[[]model.Booklet](t, mustRun(t, "booklets", "list"))
	require.Len(t, list, 1)
	require.Equal(t, b.ID, list[0].ID)

	view := decodeData[bookletView](t, mustRun(t, "booklets", "show", strconv.FormatInt(b.ID, 10)))
	require.Equal(t, "Physics", view.Booklet.Subject)
	require.Empty(t, view.Items)
}

func TestBooklets_CreateRequiresTitle(t *testing.T) {
	isolate(t)
	_, errOut, err := runCLI(t, "booklets", "create")
	require.Error(t, err)
	require.Contains(t, errOut, "missing --title")
}

func TestBooklets_ShowUnknownIsNotFound(t *testing.T) {
	isolate(t)
	_, _, err := runCLI(t, "booklets", "show", "99")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestQuestions_SearchPages(t *testing.T) {
	isolate(t)
	seedBooklet(t, nil, 5)

	res := decodeData[searchView](t, mustRun(t, "questions", "search", "--size", "2", "--page", "2"))
	require.Equal(t, 5, res.Total)
	require.Len(t, res.Results, 2)
	require.True(t, res.HasNext)
	require.True(t, res.HasPrevious)

	res = decodeData[searchView](t, mustRun(t, "questions", "search", "--q", "problem 3"))
	require.Len(t, res.Results, 1)
	require.Equal(t, "P-3", res.Results[0].Code)

	_, _, err := runCLI(t, "questions", "search", "--difficulty", "brutal")
	require.Error(t, err)
}

func TestCompose_AddMoveRemove(t *testing.T) {
	isolate(t)
	b, cs := seedBooklet(t, nil, 4)
	id := strconv.FormatInt(b.ID, 10)

	applied := decodeData[composeApplied](t, mustRun(t, "compose", id, "--add", ids(cs[0], cs[1], cs[2])))
	require.Equal(t, reconcile.ModeReplace, applied.Mode)
	require.Equal(t, 3, applied.Added)

	// remove 1: [0 2]; move 2 onto 0: [2 0]; add 3 and a duplicate 0: [2 0 3].
	applied = decodeData[composeApplied](t, mustRun(t, "compose", id,
		"--remove", ids(cs[1]),
		"--move", ids(cs[2])+":"+ids(cs[0]),
		"--add", ids(cs[3], cs[0])))
	require.Equal(t, 1, applied.Added)
	require.Equal(t, 1, applied.Duplicates)

	items := decodeData[[]itemView](t, mustRun(t, "items", "list", id))
	require.Equal(t, []int64{cs[2].VersionID, cs[0].VersionID, cs[3].VersionID}, itemVersions(items))
	for i, it := range items {
		require.Equal(t, i+1, it.Rank)
		require.NotNil(t, it.Question)
	}
}

func TestCompose_FallbackWhenReplaceDisabled(t *testing.T) {
	isolate(t)
	mustRun(t, "config", "set", "bulk_replace", "false")
	b, cs := seedBooklet(t, nil, 3)
	id := strconv.FormatInt(b.ID, 10)

	mustRun(t, "compose", id, "--add", ids(cs[0], cs[1]))
	applied := decodeData[composeApplied](t, mustRun(t, "compose", id,
		"--move", ids(cs[1])+":"+ids(cs[0]),
		"--add", ids(cs[2])))
	require.Equal(t, reconcile.ModeFallback, applied.Mode)
	require.NotEmpty(t, applied.Ops)
	require.Equal(t, reconcile.PhaseDisplace, applied.Ops[0].Phase)

	items := decodeData[[]itemView](t, mustRun(t, "items", "list", id))
	require.Equal(t, []int64{cs[1].VersionID, cs[0].VersionID, cs[2].VersionID}, itemVersions(items))
}

func TestCompose_DryRunDoesNotSave(t *testing.T) {
	isolate(t)
	b, cs := seedBooklet(t, nil, 2)
	id := strconv.FormatInt(b.ID, 10)
	mustRun(t, "compose", id, "--add", ids(cs[0]))

	dry := decodeData[composeDryRun](t, mustRun(t, "compose", id, "--remove", ids(cs[0]), "--add", ids(cs[1]), "--dry-run"))
	require.Len(t, dry.Plan.Deletes, 1)
	require.Len(t, dry.Plan.Creates, 1)
	require.Equal(t, 1, dry.Plan.Creates[0].Rank)

	items := decodeData[[]itemView](t, mustRun(t, "items", "list", id))
	require.Equal(t, []int64{cs[0].VersionID}, itemVersions(items))
}

func TestCompose_RejectsUnknownVersions(t *testing.T) {
	isolate(t)
	b, cs := seedBooklet(t, nil, 1)
	id := strconv.FormatInt(b.ID, 10)

	_, errOut, err := runCLI(t, "compose", id, "--add", "999")
	require.Error(t, err)
	require.Contains(t, errOut, "unknown question version 999")

	_, errOut, err = runCLI(t, "compose", id, "--remove", ids(cs[0]))
	require.Error(t, err)
	require.Contains(t, errOut, "is not in the booklet")

	_, _, err = runCLI(t, "compose", id, "--move", "1-2")
	require.Error(t, err)
}

func TestItemsList_TableFormat(t *testing.T) {
	isolate(t)
	b, cs := seedBooklet(t, nil, 2)
	id := strconv.FormatInt(b.ID, 10)
	mustRun(t, "compose", id, "--add", ids(cs[1], cs[0]))

	out := mustRun(t, "--format", "table", "items", "list", id)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	require.True(t, strings.HasPrefix(lines[0], "RANK"))
	require.Contains(t, lines[1], "P-2")
	require.Contains(t, lines[2], "P-1")
}

func TestExport_PrintsMarkdown(t *testing.T) {
	isolate(t)
	b, cs := seedBooklet(t, nil, 2)
	id := strconv.FormatInt(b.ID, 10)
	mustRun(t, "compose", id, "--add", ids(cs[1], cs[0]))

	out := mustRun(t, "export", id)
	require.True(t, strings.HasPrefix(out, "# Midterm"), out)
	require.Less(t, strings.Index(out, "Problem 2"), strings.Index(out, "Problem 1"))

	dir := t.TempDir()
	res := decodeData[struct {
		Written []string `json:"written"`
	}](t, mustRun(t, "export", id, "--to", dir, "--html"))
	require.Equal(t, []string{filepath.Join(dir, "booklet-"+id+".html")}, res.Written)
	_, err := os.Stat(res.Written[0])
	require.NoError(t, err)
}

func TestConfig_SetAndShow(t *testing.T) {
	dir := isolate(t)
	mustRun(t, "config", "set", "displace_offset", "5000")
	mustRun(t, "config", "set", "http_timeout", "3s")

	v := decodeData[configView](t, mustRun(t, "config", "show"))
	require.Equal(t, filepath.Join(dir, "config.yaml"), v.Path)
	require.Equal(t, 5000, v.DisplaceOffset)
	require.Equal(t, "3s", v.HTTPTimeout)
	require.True(t, v.BulkReplace)

	_, _, err := runCLI(t, "config", "set", "colour", "blue")
	require.Error(t, err)
}

func TestRemote_ComposeAgainstServer(t *testing.T) {
	isolate(t)
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "server.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	srv, err := web.NewServer(web.ServerConfig{Addr: "127.0.0.1:0", BulkReplace: false}, st, nil)
	require.NoError(t, err)
	hs := httptest.NewServer(srv.Handler())
	t.Cleanup(hs.Close)

	remote := []string{"--remote", hs.URL}
	b, cs := seedBooklet(t, remote, 3)
	id := strconv.FormatInt(b.ID, 10)

	mustRun(t, append(remote, "compose", id, "--add", ids(cs[0], cs[1], cs[2]))...)
	applied := decodeData[composeApplied](t, mustRun(t, append(remote, "compose", id, "--move", ids(cs[2])+":"+ids(cs[0]))...))
	require.Equal(t, reconcile.ModeFallback, applied.Mode)

	got, err := st.ListItems(context.Background(), b.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, []int64{cs[2].VersionID, cs[0].VersionID, cs[1].VersionID},
		[]int64{got[0].VersionID, got[1].VersionID, got[2].VersionID})
}

func TestParseMoves(t *testing.T) {
	mv, err := parseMoves([]string{"4:2", " 7 : 9 "})
	require.NoError(t, err)
	require.Equal(t, [][2]int64{{4, 2}, {7, 9}}, mv)

	_, err = parseMoves([]string{"4"})
	require.Error(t, err)
	_, err = parseMoves([]string{"0:1"})
	require.Error(t, err)
}
