package publish

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"booklet-cli/internal/model"

	"github.com/stretchr/testify/require"
)

func sampleDoc() Document {
	b := model.Booklet{ID: 7, Title: "Midterm", Subject: "Physics"}
	items := []model.Item{
		{ID: 3, VersionID: 30, Rank: 2},
		{ID: 1, VersionID: 10, Rank: 1},
		{ID: 9, VersionID: 99, Rank: 3},
	}
	cands := map[int64]model.Candidate{
		10: {VersionID: 10, Code: "P-1", Title: "Free fall", Subject: "Physics", Difficulty: model.DifficultyEasy, Stem: "A ball is **dropped** :rocket:"},
		30: {VersionID: 30, Code: "P-2", Title: "Pendulum", Stem: "<script>alert(1)</script>"},
	}
	return Compose(b, items, cands)
}

func TestCompose_OrdersByRank(t *testing.T) {
	t.Parallel()
	doc := sampleDoc()
	require.Len(t, doc.Entries, 3)
	require.Equal(t, "Free fall", doc.Entries[0].Candidate.Title)
	require.Equal(t, "Pendulum", doc.Entries[1].Candidate.Title)
	require.Equal(t, int64(99), doc.Entries[2].Candidate.VersionID)
	for i, e := range doc.Entries {
		require.Equal(t, i+1, e.Number)
	}
}

func TestRenderMarkdown(t *testing.T) {
	t.Parallel()
	md := RenderMarkdown(sampleDoc())
	require.True(t, strings.HasPrefix(md, "# Midterm\n"))
	require.Contains(t, md, "## 1. Free fall")
	require.Contains(t, md, "## 2. Pendulum")
	require.Contains(t, md, "## 3. Question version 99 (missing)")
	require.Contains(t, md, "_`P-1` · Physics · easy_")
	require.Less(t, strings.Index(md, "Free fall"), strings.Index(md, "Pendulum"))

	empty := RenderMarkdown(Compose(model.Booklet{Title: "Empty"}, nil, nil))
	require.Contains(t, empty, "_No questions._")
}

func TestRenderHTML_EscapesRawHTML(t *testing.T) {
	t.Parallel()
	page, err := RenderHTML(sampleDoc())
	require.NoError(t, err)
	require.Contains(t, page, "<title>Midterm</title>")
	require.Contains(t, page, "<strong>dropped</strong>")
	require.NotContains(t, page, "<script>")
}

func TestRenderTerminal(t *testing.T) {
	t.Parallel()
	out, err := RenderTerminal(sampleDoc(), 60)
	require.NoError(t, err)
	require.Contains(t, out, "Free fall")
}

func TestWriteBooklet(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	res, err := WriteBooklet(sampleDoc(), dir, WriteOptions{Markdown: true, HTML: true})
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(dir, "booklet-7.md"),
		filepath.Join(dir, "booklet-7.html"),
	}, res.Written)

	b, err := os.ReadFile(res.Written[0])
	require.NoError(t, err)
	require.Contains(t, string(b), "## 1. Free fall")

	_, err = WriteBooklet(sampleDoc(), dir, WriteOptions{})
	require.ErrorContains(t, err, "file exists")

	_, err = WriteBooklet(sampleDoc(), dir, WriteOptions{Overwrite: true})
	require.NoError(t, err)
}
