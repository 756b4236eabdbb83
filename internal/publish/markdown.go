package publish

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"booklet-cli/internal/model"
)

// Entry is one printed question. Number is the rank, which is also the print position.
type Entry struct {
	Number    int             `json:"number"`
	Candidate model.Candidate `json:"question"`
}

type Document struct {
	Booklet model.Booklet `json:"booklet"`
	Entries []Entry       `json:"entries"`
}

// Compose orders the booklet's items by rank and attaches question content. Versions missing
// from cands are still listed so gaps in the catalogue are visible in the export.
func Compose(b model.Booklet, items []model.Item, cands map[int64]model.Candidate) Document {
	sorted := append([]model.Item{}, items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Rank != sorted[j].Rank {
			return sorted[i].Rank < sorted[j].Rank
		}
		return sorted[i].ID < sorted[j].ID
	})
	doc := Document{Booklet: b, Entries: make([]Entry, 0, len(sorted))}
	for i, it := range sorted {
		c, ok := cands[it.VersionID]
		if !ok {
			c = model.Candidate{VersionID: it.VersionID}
		}
		doc.Entries = append(doc.Entries, Entry{Number: i + 1, Candidate: c})
	}
	return doc
}

func RenderMarkdown(doc Document) string {
	var buf bytes.Buffer
	writeLn := func(s string) {
		buf.WriteString(s)
		buf.WriteString("\n")
	}

	writeLn("# " + strings.TrimSpace(doc.Booklet.Title))
	writeLn("")
	if s := strings.TrimSpace(doc.Booklet.Subject); s != "" {
		writeLn("Subject: " + s)
		writeLn("")
	}
	if len(doc.Entries) == 0 {
		writeLn("_No questions._")
		return buf.String()
	}

	for _, e := range doc.Entries {
		c := e.Candidate
		title := strings.TrimSpace(c.Title)
		if title == "" {
			title = fmt.Sprintf("Question version %d (missing)", c.VersionID)
		}
		writeLn(fmt.Sprintf("## %d. %s", e.Number, title))
		writeLn("")
		if stem := strings.TrimSpace(c.Stem); stem != "" {
			writeLn(stem)
			writeLn("")
		}
		meta := []string{}
		if c.Code != "" {
			meta = append(meta, "`"+c.Code+"`")
		}
		if c.Subject != "" {
			meta = append(meta, c.Subject)
		}
		if c.Difficulty != "" {
			meta = append(meta, string(c.Difficulty))
		}
		if len(meta) > 0 {
			writeLn("_" + strings.Join(meta, " · ") + "_")
			writeLn("")
		}
	}
	return buf.String()
}
