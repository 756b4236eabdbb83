package publish

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type WriteOptions struct {
	Markdown  bool
	HTML      bool
	Overwrite bool
}

type WriteResult struct {
	Written []string `json:"written"`
}

// WriteBooklet writes booklet-<id>.md and/or booklet-<id>.html into toDir.
func WriteBooklet(doc Document, toDir string, opt WriteOptions) (WriteResult, error) {
	toDir = strings.TrimSpace(toDir)
	if toDir == "" {
		return WriteResult{}, errors.New("missing --to")
	}
	if !opt.Markdown && !opt.HTML {
		opt.Markdown = true
	}
	toDir = filepath.Clean(toDir)
	if err := os.MkdirAll(toDir, 0o755); err != nil {
		return WriteResult{}, err
	}

	base := filepath.Join(toDir, fmt.Sprintf("booklet-%d", doc.Booklet.ID))
	res := WriteResult{Written: []string{}}
	if opt.Markdown {
		p := base + ".md"
		if err := writeFile(p, []byte(RenderMarkdown(doc)), opt.Overwrite); err != nil {
			return res, err
		}
		res.Written = append(res.Written, p)
	}
	if opt.HTML {
		page, err := RenderHTML(doc)
		if err != nil {
			return res, err
		}
		p := base + ".html"
		if err := writeFile(p, []byte(page), opt.Overwrite); err != nil {
			return res, err
		}
		res.Written = append(res.Written, p)
	}
	return res, nil
}

func writeFile(path string, b []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errors.New("file exists (use --overwrite): " + path)
		}
	}
	return os.WriteFile(path, b, 0o644)
}
