package publish

import (
	"bytes"
	"html/template"

	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Raw HTML in question stems is not passed through.
var markdownRenderer = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		emoji.Emoji,
	),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

var pageTmpl = template.Must(template.New("page").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: Georgia, serif; max-width: 46rem; margin: 2rem auto; line-height: 1.5; }
h2 { page-break-after: avoid; }
code { font-size: .85em; }
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// RenderHTML renders the booklet markdown into a standalone printable page.
func RenderHTML(doc Document) (string, error) {
	var body bytes.Buffer
	if err := markdownRenderer.Convert([]byte(RenderMarkdown(doc)), &body); err != nil {
		return "", err
	}
	var out bytes.Buffer
	err := pageTmpl.Execute(&out, struct {
		Title string
		Body  template.HTML
	}{
		Title: doc.Booklet.Title,
		// goldmark output is trusted only because raw HTML is disabled above.
		Body: template.HTML(body.String()),
	})
	return out.String(), err
}
