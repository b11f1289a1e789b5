package document

import (
	"bytes"
	"context"
	"fmt"
	"html"
	htmltemplate "html/template"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// ContentTypeHTML is the media type of exported documents.
const ContentTypeHTML = "text/html; charset=utf-8"

// Source is the agreement data an export needs.
type Source struct {
	ID      string
	Title   string
	Content string
	Status  string
}

// Document is a rendered, self-contained export.
type Document struct {
	Name        string
	ContentType string
	Body        []byte
}

var (
	boldRE = regexp.MustCompile(`\*\*(.+?)\*\*`)
	nameRE = regexp.MustCompile(`[^A-Za-z0-9]+`)
)

var page = htmltemplate.Must(htmltemplate.New("document").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
<header><h1>{{.Title}}</h1><p>Status: {{.Status}}</p></header>
<main>
{{.Body}}
</main>
<footer><p>Generated {{.Generated}}</p></footer>
</body>
</html>
`))

// Exporter renders agreement content into a standalone HTML document.
type Exporter struct {
	policy *bluemonday.Policy
	now    func() time.Time
}

func NewExporter() *Exporter {
	p := bluemonday.NewPolicy()
	p.AllowElements("h1", "h2", "h3", "p", "br", "ul", "li", "strong", "em", "hr")
	return &Exporter{policy: p, now: time.Now}
}

// WithClock overrides the generation timestamp source.
func (e *Exporter) WithClock(now func() time.Time) *Exporter {
	if now != nil {
		e.now = now
	}
	return e
}

// Export renders src. Content is escaped before markup is applied and the
// result is sanitised, so user text can never inject markup.
func (e *Exporter) Export(ctx context.Context, src Source) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	body := e.policy.Sanitize(contentToHTML(src.Content))

	var buf bytes.Buffer
	err := page.Execute(&buf, struct {
		Title     string
		Status    string
		Body      htmltemplate.HTML
		Generated string
	}{
		Title:     src.Title,
		Status:    src.Status,
		Body:      htmltemplate.HTML(body),
		Generated: e.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return Document{}, fmt.Errorf("document: render page: %w", err)
	}

	return Document{
		Name:        FileName(src.Title, e.now()),
		ContentType: ContentTypeHTML,
		Body:        buf.Bytes(),
	}, nil
}

// FileName derives a download name such as "Flat_Lease_2025-03-01.html".
func FileName(title string, at time.Time) string {
	base := strings.Trim(nameRE.ReplaceAllString(strings.TrimSpace(title), "_"), "_")
	if base == "" {
		base = "agreement"
	}
	return base + "_" + at.UTC().Format("2006-01-02") + ".html"
}

// contentToHTML converts the light markdown used by the templates: headings,
// bullet lists, bold runs and blank-line separated paragraphs.
func contentToHTML(content string) string {
	var out strings.Builder
	var para []string
	inList := false

	flushPara := func() {
		if len(para) > 0 {
			out.WriteString("<p>" + strings.Join(para, "<br>") + "</p>\n")
			para = nil
		}
	}
	closeList := func() {
		if inList {
			out.WriteString("</ul>\n")
			inList = false
		}
	}

	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	for _, raw := range lines {
		line := strings.TrimRight(raw, " \t")
		text := boldRE.ReplaceAllString(html.EscapeString(strings.TrimSpace(line)), "<strong>$1</strong>")
		switch {
		case strings.TrimSpace(line) == "":
			flushPara()
			closeList()
		case strings.HasPrefix(line, "### "):
			flushPara()
			closeList()
			out.WriteString("<h3>" + strings.TrimSpace(text[4:]) + "</h3>\n")
		case strings.HasPrefix(line, "## "):
			flushPara()
			closeList()
			out.WriteString("<h2>" + strings.TrimSpace(text[3:]) + "</h2>\n")
		case strings.HasPrefix(line, "# "):
			flushPara()
			closeList()
			out.WriteString("<h1>" + strings.TrimSpace(text[2:]) + "</h1>\n")
		case strings.HasPrefix(line, "- "):
			flushPara()
			if !inList {
				out.WriteString("<ul>\n")
				inList = true
			}
			out.WriteString("<li>" + strings.TrimSpace(text[2:]) + "</li>\n")
		default:
			closeList()
			para = append(para, text)
		}
	}
	flushPara()
	closeList()
	return out.String()
}
