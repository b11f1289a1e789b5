// Package document turns agreement form data into agreement text and
// exported HTML documents, and stores exports in object storage.
package document

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

const dateLayout = "02/01/2006"

var placeholderRE = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Render fills the template for kind from form. Unknown kinds use the custom
// template. Placeholders without a value or default are rendered as
// "[key]" and returned sorted in missing.
func Render(kind string, form map[string]string) (content string, missing []string) {
	return RenderAt(kind, form, time.Now())
}

// RenderAt is Render with an explicit date for the {{today}} placeholder.
func RenderAt(kind string, form map[string]string, today time.Time) (string, []string) {
	tmpl, ok := templates[kind]
	if !ok {
		tmpl = templates["custom"]
	}

	missingSet := map[string]struct{}{}
	out := placeholderRE.ReplaceAllStringFunc(tmpl.body, func(m string) string {
		match := placeholderRE.FindStringSubmatch(m)
		if len(match) != 2 {
			return ""
		}
		key := match[1]
		if key == "today" {
			return today.Format(dateLayout)
		}
		if v := strings.TrimSpace(form[key]); v != "" {
			if key == "agreementTitle" {
				return strings.ToUpper(v)
			}
			return v
		}
		if v, ok := tmpl.defaults[key]; ok {
			return v
		}
		missingSet[key] = struct{}{}
		return "[" + key + "]"
	})

	missing := make([]string, 0, len(missingSet))
	for k := range missingSet {
		missing = append(missing, k)
	}
	sort.Strings(missing)
	return out, missing
}

// Draft is a rendered preview of a new agreement.
type Draft struct {
	Title       string
	Content     string
	Missing     []string
	Suggestions []string
}

// Generate renders kind from form and adds the type's default title and
// drafting suggestions. A custom agreement takes its title from the
// agreementTitle field when one is given.
func Generate(kind string, form map[string]string, today time.Time) Draft {
	tmpl, ok := templates[kind]
	if !ok {
		tmpl = templates["custom"]
	}
	content, missing := RenderAt(kind, form, today)
	title := tmpl.title
	if v := strings.TrimSpace(form["agreementTitle"]); v != "" && tmpl.defaults["agreementTitle"] != "" {
		title = v
	}
	return Draft{
		Title:       title,
		Content:     content,
		Missing:     missing,
		Suggestions: append([]string{}, tmpl.suggestions...),
	}
}

// Fields lists the form keys the template for kind reads, excluding today.
func Fields(kind string) []string {
	tmpl, ok := templates[kind]
	if !ok {
		tmpl = templates["custom"]
	}
	seen := map[string]struct{}{}
	var keys []string
	for _, m := range placeholderRE.FindAllStringSubmatch(tmpl.body, -1) {
		key := m[1]
		if key == "today" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
