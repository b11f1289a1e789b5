// Package translate converts agreement text between English and Tamil.
package translate

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/language"
)

// ErrUnsupportedLanguage is returned for targets other than English or Tamil.
var ErrUnsupportedLanguage = errors.New("translate: unsupported language")

// Supported lists the languages the service translates between, preferred first.
var Supported = []language.Tag{language.English, language.Tamil}

var matcher = language.NewMatcher(Supported)

// Result is a translated text with the languages involved.
type Result struct {
	Text   string
	Source language.Tag
	Target language.Tag
}

// Translator translates text into target.
type Translator interface {
	Translate(ctx context.Context, text string, target language.Tag) (Result, error)
}

// ParseTarget resolves a client supplied language such as "ta", "ta-IN" or
// "en-GB" to one of Supported.
func ParseTarget(s string) (language.Tag, error) {
	tag, err := language.Parse(strings.TrimSpace(s))
	if err != nil {
		return language.Und, ErrUnsupportedLanguage
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return language.Und, ErrUnsupportedLanguage
	}
	return Supported[idx], nil
}

// DetectLanguage reports Tamil when any rune falls in the Tamil block,
// English when the text has a Latin letter, and Und otherwise.
func DetectLanguage(text string) language.Tag {
	latin := false
	for _, r := range text {
		if r >= 0x0B80 && r <= 0x0BFF {
			return language.Tamil
		}
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			latin = true
		}
	}
	if latin {
		return language.English
	}
	return language.Und
}

type phrase struct {
	re   *regexp.Regexp
	repl string
}

// Dictionary translates known agreement phrases and passes everything else
// through unchanged. Longer phrases are applied first.
type Dictionary struct {
	toTamil   []phrase
	toEnglish []phrase
}

// NewDictionary builds a Dictionary from an English to Tamil phrase table.
// A nil table uses the built-in agreement vocabulary.
func NewDictionary(enToTa map[string]string) *Dictionary {
	if enToTa == nil {
		enToTa = agreementPhrases
	}
	d := &Dictionary{}
	for en, ta := range enToTa {
		d.toTamil = append(d.toTamil, phrase{re: regexp.MustCompile(`(?i)` + regexp.QuoteMeta(en)), repl: ta})
		d.toEnglish = append(d.toEnglish, phrase{re: regexp.MustCompile(regexp.QuoteMeta(ta)), repl: en})
	}
	byLength := func(p []phrase) func(i, j int) bool {
		return func(i, j int) bool {
			li, lj := len(p[i].re.String()), len(p[j].re.String())
			if li != lj {
				return li > lj
			}
			return p[i].re.String() < p[j].re.String()
		}
	}
	sort.Slice(d.toTamil, byLength(d.toTamil))
	sort.Slice(d.toEnglish, byLength(d.toEnglish))
	return d
}

func (d *Dictionary) Translate(ctx context.Context, text string, target language.Tag) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	var table []phrase
	var source language.Tag
	switch target {
	case language.Tamil:
		table, source = d.toTamil, language.English
	case language.English:
		table, source = d.toEnglish, language.Tamil
	default:
		return Result{}, ErrUnsupportedLanguage
	}
	if detected := DetectLanguage(text); detected != language.Und {
		source = detected
	}

	out := text
	for _, p := range table {
		out = p.re.ReplaceAllLiteralString(out, p.repl)
	}
	return Result{Text: out, Source: source, Target: target}, nil
}
