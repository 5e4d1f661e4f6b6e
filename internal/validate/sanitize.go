package validate

import (
	"html"
	"path"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

var (
	stripPolicy = bluemonday.StrictPolicy()
	richPolicy  = newRichPolicy()
)

func newRichPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.RequireNoFollowOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// Text removes all markup and control characters and collapses whitespace.
func Text(s string) string {
	cleaned := html.UnescapeString(stripPolicy.Sanitize(s))
	cleaned = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, cleaned)
	return strings.Join(strings.Fields(cleaned), " ")
}

// RichText keeps a safe subset of HTML suitable for descriptions and messages.
func RichText(s string) string {
	return strings.TrimSpace(richPolicy.Sanitize(s))
}

// Email normalises an address for storage and lookup.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

const maxFilenameLen = 200

// Filename reduces name to a single safe path element.
func Filename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r > unicode.MaxASCII:
			b.WriteRune('_')
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	cleaned := strings.Trim(b.String(), "._")
	if len(cleaned) > maxFilenameLen {
		ext := path.Ext(cleaned)
		if len(ext) > 16 {
			ext = ""
		}
		cleaned = cleaned[:maxFilenameLen-len(ext)] + ext
	}
	if cleaned == "" {
		return "file"
	}
	return cleaned
}

// LikePattern escapes SQL LIKE wildcards so s matches literally with ESCAPE '\'.
func LikePattern(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}
