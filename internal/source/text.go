package source

import (
	"html"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// htmlTagPattern detects markup in catalog descriptions.
var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|strong|em|a|ul|ol|li|h[1-6]|blockquote)[\s>/]`)

// Markdown converts an HTML description to Markdown. Plain text is only
// unescaped and trimmed.
func Markdown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !htmlTagPattern.MatchString(strings.ToLower(s)) {
		return html.UnescapeString(s)
	}
	md, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(md)
}

// Clean trims and collapses internal whitespace.
func Clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// AbsoluteURL resolves a possibly relative href against base.
func AbsoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	switch {
	case href == "":
		return ""
	case strings.HasPrefix(href, "http://"), strings.HasPrefix(href, "https://"):
		return href
	case strings.HasPrefix(href, "//"):
		return "https:" + href
	default:
		return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(href, "/")
	}
}
