// Package text fetches and cleans Gutenberg plain-text book files.
package text

import (
	"regexp"
	"strings"
)

// Banner markers vary between "OF THE" and "OF THIS" across the corpus, and
// the title after EBOOK rarely matches the RDF title exactly, so the title
// part is not anchored.
var (
	startBanner = regexp.MustCompile(`(?i)\*\*\*\s*START OF TH(?:E|IS) PROJECT GUTENBERG EBOOK[^\n]*?\*\*\*`)
	endBanner   = regexp.MustCompile(`(?i)\*\*\*\s*END OF TH(?:E|IS) PROJECT GUTENBERG EBOOK[^\n]*?\*\*\*`)

	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
	blankRuns     = regexp.MustCompile(`\n{3,}`)
)

// Cleaner implements gutenberg.Cleaner.
type Cleaner struct{}

// Clean satisfies the interface.
func (Cleaner) Clean(raw string) string { return Clean(raw) }

// Clean strips the Gutenberg header/footer banners and normalizes
// whitespace. When either banner is missing the text is only normalized,
// never truncated. Clean is idempotent: cleaning already-clean text
// returns it unchanged.
func Clean(raw string) string {
	text := normalize(raw)

	start := startBanner.FindStringIndex(text)
	if start == nil {
		return text
	}
	end := endBanner.FindStringIndex(text)
	if end == nil || end[0] <= start[1] {
		return text
	}
	return normalize(text[start[1]:end[0]])
}

// normalize applies the whitespace/encoding rules: BOM removal, LF line
// endings, no trailing spaces on lines, blank-line runs collapsed to one
// blank line, trimmed edges, single trailing newline.
func normalize(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = trailingSpace.ReplaceAllString(s, "\n")
	s = blankRuns.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return s + "\n"
}
