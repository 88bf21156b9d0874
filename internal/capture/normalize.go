package capture

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/hpungsan/ctx/internal/errors"
)

// Fold prepares text for case-insensitive comparison.
// File names on macOS arrive decomposed (NFD) while typed queries are
// usually composed, so both sides go through NFC before case folding.
func Fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// SearchFields returns the five fields that free-text search covers, in
// shadow-index column order.
func (r *Record) SearchFields() []string {
	note := ""
	if r.Note != nil {
		note = *r.Note
	}
	return []string{r.FileName, r.FilePathAtCapture, r.OriginTitle, r.OriginURL, note}
}

// MatchesSubstring reports whether the folded query occurs in any search field.
// foldedQuery must already be passed through Fold.
func (r *Record) MatchesSubstring(foldedQuery string) bool {
	if foldedQuery == "" {
		return true
	}
	for _, field := range r.SearchFields() {
		if strings.Contains(Fold(field), foldedQuery) {
			return true
		}
	}
	return false
}

// ValidateProvenance trims and checks the origin fields required at capture time.
func ValidateProvenance(title, url string) (string, string, error) {
	title = strings.TrimSpace(title)
	url = strings.TrimSpace(url)

	var missing []string
	if title == "" {
		missing = append(missing, "origin_title")
	}
	if url == "" {
		missing = append(missing, "origin_url")
	}
	if len(missing) > 0 {
		return "", "", errors.NewContextMissing(missing)
	}
	return title, url, nil
}

// OptionalString returns nil for blank input, otherwise the trimmed value.
func OptionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
