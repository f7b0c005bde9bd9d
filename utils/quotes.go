package utils

import (
	"regexp"
)

// QuoteSegment is a message body split at the start of its quoted history.
// Before holds the new content, After holds the matched quote container and
// everything following it, Marker names the strategy that matched.
type QuoteSegment struct {
	Before string `json:"before"`
	Marker string `json:"marker"`
	After  string `json:"after"`
}

type quoteStrategy struct {
	name    string
	pattern *regexp.Regexp
}

// Strategies are tried in order and the first one that matches anywhere in
// the body wins. The quote-class family is the most specific marker, the
// client-specific containers come next, and a bare blockquote is the common
// fallback that must not pre-empt a more specific match starting later in
// the document. New quote-marker formats are added to the list without
// reordering existing entries.
var quoteStrategies = []quoteStrategy{
	{
		name:    "quote-class",
		pattern: regexp.MustCompile(`(?i)<(?:div|span|table|section)[^>]*class=["'][^"']*(?:gmail_quote|yahoo_quoted|quoted-text|tour_quote)[^"']*["'][^>]*>`),
	},
	{
		name:    "client-container",
		pattern: regexp.MustCompile(`(?i)<div[^>]*(?:id=["']?divRplyFwdMsg["']?|class=["'][^"']*moz-cite-prefix[^"']*["'])[^>]*>`),
	},
	{
		name:    "blockquote",
		pattern: regexp.MustCompile(`(?i)<blockquote[^>]*>`),
	},
}

// SegmentQuote splits html at the first recognized quotation container.
// Returns nil when no quote boundary is found; malformed markup never
// produces an error, just a nil segment.
func SegmentQuote(html string) *QuoteSegment {
	for _, s := range quoteStrategies {
		loc := s.pattern.FindStringIndex(html)
		if loc == nil {
			continue
		}
		return &QuoteSegment{
			Before: html[:loc[0]],
			Marker: s.name,
			After:  html[loc[0]:],
		}
	}
	return nil
}
