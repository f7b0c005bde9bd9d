package utils

import (
	"github.com/microcosm-cc/bluemonday"
)

// DefaultAllowedTags is the element allowlist for email content.
var DefaultAllowedTags = []string{
	"p", "br", "div", "span", "h1", "h2", "h3", "h4", "h5", "h6",
	"strong", "em", "b", "i", "u", "s", "code", "pre",
	"ul", "ol", "li",
	"blockquote",
	"a", "img",
	"table", "thead", "tbody", "tr", "th", "td",
	"hr",
}

// DefaultAllowedAttrs is the attribute allowlist for email content.
// Scripts, event handlers and forms are never allowed.
var DefaultAllowedAttrs = []string{
	"href", "src", "alt", "title", "width", "height", "class", "id", "style",
}

// Sanitizer converts arbitrary third-party HTML into markup that is safe to
// place in the compose/render surface. Sanitization is deterministic and
// idempotent: sanitizing already-sanitized output returns it unchanged.
type Sanitizer struct {
	policy *bluemonday.Policy
	strict *bluemonday.Policy
}

// NewSanitizer builds a sanitizer from explicit tag and attribute allowlists.
func NewSanitizer(allowedTags, allowedAttrs []string) *Sanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements(allowedTags...)
	p.AllowAttrs(allowedAttrs...).Globally()
	p.RequireParseableURLs(true)
	p.AllowURLSchemes("http", "https", "mailto", "cid")

	return &Sanitizer{
		policy: p,
		strict: bluemonday.StrictPolicy(),
	}
}

// NewDefaultSanitizer builds a sanitizer with the default allowlists.
func NewDefaultSanitizer() *Sanitizer {
	return NewSanitizer(DefaultAllowedTags, DefaultAllowedAttrs)
}

// Sanitize removes every element and attribute outside the allowlist.
// Applied to pasted clipboard HTML before insertion and to third-party
// message HTML before display.
func (s *Sanitizer) Sanitize(html string) string {
	return s.policy.Sanitize(html)
}

// StripHTML removes all HTML tags from content
func (s *Sanitizer) StripHTML(html string) string {
	return s.strict.Sanitize(html)
}
