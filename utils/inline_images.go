package utils

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

const (
	// MissingImagePlaceholder replaces inline images whose content-id cannot
	// be matched to any known attachment.
	MissingImagePlaceholder = "/assets/img/inline-missing.png"
	// LoadingImagePlaceholder replaces inline images while attachment
	// metadata for the message is still being fetched.
	LoadingImagePlaceholder = "/assets/img/inline-loading.png"
)

// AttachmentRef is the minimal attachment metadata needed to resolve
// cid: references.
type AttachmentRef struct {
	ID        string
	ContentID string
}

// URLBuilder renders an attachment reference into a fetchable URL.
type URLBuilder func(messageID, attachmentID string) string

// ResolveInlineImages rewrites every <img src="cid:..."> in safeHTML to a
// fetchable URL for the matching attachment, or to a neutral placeholder when
// no attachment matches. A nil attachment slice means metadata has not loaded
// yet; every cid image then becomes a loading placeholder and resolution is
// re-run once attachments arrive. Any literal "cid:" left after substitution
// is stripped so unresolvable references never reach the render surface.
func ResolveInlineImages(safeHTML, messageID string, attachments []AttachmentRef, build URLBuilder) string {
	if !strings.Contains(safeHTML, "cid:") {
		return safeHTML
	}

	doc, err := html.Parse(strings.NewReader(safeHTML))
	if err != nil {
		// Sanitized input should always parse; degrade to the literal strip.
		return stripCIDLiterals(safeHTML)
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "img" {
			resolveImageNode(n, messageID, attachments, build)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	// Render only the body's children so fragments stay fragments.
	var buf bytes.Buffer
	body := findBody(doc)
	if body == nil {
		body = doc
	}
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return stripCIDLiterals(safeHTML)
		}
	}

	return stripCIDLiterals(buf.String())
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if body := findBody(c); body != nil {
			return body
		}
	}
	return nil
}

func resolveImageNode(n *html.Node, messageID string, attachments []AttachmentRef, build URLBuilder) {
	for i, attr := range n.Attr {
		if attr.Key != "src" || !strings.HasPrefix(strings.ToLower(attr.Val), "cid:") {
			continue
		}

		if attachments == nil {
			n.Attr[i].Val = LoadingImagePlaceholder
			n.Attr = append(n.Attr, html.Attribute{Key: "data-inline-loading", Val: "true"})
			continue
		}

		cid := strings.TrimSpace(attr.Val[len("cid:"):])
		if ref, ok := MatchContentID(attachments, cid); ok && build != nil {
			n.Attr[i].Val = build(messageID, ref.ID)
		} else {
			n.Attr[i].Val = MissingImagePlaceholder
		}
	}
}

// MatchContentID looks up an attachment by content-id. Providers format
// content-ids inconsistently, so matching tries, in priority order: exact
// match, match with surrounding angle brackets stripped, substring match.
func MatchContentID(attachments []AttachmentRef, cid string) (AttachmentRef, bool) {
	for _, ref := range attachments {
		if ref.ContentID != "" && ref.ContentID == cid {
			return ref, true
		}
	}

	bare := strings.Trim(cid, "<>")
	for _, ref := range attachments {
		if ref.ContentID != "" && strings.Trim(ref.ContentID, "<>") == bare {
			return ref, true
		}
	}

	for _, ref := range attachments {
		refBare := strings.Trim(ref.ContentID, "<>")
		if refBare == "" {
			continue
		}
		if strings.Contains(refBare, bare) || strings.Contains(bare, refBare) {
			return ref, true
		}
	}

	return AttachmentRef{}, false
}

func stripCIDLiterals(s string) string {
	return strings.ReplaceAll(s, "cid:", "")
}
