package compose

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// Document is a parsed draft body that edits are applied to through explicit
// commands. Every command path re-serializes afterward, so the draft's stored
// body string is always derived from the document, never patched by string
// surgery.
type Document struct {
	body *html.Node
}

// ParseBody parses a draft body fragment into an editable document.
func ParseBody(bodyHTML string) (*Document, error) {
	doc, err := html.Parse(strings.NewReader(bodyHTML))
	if err != nil {
		return nil, fmt.Errorf("parse body: %w", err)
	}

	body := findElement(doc, "body")
	if body == nil {
		return nil, fmt.Errorf("parse body: no body node")
	}
	return &Document{body: body}, nil
}

// HTML serializes the document back to a body fragment.
func (d *Document) HTML() (string, error) {
	var buf bytes.Buffer
	for c := d.body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", fmt.Errorf("render body: %w", err)
		}
	}
	return buf.String(), nil
}

// InsertText appends a text node to the element at path. A path is a sequence
// of child-element indexes from the body root; the empty path is the body
// itself.
func (d *Document) InsertText(path []int, text string) error {
	n, err := d.elementAt(path)
	if err != nil {
		return err
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return nil
}

// SetAttribute sets or replaces an attribute on the element at path.
func (d *Document) SetAttribute(path []int, key, val string) error {
	n, err := d.elementAt(path)
	if err != nil {
		return err
	}

	key = strings.ToLower(key)
	for i, attr := range n.Attr {
		if attr.Key == key {
			n.Attr[i].Val = val
			return nil
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
	return nil
}

// SetStyle merges one style property into the element's style attribute,
// replacing an existing declaration of the same property.
func (d *Document) SetStyle(path []int, property, value string) error {
	n, err := d.elementAt(path)
	if err != nil {
		return err
	}

	property = strings.ToLower(strings.TrimSpace(property))
	var decls []string
	for i, attr := range n.Attr {
		if attr.Key != "style" {
			continue
		}
		for _, decl := range strings.Split(attr.Val, ";") {
			decl = strings.TrimSpace(decl)
			if decl == "" {
				continue
			}
			name, _, _ := strings.Cut(decl, ":")
			if strings.ToLower(strings.TrimSpace(name)) == property {
				continue
			}
			decls = append(decls, decl)
		}
		decls = append(decls, property+": "+value)
		n.Attr[i].Val = strings.Join(decls, "; ")
		return nil
	}

	n.Attr = append(n.Attr, html.Attribute{Key: "style", Val: property + ": " + value})
	return nil
}

func (d *Document) elementAt(path []int) (*html.Node, error) {
	n := d.body
	for depth, idx := range path {
		child := elementChild(n, idx)
		if child == nil {
			return nil, fmt.Errorf("no element at path %v (depth %d)", path, depth)
		}
		n = child
	}
	return n, nil
}

func elementChild(n *html.Node, idx int) *html.Node {
	i := 0
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if i == idx {
			return c
		}
		i++
	}
	return nil
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}
