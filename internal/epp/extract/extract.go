// Package extract is a tolerant decoder for registry protocol responses.
//
// Response encoding is inconsistent between single- and multi-item replies
// and between server implementations: the same field may arrive as a bare
// text value, as text inside an attribute-carrying element, or nested one
// list level deeper. Instead of scattering fallback path arrays across call
// sites, each field declares the ordered list of shapes it accepts once and
// the decoder returns the first non-empty match.
package extract

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Node is one element of a parsed response tree. Namespace prefixes are
// stripped from names so "domain:name" and "name" match the same path.
type Node struct {
	Name     string
	Attrs    map[string]string
	Text     string
	Children []*Node
}

// Parse builds a Node tree from raw XML.
func Parse(data []byte) (*Node, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))

	root := &Node{Name: ""}
	stack := []*Node{root}

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse response: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			node := &Node{Name: localName(t.Name.Local), Attrs: map[string]string{}}
			for _, attr := range t.Attr {
				node.Attrs[localName(attr.Name.Local)] = attr.Value
			}
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, node)
			stack = append(stack, node)
		case xml.EndElement:
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text != "" {
				stack[len(stack)-1].Text += text
			}
		}
	}

	if len(root.Children) == 1 {
		return root.Children[0], nil
	}
	return root, nil
}

// localName strips a namespace prefix ("domain:name" -> "name").
func localName(name string) string {
	if i := strings.LastIndex(name, ":"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Field declares where a logical value may live. Paths are tried in order;
// the first non-empty hit wins. A path is slash-separated element names from
// the response root; a trailing "@attr" reads an attribute instead of text.
// List-shaped replies are tolerated: when a path step matches several
// siblings, the first is followed.
type Field struct {
	Name  string
	Paths []string
}

// Decoder resolves Fields against one parsed response.
type Decoder struct {
	root   *Node
	logger *slog.Logger
}

// NewDecoder wraps a parsed response. A nil logger disables miss logging.
func NewDecoder(root *Node, logger *slog.Logger) *Decoder {
	return &Decoder{root: root, logger: logger}
}

// String returns the first non-empty value among the field's candidate
// paths, or "" when every candidate misses. Missing fields are logged, not
// errors: the callers decide whether absence matters.
func (d *Decoder) String(field Field) string {
	for _, path := range field.Paths {
		if v := d.lookup(path); v != "" {
			return v
		}
	}
	if d.logger != nil {
		d.logger.Warn("response field missing on every candidate path",
			"field", field.Name,
			"paths", strings.Join(field.Paths, " | "),
		)
	}
	return ""
}

// Bool interprets the field's value as a protocol boolean ("1"/"true").
// Absence decodes as false.
func (d *Decoder) Bool(field Field) bool {
	v := d.String(field)
	return v == "1" || strings.EqualFold(v, "true")
}

// Each visits every sibling matching the path, handing each subtree to fn.
// Used for list-shaped payloads (batch availability results).
func (d *Decoder) Each(path string, fn func(*Decoder)) {
	steps := strings.Split(path, "/")
	nodes := []*Node{d.root}
	for _, step := range steps {
		var next []*Node
		for _, n := range nodes {
			for _, child := range n.Children {
				if child.Name == step {
					next = append(next, child)
				}
			}
		}
		nodes = next
	}
	for _, n := range nodes {
		fn(NewDecoder(n, d.logger))
	}
}

// lookup walks one candidate path. Each step follows the first matching
// child; "@attr" on the final step reads the attribute.
func (d *Decoder) lookup(path string) string {
	attr := ""
	if i := strings.Index(path, "@"); i >= 0 {
		attr = path[i+1:]
		path = strings.TrimSuffix(path[:i], "/")
	}

	node := d.root
	if path != "" {
		for _, step := range strings.Split(path, "/") {
			var found *Node
			for _, child := range node.Children {
				if child.Name == step {
					found = child
					break
				}
			}
			if found == nil {
				return ""
			}
			node = found
		}
	}

	if attr != "" {
		return node.Attrs[attr]
	}
	return node.Text
}
