// Package xmltree parses XML documents into a small generic tree with path
// lookups. Namespaces are ignored; elements are addressed by local name.
package xmltree

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Keys used by Map for the parts of an element that are not child elements
const (
	AttributesKey = "@attributes"
	ValueKey      = "@value"
)

// Node is an XML element
type Node struct {
	Name       string
	Text       string
	Attributes map[string]string
	Children   []*Node
}

// Parse parses data and returns the root element
func Parse(data []byte) (*Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var stack []*Node
	var root *Node
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "invalid xml")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Name: t.Name.Local}
			if len(t.Attr) > 0 {
				n.Attributes = make(map[string]string, len(t.Attr))
				for _, a := range t.Attr {
					n.Attributes[a.Name.Local] = a.Value
				}
			}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			} else if root == nil {
				root = n
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, errors.New("invalid xml: unbalanced end element")
			}
			n := stack[len(stack)-1]
			n.Text = strings.TrimSpace(n.Text)
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, errors.New("invalid xml: no root element")
	}
	if len(stack) != 0 {
		return nil, errors.New("invalid xml: unexpected end of document")
	}
	return root, nil
}

// Child returns the first direct child named name
func (n *Node) Child(name string) (*Node, bool) {
	if n == nil {
		return nil, false
	}
	for _, c := range n.Children {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// ChildrenNamed returns all direct children named name
func (n *Node) ChildrenNamed(name string) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// Find follows the dot separated path of element names starting below n,
// always taking the first matching child.
func (n *Node) Find(path string) (*Node, bool) {
	cur := n
	for _, name := range strings.Split(path, ".") {
		next, ok := cur.Child(name)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return cur, cur != nil
}

// FindAll returns all elements matching the last segment of path below the
// element found for the preceding segments.
func (n *Node) FindAll(path string) []*Node {
	i := strings.LastIndexByte(path, '.')
	if i < 0 {
		return n.ChildrenNamed(path)
	}
	parent, ok := n.Find(path[:i])
	if !ok {
		return nil
	}
	return parent.ChildrenNamed(path[i+1:])
}

// Value returns the text of the element at path
func (n *Node) Value(path string) (string, bool) {
	e, ok := n.Find(path)
	if !ok {
		return "", false
	}
	return e.Text, true
}

// ValueOr returns the text of the element at path or def
func (n *Node) ValueOr(path, def string) string {
	if v, ok := n.Value(path); ok {
		return v
	}
	return def
}

// Map returns the nested map view of the children of n. Each child name maps
// to its own view and repeated names map to a []any. Leaf elements without
// attributes map to their text. Otherwise attributes are placed under
// AttributesKey and non empty text under ValueKey.
func (n *Node) Map() map[string]any {
	out := make(map[string]any, len(n.Children)+2)
	if len(n.Attributes) > 0 {
		out[AttributesKey] = n.Attributes
	}
	if n.Text != "" {
		out[ValueKey] = n.Text
	}
	for _, c := range n.Children {
		v := c.view()
		switch existing := out[c.Name].(type) {
		case nil:
			out[c.Name] = v
		case []any:
			out[c.Name] = append(existing, v)
		default:
			out[c.Name] = []any{existing, v}
		}
	}
	return out
}

func (n *Node) view() any {
	if len(n.Children) == 0 && len(n.Attributes) == 0 {
		return n.Text
	}
	return n.Map()
}
