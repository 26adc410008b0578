// Package xmldoc parses XML into a small element tree addressed by name.
package xmldoc

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrMalformed = errors.New("malformed xml")
	// ErrTooDeep reports a document nested deeper than the allowed depth.
	ErrTooDeep = errors.New("xml nested too deep")
)

// DefaultMaxDepth is deep enough for any pack description; real documents
// nest about eight levels.
const DefaultMaxDepth = 32

type Element struct {
	Name     string
	Attrs    map[string]string
	Children []*Element
	text     strings.Builder
}

// Attr returns the attribute value and whether it was present.
func (e *Element) Attr(name string) (string, bool) {
	if e == nil {
		return "", false
	}
	v, ok := e.Attrs[name]
	return v, ok
}

// FirstChild returns the first child called name, or nil. Later siblings
// with the same name are never consulted.
func (e *Element) FirstChild(name string) *Element {
	if e == nil {
		return nil
	}
	for _, c := range e.Children {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Text returns the element's own character data, trimmed.
func (e *Element) Text() string {
	if e == nil {
		return ""
	}
	return strings.TrimSpace(e.text.String())
}

// ChildTexts returns the text of each child in order.
func (e *Element) ChildTexts() []string {
	if e == nil {
		return []string{}
	}
	out := make([]string, 0, len(e.Children))
	for _, c := range e.Children {
		out = append(out, c.Text())
	}
	return out
}

// Parse reads a single document and returns its root element. Namespaces
// are dropped: elements and attributes are keyed by local name.
func Parse(data []byte, maxDepth int) (*Element, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	d := xml.NewDecoder(bytes.NewReader(data))
	var (
		root  *Element
		stack []*Element
	)

	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) >= maxDepth {
				return nil, fmt.Errorf("%w: limit is %d", ErrTooDeep, maxDepth)
			}
			el := &Element{Name: t.Name.Local, Attrs: make(map[string]string, len(t.Attr))}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
					continue
				}
				if _, dup := el.Attrs[a.Name.Local]; !dup {
					el.Attrs[a.Name.Local] = a.Value
				}
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("%w: multiple root elements", ErrMalformed)
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)

		case xml.EndElement:
			stack = stack[:len(stack)-1]

		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrMalformed)
	}
	return root, nil
}
