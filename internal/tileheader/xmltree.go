package tileheader

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// decodeXMLTree turns an XML document into a nested mapping: each element
// becomes a map[string]interface{} keyed by child tag name, and an
// element whose only child is text collapses to that text string. Sibling
// elements sharing a tag name accumulate into a []interface{}.
func decodeXMLTree(r io.Reader) (map[string]interface{}, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("tileheader: reading xml root: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			value, err := decodeXMLElement(dec, start)
			if err != nil {
				return nil, err
			}
			root := map[string]interface{}{start.Name.Local: value}
			return root, nil
		}
	}
}

// decodeXMLElement recursively decodes the children of start until its
// matching end element, returning either a string (text-only element) or
// a map[string]interface{} (element with child elements).
func decodeXMLElement(dec *xml.Decoder, start xml.StartElement) (interface{}, error) {
	children := map[string]interface{}{}
	var text strings.Builder
	hasChildElement := false

	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("tileheader: decoding element %q: %w", start.Name.Local, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			hasChildElement = true
			value, err := decodeXMLElement(dec, t)
			if err != nil {
				return nil, err
			}
			mergeXMLChild(children, t.Name.Local, value)
		case xml.CharData:
			text.Write(t)
		case xml.EndElement:
			if t.Name == start.Name {
				if !hasChildElement {
					return strings.TrimSpace(text.String()), nil
				}
				return children, nil
			}
		}
	}
}

// mergeXMLChild adds a decoded child under name, promoting the slot to a
// slice if name already has a value (repeated sibling tags).
func mergeXMLChild(children map[string]interface{}, name string, value interface{}) {
	existing, ok := children[name]
	if !ok {
		children[name] = value
		return
	}
	if list, ok := existing.([]interface{}); ok {
		children[name] = append(list, value)
		return
	}
	children[name] = []interface{}{existing, value}
}
