// Package xmlutil provides pull-parsing helpers over encoding/xml used by
// the DAV property and multistatus decoders.
package xmlutil

import (
	"encoding/xml"
	"strings"
)

// Name builds a qualified name from a namespace URI and local name.
func Name(space, local string) xml.Name {
	return xml.Name{Space: space, Local: local}
}

// Text consumes the current element through its end tag and returns the
// concatenated character data of the element and any nested elements.
// CDATA sections arrive as character data and are preserved verbatim.
func Text(d *xml.Decoder) (string, error) {
	var sb strings.Builder
	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			if depth == 0 {
				return sb.String(), nil
			}
			depth--
		case xml.CharData:
			sb.Write(t)
		}
	}
}

// ChildNames consumes the current element through its end tag and returns
// the qualified names of its direct child elements, skipping their content.
func ChildNames(d *xml.Decoder) ([]xml.Name, error) {
	var names []xml.Name
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			names = append(names, t.Name)
			if err := d.Skip(); err != nil {
				return nil, err
			}
		case xml.EndElement:
			return names, nil
		}
	}
}

// GrandchildNames consumes the current element and returns, for every
// direct child element, the names of that child's own children. This is
// the shape of supported-report-set (report inside supported-report) and
// current-user-privilege-set (privilege wrapping the privilege name).
func GrandchildNames(d *xml.Decoder) ([]xml.Name, error) {
	var names []xml.Name
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch tok.(type) {
		case xml.StartElement:
			inner, err := ChildNames(d)
			if err != nil {
				return nil, err
			}
			names = append(names, inner...)
		case xml.EndElement:
			return names, nil
		}
	}
}

// ChildText consumes the current element and returns the text content of
// each direct child element whose name matches want.
func ChildText(d *xml.Decoder, want xml.Name) ([]string, error) {
	var out []string
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name == want {
				s, err := Text(d)
				if err != nil {
					return nil, err
				}
				out = append(out, s)
			} else if err := d.Skip(); err != nil {
				return nil, err
			}
		case xml.EndElement:
			return out, nil
		}
	}
}

// Escape XML-escapes text content for inclusion in element bodies and
// attribute values.
func Escape(s string) string {
	var sb strings.Builder
	if err := xml.EscapeText(&sb, []byte(s)); err != nil {
		return s
	}
	return sb.String()
}
