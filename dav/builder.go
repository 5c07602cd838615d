package dav

import (
	"encoding/xml"
	"fmt"
	"strings"

	"gitea.jw6.us/james/davclient/internal/xmlutil"
)

// The request builder emits UTF-8 XML with a fixed prefix map. Namespaces
// outside the map get a local xmlns declaration on the element itself.
var builderPrefixes = map[string]string{
	NamespaceDAV:            "",
	NamespaceCalDAV:         "CAL",
	NamespaceCardDAV:        "CARD",
	NamespaceCalendarServer: "CS",
	NamespaceAppleICal:      "A",
}

const xmlHeader = `<?xml version="1.0" encoding="UTF-8"?>`

type xmlBuilder struct {
	sb   strings.Builder
	root xml.Name
}

func newXMLBuilder(root xml.Name) *xmlBuilder {
	b := &xmlBuilder{root: root}
	b.sb.WriteString(xmlHeader)
	b.sb.WriteByte('<')
	b.sb.WriteString(b.tag(root))
	b.sb.WriteString(` xmlns="DAV:"`)
	b.sb.WriteString(` xmlns:CAL="` + NamespaceCalDAV + `"`)
	b.sb.WriteString(` xmlns:CARD="` + NamespaceCardDAV + `"`)
	b.sb.WriteString(` xmlns:CS="` + NamespaceCalendarServer + `"`)
	b.sb.WriteString(` xmlns:A="` + NamespaceAppleICal + `"`)
	b.sb.WriteByte('>')
	return b
}

func (b *xmlBuilder) tag(name xml.Name) string {
	prefix, ok := builderPrefixes[name.Space]
	if !ok || prefix == "" {
		return name.Local
	}
	return prefix + ":" + name.Local
}

// open writes a start tag.
func (b *xmlBuilder) open(name xml.Name, attrs ...string) {
	b.sb.WriteByte('<')
	b.sb.WriteString(b.tag(name))
	if _, known := builderPrefixes[name.Space]; !known && name.Space != "" {
		b.sb.WriteString(` xmlns="` + xmlutil.Escape(name.Space) + `"`)
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		fmt.Fprintf(&b.sb, ` %s="%s"`, attrs[i], xmlutil.Escape(attrs[i+1]))
	}
	b.sb.WriteByte('>')
}

func (b *xmlBuilder) close(name xml.Name) {
	b.sb.WriteString("</")
	b.sb.WriteString(b.tag(name))
	b.sb.WriteByte('>')
}

// empty writes a self-closing element.
func (b *xmlBuilder) empty(name xml.Name, attrs ...string) {
	b.sb.WriteByte('<')
	b.sb.WriteString(b.tag(name))
	if _, known := builderPrefixes[name.Space]; !known && name.Space != "" {
		b.sb.WriteString(` xmlns="` + xmlutil.Escape(name.Space) + `"`)
	}
	for i := 0; i+1 < len(attrs); i += 2 {
		fmt.Fprintf(&b.sb, ` %s="%s"`, attrs[i], xmlutil.Escape(attrs[i+1]))
	}
	b.sb.WriteString("/>")
}

// text writes an element with escaped text content.
func (b *xmlBuilder) text(name xml.Name, content string) {
	b.open(name)
	b.sb.WriteString(xmlutil.Escape(content))
	b.close(name)
}

func (b *xmlBuilder) bytes() []byte {
	b.close(b.root)
	return []byte(b.sb.String())
}

// propList writes a DAV:prop element with one empty element per name.
func (b *xmlBuilder) propList(names []xml.Name) {
	prop := xml.Name{Space: NamespaceDAV, Local: "prop"}
	b.open(prop)
	for _, n := range names {
		b.empty(n)
	}
	b.close(prop)
}

// PropUpdate names a property and the text value to set on it.
type PropUpdate struct {
	Name  xml.Name
	Value string
}

// buildPropfind emits the PROPFIND request body of RFC 4918 section 9.1.
func buildPropfind(names []xml.Name) []byte {
	b := newXMLBuilder(xml.Name{Space: NamespaceDAV, Local: "propfind"})
	b.propList(names)
	return b.bytes()
}

// buildPropPatch emits the PROPPATCH propertyupdate body, one set group
// per update and one remove group per removal.
func buildPropPatch(set []PropUpdate, remove []xml.Name) []byte {
	b := newXMLBuilder(xml.Name{Space: NamespaceDAV, Local: "propertyupdate"})
	setName := xml.Name{Space: NamespaceDAV, Local: "set"}
	removeName := xml.Name{Space: NamespaceDAV, Local: "remove"}
	prop := xml.Name{Space: NamespaceDAV, Local: "prop"}
	for _, u := range set {
		b.open(setName)
		b.open(prop)
		b.text(u.Name, u.Value)
		b.close(prop)
		b.close(setName)
	}
	for _, n := range remove {
		b.open(removeName)
		b.open(prop)
		b.empty(n)
		b.close(prop)
		b.close(removeName)
	}
	return b.bytes()
}
