package dav

import (
	"encoding/xml"
	"strconv"
	"strings"
	"sync"

	"gitea.jw6.us/james/davclient/internal/xmlutil"
)

// XML namespaces the engine speaks. Input namespaces are matched by URI;
// output prefixes are fixed in the request builder.
const (
	NamespaceDAV            = "DAV:"
	NamespaceCalDAV         = "urn:ietf:params:xml:ns:caldav"
	NamespaceCardDAV        = "urn:ietf:params:xml:ns:carddav"
	NamespaceCalendarServer = "http://calendarserver.org/ns/"
	NamespaceAppleICal      = "http://apple.com/ns/ical/"
)

// Property is a decoded WebDAV property value. Each concrete type carries
// its qualified name as a package-level Prop* constant.
type Property interface {
	Name() xml.Name
}

// PropertyFactory decodes one property from a decoder positioned at the
// property's start element. The factory must consume the element through
// its end tag. Returning (nil, nil) treats the property as absent.
type PropertyFactory func(d *xml.Decoder, start xml.StartElement) (Property, error)

var propRegistry = struct {
	sync.RWMutex
	m map[xml.Name]PropertyFactory
}{m: make(map[xml.Name]PropertyFactory)}

// RegisterProperty installs a factory for the given qualified name.
// Registration should happen before the first parse; later registrations
// replace the previous factory.
func RegisterProperty(name xml.Name, f PropertyFactory) {
	propRegistry.Lock()
	defer propRegistry.Unlock()
	propRegistry.m[name] = f
}

func lookupProperty(name xml.Name) (PropertyFactory, bool) {
	propRegistry.RLock()
	defer propRegistry.RUnlock()
	f, ok := propRegistry.m[name]
	return f, ok
}

// UnknownProperty is a generic property value carrying only its name and
// text. The parser never produces it: QNames without a registered factory
// are skipped. Custom factories may return or embed it.
type UnknownProperty struct {
	XMLName xml.Name
	Text    string
}

func (p *UnknownProperty) Name() xml.Name { return p.XMLName }

// textProperty registers a factory that decodes the element's character
// data through mk. mk may return nil to treat the value as absent.
func textProperty(name xml.Name, mk func(s string) Property) {
	RegisterProperty(name, func(d *xml.Decoder, _ xml.StartElement) (Property, error) {
		s, err := xmlutil.Text(d)
		if err != nil {
			return nil, err
		}
		return mk(s), nil
	})
}

// hrefSetProperty registers a factory collecting the text of DAV: href
// children.
func hrefSetProperty(name xml.Name, mk func(hrefs []string) Property) {
	RegisterProperty(name, func(d *xml.Decoder, _ xml.StartElement) (Property, error) {
		hrefs, err := xmlutil.ChildText(d, xml.Name{Space: NamespaceDAV, Local: "href"})
		if err != nil {
			return nil, err
		}
		return mk(hrefs), nil
	})
}

// intProperty registers a factory for integer-bodied properties. An
// unparsable body decodes as absent rather than failing the parse.
func intProperty(name xml.Name, mk func(v int64) Property) {
	textProperty(name, func(s string) Property {
		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil
		}
		return mk(v)
	})
}

func firstHref(hrefs []string) string {
	if len(hrefs) == 0 {
		return ""
	}
	return hrefs[0]
}

// unquoteETag strips an optional weak-validator prefix and surrounding
// quotes, yielding the raw entity tag.
func unquoteETag(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "W/")
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = s[1 : len(s)-1]
		s = strings.ReplaceAll(s, `\"`, `"`)
		s = strings.ReplaceAll(s, `\\`, `\`)
	}
	return s
}
