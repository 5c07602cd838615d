package dav

import (
	"context"
	"encoding/xml"
	"net/http"

	"go.uber.org/zap"
)

// DavAddressBook is a handle to a CardDAV address book collection
// (RFC 6352).
type DavAddressBook struct {
	*DavCollection
}

// NewAddressBook builds an address book handle; see NewResource.
func NewAddressBook(hc *http.Client, location string, log *zap.Logger) (*DavAddressBook, error) {
	c, err := NewCollection(hc, location, log)
	if err != nil {
		return nil, err
	}
	return &DavAddressBook{DavCollection: c}, nil
}

// PropFilter matches address objects whose named vCard property contains
// the given text. A nil filter matches every member.
type PropFilter struct {
	Name      string
	MatchText string
}

// AddressbookQuery runs the addressbook-query report. Depth is fixed at
// 1 per RFC 6352 section 8.6.
func (a *DavAddressBook) AddressbookQuery(ctx context.Context, filter *PropFilter, names []xml.Name, cb ResponseCallback) ([]Property, error) {
	b := newXMLBuilder(xml.Name{Space: NamespaceCardDAV, Local: "addressbook-query"})
	b.propList(names)

	filterName := xml.Name{Space: NamespaceCardDAV, Local: "filter"}
	if filter == nil {
		b.empty(filterName)
	} else {
		propFilter := xml.Name{Space: NamespaceCardDAV, Local: "prop-filter"}
		b.open(filterName)
		b.open(propFilter, "name", filter.Name)
		b.text(xml.Name{Space: NamespaceCardDAV, Local: "text-match"}, filter.MatchText)
		b.close(propFilter)
		b.close(filterName)
	}

	return a.report(ctx, b.bytes(), map[string]string{"Depth": "1"}, cb)
}

// AddressbookMultiget fetches the named properties of the given member
// hrefs in one report.
func (a *DavAddressBook) AddressbookMultiget(ctx context.Context, hrefs []string, names []xml.Name, cb ResponseCallback) ([]Property, error) {
	body := multigetBody(xml.Name{Space: NamespaceCardDAV, Local: "addressbook-multiget"}, hrefs, names)
	return a.report(ctx, body, nil, cb)
}
