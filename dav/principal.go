package dav

import (
	"context"
	"encoding/xml"
)

// Discovery helpers for the bootstrap sequence a CalDAV/CardDAV client
// performs: locate the principal, then the home sets.

// FindCurrentUserPrincipal asks the resource for the authenticated
// user's principal URL with a Depth: 0 PROPFIND.
func (r *DavResource) FindCurrentUserPrincipal(ctx context.Context) (string, error) {
	return r.findHref(ctx, PropCurrentUserPrincipal, func(p Property) string {
		if cup, ok := p.(*CurrentUserPrincipal); ok {
			return cup.Href
		}
		return ""
	})
}

// FindCalendarHomeSet returns the first calendar home of the principal
// resource this handle points at.
func (r *DavResource) FindCalendarHomeSet(ctx context.Context) (string, error) {
	return r.findHref(ctx, PropCalendarHomeSet, func(p Property) string {
		if hs, ok := p.(*CalendarHomeSet); ok {
			return firstHref(hs.Hrefs)
		}
		return ""
	})
}

// FindAddressbookHomeSet returns the first address book home of the
// principal resource this handle points at.
func (r *DavResource) FindAddressbookHomeSet(ctx context.Context) (string, error) {
	return r.findHref(ctx, PropAddressbookHomeSet, func(p Property) string {
		if hs, ok := p.(*AddressbookHomeSet); ok {
			return firstHref(hs.Hrefs)
		}
		return ""
	})
}

func (r *DavResource) findHref(ctx context.Context, name xml.Name, extract func(Property) string) (string, error) {
	var href string
	_, err := r.Propfind(ctx, 0, []xml.Name{name}, func(resp *Response, rel HrefRelation) error {
		if rel != RelationSelf || !resp.Ok() {
			return nil
		}
		if p := resp.Prop(name); p != nil {
			if h := extract(p); h != "" {
				href = h
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if href == "" {
		return "", &DavError{Msg: name.Local + " not advertised by server"}
	}
	return href, nil
}
