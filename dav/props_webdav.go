package dav

import (
	"encoding/xml"
	"time"

	"gitea.jw6.us/james/davclient/internal/xmlutil"
)

// Core WebDAV property names (RFC 4918, RFC 3744, RFC 5397, RFC 6578).
var (
	PropResourceType            = xml.Name{Space: NamespaceDAV, Local: "resourcetype"}
	PropDisplayName             = xml.Name{Space: NamespaceDAV, Local: "displayname"}
	PropGetETag                 = xml.Name{Space: NamespaceDAV, Local: "getetag"}
	PropGetContentType          = xml.Name{Space: NamespaceDAV, Local: "getcontenttype"}
	PropGetContentLength        = xml.Name{Space: NamespaceDAV, Local: "getcontentlength"}
	PropGetLastModified         = xml.Name{Space: NamespaceDAV, Local: "getlastmodified"}
	PropCreationDate            = xml.Name{Space: NamespaceDAV, Local: "creationdate"}
	PropCurrentUserPrincipal    = xml.Name{Space: NamespaceDAV, Local: "current-user-principal"}
	PropPrincipalURL            = xml.Name{Space: NamespaceDAV, Local: "principal-URL"}
	PropCurrentUserPrivilegeSet = xml.Name{Space: NamespaceDAV, Local: "current-user-privilege-set"}
	PropSupportedReportSet      = xml.Name{Space: NamespaceDAV, Local: "supported-report-set"}
	PropSyncToken               = xml.Name{Space: NamespaceDAV, Local: "sync-token"}
	PropOwner                   = xml.Name{Space: NamespaceDAV, Local: "owner"}
	PropGroupMembership         = xml.Name{Space: NamespaceDAV, Local: "group-membership"}
	PropQuotaAvailableBytes     = xml.Name{Space: NamespaceDAV, Local: "quota-available-bytes"}
	PropQuotaUsedBytes          = xml.Name{Space: NamespaceDAV, Local: "quota-used-bytes"}
	PropLockDiscovery           = xml.Name{Space: NamespaceDAV, Local: "lockdiscovery"}
	PropGetCTag                 = xml.Name{Space: NamespaceCalendarServer, Local: "getctag"}
)

// ResourceType is the decoded flag set of the resourcetype property.
type ResourceType struct {
	Collection         bool
	Principal          bool
	Calendar           bool
	AddressBook        bool
	CalendarProxyRead  bool
	CalendarProxyWrite bool
	Subscribed         bool
}

func (p *ResourceType) Name() xml.Name { return PropResourceType }

type DisplayName struct{ Value string }

func (p *DisplayName) Name() xml.Name { return PropDisplayName }

// GetETag carries the raw entity tag with quotes and weak prefix stripped.
type GetETag struct{ Value string }

func (p *GetETag) Name() xml.Name { return PropGetETag }

type GetContentType struct{ Value string }

func (p *GetContentType) Name() xml.Name { return PropGetContentType }

type GetContentLength struct{ Value int64 }

func (p *GetContentLength) Name() xml.Name { return PropGetContentLength }

// GetLastModified holds the parsed Last-Modified timestamp; the zero time
// means the server sent an unparsable value.
type GetLastModified struct{ Time time.Time }

func (p *GetLastModified) Name() xml.Name { return PropGetLastModified }

type CreationDate struct{ Time time.Time }

func (p *CreationDate) Name() xml.Name { return PropCreationDate }

type CurrentUserPrincipal struct{ Href string }

func (p *CurrentUserPrincipal) Name() xml.Name { return PropCurrentUserPrincipal }

type PrincipalURL struct{ Href string }

func (p *PrincipalURL) Name() xml.Name { return PropPrincipalURL }

type CurrentUserPrivilegeSet struct{ Privileges []xml.Name }

func (p *CurrentUserPrivilegeSet) Name() xml.Name { return PropCurrentUserPrivilegeSet }

type SupportedReportSet struct{ Reports []xml.Name }

func (p *SupportedReportSet) Name() xml.Name { return PropSupportedReportSet }

type SyncToken struct{ Value string }

func (p *SyncToken) Name() xml.Name { return PropSyncToken }

type Owner struct{ Href string }

func (p *Owner) Name() xml.Name { return PropOwner }

type GroupMembership struct{ Hrefs []string }

func (p *GroupMembership) Name() xml.Name { return PropGroupMembership }

type QuotaAvailableBytes struct{ Value int64 }

func (p *QuotaAvailableBytes) Name() xml.Name { return PropQuotaAvailableBytes }

type QuotaUsedBytes struct{ Value int64 }

func (p *QuotaUsedBytes) Name() xml.Name { return PropQuotaUsedBytes }

// LockDiscovery reports the lock tokens of active locks on the resource.
type LockDiscovery struct{ LockTokens []string }

func (p *LockDiscovery) Name() xml.Name { return PropLockDiscovery }

// GetCTag is the calendarserver collection tag, changed whenever any
// member of the collection changes.
type GetCTag struct{ Value string }

func (p *GetCTag) Name() xml.Name { return PropGetCTag }

func init() {
	RegisterProperty(PropResourceType, decodeResourceType)

	textProperty(PropDisplayName, func(s string) Property { return &DisplayName{Value: s} })
	textProperty(PropGetETag, func(s string) Property { return &GetETag{Value: unquoteETag(s)} })
	textProperty(PropGetContentType, func(s string) Property { return &GetContentType{Value: s} })
	intProperty(PropGetContentLength, func(v int64) Property { return &GetContentLength{Value: v} })
	textProperty(PropGetLastModified, func(s string) Property {
		return &GetLastModified{Time: parseHTTPDate(s)}
	})
	textProperty(PropCreationDate, func(s string) Property {
		return &CreationDate{Time: parseISODate(s)}
	})
	textProperty(PropSyncToken, func(s string) Property { return &SyncToken{Value: s} })
	textProperty(PropGetCTag, func(s string) Property { return &GetCTag{Value: s} })
	intProperty(PropQuotaAvailableBytes, func(v int64) Property { return &QuotaAvailableBytes{Value: v} })
	intProperty(PropQuotaUsedBytes, func(v int64) Property { return &QuotaUsedBytes{Value: v} })

	hrefSetProperty(PropCurrentUserPrincipal, func(hrefs []string) Property {
		return &CurrentUserPrincipal{Href: firstHref(hrefs)}
	})
	hrefSetProperty(PropPrincipalURL, func(hrefs []string) Property {
		return &PrincipalURL{Href: firstHref(hrefs)}
	})
	hrefSetProperty(PropOwner, func(hrefs []string) Property {
		return &Owner{Href: firstHref(hrefs)}
	})
	hrefSetProperty(PropGroupMembership, func(hrefs []string) Property {
		return &GroupMembership{Hrefs: hrefs}
	})

	RegisterProperty(PropCurrentUserPrivilegeSet, func(d *xml.Decoder, _ xml.StartElement) (Property, error) {
		names, err := xmlutil.GrandchildNames(d)
		if err != nil {
			return nil, err
		}
		return &CurrentUserPrivilegeSet{Privileges: names}, nil
	})
	RegisterProperty(PropSupportedReportSet, func(d *xml.Decoder, _ xml.StartElement) (Property, error) {
		names, err := decodeSupportedReportSet(d)
		if err != nil {
			return nil, err
		}
		return &SupportedReportSet{Reports: names}, nil
	})
	RegisterProperty(PropLockDiscovery, decodeLockDiscovery)
}

func decodeResourceType(d *xml.Decoder, _ xml.StartElement) (Property, error) {
	names, err := xmlutil.ChildNames(d)
	if err != nil {
		return nil, err
	}
	rt := &ResourceType{}
	for _, n := range names {
		switch n {
		case xml.Name{Space: NamespaceDAV, Local: "collection"}:
			rt.Collection = true
		case xml.Name{Space: NamespaceDAV, Local: "principal"}:
			rt.Principal = true
		case xml.Name{Space: NamespaceCalDAV, Local: "calendar"}:
			rt.Calendar = true
		case xml.Name{Space: NamespaceCardDAV, Local: "addressbook"}:
			rt.AddressBook = true
		case xml.Name{Space: NamespaceCalendarServer, Local: "calendar-proxy-read"}:
			rt.CalendarProxyRead = true
		case xml.Name{Space: NamespaceCalendarServer, Local: "calendar-proxy-write"}:
			rt.CalendarProxyWrite = true
		case xml.Name{Space: NamespaceCalendarServer, Local: "subscribed"}:
			rt.Subscribed = true
		}
	}
	return rt, nil
}

// decodeSupportedReportSet unwraps supported-report > report > NAME.
func decodeSupportedReportSet(d *xml.Decoder) ([]xml.Name, error) {
	var names []xml.Name
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name == (xml.Name{Space: NamespaceDAV, Local: "supported-report"}) {
				inner, err := xmlutil.GrandchildNames(d)
				if err != nil {
					return nil, err
				}
				names = append(names, inner...)
			} else if err := d.Skip(); err != nil {
				return nil, err
			}
		case xml.EndElement:
			return names, nil
		}
	}
}

func decodeLockDiscovery(d *xml.Decoder, _ xml.StartElement) (Property, error) {
	var tokens []string
	depth := 0
	inLockToken := false
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if t.Name == (xml.Name{Space: NamespaceDAV, Local: "locktoken"}) {
				inLockToken = true
			} else if inLockToken && t.Name == (xml.Name{Space: NamespaceDAV, Local: "href"}) {
				s, err := xmlutil.Text(d)
				if err != nil {
					return nil, err
				}
				tokens = append(tokens, s)
				depth--
			}
		case xml.EndElement:
			if depth == 0 {
				return &LockDiscovery{LockTokens: tokens}, nil
			}
			depth--
			if inLockToken && t.Name == (xml.Name{Space: NamespaceDAV, Local: "locktoken"}) {
				inLockToken = false
			}
		}
	}
}

func parseHTTPDate(s string) time.Time {
	for _, layout := range []string{time.RFC1123, time.RFC1123Z, time.RFC850, time.ANSIC} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func parseISODate(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05Z0700", "20060102T150405Z"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
