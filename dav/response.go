package dav

import (
	"encoding/xml"
	"net/url"
	"strings"

	"gitea.jw6.us/james/davclient/internal/xmlutil"
)

// HrefRelation classifies a response href against the request location.
type HrefRelation int

const (
	// RelationSelf means the href denotes the requested resource itself,
	// modulo a trailing slash.
	RelationSelf HrefRelation = iota
	// RelationMember means the href lies strictly below the requested
	// collection.
	RelationMember
	// RelationOther covers everything else.
	RelationOther
)

func (r HrefRelation) String() string {
	switch r {
	case RelationSelf:
		return "self"
	case RelationMember:
		return "member"
	default:
		return "other"
	}
}

// PropStat pairs a property list with the status that applies to every
// property in the list.
type PropStat struct {
	Status Status
	Props  []Property
}

// Response is one parsed DAV:response element. When a response element
// carries several hrefs, one Response is produced per href, all sharing
// the same propstat content.
type Response struct {
	// Href is the response href resolved against the request location.
	Href *url.URL
	// Status is set when the response carries a direct status child,
	// meaning the operation wholly succeeded or failed for this href.
	Status    *Status
	PropStats []PropStat
	// Error holds the condition codes of a DAV:error child, if any.
	Error               []xml.Name
	ResponseDescription string
	Location            *url.URL
	// OutOfScope flags an href whose scheme or authority differs from the
	// request base. The response is still delivered.
	OutOfScope bool
}

// ResponseCallback receives one Response per DAV:response element, in
// document order. A non-nil error aborts the enclosing parse.
type ResponseCallback func(resp *Response, rel HrefRelation) error

// Prop returns the first property with the given name found in a
// successful propstat group, or nil.
func (r *Response) Prop(name xml.Name) Property {
	for _, ps := range r.PropStats {
		if !ps.Status.Success() {
			continue
		}
		for _, p := range ps.Props {
			if p.Name() == name {
				return p
			}
		}
	}
	return nil
}

// Ok reports whether this response denotes success: either a 2xx direct
// status, or no direct status at all (per-property statuses rule).
func (r *Response) Ok() bool {
	return r.Status == nil || r.Status.Success()
}

// relation computes the HrefRelation of href against base.
func relation(base, href *url.URL) HrefRelation {
	if base.Scheme != href.Scheme || base.Host != href.Host {
		return RelationOther
	}
	basePath := strings.TrimSuffix(base.EscapedPath(), "/")
	hrefPath := strings.TrimSuffix(href.EscapedPath(), "/")
	if basePath == hrefPath {
		return RelationSelf
	}
	if strings.HasPrefix(hrefPath, basePath+"/") {
		return RelationMember
	}
	return RelationOther
}

// parseResponse parses one DAV:response element, the decoder positioned
// just past its start tag. It returns one Response per href child.
func parseResponse(d *xml.Decoder, base *url.URL) ([]*Response, error) {
	var (
		hrefs     []string
		status    *Status
		propstats []PropStat
		errNames  []xml.Name
		respDesc  string
		location  *url.URL
	)

	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Space != NamespaceDAV {
				if err := d.Skip(); err != nil {
					return nil, err
				}
				continue
			}
			switch t.Name.Local {
			case "href":
				s, err := xmlutil.Text(d)
				if err != nil {
					return nil, err
				}
				hrefs = append(hrefs, strings.TrimSpace(s))
			case "status":
				s, err := xmlutil.Text(d)
				if err != nil {
					return nil, err
				}
				if st, err := parseStatus(s); err == nil {
					status = &st
				}
			case "propstat":
				ps, err := parsePropStat(d)
				if err != nil {
					return nil, err
				}
				propstats = append(propstats, ps)
			case "error":
				names, err := xmlutil.ChildNames(d)
				if err != nil {
					return nil, err
				}
				errNames = names
			case "responsedescription":
				s, err := xmlutil.Text(d)
				if err != nil {
					return nil, err
				}
				respDesc = strings.TrimSpace(s)
			case "location":
				hs, err := xmlutil.ChildText(d, xml.Name{Space: NamespaceDAV, Local: "href"})
				if err != nil {
					return nil, err
				}
				if len(hs) > 0 {
					if u, err := base.Parse(strings.TrimSpace(hs[0])); err == nil {
						location = u
					}
				}
			default:
				if err := d.Skip(); err != nil {
					return nil, err
				}
			}
		case xml.EndElement:
			var out []*Response
			for _, h := range hrefs {
				u, err := base.Parse(h)
				if err != nil {
					continue
				}
				out = append(out, &Response{
					Href:                u,
					Status:              status,
					PropStats:           propstats,
					Error:               errNames,
					ResponseDescription: respDesc,
					Location:            location,
					OutOfScope:          u.Scheme != base.Scheme || u.Host != base.Host,
				})
			}
			return out, nil
		}
	}
}

// parsePropStat parses one DAV:propstat, the decoder positioned just past
// its start tag.
func parsePropStat(d *xml.Decoder) (PropStat, error) {
	var ps PropStat
	for {
		tok, err := d.Token()
		if err != nil {
			return ps, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name {
			case xml.Name{Space: NamespaceDAV, Local: "status"}:
				s, err := xmlutil.Text(d)
				if err != nil {
					return ps, err
				}
				if st, err := parseStatus(s); err == nil {
					ps.Status = st
				}
			case xml.Name{Space: NamespaceDAV, Local: "prop"}:
				props, err := parseProp(d)
				if err != nil {
					return ps, err
				}
				ps.Props = append(ps.Props, props...)
			default:
				if err := d.Skip(); err != nil {
					return ps, err
				}
			}
		case xml.EndElement:
			return ps, nil
		}
	}
}

// parseProp walks the children of a DAV:prop element, dispatching each to
// its registered factory. Unknown property names are skipped. Duplicate
// names within one prop resolve last-wins.
func parseProp(d *xml.Decoder) ([]Property, error) {
	var props []Property
	seen := make(map[xml.Name]int)
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			factory, ok := lookupProperty(t.Name)
			if !ok {
				if err := d.Skip(); err != nil {
					return nil, err
				}
				continue
			}
			p, err := factory(d, t)
			if err != nil {
				return nil, err
			}
			if p == nil {
				continue
			}
			if i, dup := seen[t.Name]; dup {
				props[i] = p
				continue
			}
			seen[t.Name] = len(props)
			props = append(props, p)
		case xml.EndElement:
			return props, nil
		}
	}
}
