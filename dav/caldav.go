package dav

import (
	"context"
	"encoding/xml"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DavCalendar is a handle to a CalDAV calendar collection (RFC 4791).
type DavCalendar struct {
	*DavCollection
}

// NewCalendar builds a calendar handle; see NewResource.
func NewCalendar(hc *http.Client, location string, log *zap.Logger) (*DavCalendar, error) {
	c, err := NewCollection(hc, location, log)
	if err != nil {
		return nil, err
	}
	return &DavCalendar{DavCollection: c}, nil
}

// utcFormat is the date-time shape of CalDAV time-range attributes.
const utcFormat = "20060102T150405Z"

// TimeRange bounds a calendar-query or free-busy-query. Times are
// rendered in UTC. In a calendar-query a zero Start or End is left out,
// which leaves that side of the range open.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// CalendarQuery runs the calendar-query report filtered to the given
// component (VEVENT, VTODO, ...) and optional time range. The time range
// is applied only when a component is given. Depth is fixed at 1 per
// RFC 4791 section 7.8.
func (c *DavCalendar) CalendarQuery(ctx context.Context, component string, tr *TimeRange, names []xml.Name, cb ResponseCallback) ([]Property, error) {
	b := newXMLBuilder(xml.Name{Space: NamespaceCalDAV, Local: "calendar-query"})
	b.propList(names)

	filter := xml.Name{Space: NamespaceCalDAV, Local: "filter"}
	compFilter := xml.Name{Space: NamespaceCalDAV, Local: "comp-filter"}
	b.open(filter)
	b.open(compFilter, "name", "VCALENDAR")
	if component != "" {
		if tr != nil {
			b.open(compFilter, "name", component)
			var attrs []string
			if !tr.Start.IsZero() {
				attrs = append(attrs, "start", tr.Start.UTC().Format(utcFormat))
			}
			if !tr.End.IsZero() {
				attrs = append(attrs, "end", tr.End.UTC().Format(utcFormat))
			}
			b.empty(xml.Name{Space: NamespaceCalDAV, Local: "time-range"}, attrs...)
			b.close(compFilter)
		} else {
			b.empty(compFilter, "name", component)
		}
	}
	b.close(compFilter)
	b.close(filter)

	return c.report(ctx, b.bytes(), map[string]string{"Depth": "1"}, cb)
}

// CalendarMultiget fetches the named properties of the given member
// hrefs in one report.
func (c *DavCalendar) CalendarMultiget(ctx context.Context, hrefs []string, names []xml.Name, cb ResponseCallback) ([]Property, error) {
	body := multigetBody(xml.Name{Space: NamespaceCalDAV, Local: "calendar-multiget"}, hrefs, names)
	return c.report(ctx, body, nil, cb)
}

// FreeBusyQuery runs the free-busy-query report (RFC 4791 section 7.10).
// The response is an iCalendar VFREEBUSY object handed to fn verbatim,
// not a Multi-Status.
func (c *DavCalendar) FreeBusyQuery(ctx context.Context, tr TimeRange, fn ResponseHandler) error {
	b := newXMLBuilder(xml.Name{Space: NamespaceCalDAV, Local: "free-busy-query"})
	b.empty(xml.Name{Space: NamespaceCalDAV, Local: "time-range"},
		"start", tr.Start.UTC().Format(utcFormat),
		"end", tr.End.UTC().Format(utcFormat))
	return c.simpleRequest(ctx, "REPORT", b.bytes(), map[string]string{"Content-Type": davContentType}, fn)
}

// MkCalendarOptions carries the initial properties of a new calendar.
type MkCalendarOptions struct {
	DisplayName string
	Description string
	// Timezone is a VTIMEZONE definition passed through verbatim.
	Timezone string
	Color    string
}

// Create makes the calendar collection with MKCALENDAR (RFC 4791
// section 5.3.1).
func (c *DavCalendar) Create(ctx context.Context, opts MkCalendarOptions, fn ResponseHandler) error {
	b := newXMLBuilder(xml.Name{Space: NamespaceCalDAV, Local: "mkcalendar"})
	setName := xml.Name{Space: NamespaceDAV, Local: "set"}
	prop := xml.Name{Space: NamespaceDAV, Local: "prop"}
	b.open(setName)
	b.open(prop)
	if opts.DisplayName != "" {
		b.text(PropDisplayName, opts.DisplayName)
	}
	if opts.Description != "" {
		b.text(PropCalendarDescription, opts.Description)
	}
	if opts.Timezone != "" {
		b.text(PropCalendarTimezone, opts.Timezone)
	}
	if opts.Color != "" {
		b.text(PropCalendarColor, opts.Color)
	}
	b.close(prop)
	b.close(setName)
	return c.simpleRequest(ctx, "MKCALENDAR", b.bytes(), map[string]string{"Content-Type": davContentType}, fn)
}
