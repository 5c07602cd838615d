package dav

import (
	"encoding/xml"

	"gitea.jw6.us/james/davclient/internal/xmlutil"
)

// CalDAV property names (RFC 4791, RFC 6638) plus the Apple calendar-color
// extension.
var (
	PropCalendarHomeSet              = xml.Name{Space: NamespaceCalDAV, Local: "calendar-home-set"}
	PropCalendarDescription          = xml.Name{Space: NamespaceCalDAV, Local: "calendar-description"}
	PropCalendarTimezone             = xml.Name{Space: NamespaceCalDAV, Local: "calendar-timezone"}
	PropSupportedCalendarComponentSet = xml.Name{Space: NamespaceCalDAV, Local: "supported-calendar-component-set"}
	PropSupportedCalendarData        = xml.Name{Space: NamespaceCalDAV, Local: "supported-calendar-data"}
	PropCalendarData                 = xml.Name{Space: NamespaceCalDAV, Local: "calendar-data"}
	PropCalendarMaxResourceSize      = xml.Name{Space: NamespaceCalDAV, Local: "max-resource-size"}
	PropMinDateTime                  = xml.Name{Space: NamespaceCalDAV, Local: "min-date-time"}
	PropMaxDateTime                  = xml.Name{Space: NamespaceCalDAV, Local: "max-date-time"}
	PropMaxInstances                 = xml.Name{Space: NamespaceCalDAV, Local: "max-instances"}
	PropMaxAttendeesPerInstance      = xml.Name{Space: NamespaceCalDAV, Local: "max-attendees-per-instance"}
	PropScheduleTag                  = xml.Name{Space: NamespaceCalDAV, Local: "schedule-tag"}
	PropScheduleCalendarTransp       = xml.Name{Space: NamespaceCalDAV, Local: "schedule-calendar-transp"}
	PropCalendarColor                = xml.Name{Space: NamespaceAppleICal, Local: "calendar-color"}
)

type CalendarHomeSet struct{ Hrefs []string }

func (p *CalendarHomeSet) Name() xml.Name { return PropCalendarHomeSet }

type CalendarDescription struct{ Value string }

func (p *CalendarDescription) Name() xml.Name { return PropCalendarDescription }

// CalendarTimezone carries the VTIMEZONE definition verbatim.
type CalendarTimezone struct{ Value string }

func (p *CalendarTimezone) Name() xml.Name { return PropCalendarTimezone }

type SupportedCalendarComponentSet struct{ Components []string }

func (p *SupportedCalendarComponentSet) Name() xml.Name { return PropSupportedCalendarComponentSet }

type CalendarDataType struct {
	ContentType string
	Version     string
}

type SupportedCalendarData struct{ Types []CalendarDataType }

func (p *SupportedCalendarData) Name() xml.Name { return PropSupportedCalendarData }

// CalendarData carries the iCalendar payload verbatim, line endings
// preserved.
type CalendarData struct{ Data string }

func (p *CalendarData) Name() xml.Name { return PropCalendarData }

type CalendarMaxResourceSize struct{ Value int64 }

func (p *CalendarMaxResourceSize) Name() xml.Name { return PropCalendarMaxResourceSize }

type MinDateTime struct{ Value string }

func (p *MinDateTime) Name() xml.Name { return PropMinDateTime }

type MaxDateTime struct{ Value string }

func (p *MaxDateTime) Name() xml.Name { return PropMaxDateTime }

type MaxInstances struct{ Value int64 }

func (p *MaxInstances) Name() xml.Name { return PropMaxInstances }

type MaxAttendeesPerInstance struct{ Value int64 }

func (p *MaxAttendeesPerInstance) Name() xml.Name { return PropMaxAttendeesPerInstance }

// ScheduleTag carries the raw schedule tag with quotes stripped.
type ScheduleTag struct{ Value string }

func (p *ScheduleTag) Name() xml.Name { return PropScheduleTag }

type ScheduleCalendarTransp struct{ Opaque bool }

func (p *ScheduleCalendarTransp) Name() xml.Name { return PropScheduleCalendarTransp }

type CalendarColor struct{ Value string }

func (p *CalendarColor) Name() xml.Name { return PropCalendarColor }

func init() {
	hrefSetProperty(PropCalendarHomeSet, func(hrefs []string) Property {
		return &CalendarHomeSet{Hrefs: hrefs}
	})
	textProperty(PropCalendarDescription, func(s string) Property { return &CalendarDescription{Value: s} })
	textProperty(PropCalendarTimezone, func(s string) Property { return &CalendarTimezone{Value: s} })
	textProperty(PropCalendarData, func(s string) Property { return &CalendarData{Data: s} })
	textProperty(PropCalendarColor, func(s string) Property { return &CalendarColor{Value: s} })
	textProperty(PropMinDateTime, func(s string) Property { return &MinDateTime{Value: s} })
	textProperty(PropMaxDateTime, func(s string) Property { return &MaxDateTime{Value: s} })
	textProperty(PropScheduleTag, func(s string) Property { return &ScheduleTag{Value: unquoteETag(s)} })
	intProperty(PropCalendarMaxResourceSize, func(v int64) Property { return &CalendarMaxResourceSize{Value: v} })
	intProperty(PropMaxInstances, func(v int64) Property { return &MaxInstances{Value: v} })
	intProperty(PropMaxAttendeesPerInstance, func(v int64) Property { return &MaxAttendeesPerInstance{Value: v} })

	RegisterProperty(PropSupportedCalendarComponentSet, decodeSupportedComponentSet)
	RegisterProperty(PropSupportedCalendarData, decodeSupportedCalendarData)
	RegisterProperty(PropScheduleCalendarTransp, func(d *xml.Decoder, _ xml.StartElement) (Property, error) {
		names, err := xmlutil.ChildNames(d)
		if err != nil {
			return nil, err
		}
		p := &ScheduleCalendarTransp{}
		for _, n := range names {
			if n == (xml.Name{Space: NamespaceCalDAV, Local: "opaque"}) {
				p.Opaque = true
			}
		}
		return p, nil
	})
}

// decodeSupportedComponentSet reads the name attributes of CAL:comp
// children (VEVENT, VTODO, ...).
func decodeSupportedComponentSet(d *xml.Decoder, _ xml.StartElement) (Property, error) {
	p := &SupportedCalendarComponentSet{}
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name == (xml.Name{Space: NamespaceCalDAV, Local: "comp"}) {
				for _, a := range t.Attr {
					if a.Name.Local == "name" {
						p.Components = append(p.Components, a.Value)
					}
				}
			}
			if err := d.Skip(); err != nil {
				return nil, err
			}
		case xml.EndElement:
			return p, nil
		}
	}
}

func decodeSupportedCalendarData(d *xml.Decoder, _ xml.StartElement) (Property, error) {
	p := &SupportedCalendarData{}
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name == (xml.Name{Space: NamespaceCalDAV, Local: "calendar-data"}) {
				var dt CalendarDataType
				for _, a := range t.Attr {
					switch a.Name.Local {
					case "content-type":
						dt.ContentType = a.Value
					case "version":
						dt.Version = a.Value
					}
				}
				p.Types = append(p.Types, dt)
			}
			if err := d.Skip(); err != nil {
				return nil, err
			}
		case xml.EndElement:
			return p, nil
		}
	}
}
