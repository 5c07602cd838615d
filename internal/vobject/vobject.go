// Package vobject inspects and assembles the iCalendar and vCard payloads
// that CalDAV and CardDAV collections serve. It works on unfolded content
// lines rather than a full object model, which is all the client needs to
// summarize, filter and construct resources.
package vobject

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UnfoldLines splits raw payload text into logical content lines,
// rejoining lines folded with a leading space or tab.
func UnfoldLines(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")
	rawLines := strings.Split(raw, "\n")
	var lines []string
	for _, line := range rawLines {
		if len(lines) > 0 && (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) {
			lines[len(lines)-1] += strings.TrimLeft(line, " \t")
			continue
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Components returns the content lines of every BEGIN:name..END:name block
// in the payload. Nested components stay inside their parent's lines.
func Components(raw, name string) [][]string {
	begin := "BEGIN:" + name
	end := "END:" + name

	var comps [][]string
	var current []string
	depth := 0
	for _, line := range UnfoldLines(raw) {
		upper := strings.ToUpper(strings.TrimSpace(line))
		switch {
		case upper == begin:
			depth++
			if depth == 1 {
				current = nil
				continue
			}
		case upper == end:
			if depth > 0 {
				depth--
				if depth == 0 {
					comps = append(comps, current)
					current = nil
					continue
				}
			}
		}
		if depth > 0 {
			current = append(current, line)
		}
	}
	return comps
}

// PropValue returns the first value of the named property, ignoring any
// parameters between the name and the value. The match is case insensitive.
func PropValue(lines []string, prop string) string {
	vals := PropValues(lines, prop)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// PropValues returns every value of the named property in order.
func PropValues(lines []string, prop string) []string {
	var vals []string
	for _, line := range lines {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		if i := strings.IndexByte(name, ';'); i >= 0 {
			name = name[:i]
		}
		if strings.EqualFold(strings.TrimSpace(name), prop) {
			vals = append(vals, value)
		}
	}
	return vals
}

// Escape escapes a text value for inclusion in a content line.
func Escape(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, ";", "\\;")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// Unescape reverses Escape for display.
func Unescape(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			sb.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n', 'N':
			sb.WriteByte('\n')
		default:
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

// NewUID returns a fresh identifier for a calendar object or contact.
func NewUID() string {
	return uuid.NewString() + "@davclient"
}

// BuildEvent assembles a minimal single-event iCalendar stream. Times are
// written in UTC basic format.
func BuildEvent(uid, summary string, start, end time.Time) string {
	var sb strings.Builder
	sb.WriteString("BEGIN:VCALENDAR\r\n")
	sb.WriteString("VERSION:2.0\r\n")
	sb.WriteString("PRODID:-//davclient//EN\r\n")
	sb.WriteString("BEGIN:VEVENT\r\n")
	fmt.Fprintf(&sb, "UID:%s\r\n", uid)
	fmt.Fprintf(&sb, "DTSTAMP:%s\r\n", time.Now().UTC().Format("20060102T150405Z"))
	fmt.Fprintf(&sb, "DTSTART:%s\r\n", start.UTC().Format("20060102T150405Z"))
	if !end.IsZero() {
		fmt.Fprintf(&sb, "DTEND:%s\r\n", end.UTC().Format("20060102T150405Z"))
	}
	fmt.Fprintf(&sb, "SUMMARY:%s\r\n", Escape(summary))
	sb.WriteString("END:VEVENT\r\n")
	sb.WriteString("END:VCALENDAR\r\n")
	return sb.String()
}

// BuildCard assembles a minimal vCard 3.0.
func BuildCard(uid, displayName, email string) string {
	var sb strings.Builder
	sb.WriteString("BEGIN:VCARD\r\n")
	sb.WriteString("VERSION:3.0\r\n")
	fmt.Fprintf(&sb, "UID:%s\r\n", uid)
	fmt.Fprintf(&sb, "FN:%s\r\n", Escape(displayName))
	fmt.Fprintf(&sb, "N:%s;;;;\r\n", Escape(displayName))
	if email != "" {
		fmt.Fprintf(&sb, "EMAIL;TYPE=INTERNET:%s\r\n", email)
	}
	fmt.Fprintf(&sb, "REV:%s\r\n", time.Now().UTC().Format("20060102T150405Z"))
	sb.WriteString("END:VCARD\r\n")
	return sb.String()
}
