package dav

import (
	"encoding/xml"
	"net/url"
	"strings"
	"testing"
)

func mustURL(t *testing.T, s string) *url.URL {
	t.Helper()
	u, err := url.Parse(s)
	if err != nil {
		t.Fatalf("bad test URL %q: %v", s, err)
	}
	return u
}

func TestRelation(t *testing.T) {
	base := mustURL(t, "https://dav.example.com/calendars/alice/")

	cases := []struct {
		href string
		want HrefRelation
	}{
		{"https://dav.example.com/calendars/alice/", RelationSelf},
		{"https://dav.example.com/calendars/alice", RelationSelf},
		{"https://dav.example.com/calendars/alice/work.ics", RelationMember},
		{"https://dav.example.com/calendars/alice/sub/deep.ics", RelationMember},
		{"https://dav.example.com/calendars/bob/", RelationOther},
		{"https://dav.example.com/calendars/alicext/", RelationOther},
		{"https://other.example.com/calendars/alice/", RelationOther},
		{"http://dav.example.com/calendars/alice/", RelationOther},
	}
	for _, c := range cases {
		if got := relation(base, mustURL(t, c.href)); got != c.want {
			t.Errorf("relation(%s) = %s, want %s", c.href, got, c.want)
		}
	}
}

func parseOneResponse(t *testing.T, base *url.URL, body string) []*Response {
	t.Helper()
	d := xml.NewDecoder(strings.NewReader(body))
	// Position just past the response start tag.
	for {
		tok, err := d.Token()
		if err != nil {
			t.Fatalf("seeking response element: %v", err)
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == "response" {
			break
		}
	}
	responses, err := parseResponse(d, base)
	if err != nil {
		t.Fatalf("parseResponse: %v", err)
	}
	return responses
}

func TestParseResponse_PropStats(t *testing.T) {
	base := mustURL(t, "https://dav.example.com/cal/")
	responses := parseOneResponse(t, base, `
<d:response xmlns:d="DAV:">
  <d:href>/cal/event.ics</d:href>
  <d:propstat>
    <d:prop>
      <d:displayname>Event</d:displayname>
      <d:getetag>"v1"</d:getetag>
    </d:prop>
    <d:status>HTTP/1.1 200 OK</d:status>
  </d:propstat>
  <d:propstat>
    <d:prop><d:getcontentlength/></d:prop>
    <d:status>HTTP/1.1 404 Not Found</d:status>
  </d:propstat>
</d:response>`)

	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
	r := responses[0]
	if r.Href.Path != "/cal/event.ics" {
		t.Errorf("href not resolved: %s", r.Href)
	}
	if !r.Ok() {
		t.Error("response without direct status should be Ok")
	}
	if len(r.PropStats) != 2 {
		t.Fatalf("expected 2 propstats, got %d", len(r.PropStats))
	}

	name, ok := r.Prop(PropDisplayName).(*DisplayName)
	if !ok || name.Value != "Event" {
		t.Errorf("displayname not decoded: %#v", r.Prop(PropDisplayName))
	}
	etag, ok := r.Prop(PropGetETag).(*GetETag)
	if !ok || etag.Value != "v1" {
		t.Errorf("etag not unquoted: %#v", r.Prop(PropGetETag))
	}
	// The 404 propstat must not satisfy Prop lookups.
	if r.Prop(PropGetContentLength) != nil {
		t.Error("Prop returned a property from a failed propstat")
	}
}

func TestParseResponse_MultipleHrefs(t *testing.T) {
	base := mustURL(t, "https://dav.example.com/col/")
	responses := parseOneResponse(t, base, `
<d:response xmlns:d="DAV:">
  <d:href>/col/a.ics</d:href>
  <d:href>/col/b.ics</d:href>
  <d:status>HTTP/1.1 423 Locked</d:status>
</d:response>`)

	if len(responses) != 2 {
		t.Fatalf("expected one response per href, got %d", len(responses))
	}
	for i, want := range []string{"/col/a.ics", "/col/b.ics"} {
		if responses[i].Href.Path != want {
			t.Errorf("response %d href = %s, want %s", i, responses[i].Href.Path, want)
		}
		if responses[i].Status == nil || responses[i].Status.Code != 423 {
			t.Errorf("response %d should share the 423 status", i)
		}
		if responses[i].Ok() {
			t.Errorf("response %d with 423 should not be Ok", i)
		}
	}
}

func TestParseResponse_OutOfScope(t *testing.T) {
	base := mustURL(t, "https://dav.example.com/col/")
	responses := parseOneResponse(t, base, `
<d:response xmlns:d="DAV:">
  <d:href>https://elsewhere.example.net/col/x.ics</d:href>
  <d:status>HTTP/1.1 200 OK</d:status>
</d:response>`)

	if len(responses) != 1 {
		t.Fatalf("expected 1 response, got %d", len(responses))
	}
	if !responses[0].OutOfScope {
		t.Error("foreign authority href should be flagged OutOfScope")
	}
}

func TestParseResponse_ErrorAndDescription(t *testing.T) {
	base := mustURL(t, "https://dav.example.com/col/")
	responses := parseOneResponse(t, base, `
<d:response xmlns:d="DAV:">
  <d:href>/col/busy.ics</d:href>
  <d:status>HTTP/1.1 409 Conflict</d:status>
  <d:error><d:no-conflicting-lock/></d:error>
  <d:responsedescription>resource is locked</d:responsedescription>
</d:response>`)

	r := responses[0]
	want := xml.Name{Space: NamespaceDAV, Local: "no-conflicting-lock"}
	if len(r.Error) != 1 || r.Error[0] != want {
		t.Errorf("error conditions not parsed: %#v", r.Error)
	}
	if r.ResponseDescription != "resource is locked" {
		t.Errorf("responsedescription not parsed: %q", r.ResponseDescription)
	}
}

func TestParseProp_DuplicateLastWins(t *testing.T) {
	base := mustURL(t, "https://dav.example.com/col/")
	responses := parseOneResponse(t, base, `
<d:response xmlns:d="DAV:">
  <d:href>/col/x.ics</d:href>
  <d:propstat>
    <d:prop>
      <d:displayname>first</d:displayname>
      <d:displayname>second</d:displayname>
    </d:prop>
    <d:status>HTTP/1.1 200 OK</d:status>
  </d:propstat>
</d:response>`)

	r := responses[0]
	if len(r.PropStats[0].Props) != 1 {
		t.Fatalf("duplicate names must collapse to one entry, got %d", len(r.PropStats[0].Props))
	}
	name := r.Prop(PropDisplayName).(*DisplayName)
	if name.Value != "second" {
		t.Errorf("expected last duplicate to win, got %q", name.Value)
	}
}

func TestParseProp_UnknownSkipped(t *testing.T) {
	base := mustURL(t, "https://dav.example.com/col/")
	responses := parseOneResponse(t, base, `
<d:response xmlns:d="DAV:" xmlns:x="http://example.com/private">
  <d:href>/col/x.ics</d:href>
  <d:propstat>
    <d:prop>
      <x:secret-sauce><x:nested/></x:secret-sauce>
      <d:getetag>"v9"</d:getetag>
    </d:prop>
    <d:status>HTTP/1.1 200 OK</d:status>
  </d:propstat>
</d:response>`)

	r := responses[0]
	if len(r.PropStats[0].Props) != 1 {
		t.Fatalf("unknown property should be skipped, got %d props", len(r.PropStats[0].Props))
	}
	if etag := r.Prop(PropGetETag).(*GetETag); etag.Value != "v9" {
		t.Errorf("known sibling mis-decoded: %q", etag.Value)
	}
}
