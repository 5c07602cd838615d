package dav

import (
	"context"
	"encoding/xml"
	"net/http/httptest"
	"strings"
	"testing"

	"gitea.jw6.us/james/davclient/davtest"
)

const testVCF = "BEGIN:VCARD\r\nVERSION:4.0\r\nFN:Alice Example\r\nEND:VCARD\r\n"

func newAddressBookFixture(t *testing.T) (*davtest.Server, *httptest.Server) {
	t.Helper()
	fix := davtest.New()
	fix.AddCollection("/contacts/alice/default/", davtest.Resource{IsAddressBook: true, DisplayName: "Contacts"})
	fix.AddResource("/contacts/alice/default/c1.vcf", davtest.Resource{
		ContentType: "text/vcard; charset=utf-8",
		Data:        []byte(testVCF),
	})
	srv := httptest.NewServer(fix.Handler())
	t.Cleanup(srv.Close)
	return fix, srv
}

func newTestAddressBook(t *testing.T, srv *httptest.Server, path string) *DavAddressBook {
	t.Helper()
	ab, err := NewAddressBook(srv.Client(), srv.URL+path, nil)
	if err != nil {
		t.Fatalf("NewAddressBook: %v", err)
	}
	return ab
}

func TestAddressbookQuery(t *testing.T) {
	_, srv := newAddressBookFixture(t)
	ab := newTestAddressBook(t, srv, "/contacts/alice/default/")

	var count int
	_, err := ab.AddressbookQuery(context.Background(), &PropFilter{Name: "FN", MatchText: "Alice"},
		[]xml.Name{PropGetETag, PropAddressData},
		func(resp *Response, rel HrefRelation) error {
			count++
			if data, ok := resp.Prop(PropAddressData).(*AddressData); !ok || !strings.Contains(data.Data, "BEGIN:VCARD") {
				t.Errorf("address data missing for %s", resp.Href.Path)
			}
			return nil
		})
	if err != nil {
		t.Fatalf("AddressbookQuery: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 contact, got %d", count)
	}
}

func TestAddressbookQuery_NilFilter(t *testing.T) {
	_, srv := newAddressBookFixture(t)
	ab := newTestAddressBook(t, srv, "/contacts/alice/default/")

	var count int
	_, err := ab.AddressbookQuery(context.Background(), nil, []xml.Name{PropGetETag},
		func(resp *Response, rel HrefRelation) error {
			count++
			return nil
		})
	if err != nil {
		t.Fatalf("AddressbookQuery: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 contact, got %d", count)
	}
}

func TestAddressbookMultiget(t *testing.T) {
	_, srv := newAddressBookFixture(t)
	ab := newTestAddressBook(t, srv, "/contacts/alice/default/")

	var etag string
	_, err := ab.AddressbookMultiget(context.Background(),
		[]string{"/contacts/alice/default/c1.vcf"},
		[]xml.Name{PropGetETag},
		func(resp *Response, rel HrefRelation) error {
			if p, ok := resp.Prop(PropGetETag).(*GetETag); ok {
				etag = p.Value
			}
			return nil
		})
	if err != nil {
		t.Fatalf("AddressbookMultiget: %v", err)
	}
	if etag == "" {
		t.Error("multiget should surface the contact etag")
	}
}
