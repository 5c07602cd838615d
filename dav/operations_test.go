package dav

import (
	"context"
	"encoding/xml"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestResource(t *testing.T, srv *httptest.Server, path string) *DavResource {
	t.Helper()
	r, err := NewResource(srv.Client(), srv.URL+path, nil)
	if err != nil {
		t.Fatalf("NewResource: %v", err)
	}
	return r
}

func TestNewResource_RejectsRelativeLocation(t *testing.T) {
	if _, err := NewResource(nil, "/not/absolute", nil); err == nil {
		t.Fatal("expected error for a relative location")
	}
	if _, err := NewResource(nil, "://bad", nil); err == nil {
		t.Fatal("expected error for an unparsable location")
	}
}

func TestOptions_ParsesDAVHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodOptions {
			t.Errorf("unexpected method %s", req.Method)
		}
		if req.Header.Get("Accept-Encoding") != "identity" {
			t.Errorf("OPTIONS should disable content encoding, got %q", req.Header.Get("Accept-Encoding"))
		}
		w.Header().Add("DAV", "1, 3")
		w.Header().Add("DAV", "calendar-access, addressbook")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	caps, err := newTestResource(t, srv, "/").Options(context.Background())
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	want := []string{"1", "3", "calendar-access", "addressbook"}
	if len(caps) != len(want) {
		t.Fatalf("expected %v, got %v", want, caps)
	}
	for i := range want {
		if caps[i] != want[i] {
			t.Errorf("capability %d = %q, want %q", i, caps[i], want[i])
		}
	}
}

func TestPropfind_SendsDepthAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != "PROPFIND" {
			t.Errorf("unexpected method %s", req.Method)
		}
		if req.Header.Get("Depth") != "1" {
			t.Errorf("Depth = %q, want 1", req.Header.Get("Depth"))
		}
		if !strings.HasPrefix(req.Header.Get("Content-Type"), "application/xml") {
			t.Errorf("Content-Type = %q", req.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(req.Body)
		if !strings.Contains(string(body), "<getetag/>") {
			t.Errorf("request body missing getetag: %s", body)
		}
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusMultiStatus)
		io.WriteString(w, `<?xml version="1.0"?>
<d:multistatus xmlns:d="DAV:">
  <d:response>
    <d:href>/col/</d:href>
    <d:propstat>
      <d:prop><d:getetag>"e1"</d:getetag></d:prop>
      <d:status>HTTP/1.1 200 OK</d:status>
    </d:propstat>
  </d:response>
</d:multistatus>`)
	}))
	defer srv.Close()

	var seen int
	_, err := newTestResource(t, srv, "/col/").Propfind(context.Background(), 1, []xml.Name{PropGetETag}, func(resp *Response, rel HrefRelation) error {
		seen++
		if rel != RelationSelf {
			t.Errorf("expected RelationSelf, got %s", rel)
		}
		if etag := resp.Prop(PropGetETag).(*GetETag); etag.Value != "e1" {
			t.Errorf("etag = %q", etag.Value)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Propfind: %v", err)
	}
	if seen != 1 {
		t.Errorf("expected 1 response, got %d", seen)
	}
}

func TestPropfind_DepthInfinity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("Depth") != "infinity" {
			t.Errorf("Depth = %q, want infinity", req.Header.Get("Depth"))
		}
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusMultiStatus)
		io.WriteString(w, `<d:multistatus xmlns:d="DAV:"/>`)
	}))
	defer srv.Close()

	_, err := newTestResource(t, srv, "/").Propfind(context.Background(), -1, nil, func(*Response, HrefRelation) error { return nil })
	if err != nil {
		t.Fatalf("Propfind: %v", err)
	}
}

func TestRedirect_FollowedAndLocationUpdated(t *testing.T) {
	var requests atomic.Int32
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/old/", func(w http.ResponseWriter, req *http.Request) {
		requests.Add(1)
		http.Redirect(w, req, "/new/", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new/", func(w http.ResponseWriter, req *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusMultiStatus)
		io.WriteString(w, `<d:multistatus xmlns:d="DAV:"/>`)
	})

	r := newTestResource(t, srv, "/old/")
	_, err := r.Propfind(context.Background(), 0, nil, func(*Response, HrefRelation) error { return nil })
	if err != nil {
		t.Fatalf("Propfind: %v", err)
	}
	if requests.Load() != 2 {
		t.Errorf("expected 2 requests, got %d", requests.Load())
	}
	if r.Location.Path != "/new/" {
		t.Errorf("handle location not updated: %s", r.Location)
	}
}

func TestRedirect_LimitExceeded(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		requests.Add(1)
		http.Redirect(w, req, req.URL.Path+"x/", http.StatusFound)
	}))
	defer srv.Close()

	_, err := newTestResource(t, srv, "/loop/").Propfind(context.Background(), 0, nil, func(*Response, HrefRelation) error { return nil })
	var de *DavError
	if !errors.As(err, &de) || !strings.Contains(de.Msg, "redirect limit") {
		t.Fatalf("expected redirect limit error, got: %v", err)
	}
	if got := requests.Load(); got != maxRedirects+1 {
		t.Errorf("expected %d requests before giving up, got %d", maxRedirects+1, got)
	}
}

func TestRedirect_MissingLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusFound)
	}))
	defer srv.Close()

	_, err := newTestResource(t, srv, "/").Propfind(context.Background(), 0, nil, func(*Response, HrefRelation) error { return nil })
	var de *DavError
	if !errors.As(err, &de) || !strings.Contains(de.Msg, "without Location") {
		t.Fatalf("expected missing-Location error, got: %v", err)
	}
}

func TestRedirect_RefusesHTTPSDowngrade(t *testing.T) {
	var followed atomic.Bool
	plain := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		followed.Store(true)
	}))
	defer plain.Close()

	secure := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, plain.URL+"/", http.StatusFound)
	}))
	defer secure.Close()

	r, err := NewResource(secure.Client(), secure.URL+"/", nil)
	if err != nil {
		t.Fatalf("NewResource: %v", err)
	}
	_, err = r.Propfind(context.Background(), 0, nil, func(*Response, HrefRelation) error { return nil })
	var de *DavError
	if !errors.As(err, &de) || !strings.Contains(de.Msg, "HTTPS to HTTP") {
		t.Fatalf("expected downgrade refusal, got: %v", err)
	}
	if followed.Load() {
		t.Error("the insecure target must never be contacted")
	}
}

func TestOptions_DoesNotFollowRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/elsewhere/", http.StatusMovedPermanently)
	}))
	defer srv.Close()

	_, err := newTestResource(t, srv, "/").Options(context.Background())
	var he *HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusMovedPermanently {
		t.Fatalf("OPTIONS must surface the 3xx instead of following it, got: %v", err)
	}
}

func TestPut_ConditionalHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("If-Match") != `"v1"` {
			t.Errorf("If-Match = %q, want quoted v1", req.Header.Get("If-Match"))
		}
		if req.Header.Get("Content-Type") != "text/calendar" {
			t.Errorf("Content-Type = %q", req.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(req.Body)
		if string(body) != "BEGIN:VCALENDAR" {
			t.Errorf("body = %q", body)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := newTestResource(t, srv, "/cal/e.ics").Put(context.Background(), []byte("BEGIN:VCALENDAR"),
		PutOptions{IfETag: "v1", ContentType: "text/calendar"}, nil)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
}

func TestPut_IfNoneMatchStar(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("If-None-Match") != "*" {
			t.Errorf("If-None-Match = %q, want *", req.Header.Get("If-None-Match"))
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	err := newTestResource(t, srv, "/cal/new.ics").Put(context.Background(), []byte("x"),
		PutOptions{IfNoneMatchStar: true}, nil)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
}

func TestPut_PreconditionFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusPreconditionFailed)
	}))
	defer srv.Close()

	err := newTestResource(t, srv, "/cal/e.ics").Put(context.Background(), []byte("x"),
		PutOptions{IfETag: "stale"}, nil)
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatalf("expected ErrPreconditionFailed, got: %v", err)
	}
}

func TestDelete_MultiStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusMultiStatus)
		io.WriteString(w, `<d:multistatus xmlns:d="DAV:"/>`)
	}))
	defer srv.Close()

	err := newTestResource(t, srv, "/col/").Delete(context.Background(), "", "", nil)
	var de *DavError
	if !errors.As(err, &de) {
		t.Fatalf("207 DELETE should be an error, got: %v", err)
	}
}

func TestMove_UpdatesLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Method != "MOVE" {
			t.Errorf("method = %s", req.Method)
		}
		if req.Header.Get("Overwrite") != "F" {
			t.Errorf("Overwrite = %q, want F", req.Header.Get("Overwrite"))
		}
		if req.Header.Get("Destination") == "" {
			t.Error("missing Destination header")
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	r := newTestResource(t, srv, "/a.ics")
	dest, _ := url.Parse(srv.URL + "/b.ics")
	if err := r.Move(context.Background(), dest, false, nil); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if r.Location.Path != "/b.ics" {
		t.Errorf("location not updated after MOVE: %s", r.Location)
	}
}

func TestMove_LocationHeaderWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Location", "/actual/spot.ics")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	r := newTestResource(t, srv, "/a.ics")
	dest, _ := url.Parse(srv.URL + "/b.ics")
	if err := r.Move(context.Background(), dest, true, nil); err != nil {
		t.Fatalf("Move: %v", err)
	}
	if r.Location.Path != "/actual/spot.ics" {
		t.Errorf("Location header should win: %s", r.Location)
	}
}

func TestCopy_PartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusMultiStatus)
		io.WriteString(w, `<d:multistatus xmlns:d="DAV:"/>`)
	}))
	defer srv.Close()

	r := newTestResource(t, srv, "/col/")
	dest, _ := url.Parse(srv.URL + "/copy/")
	err := r.Copy(context.Background(), dest, true, nil)
	var de *DavError
	if !errors.As(err, &de) || !strings.Contains(de.Msg, "COPY failed") {
		t.Fatalf("expected partial failure error, got: %v", err)
	}
}

func TestGetRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("Range") != "bytes=100-149" {
			t.Errorf("Range = %q", req.Header.Get("Range"))
		}
		w.WriteHeader(http.StatusPartialContent)
		io.WriteString(w, "partial")
	}))
	defer srv.Close()

	var status int
	err := newTestResource(t, srv, "/big.bin").GetRange(context.Background(), "", 100, 50, nil, func(resp *http.Response) error {
		status = resp.StatusCode
		_, err := io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		t.Fatalf("GetRange: %v", err)
	}
	if status != http.StatusPartialContent {
		t.Errorf("handler saw status %d", status)
	}
}

func TestGet_DefaultAccept(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("Accept") != "*/*" {
			t.Errorf("Accept = %q, want */*", req.Header.Get("Accept"))
		}
		io.WriteString(w, "data")
	}))
	defer srv.Close()

	err := newTestResource(t, srv, "/f.txt").Get(context.Background(), "", nil, func(resp *http.Response) error {
		b, _ := io.ReadAll(resp.Body)
		if string(b) != "data" {
			t.Errorf("body = %q", b)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
}

type countingRecorder struct {
	mu        sync.Mutex
	requests  int
	redirects int
}

func (c *countingRecorder) ObserveRequest(string, int, time.Duration) {
	c.mu.Lock()
	c.requests++
	c.mu.Unlock()
}

func (c *countingRecorder) ObserveRedirect(string) {
	c.mu.Lock()
	c.redirects++
	c.mu.Unlock()
}

func TestRecorder_CountsHops(t *testing.T) {
	rec := &countingRecorder{}
	SetRecorder(rec)
	defer SetRecorder(nil)

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/old/", func(w http.ResponseWriter, req *http.Request) {
		http.Redirect(w, req, "/new/", http.StatusFound)
	})
	mux.HandleFunc("/new/", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	if err := newTestResource(t, srv, "/old/").Head(context.Background(), nil); err != nil {
		t.Fatalf("Head: %v", err)
	}
	if rec.requests != 2 {
		t.Errorf("expected 2 observed requests, got %d", rec.requests)
	}
	if rec.redirects != 1 {
		t.Errorf("expected 1 observed redirect, got %d", rec.redirects)
	}
}

func TestErrorBodyConditionsSurface(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `<d:error xmlns:d="DAV:"><d:cannot-modify-protected-property/></d:error>`)
	}))
	defer srv.Close()

	_, err := newTestResource(t, srv, "/x").Propfind(context.Background(), 0, nil, func(*Response, HrefRelation) error { return nil })
	var he *HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected HTTPError, got: %v", err)
	}
	if !he.HasCondition(xml.Name{Space: NamespaceDAV, Local: "cannot-modify-protected-property"}) {
		t.Errorf("condition not surfaced: %v", he.Conditions)
	}
}
