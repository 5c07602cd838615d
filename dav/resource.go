// Package dav implements a WebDAV (RFC 4918) client protocol engine with
// the CalDAV (RFC 4791) and CardDAV (RFC 6352) extensions. It issues the
// extended HTTP method set, builds and parses the XML payloads, and
// translates failures into a typed error taxonomy. Calendar and contact
// payloads pass through as opaque strings.
package dav

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const davContentType = "application/xml; charset=utf-8"

// ResponseHandler receives the raw HTTP response of a non-multistatus
// operation. The response body is valid only until the handler returns;
// it is closed on every exit path.
type ResponseHandler func(resp *http.Response) error

// Recorder observes engine activity for instrumentation. The default
// recorder discards everything; see internal/metrics for the Prometheus
// implementation.
type Recorder interface {
	ObserveRequest(method string, status int, elapsed time.Duration)
	ObserveRedirect(method string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveRequest(string, int, time.Duration) {}
func (nopRecorder) ObserveRedirect(string)                    {}

var recorder Recorder = nopRecorder{}

// SetRecorder installs a process-wide metrics recorder. Call it before
// issuing operations.
func SetRecorder(r Recorder) {
	if r == nil {
		recorder = nopRecorder{}
		return
	}
	recorder = r
}

// DavResource is a handle to one remote URL. Location is updated in place
// as redirects are followed, so a handle must not be shared between
// concurrent operations. Distinct handles may share one transport.
type DavResource struct {
	hc       *http.Client
	Location *url.URL
	log      *zap.Logger
}

// NewResource builds a handle for location. The given client is shallow
// copied with automatic redirect following disabled; the engine enforces
// its own redirect discipline. A nil client uses http.DefaultClient's
// transport, a nil logger discards.
func NewResource(hc *http.Client, location string, log *zap.Logger) (*DavResource, error) {
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("invalid location %q: %w", location, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("location %q is not absolute", location)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	client := &http.Client{
		Transport: hc.Transport,
		Jar:       hc.Jar,
		Timeout:   hc.Timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &DavResource{hc: client, Location: u, log: log}, nil
}

// Logger returns the resource's logger.
func (r *DavResource) Logger() *zap.Logger { return r.log }

func (r *DavResource) newRequest(ctx context.Context, method string, u *url.URL, body []byte) (*http.Request, error) {
	var rd *bytes.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	var req *http.Request
	var err error
	if rd != nil {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), rd)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, u.String(), nil)
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

func encodeDepth(depth int) string {
	if depth < 0 {
		return "infinity"
	}
	return strconv.Itoa(depth)
}

// checkSuccess translates a non-2xx response into a typed error, reading
// and closing the body in the process.
func checkSuccess(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return newHTTPError(resp)
}

// quoteConditional renders v as an RFC 7230 quoted-string for use in
// conditional headers. Input that is already a valid quoted-string passes
// through unchanged.
func quoteConditional(v string) string {
	if isQuotedString(v) {
		return v
	}
	escaped := strings.ReplaceAll(v, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}

// isQuotedString validates the RFC 7230 quoted-string grammar, including
// the quoted-pair escapes.
func isQuotedString(v string) bool {
	if len(v) < 2 || v[0] != '"' || v[len(v)-1] != '"' {
		return false
	}
	inner := v[1 : len(v)-1]
	for i := 0; i < len(inner); i++ {
		switch inner[i] {
		case '\\':
			i++
			if i >= len(inner) {
				return false
			}
		case '"':
			return false
		}
	}
	return true
}
