package dav

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Options sends OPTIONS and returns the tokens of the DAV response
// header. Content-encoding is disabled because some servers mishandle
// compressed OPTIONS responses. Redirects are not followed.
func (r *DavResource) Options(ctx context.Context) ([]string, error) {
	resp, err := r.do(ctx, func(ctx context.Context, u *url.URL) (*http.Request, error) {
		req, err := r.newRequest(ctx, http.MethodOptions, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept-Encoding", "identity")
		return req, nil
	}, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkSuccess(resp); err != nil {
		return nil, err
	}
	var caps []string
	for _, header := range resp.Header.Values("DAV") {
		for _, tok := range strings.Split(header, ",") {
			if tok = strings.TrimSpace(tok); tok != "" {
				caps = append(caps, tok)
			}
		}
	}
	return caps, nil
}

// Propfind requests the named properties at the given depth (negative
// means infinity) and invokes cb once per response element in document
// order. It returns the residual top-level properties of the 207 body.
func (r *DavResource) Propfind(ctx context.Context, depth int, names []xml.Name, cb ResponseCallback) ([]Property, error) {
	body := buildPropfind(names)
	return r.multiStatusRequest(ctx, "PROPFIND", body, map[string]string{"Depth": encodeDepth(depth)}, cb)
}

// PropPatch applies the given property sets and removals and invokes cb
// per response element of the resulting 207.
func (r *DavResource) PropPatch(ctx context.Context, set []PropUpdate, remove []xml.Name, cb ResponseCallback) ([]Property, error) {
	body := buildPropPatch(set, remove)
	return r.multiStatusRequest(ctx, "PROPPATCH", body, nil, cb)
}

// Search submits a caller-supplied SEARCH body (RFC 5323) and parses the
// Multi-Status result.
func (r *DavResource) Search(ctx context.Context, body []byte, cb ResponseCallback) ([]Property, error) {
	return r.multiStatusRequest(ctx, "SEARCH", body, nil, cb)
}

// multiStatusRequest submits an XML-bodied request that must answer 207
// and drives the Multi-Status parser over the response.
func (r *DavResource) multiStatusRequest(ctx context.Context, method string, body []byte, headers map[string]string, cb ResponseCallback) ([]Property, error) {
	resp, err := r.do(ctx, func(ctx context.Context, u *url.URL) (*http.Request, error) {
		req, err := r.newRequest(ctx, method, u, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", davContentType)
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		return req, nil
	}, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkSuccess(resp); err != nil {
		return nil, err
	}
	reader, err := multiStatusBody(resp, r.log)
	if err != nil {
		return nil, err
	}
	return parseMultiStatus(reader, r.Location, r.log, cb)
}

// MkCol creates a collection at the handle's location. A non-nil body is
// sent as an extended MKCOL request (RFC 5689).
func (r *DavResource) MkCol(ctx context.Context, body []byte, fn ResponseHandler) error {
	var h map[string]string
	if body != nil {
		h = map[string]string{"Content-Type": davContentType}
	}
	return r.simpleRequest(ctx, "MKCOL", body, h, fn)
}

// Head sends HEAD, following redirects.
func (r *DavResource) Head(ctx context.Context, fn ResponseHandler) error {
	return r.simpleRequest(ctx, http.MethodHead, nil, nil, fn)
}

// Get fetches the resource. The Accept header is always transmitted;
// pass extra headers (for example Accept-Encoding: identity when ETag
// stability across compression matters) via header.
func (r *DavResource) Get(ctx context.Context, accept string, header http.Header, fn ResponseHandler) error {
	if accept == "" {
		accept = "*/*"
	}
	h := map[string]string{"Accept": accept}
	return r.simpleRequestWithHeader(ctx, http.MethodGet, nil, h, header, fn)
}

// GetRange fetches size bytes starting at offset. The handler must
// inspect the status to distinguish full (200) from partial (206)
// content.
func (r *DavResource) GetRange(ctx context.Context, accept string, offset, size int64, header http.Header, fn ResponseHandler) error {
	if accept == "" {
		accept = "*/*"
	}
	h := map[string]string{
		"Accept": accept,
		"Range":  fmt.Sprintf("bytes=%d-%d", offset, offset+size-1),
	}
	return r.simpleRequestWithHeader(ctx, http.MethodGet, nil, h, header, fn)
}

// PutOptions carries the conditional headers and content type of a PUT.
type PutOptions struct {
	// IfETag populates If-Match with the quoted entity tag.
	IfETag string
	// IfScheduleTag populates If-Schedule-Tag-Match (RFC 6638).
	IfScheduleTag string
	// IfNoneMatchStar sends If-None-Match: * so the PUT only succeeds
	// when the resource does not exist yet.
	IfNoneMatchStar bool
	ContentType     string
}

// Put uploads body. On a redirect the body is re-sent unchanged against
// the new target.
func (r *DavResource) Put(ctx context.Context, body []byte, opts PutOptions, fn ResponseHandler) error {
	h := map[string]string{}
	if opts.ContentType != "" {
		h["Content-Type"] = opts.ContentType
	}
	if opts.IfETag != "" {
		h["If-Match"] = quoteConditional(opts.IfETag)
	}
	if opts.IfScheduleTag != "" {
		h["If-Schedule-Tag-Match"] = quoteConditional(opts.IfScheduleTag)
	}
	if opts.IfNoneMatchStar {
		h["If-None-Match"] = "*"
	}
	return r.simpleRequest(ctx, http.MethodPut, body, h, fn)
}

// Delete removes the resource, optionally guarded by the given entity and
// schedule tags. A 207 answer means some member resource failed to delete
// and is surfaced as an error per RFC 4918 section 9.6.1.
func (r *DavResource) Delete(ctx context.Context, ifETag, ifScheduleTag string, fn ResponseHandler) error {
	h := map[string]string{}
	if ifETag != "" {
		h["If-Match"] = quoteConditional(ifETag)
	}
	if ifScheduleTag != "" {
		h["If-Schedule-Tag-Match"] = quoteConditional(ifScheduleTag)
	}
	return r.simpleRequest(ctx, http.MethodDelete, nil, h, fn)
}

// Copy duplicates the resource to dest. With forceOverwrite false the
// Overwrite: F header forbids replacing an existing destination. A 207
// answer signals partial failure and is surfaced as an error.
func (r *DavResource) Copy(ctx context.Context, dest *url.URL, forceOverwrite bool, fn ResponseHandler) error {
	return r.copyMove(ctx, "COPY", dest, forceOverwrite, fn)
}

// Move relocates the resource to dest. On success the handle's location
// is updated to the Location response header if present, else to dest.
func (r *DavResource) Move(ctx context.Context, dest *url.URL, forceOverwrite bool, fn ResponseHandler) error {
	return r.copyMove(ctx, "MOVE", dest, forceOverwrite, fn)
}

func (r *DavResource) copyMove(ctx context.Context, method string, dest *url.URL, forceOverwrite bool, fn ResponseHandler) error {
	resp, err := r.do(ctx, func(ctx context.Context, u *url.URL) (*http.Request, error) {
		req, err := r.newRequest(ctx, method, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Destination", dest.String())
		if !forceOverwrite {
			req.Header.Set("Overwrite", "F")
		}
		return req, nil
	}, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusMultiStatus {
		return &DavError{Msg: method + " failed for some members"}
	}
	if err := checkSuccess(resp); err != nil {
		return err
	}
	if method == "MOVE" {
		r.Location = dest
		if loc := resp.Header.Get("Location"); loc != "" {
			if u, err := dest.Parse(loc); err == nil {
				r.Location = u
			}
		}
	}
	if fn != nil {
		return fn(resp)
	}
	return nil
}

func (r *DavResource) simpleRequest(ctx context.Context, method string, body []byte, headers map[string]string, fn ResponseHandler) error {
	return r.simpleRequestWithHeader(ctx, method, body, headers, nil, fn)
}

// simpleRequestWithHeader is the shared path of the non-multistatus
// verbs: submit with redirects, translate failure statuses, run the
// handler while the body is open, release the body on return.
func (r *DavResource) simpleRequestWithHeader(ctx context.Context, method string, body []byte, headers map[string]string, extra http.Header, fn ResponseHandler) error {
	resp, err := r.do(ctx, func(ctx context.Context, u *url.URL) (*http.Request, error) {
		req, err := r.newRequest(ctx, method, u, body)
		if err != nil {
			return nil, err
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		for k, vs := range extra {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		return req, nil
	}, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if method == http.MethodDelete && resp.StatusCode == http.StatusMultiStatus {
		return &DavError{Msg: "DELETE failed for some members"}
	}
	if err := checkSuccess(resp); err != nil {
		return err
	}
	if fn != nil {
		return fn(resp)
	}
	return nil
}
