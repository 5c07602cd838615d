package dav

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const maxRedirects = 5

// requestFactory builds a fresh request against the current location. It
// is re-invoked on every redirect hop so that method, body, and headers
// are re-sent unchanged against the new target.
type requestFactory func(ctx context.Context, u *url.URL) (*http.Request, error)

// do submits the request, following up to maxRedirects redirect hops when
// follow is set. Each hop resolves the Location header against the
// current location, refuses HTTPS-to-HTTP downgrades, and updates the
// handle's location in place. Transport errors propagate verbatim.
func (r *DavResource) do(ctx context.Context, mk requestFactory, follow bool) (*http.Response, error) {
	for hop := 0; hop <= maxRedirects; hop++ {
		req, err := mk(ctx, r.Location)
		if err != nil {
			return nil, err
		}
		start := time.Now()
		resp, err := r.hc.Do(req)
		if err != nil {
			return nil, err
		}
		recorder.ObserveRequest(req.Method, resp.StatusCode, time.Since(start))

		if follow && resp.StatusCode >= 300 && resp.StatusCode < 400 {
			target, err := r.redirectTarget(resp)
			if err != nil {
				return nil, err
			}
			recorder.ObserveRedirect(req.Method)
			r.log.Debug("following redirect",
				zap.String("method", req.Method),
				zap.Int("status", resp.StatusCode),
				zap.String("target", target.String()))
			r.Location = target
			continue
		}
		return resp, nil
	}
	return nil, &DavError{Msg: "redirect limit exceeded"}
}

// redirectTarget validates and resolves the Location header of a 3xx
// response. The response body is drained and closed.
func (r *DavResource) redirectTarget(resp *http.Response) (*url.URL, error) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBodyBytes))
	resp.Body.Close()

	loc := resp.Header.Get("Location")
	if loc == "" {
		return nil, &DavError{Msg: "redirect without Location"}
	}
	target, err := r.Location.Parse(loc)
	if err != nil {
		return nil, &DavError{Msg: "invalid redirect Location " + loc, Err: err}
	}
	if r.Location.Scheme == "https" && target.Scheme == "http" {
		return nil, &DavError{Msg: "received redirect from HTTPS to HTTP"}
	}
	return target, nil
}
