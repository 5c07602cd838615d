package dav

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"gitea.jw6.us/james/davclient/internal/xmlutil"
)

var xmlDeclPrefix = []byte("<?xml")

// multiStatusBody validates a 207 response per the rules in RFC 4918
// section 13 and returns the reader to parse. A missing Content-Type is
// tolerated with a warning; a non-XML Content-Type is tolerated only when
// the body starts with an XML declaration.
func multiStatusBody(resp *http.Response, log *zap.Logger) (io.Reader, error) {
	if resp.StatusCode != http.StatusMultiStatus {
		return nil, &DavError{Msg: "expected 207 Multi-Status, got " + resp.Status}
	}

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		log.Warn("207 response without Content-Type, assuming XML")
		return resp.Body, nil
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err == nil && (mediaType == "application/xml" || mediaType == "text/xml") {
		return resp.Body, nil
	}

	br := bufio.NewReader(resp.Body)
	head, _ := br.Peek(len(xmlDeclPrefix))
	if bytes.Equal(head, xmlDeclPrefix) {
		log.Warn("207 response mislabeled, body looks like XML", zap.String("contentType", ct))
		return br, nil
	}
	return nil, &DavError{Msg: "non-XML 207 response (Content-Type " + ct + ")"}
}

// parseMultiStatus streams a 207 body, invoking cb once per DAV:response
// in document order, and returns the residual top-level properties
// (currently the sync-token).
func parseMultiStatus(body io.Reader, base *url.URL, log *zap.Logger, cb ResponseCallback) ([]Property, error) {
	d := xml.NewDecoder(body)

	if err := seekMultiStatus(d); err != nil {
		return nil, err
	}

	var residual []Property
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, &DavError{Msg: "incomplete multistatus", Err: err}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name {
			case xml.Name{Space: NamespaceDAV, Local: "response"}:
				responses, err := parseResponse(d, base)
				if err != nil {
					return nil, &DavError{Msg: "invalid multistatus response", Err: err}
				}
				for _, r := range responses {
					if r.OutOfScope {
						log.Warn("response href outside request authority", zap.String("href", r.Href.String()))
					}
					if err := cb(r, relation(base, r.Href)); err != nil {
						return nil, err
					}
				}
			case xml.Name{Space: NamespaceDAV, Local: "sync-token"}:
				s, err := xmlutil.Text(d)
				if err != nil {
					return nil, &DavError{Msg: "incomplete multistatus", Err: err}
				}
				residual = append(residual, &SyncToken{Value: strings.TrimSpace(s)})
			default:
				log.Debug("skipping multistatus child", zap.String("name", t.Name.Local), zap.String("ns", t.Name.Space))
				if err := d.Skip(); err != nil {
					return nil, &DavError{Msg: "incomplete multistatus", Err: err}
				}
			}
		case xml.EndElement:
			return residual, nil
		}
	}
}

// seekMultiStatus advances the decoder to just past the opening
// multistatus tag, ignoring the declaration, comments, and whitespace.
func seekMultiStatus(d *xml.Decoder) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return &DavError{Msg: "incomplete multistatus", Err: err}
		}
		if t, ok := tok.(xml.StartElement); ok {
			if t.Name == (xml.Name{Space: NamespaceDAV, Local: "multistatus"}) {
				return nil
			}
			return &DavError{Msg: "unexpected root element " + t.Name.Local}
		}
	}
}
