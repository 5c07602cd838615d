// Package davtest provides an in-memory WebDAV/CalDAV/CardDAV server for
// exercising the client engine in tests. It speaks just enough of the
// protocol to answer the engine's requests; it is not a general server.
package davtest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
)

func init() {
	for _, method := range []string{
		"PROPFIND",
		"PROPPATCH",
		"MKCOL",
		"MKCALENDAR",
		"COPY",
		"MOVE",
		"REPORT",
		"SEARCH",
	} {
		chi.RegisterMethod(method)
	}
}

// Resource is one node of the fixture tree. Collection paths end with a
// slash.
type Resource struct {
	IsCollection bool
	IsCalendar   bool
	IsAddressBook bool
	IsPrincipal  bool
	DisplayName  string
	ContentType  string
	Data         []byte
	ETag         string
}

// Server holds the fixture tree and serves the DAV verbs over it.
type Server struct {
	mu        sync.Mutex
	resources map[string]*Resource
	syncSeq   int

	// PrincipalPath, CalendarHomePath, and AddressbookHomePath are
	// advertised on every PROPFIND when non-empty.
	PrincipalPath       string
	CalendarHomePath    string
	AddressbookHomePath string
}

// New builds an empty fixture server with a root collection.
func New() *Server {
	s := &Server{resources: make(map[string]*Resource)}
	s.resources["/"] = &Resource{IsCollection: true, DisplayName: "root"}
	return s
}

// AddCollection inserts a collection at p (trailing slash optional).
func (s *Server) AddCollection(p string, r Resource) {
	r.IsCollection = true
	s.put(collectionPath(p), &r)
}

// AddResource inserts a non-collection resource with the given payload.
func (s *Server) AddResource(p string, r Resource) {
	if r.ETag == "" {
		r.ETag = etagOf(r.Data)
	}
	s.put(path.Clean(p), &r)
}

func (s *Server) put(p string, r *Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources[p] = r
	s.syncSeq++
}

// Resource returns the node at p, or nil.
func (s *Server) Resource(p string) *Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.resources[path.Clean(p)]; ok {
		return r
	}
	return s.resources[collectionPath(p)]
}

// Handler returns the chi router serving the fixture.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.MethodFunc("OPTIONS", "/*", s.options)
	r.MethodFunc("PROPFIND", "/*", s.propfind)
	r.MethodFunc("PROPPATCH", "/*", s.proppatch)
	r.MethodFunc("REPORT", "/*", s.report)
	r.MethodFunc("MKCOL", "/*", s.mkcol)
	r.MethodFunc("MKCALENDAR", "/*", s.mkcalendar)
	r.MethodFunc("COPY", "/*", s.copyMove)
	r.MethodFunc("MOVE", "/*", s.copyMove)
	r.Get("/*", s.get)
	r.Head("/*", s.get)
	r.Put("/*", s.putResource)
	r.Delete("/*", s.delete)
	return r
}

func (s *Server) options(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Allow", "OPTIONS, HEAD, GET, PROPFIND, PROPPATCH, MKCOL, MKCALENDAR, PUT, DELETE, COPY, MOVE, REPORT")
	w.Header().Set("DAV", "1, 3, calendar-access, addressbook")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) propfind(w http.ResponseWriter, r *http.Request) {
	io.Copy(io.Discard, r.Body)
	s.mu.Lock()
	defer s.mu.Unlock()

	p, res := s.lookupLocked(r.URL.Path)
	if res == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	ms := newMultistatus()
	ms.Response = append(ms.Response, s.responseForLocked(p, res))
	if res.IsCollection && r.Header.Get("Depth") != "0" {
		for _, child := range s.childrenLocked(p) {
			ms.Response = append(ms.Response, s.responseForLocked(child, s.resources[child]))
		}
	}
	writeMultistatus(w, ms)
}

func (s *Server) proppatch(w http.ResponseWriter, r *http.Request) {
	io.Copy(io.Discard, r.Body)
	s.mu.Lock()
	defer s.mu.Unlock()

	p, res := s.lookupLocked(r.URL.Path)
	if res == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	ms := newMultistatus()
	ms.Response = append(ms.Response, response{
		Href:     []string{p},
		Propstat: []propstat{{Status: "HTTP/1.1 200 OK"}},
	})
	writeMultistatus(w, ms)
}

func (s *Server) report(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var req reportRequest
	if err := xml.Unmarshal(body, &req); err != nil {
		http.Error(w, "invalid REPORT body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch req.XMLName.Local {
	case "calendar-multiget", "addressbook-multiget":
		ms := newMultistatus()
		for _, href := range req.Hrefs {
			p := path.Clean(href)
			if res, ok := s.resources[p]; ok {
				ms.Response = append(ms.Response, s.responseForLocked(p, res))
			} else {
				ms.Response = append(ms.Response, response{
					Href:   []string{href},
					Status: "HTTP/1.1 404 Not Found",
				})
			}
		}
		writeMultistatus(w, ms)
	case "calendar-query", "addressbook-query":
		p, res := s.lookupLocked(r.URL.Path)
		if res == nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		ms := newMultistatus()
		for _, child := range s.childrenLocked(p) {
			ms.Response = append(ms.Response, s.responseForLocked(child, s.resources[child]))
		}
		writeMultistatus(w, ms)
	case "sync-collection":
		p, res := s.lookupLocked(r.URL.Path)
		if res == nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		ms := newMultistatus()
		for _, child := range s.childrenLocked(p) {
			ms.Response = append(ms.Response, s.responseForLocked(child, s.resources[child]))
		}
		ms.SyncToken = s.syncTokenLocked()
		writeMultistatus(w, ms)
	case "free-busy-query":
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		fmt.Fprint(w, "BEGIN:VCALENDAR\r\nBEGIN:VFREEBUSY\r\nEND:VFREEBUSY\r\nEND:VCALENDAR\r\n")
	default:
		http.Error(w, "unsupported report "+req.XMLName.Local, http.StatusForbidden)
	}
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	_, res := s.lookupLocked(r.URL.Path)
	s.mu.Unlock()
	if res == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if res.ContentType != "" {
		w.Header().Set("Content-Type", res.ContentType)
	}
	if res.ETag != "" {
		w.Header().Set("ETag", `"`+res.ETag+`"`)
	}
	if r.Method == http.MethodHead {
		w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
		w.WriteHeader(http.StatusOK)
		return
	}
	serveRange(w, r, res.Data)
}

func (s *Server) putResource(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	p := path.Clean(r.URL.Path)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.resources[p]
	if match := r.Header.Get("If-Match"); match != "" {
		if existing == nil || `"`+existing.ETag+`"` != match {
			http.Error(w, "precondition failed", http.StatusPreconditionFailed)
			return
		}
	}
	if r.Header.Get("If-None-Match") == "*" && existing != nil {
		http.Error(w, "precondition failed", http.StatusPreconditionFailed)
		return
	}

	res := &Resource{
		Data:        body,
		ContentType: r.Header.Get("Content-Type"),
		ETag:        etagOf(body),
	}
	s.resources[p] = res
	s.syncSeq++
	w.Header().Set("ETag", `"`+res.ETag+`"`)
	if existing == nil {
		w.WriteHeader(http.StatusCreated)
	} else {
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, res := s.lookupLocked(r.URL.Path)
	if res == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if match := r.Header.Get("If-Match"); match != "" && `"`+res.ETag+`"` != match {
		http.Error(w, "precondition failed", http.StatusPreconditionFailed)
		return
	}
	delete(s.resources, p)
	if res.IsCollection {
		for child := range s.resources {
			if strings.HasPrefix(child, p) {
				delete(s.resources, child)
			}
		}
	}
	s.syncSeq++
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) mkcol(w http.ResponseWriter, r *http.Request) {
	s.createCollection(w, r, Resource{})
}

func (s *Server) mkcalendar(w http.ResponseWriter, r *http.Request) {
	s.createCollection(w, r, Resource{IsCalendar: true})
}

func (s *Server) createCollection(w http.ResponseWriter, r *http.Request, res Resource) {
	io.Copy(io.Discard, r.Body)
	p := collectionPath(r.URL.Path)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.resources[p]; exists {
		http.Error(w, "exists", http.StatusMethodNotAllowed)
		return
	}
	res.IsCollection = true
	s.resources[p] = &res
	s.syncSeq++
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) copyMove(w http.ResponseWriter, r *http.Request) {
	dest := r.Header.Get("Destination")
	if dest == "" {
		http.Error(w, "missing Destination", http.StatusBadRequest)
		return
	}
	destURL, err := r.URL.Parse(dest)
	if err != nil {
		http.Error(w, "bad Destination", http.StatusBadRequest)
		return
	}
	destPath := path.Clean(destURL.Path)

	s.mu.Lock()
	defer s.mu.Unlock()

	srcPath, res := s.lookupLocked(r.URL.Path)
	if res == nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if _, exists := s.resources[destPath]; exists && r.Header.Get("Overwrite") == "F" {
		http.Error(w, "destination exists", http.StatusPreconditionFailed)
		return
	}

	cp := *res
	s.resources[destPath] = &cp
	if r.Method == "MOVE" {
		delete(s.resources, srcPath)
		w.Header().Set("Location", destPath)
	}
	s.syncSeq++
	w.WriteHeader(http.StatusCreated)
}

// lookupLocked resolves a request path to the stored node, trying both
// the plain and collection forms.
func (s *Server) lookupLocked(raw string) (string, *Resource) {
	p := path.Clean(raw)
	if res, ok := s.resources[p]; ok {
		return p, res
	}
	cp := collectionPath(raw)
	if res, ok := s.resources[cp]; ok {
		return cp, res
	}
	return "", nil
}

// childrenLocked returns the direct member paths of collection p, sorted
// for stable document order.
func (s *Server) childrenLocked(p string) []string {
	var out []string
	for child := range s.resources {
		if child == p || !strings.HasPrefix(child, p) {
			continue
		}
		rest := strings.TrimSuffix(strings.TrimPrefix(child, p), "/")
		if rest == "" || strings.Contains(rest, "/") {
			continue
		}
		out = append(out, child)
	}
	sort.Strings(out)
	return out
}

func (s *Server) responseForLocked(p string, res *Resource) response {
	pr := prop{DisplayName: res.DisplayName}
	if res.IsCollection {
		rt := &resourceType{Collection: &struct{}{}}
		if res.IsCalendar {
			rt.Calendar = &struct{}{}
		}
		if res.IsAddressBook {
			rt.AddressBook = &struct{}{}
		}
		if res.IsPrincipal {
			rt.Principal = &struct{}{}
		}
		pr.ResourceType = rt
		pr.SyncToken = s.syncTokenLocked()
	} else {
		pr.ResourceType = &resourceType{}
		pr.GetETag = `"` + res.ETag + `"`
		pr.GetContentType = res.ContentType
		pr.GetContentLength = strconv.Itoa(len(res.Data))
		switch {
		case strings.HasPrefix(res.ContentType, "text/calendar"):
			pr.CalendarData = cdataString(res.Data)
		case strings.HasPrefix(res.ContentType, "text/vcard"):
			pr.AddressData = cdataString(res.Data)
		}
	}
	if s.PrincipalPath != "" {
		pr.CurrentUserPrincipal = &hrefProp{Href: s.PrincipalPath}
	}
	if s.CalendarHomePath != "" {
		pr.CalendarHomeSet = &hrefProp{Href: s.CalendarHomePath}
	}
	if s.AddressbookHomePath != "" {
		pr.AddressbookHomeSet = &hrefProp{Href: s.AddressbookHomePath}
	}
	return response{
		Href:     []string{p},
		Propstat: []propstat{{Prop: pr, Status: "HTTP/1.1 200 OK"}},
	}
}

func (s *Server) syncTokenLocked() string {
	return "urn:davtest:sync:" + strconv.Itoa(s.syncSeq)
}

func writeMultistatus(w http.ResponseWriter, ms *multistatus) {
	out, err := xml.Marshal(ms)
	if err != nil {
		http.Error(w, "marshal failure", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	fmt.Fprint(w, xml.Header)
	w.Write(out)
}

func serveRange(w http.ResponseWriter, r *http.Request, data []byte) {
	rangeHeader := r.Header.Get("Range")
	if !strings.HasPrefix(rangeHeader, "bytes=") {
		w.WriteHeader(http.StatusOK)
		w.Write(data)
		return
	}
	var start, end int
	if _, err := fmt.Sscanf(rangeHeader, "bytes=%d-%d", &start, &end); err != nil || start > end || start >= len(data) {
		http.Error(w, "bad range", http.StatusRequestedRangeNotSatisfiable)
		return
	}
	if end >= len(data) {
		end = len(data) - 1
	}
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
	w.WriteHeader(http.StatusPartialContent)
	w.Write(data[start : end+1])
}

func collectionPath(p string) string {
	p = path.Clean(p)
	if p == "/" {
		return "/"
	}
	return p + "/"
}

func etagOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}
