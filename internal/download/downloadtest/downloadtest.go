// Package downloadtest provides helpers for tests that exercise code
// fetching from fixed public URLs.
package downloadtest

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
)

// Recorder routes every request to an httptest server regardless of the
// requested host, and records the original URLs.
type Recorder struct {
	target *url.URL
	base   http.RoundTripper

	mu   sync.Mutex
	urls []string
}

// NewRecorder returns a Recorder forwarding to srv.
func NewRecorder(srv *httptest.Server) *Recorder {
	u, err := url.Parse(srv.URL)
	if err != nil {
		panic(err)
	}
	return &Recorder{target: u, base: srv.Client().Transport}
}

// RoundTrip implements http.RoundTripper.
func (r *Recorder) RoundTrip(req *http.Request) (*http.Response, error) {
	r.mu.Lock()
	r.urls = append(r.urls, req.URL.String())
	r.mu.Unlock()

	out := req.Clone(req.Context())
	out.Header.Set("X-Original-Host", req.URL.Host)
	out.URL.Scheme = r.target.Scheme
	out.URL.Host = r.target.Host
	out.Host = r.target.Host
	return r.base.RoundTrip(out)
}

// Client returns an http.Client using the Recorder as transport.
func (r *Recorder) Client() *http.Client {
	return &http.Client{Transport: r}
}

// URLs returns the original URLs requested so far.
func (r *Recorder) URLs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.urls...)
}
