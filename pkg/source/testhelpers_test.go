package source

import (
	"net/http"
	"net/http/httptest"
	"net/url"
)

// rewriteTransport redirects every outgoing request to a test server while
// preserving path and query, letting adapter tests exercise the real
// constant URLs without the adapters needing a configurable base URL.
type rewriteTransport struct {
	target *url.URL
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	cloned.URL.Scheme = t.target.Scheme
	cloned.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(cloned)
}

func clientForTestServer(ts *httptest.Server) *http.Client {
	target, _ := url.Parse(ts.URL)
	return &http.Client{Transport: rewriteTransport{target: target}}
}
