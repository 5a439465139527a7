package provider

import (
	"net/http"

	"github.com/ZaguanLabs/tlstream"
)

// userAgentTransport prefixes the service's user agent to every outgoing
// provider request, keeping any SDK product token after it.
type userAgentTransport struct {
	base http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	ua := tlstream.UserAgent()
	if existing := req.Header.Get("User-Agent"); existing != "" {
		ua += " " + existing
	}
	req.Header.Set("User-Agent", ua)

	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req)
}

// newHTTPClient returns the HTTP client shared by the provider SDKs.
func newHTTPClient() *http.Client {
	return &http.Client{Transport: userAgentTransport{}}
}
