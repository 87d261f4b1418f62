package transport

import "net/http"

// HeaderTransport injects default headers into every outbound request.
// Headers already present on the request win.
type HeaderTransport struct {
	Headers http.Header
	Base    http.RoundTripper
}

// RoundTrip implements http.RoundTripper
func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	for k, values := range t.Headers {
		if _, ok := out.Header[k]; ok {
			continue
		}
		out.Header[k] = append([]string(nil), values...)
	}
	return t.base().RoundTrip(out)
}

// CloseIdleConnections forwards to the base transport
func (t *HeaderTransport) CloseIdleConnections() {
	type closeIdler interface{ CloseIdleConnections() }
	if c, ok := t.base().(closeIdler); ok {
		c.CloseIdleConnections()
	}
}

func (t *HeaderTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}
