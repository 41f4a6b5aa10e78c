package envproxy

import (
	"context"
	"net/http"
	"strings"
)

// agentKey is the context key for a caller-supplied agent.
type agentKey struct{}

// WithAgent returns a context that makes requests carry rt as their explicit
// agent. Transport sends such requests through rt, whatever the proxy
// configuration says.
func WithAgent(ctx context.Context, rt http.RoundTripper) context.Context {
	return context.WithValue(ctx, agentKey{}, rt)
}

func agentFromContext(ctx context.Context) http.RoundTripper {
	rt, _ := ctx.Value(agentKey{}).(http.RoundTripper)
	return rt
}

// Transport is an http.RoundTripper that runs an Interceptor on every
// request and sends it through the selected proxy agent, or through the base
// transport when the request passes through.
type Transport struct {
	base http.RoundTripper
	ic   *Interceptor
}

// Compile-time check that Transport implements http.RoundTripper.
var _ http.RoundTripper = (*Transport)(nil)

// NewTransport wraps base with ic. A nil base uses a clone of
// http.DefaultTransport with built-in proxy lookup disabled. A nil ic
// sends every request through base.
func NewTransport(base http.RoundTripper, ic *Interceptor) *Transport {
	if base == nil {
		base = directTransport()
	}
	return &Transport{base: base, ic: ic}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	explicit := agentFromContext(req.Context())
	if t.ic == nil {
		if explicit != nil {
			return explicit.RoundTrip(req)
		}
		return t.base.RoundTrip(req)
	}

	rc := &RequestConfig{
		URL:         req.URL.String(),
		PlainAgent:  explicit,
		SecureAgent: explicit,
	}
	out := t.ic.Intercept(rc)

	rt := t.base
	switch {
	case out.Modified():
		if strings.EqualFold(req.URL.Scheme, "https") {
			rt = rc.SecureAgent
		} else {
			rt = rc.PlainAgent
		}
	case explicit != nil:
		rt = explicit
	}
	return rt.RoundTrip(req)
}

// CloseIdleConnections closes idle connections of the base transport and of
// every cached proxy agent.
func (t *Transport) CloseIdleConnections() {
	type idleCloser interface{ CloseIdleConnections() }
	if c, ok := t.base.(idleCloser); ok {
		c.CloseIdleConnections()
	}
	if t.ic != nil {
		t.ic.factory.CloseIdleConnections()
	}
}

// directTransport returns a transport that never consults proxy variables.
func directTransport() http.RoundTripper {
	if dt, ok := http.DefaultTransport.(*http.Transport); ok {
		tr := dt.Clone()
		tr.Proxy = nil
		return tr
	}
	return http.DefaultTransport
}
