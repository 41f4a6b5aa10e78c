// Package agent builds the transports that carry outbound requests through a
// proxy server. Each constructor takes a proxy URL and returns a reusable
// *Transport that owns its own connection pool.
//
// Most users should not call this package directly: the top-level envproxy
// package picks a constructor per proxy scheme and caches the result.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// Kind identifies the proxy protocol a Transport speaks.
type Kind int

const (
	// KindHTTP forwards plain HTTP requests to an HTTP proxy using
	// absolute-form request URIs.
	KindHTTP Kind = iota + 1

	// KindHTTPS tunnels TLS connections through an HTTP proxy with CONNECT.
	KindHTTPS

	// KindSOCKS dials every connection through a SOCKS5 proxy.
	KindSOCKS
)

// String returns the string representation of a Kind.
func (k Kind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindHTTPS:
		return "https"
	case KindSOCKS:
		return "socks"
	default:
		return "unknown"
	}
}

// Sentinel errors returned by the constructors.
var (
	// ErrInvalidProxyURL indicates the proxy URL could not be parsed or has no host.
	ErrInvalidProxyURL = errors.New("agent: invalid proxy URL")

	// ErrUnsupportedScheme indicates the proxy scheme has no dialer.
	ErrUnsupportedScheme = errors.New("agent: unsupported proxy scheme")
)

// Default timeouts used when the process-wide default transport is not an
// *http.Transport and cannot be cloned.
const (
	defaultDialTimeout         = 30 * time.Second
	defaultIdleConnTimeout     = 90 * time.Second
	defaultTLSHandshakeTimeout = 10 * time.Second
)

// Transport is an http.RoundTripper bound to a single proxy endpoint.
// It is safe for concurrent use.
type Transport struct {
	kind     Kind
	proxyURL string
	rt       *http.Transport
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.rt.RoundTrip(req)
}

// ProxyURL returns the proxy URL the transport was built from, as given.
func (t *Transport) ProxyURL() string { return t.proxyURL }

// Kind returns the proxy protocol of the transport.
func (t *Transport) Kind() Kind { return t.kind }

// CloseIdleConnections closes pooled connections to the proxy.
func (t *Transport) CloseIdleConnections() { t.rt.CloseIdleConnections() }

// NewHTTP returns a transport that sends plain HTTP requests to the proxy
// at proxyURL.
func NewHTTP(proxyURL string) (*Transport, error) {
	u, err := parseProxyURL(proxyURL)
	if err != nil {
		return nil, err
	}
	rt := baseTransport()
	rt.Proxy = http.ProxyURL(u)
	// Plain requests never negotiate h2; keep the pool HTTP/1.1 only.
	rt.ForceAttemptHTTP2 = false
	return &Transport{kind: KindHTTP, proxyURL: proxyURL, rt: rt}, nil
}

// NewHTTPS returns a transport that tunnels HTTPS requests through the proxy
// at proxyURL with CONNECT. Credentials in the proxy URL are sent as
// Proxy-Authorization on the CONNECT request.
func NewHTTPS(proxyURL string) (*Transport, error) {
	u, err := parseProxyURL(proxyURL)
	if err != nil {
		return nil, err
	}
	rt := baseTransport()
	rt.Proxy = http.ProxyURL(u)
	rt.ForceAttemptHTTP2 = true
	return &Transport{kind: KindHTTPS, proxyURL: proxyURL, rt: rt}, nil
}

// NewSOCKS returns a transport that dials every connection, plain or TLS,
// through the SOCKS5 proxy at proxyURL. The socks5 and socks5h schemes are
// supported; both let the proxy resolve hostnames. socks4 and socks4a have
// no dialer and fail with ErrUnsupportedScheme.
func NewSOCKS(proxyURL string) (*Transport, error) {
	u, err := url.Parse(proxyURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxyURL, redact(proxyURL))
	}
	d, err := proxy.FromURL(u, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnsupportedScheme, u.Scheme, err)
	}

	rt := baseTransport()
	rt.Proxy = nil
	if cd, ok := d.(proxy.ContextDialer); ok {
		rt.DialContext = cd.DialContext
	} else {
		rt.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
			return d.Dial(network, addr)
		}
	}
	return &Transport{kind: KindSOCKS, proxyURL: proxyURL, rt: rt}, nil
}

// parseProxyURL parses an HTTP proxy URL. A value without a scheme, such as
// "proxy.corp:3128", is read as an http:// URL.
func parseProxyURL(raw string) (*url.URL, error) {
	s := raw
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxyURL, redact(s))
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return u, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
}

// baseTransport clones the process default so agents inherit its dial and
// TLS timeouts.
func baseTransport() *http.Transport {
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		return t.Clone()
	}
	dialer := &net.Dialer{Timeout: defaultDialTimeout, KeepAlive: 30 * time.Second}
	return &http.Transport{
		DialContext:         dialer.DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     defaultIdleConnTimeout,
		TLSHandshakeTimeout: defaultTLSHandshakeTimeout,
	}
}

// redact hides the password of a proxy URL for error messages. A value
// without a scheme is read as http://, matching parseProxyURL.
func redact(raw string) string {
	s := raw
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}
