// Package envproxy routes outbound HTTP(S) traffic through the proxy servers
// named by the standard proxy environment variables.
//
// It reads HTTP_PROXY, HTTPS_PROXY, ALL_PROXY (or ALLPROXY) and NO_PROXY,
// each in uppercase or lowercase, once at startup. For every request it
// decides whether NO_PROXY applies, picks the proxy for the target scheme,
// and sends the request through a cached transport agent for that proxy.
//
// Key features:
//   - HTTP and HTTPS proxies (forwarding and CONNECT tunnelling)
//   - SOCKS5 proxies through golang.org/x/net/proxy
//   - NO_PROXY host, host:port, domain suffix and "*" entries
//   - One agent pair per proxy URL, shared by all requests
//   - Proxy trouble never fails a request; it falls back to a direct one
//
// golang.org/x/net/proxy has no SOCKS4 dialer, so socks4:// and socks4a://
// proxies cannot be used. Agent construction fails with
// ErrAgentConstruction and those requests go out directly.
//
// Basic usage:
//
//	func main() {
//	    envproxy.Setup()
//	    resp, err := http.Get("https://example.com")
//	    ...
//	}
//
// Custom clients use Install, and callers that only need the decision use
// NewInterceptor together with Interceptor.Intercept or ProxyFunc.
package envproxy
