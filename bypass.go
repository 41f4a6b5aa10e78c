package envproxy

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
)

// bypassAll is the NO_PROXY entry that disables proxying for every target.
const bypassAll = "*"

// IsBypassed reports whether target must skip the proxy according to the
// NO_PROXY entries.
//
// An entry matches when the target hostname equals its host or is a
// subdomain of it; "example.com" and ".example.com" are equivalent. An entry
// with a port only applies when the target has no explicit port or the same
// one; the default port of the scheme counts as no explicit port. Hostnames compare case-insensitively in IDNA ASCII form.
//
// Targets that are not absolute URLs are never bypassed.
func IsBypassed(target string, entries []string) bool {
	u, err := url.Parse(target)
	if err != nil || !u.IsAbs() {
		return false
	}
	if len(entries) == 0 {
		return false
	}
	for _, e := range entries {
		if e == bypassAll {
			return true
		}
	}

	host := normalizeHost(u.Hostname())
	port := explicitPort(u)
	for _, e := range entries {
		entryHost, entryPort := splitEntry(e)
		if entryPort != "" && port != "" && entryPort != port {
			continue
		}
		entryHost = normalizeHost(strings.TrimPrefix(entryHost, "."))
		if entryHost == "" {
			continue
		}
		if host == entryHost || strings.HasSuffix(host, "."+entryHost) {
			return true
		}
	}
	return false
}

// explicitPort returns the port written in u, or "" when it is absent or the
// default port of the scheme.
func explicitPort(u *url.URL) string {
	port := u.Port()
	switch {
	case port == "80" && strings.EqualFold(u.Scheme, "http"),
		port == "443" && strings.EqualFold(u.Scheme, "https"):
		return ""
	}
	return port
}

// splitEntry splits a bypass entry into host and optional port. Bracketed
// IPv6 literals may carry a port; bare IPv6 literals never do.
func splitEntry(e string) (host, port string) {
	if strings.HasPrefix(e, "[") {
		end := strings.IndexByte(e, ']')
		if end < 0 {
			return e[1:], ""
		}
		return e[1:end], strings.TrimPrefix(e[end+1:], ":")
	}
	if strings.Count(e, ":") > 1 {
		return e, ""
	}
	host, port, _ = strings.Cut(e, ":")
	return host, port
}

// normalizeHost lowercases h, drops a trailing root dot and converts
// internationalized names to their ASCII form.
func normalizeHost(h string) string {
	h = strings.ToLower(strings.TrimSuffix(h, "."))
	if !isASCII(h) {
		if a, err := idna.Lookup.ToASCII(h); err == nil {
			return a
		}
	}
	return h
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
