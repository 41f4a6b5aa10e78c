package envproxy

import (
	"os"
	"strings"

	"golang.org/x/net/http/httpproxy"

	"github.com/zhangyunhao116/envproxy/internal/envutil"
)

// Environment variables consulted by the resolver. Each is also read in its
// lowercase form; the uppercase name takes precedence.
const (
	EnvHTTPProxy  = "HTTP_PROXY"
	EnvHTTPSProxy = "HTTPS_PROXY"
	EnvAllProxy   = "ALL_PROXY"
	EnvNoProxy    = "NO_PROXY"

	// envAllProxyAlias is accepted as a spelling of ALL_PROXY.
	envAllProxyAlias = "ALLPROXY"
)

// Config is the proxy configuration of a process. It is computed once,
// usually by FromEnvironment, and must not be modified after it is handed
// to an Interceptor.
type Config struct {
	// HTTPProxy is the proxy URL for http:// targets. Empty means unset.
	HTTPProxy string

	// HTTPSProxy is the proxy URL for https:// targets. Empty means unset.
	HTTPSProxy string

	// NoProxy lists bypass entries: "host", "host:port", "[ipv6]:port" or "*".
	NoProxy []string
}

// FromEnvironment snapshots the process environment into a Config.
func FromEnvironment() *Config {
	return ConfigFromEnv(os.Environ())
}

// ConfigFromEnv builds a Config from a "KEY=VALUE" environment slice.
func ConfigFromEnv(env []string) *Config {
	return &Config{
		HTTPProxy:  ResolveProxyURL(env, "http"),
		HTTPSProxy: ResolveProxyURL(env, "https"),
		NoProxy:    ResolveNoProxy(env),
	}
}

// ResolveProxyURL returns the proxy URL configured for scheme ("http" or
// "https"), falling back to ALL_PROXY and then ALLPROXY. It returns an
// empty string when nothing is set or the scheme is not http(s).
func ResolveProxyURL(env []string, scheme string) string {
	var specific string
	switch strings.ToLower(scheme) {
	case "http":
		specific = EnvHTTPProxy
	case "https":
		specific = EnvHTTPSProxy
	default:
		return ""
	}
	v, _ := envutil.LookupFold(env, specific, EnvAllProxy, envAllProxyAlias)
	return v
}

// ResolveNoProxy returns the NO_PROXY entries in order, trimmed, with empty
// entries dropped.
func ResolveNoProxy(env []string) []string {
	raw, ok := envutil.LookupFold(env, EnvNoProxy)
	if !ok {
		return nil
	}
	var entries []string
	for _, e := range strings.Split(raw, ",") {
		if e = strings.TrimSpace(e); e != "" {
			entries = append(entries, e)
		}
	}
	return entries
}

// Enabled reports whether any proxy URL is configured.
func (c *Config) Enabled() bool {
	return c != nil && (c.HTTPProxy != "" || c.HTTPSProxy != "")
}

// proxyFor returns the proxy URL for a target scheme. Secure targets prefer
// HTTPSProxy, plain targets prefer HTTPProxy; each falls back to the other.
func (c *Config) proxyFor(scheme string) string {
	if scheme == "https" {
		if c.HTTPSProxy != "" {
			return c.HTTPSProxy
		}
		return c.HTTPProxy
	}
	if c.HTTPProxy != "" {
		return c.HTTPProxy
	}
	return c.HTTPSProxy
}

// Environ renders the config as proxy variables in both cases, merged over
// base, so child processes see the same proxy settings. Variables the config
// leaves unset are not removed from base.
func (c *Config) Environ(base []string) []string {
	var env []string
	if c.HTTPProxy != "" {
		env = append(env,
			EnvHTTPProxy+"="+c.HTTPProxy,
			strings.ToLower(EnvHTTPProxy)+"="+c.HTTPProxy,
		)
	}
	if c.HTTPSProxy != "" {
		env = append(env,
			EnvHTTPSProxy+"="+c.HTTPSProxy,
			strings.ToLower(EnvHTTPSProxy)+"="+c.HTTPSProxy,
		)
	}
	if len(c.NoProxy) > 0 {
		noProxy := strings.Join(c.NoProxy, ",")
		env = append(env,
			EnvNoProxy+"="+noProxy,
			strings.ToLower(EnvNoProxy)+"="+noProxy,
		)
	}
	return envutil.MergeEnv(base, env)
}

// HTTPProxyConfig converts the config for use with golang.org/x/net's
// httpproxy package. Bypass matching then follows that package's NO_PROXY
// rules, which differ from IsBypassed (for example CIDR entries).
func (c *Config) HTTPProxyConfig() *httpproxy.Config {
	return &httpproxy.Config{
		HTTPProxy:  c.HTTPProxy,
		HTTPSProxy: c.HTTPSProxy,
		NoProxy:    strings.Join(c.NoProxy, ","),
	}
}
