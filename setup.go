package envproxy

import (
	"log/slog"
	"net/http"
	"strings"
)

// Setup routes the process's default HTTP client through the proxies named
// by HTTP_PROXY, HTTPS_PROXY, ALL_PROXY and NO_PROXY. It disables the proxy
// lookup of http.DefaultTransport, installs a Transport into
// http.DefaultClient and logs the active configuration through
// slog.Default.
//
// Setup should be called exactly once, early in main. It returns nil and
// changes nothing when no proxy variable is set.
func Setup() *Interceptor {
	return Install(http.DefaultClient, FromEnvironment(), WithLogger(slog.Default()))
}

// Install routes client through the proxies in cfg. The built-in proxy lookup
// of the client's transport is turned off, so proxy selection happens only in
// the installed Transport. A client with a nil Transport uses
// http.DefaultTransport, which is then modified in place. A nil client means
// http.DefaultClient.
//
// Install returns nil and leaves client untouched when cfg has no proxy.
func Install(client *http.Client, cfg *Config, opts ...Option) *Interceptor {
	o := applyOptions(opts)
	if !cfg.Enabled() {
		o.logger.Info("no proxy configured, outbound requests go direct")
		return nil
	}

	if client == nil {
		client = http.DefaultClient
	}
	base := client.Transport
	if t, ok := base.(*Transport); ok {
		base = t.base
	}
	if base == nil {
		base = http.DefaultTransport
	}
	if tr, ok := base.(*http.Transport); ok {
		tr.Proxy = nil
	}

	ic := &Interceptor{cfg: cfg, factory: o.factory, logger: o.logger}
	client.Transport = NewTransport(base, ic)

	o.logger.Info("proxy configured",
		"http_proxy", MaskCredentials(cfg.HTTPProxy),
		"https_proxy", MaskCredentials(cfg.HTTPSProxy),
		"no_proxy", strings.Join(cfg.NoProxy, ","),
	)
	return ic
}
