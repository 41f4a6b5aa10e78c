package envproxy

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Decision describes what Intercept did with a request.
type Decision int

const (
	// PassThrough leaves the request unmodified: no proxy applies, the
	// target is not absolute, or proxy selection failed.
	PassThrough Decision = iota

	// Bypassed leaves the request unmodified because NO_PROXY matched.
	Bypassed

	// Proxied injected the proxy agent for the target's scheme.
	Proxied

	// CallerAgent found a caller-supplied agent for the target's scheme and
	// kept it. Empty agent fields were still filled in.
	CallerAgent
)

// String returns the string representation of a Decision.
func (d Decision) String() string {
	switch d {
	case PassThrough:
		return "pass_through"
	case Bypassed:
		return "bypassed"
	case Proxied:
		return "proxied"
	case CallerAgent:
		return "caller_agent"
	default:
		return "unknown"
	}
}

// RequestConfig is the per-request view the interceptor reads and updates.
type RequestConfig struct {
	// URL is the request URL, absolute or relative to BaseURL.
	URL string

	// BaseURL, if set, resolves a relative URL.
	BaseURL string

	// ProxyFromEnvironment asks the client for its own proxy lookup.
	// The interceptor clears it whenever it selects a proxy.
	ProxyFromEnvironment bool

	// PlainAgent carries http:// requests. A non-nil value set by the
	// caller is never replaced.
	PlainAgent http.RoundTripper

	// SecureAgent carries https:// requests. A non-nil value set by the
	// caller is never replaced.
	SecureAgent http.RoundTripper
}

// Outcome is the result of Intercept. It never represents a failed request:
// when Err is set the request was left unmodified.
type Outcome struct {
	Decision Decision

	// Target is the absolute URL the decision was made for, if any.
	Target string

	// ProxyURL is the selected proxy URL, if any.
	ProxyURL string

	// Err records why proxy selection was abandoned.
	Err error
}

// Modified reports whether the request config was changed.
func (o Outcome) Modified() bool {
	return o.Decision == Proxied || o.Decision == CallerAgent
}

// Interceptor decides, per outgoing request, whether and through which
// proxy the request travels. It is safe for concurrent use.
type Interceptor struct {
	cfg     *Config
	factory *AgentFactory
	logger  *slog.Logger
}

// NewInterceptor returns an Interceptor for cfg. A nil cfg behaves as an
// empty configuration and passes every request through.
func NewInterceptor(cfg *Config, opts ...Option) *Interceptor {
	if cfg == nil {
		cfg = &Config{}
	}
	o := applyOptions(opts)
	return &Interceptor{
		cfg:     cfg,
		factory: o.factory,
		logger:  o.logger,
	}
}

// Config returns the configuration the interceptor was built with.
func (ic *Interceptor) Config() *Config { return ic.cfg }

// Factory returns the agent factory of the interceptor.
func (ic *Interceptor) Factory() *AgentFactory { return ic.factory }

// Intercept selects a proxy for rc and injects the matching agents.
//
// Processing order:
//  1. Resolve the absolute target from URL and BaseURL.
//  2. Pass through if the target is not an absolute http(s) URL.
//  3. Leave the request alone if NO_PROXY matches.
//  4. Pick the proxy URL for the target scheme, with fallback.
//  5. Obtain the cached agent pair and fill the empty agent fields.
//
// Intercept never fails; see Outcome.
func (ic *Interceptor) Intercept(rc *RequestConfig) Outcome {
	if rc == nil {
		return Outcome{Decision: PassThrough}
	}

	sel := ic.selectFor(rc.URL, rc.BaseURL)
	if sel.ProxyURL == "" || sel.Err != nil {
		ic.logDecision(sel)
		return sel
	}

	pair, err := ic.factory.Agents(sel.ProxyURL)
	if err != nil {
		sel.Decision = PassThrough
		sel.Err = err
		ic.logDecision(sel)
		return sel
	}

	rc.ProxyFromEnvironment = false
	callerOwned := false
	if rc.PlainAgent == nil {
		rc.PlainAgent = pair.Plain
	} else if !isSecure(sel.Target) {
		callerOwned = true
	}
	if rc.SecureAgent == nil {
		rc.SecureAgent = pair.Secure
	} else if isSecure(sel.Target) {
		callerOwned = true
	}

	sel.Decision = Proxied
	if callerOwned {
		sel.Decision = CallerAgent
	}
	ic.logDecision(sel)
	return sel
}

// SelectProxy returns the proxy URL target would use, without building any
// agent. It reports false when the target passes through or is bypassed.
func (ic *Interceptor) SelectProxy(target string) (string, bool) {
	sel := ic.selectFor(target, "")
	return sel.ProxyURL, sel.ProxyURL != ""
}

// ProxyFunc returns a function suitable for http.Transport.Proxy that applies
// the same selection as Intercept. It returns (nil, nil) for direct requests
// and never returns an error.
func (ic *Interceptor) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		if req == nil || req.URL == nil {
			return nil, nil
		}
		proxyURL, ok := ic.SelectProxy(req.URL.String())
		if !ok {
			return nil, nil
		}
		if !strings.Contains(proxyURL, "://") {
			proxyURL = "http://" + proxyURL
		}
		u, err := url.Parse(proxyURL)
		if err != nil {
			ic.logger.Debug("ignoring unparseable proxy URL",
				"proxy", MaskCredentials(proxyURL),
				"error", err,
			)
			return nil, nil
		}
		return u, nil
	}
}

// selectFor runs the target resolution, bypass and proxy preference steps.
// A non-empty ProxyURL in the result means a proxy applies.
func (ic *Interceptor) selectFor(rawURL, baseURL string) Outcome {
	target, err := absoluteTarget(rawURL, baseURL)
	if err != nil {
		return Outcome{Decision: PassThrough, Err: err}
	}
	u, err := url.Parse(target)
	if err != nil {
		return Outcome{Decision: PassThrough, Target: target, Err: fmt.Errorf("%w: %w", ErrInvalidTarget, err)}
	}
	if !u.IsAbs() || u.Host == "" {
		return Outcome{Decision: PassThrough}
	}

	if IsBypassed(target, ic.cfg.NoProxy) {
		return Outcome{Decision: Bypassed, Target: target}
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return Outcome{Decision: PassThrough, Target: target}
	}
	proxyURL := ic.cfg.proxyFor(scheme)
	if proxyURL == "" {
		return Outcome{Decision: PassThrough, Target: target}
	}
	return Outcome{Decision: Proxied, Target: target, ProxyURL: proxyURL}
}

// absoluteTarget returns rawURL if it is already an absolute http(s) URL,
// rawURL resolved against baseURL when both are set, and otherwise whichever
// of the two is non-empty.
func absoluteTarget(rawURL, baseURL string) (string, error) {
	if hasHTTPPrefix(rawURL) {
		return rawURL, nil
	}
	if rawURL == "" {
		return baseURL, nil
	}
	if baseURL == "" {
		return rawURL, nil
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: base: %w", ErrInvalidTarget, err)
	}
	ref, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func hasHTTPPrefix(s string) bool {
	l := strings.ToLower(s)
	return strings.HasPrefix(l, "http://") || strings.HasPrefix(l, "https://")
}

func isSecure(target string) bool {
	return strings.HasPrefix(strings.ToLower(target), "https://")
}

func (ic *Interceptor) logDecision(o Outcome) {
	attrs := []any{
		"target", MaskCredentials(o.Target),
		"decision", o.Decision.String(),
	}
	if o.ProxyURL != "" {
		attrs = append(attrs, "proxy", MaskCredentials(o.ProxyURL))
	}
	if o.Err != nil {
		attrs = append(attrs, "error", o.Err)
	}
	ic.logger.Debug("proxy decision", attrs...)
}
