package envproxy

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/zhangyunhao116/envproxy/agent"
)

// Agent is a reusable transport bound to one proxy endpoint.
type Agent interface {
	http.RoundTripper

	// ProxyURL returns the proxy URL the agent was built for.
	ProxyURL() string
}

// AgentPair holds the agents used for one proxy URL. Plain serves http://
// targets and Secure serves https:// targets. For SOCKS proxies both fields
// hold the same agent.
type AgentPair struct {
	Plain  Agent
	Secure Agent
}

// AgentFunc builds an agent for a proxy URL.
type AgentFunc func(proxyURL string) (Agent, error)

// AgentConstructors are the three agent builders used by an AgentFactory.
type AgentConstructors struct {
	// HTTP builds the plain agent for http(s):// proxy URLs.
	HTTP AgentFunc
	// HTTPS builds the secure agent for http(s):// proxy URLs.
	HTTPS AgentFunc
	// SOCKS builds the single agent for socks*:// proxy URLs.
	SOCKS AgentFunc
}

// DefaultAgentConstructors returns constructors backed by the agent package.
func DefaultAgentConstructors() AgentConstructors {
	return AgentConstructors{
		HTTP:  adaptTransport(agent.NewHTTP),
		HTTPS: adaptTransport(agent.NewHTTPS),
		SOCKS: adaptTransport(agent.NewSOCKS),
	}
}

// adaptTransport keeps a failed constructor from returning a typed nil Agent.
func adaptTransport(fn func(string) (*agent.Transport, error)) AgentFunc {
	return func(proxyURL string) (Agent, error) {
		t, err := fn(proxyURL)
		if err != nil {
			return nil, err
		}
		return t, nil
	}
}

// AgentFactory builds agent pairs on first use and caches them by exact
// proxy URL string for the factory's lifetime. It is safe for concurrent use.
type AgentFactory struct {
	ctors AgentConstructors

	mu    sync.Mutex
	cache map[string]*AgentPair
}

// NewAgentFactory returns a factory using ctors. Nil constructors fall back
// to DefaultAgentConstructors.
func NewAgentFactory(ctors AgentConstructors) *AgentFactory {
	def := DefaultAgentConstructors()
	if ctors.HTTP == nil {
		ctors.HTTP = def.HTTP
	}
	if ctors.HTTPS == nil {
		ctors.HTTPS = def.HTTPS
	}
	if ctors.SOCKS == nil {
		ctors.SOCKS = def.SOCKS
	}
	return &AgentFactory{
		ctors: ctors,
		cache: make(map[string]*AgentPair),
	}
}

// Agents returns the agent pair for proxyURL, building it on the first call.
// Repeated calls with the same string return the same *AgentPair. A failed
// build is not cached.
func (f *AgentFactory) Agents(proxyURL string) (*AgentPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if pair, ok := f.cache[proxyURL]; ok {
		return pair, nil
	}
	pair, err := f.build(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %w", ErrAgentConstruction, MaskCredentials(proxyURL), err)
	}
	f.cache[proxyURL] = pair
	return pair, nil
}

func (f *AgentFactory) build(proxyURL string) (*AgentPair, error) {
	if strings.HasPrefix(proxyScheme(proxyURL), "socks") {
		a, err := f.ctors.SOCKS(proxyURL)
		if err != nil {
			return nil, err
		}
		return &AgentPair{Plain: a, Secure: a}, nil
	}

	plain, err := f.ctors.HTTP(proxyURL)
	if err != nil {
		return nil, err
	}
	secure, err := f.ctors.HTTPS(proxyURL)
	if err != nil {
		return nil, err
	}
	return &AgentPair{Plain: plain, Secure: secure}, nil
}

// Len returns the number of cached agent pairs.
func (f *AgentFactory) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cache)
}

// CloseIdleConnections closes idle proxy connections of every cached agent
// that supports it. Cached agents stay usable.
func (f *AgentFactory) CloseIdleConnections() {
	type idleCloser interface{ CloseIdleConnections() }

	f.mu.Lock()
	pairs := make([]*AgentPair, 0, len(f.cache))
	for _, p := range f.cache {
		pairs = append(pairs, p)
	}
	f.mu.Unlock()

	for _, p := range pairs {
		if c, ok := p.Plain.(idleCloser); ok {
			c.CloseIdleConnections()
		}
		if p.Secure != p.Plain {
			if c, ok := p.Secure.(idleCloser); ok {
				c.CloseIdleConnections()
			}
		}
	}
}

// proxyScheme returns the lowercased scheme of a proxy URL, or "http" when
// it cannot be parsed or has none.
func proxyScheme(proxyURL string) string {
	u, err := url.Parse(proxyURL)
	if err != nil || u.Scheme == "" {
		return "http"
	}
	return strings.ToLower(u.Scheme)
}
