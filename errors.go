package envproxy

import "errors"

// Sentinel errors reported in Outcome.Err. None of them ever fails a request.
var (
	// ErrInvalidTarget indicates the request URL or its base URL could not be parsed.
	ErrInvalidTarget = errors.New("envproxy: invalid target URL")

	// ErrAgentConstruction indicates the transport agents for a proxy URL
	// could not be built, for example because the scheme has no dialer.
	ErrAgentConstruction = errors.New("envproxy: agent construction failed")
)
