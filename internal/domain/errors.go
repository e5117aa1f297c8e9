package domain

import "errors"

var (
	// ErrUnavailable is the only failure the relay surfaces to callers: no
	// live snapshot could be fetched and nothing was cached to fall back to.
	ErrUnavailable = errors.New("oracle unavailable")

	ErrUpstreamUnreachable       = errors.New("upstream unreachable")
	ErrMalformedUpstreamResponse = errors.New("malformed upstream response")
	ErrNoCachedData              = errors.New("no cached snapshot")
	ErrHistoryStore              = errors.New("history store failure")
)
