package pri

import "errors"

// Sentinel errors a Controller's call-shaped operations can return.
var (
	// ErrNoSuchCall is returned by an operation named with a call
	// reference that is not in the directory (already released, or
	// never existed).
	ErrNoSuchCall = errors.New("pri: no call with that reference")

	// ErrLinkNotUp is returned by an outbound SETUP attempted before
	// the Layer 2 link has reached DCHAN_UP.
	ErrLinkNotUp = errors.New("pri: D-channel is not up")

	// ErrChannelRequired is returned by Dial when no B-channel was
	// specified.
	ErrChannelRequired = errors.New("pri: a channel must be specified")
)
