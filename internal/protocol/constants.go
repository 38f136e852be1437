package protocol

import "time"

const (
	// DefaultPort is the fixed loopback port the bridge listens on.
	DefaultPort = 9877
	// DefaultAddr is the loopback listen address.
	DefaultAddr = "127.0.0.1:9877"

	// GraphBoundary is the reserved node id addressing graph-level inputs and outputs.
	GraphBoundary = "__graph__"

	DefaultHandoffTimeout = 25 * time.Second
	DefaultHandoffPoll    = 500 * time.Millisecond
	DefaultIdleTimeout    = 60 * time.Second
	DefaultAcceptPoll     = time.Second

	// DefaultContentRoot is the asset namespace root accepted by build_to_asset.
	DefaultContentRoot = "/Content/"
)
