// Package protocol owns the graph-control wire contract.
//
// Ownership boundary:
// - length-prefixed message primitives (frame)
// - command/response envelopes
// - error taxonomy shared by every handler
package protocol
