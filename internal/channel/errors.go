package channel

import "errors"

// Channel errors, per spec.md §7's SocketError/SendError/RecvError kinds.
var (
	// ErrSocketClosed indicates an operation was attempted after Close.
	ErrSocketClosed = errors.New("channel: socket closed")

	// ErrSendFailed wraps an OS-level send refusal. Per spec.md §4.5 this
	// is recorded against the probe, not fatal to the tracer.
	ErrSendFailed = errors.New("channel: send failed")

	// ErrUnsupportedProto indicates a Channel was asked to send a probe
	// shape it was not constructed for.
	ErrUnsupportedProto = errors.New("channel: unsupported protocol for this channel")
)
