package core

// Frame is a marshaled protocol message ready for the wire.
type Frame []byte

// WebSocket close codes used by the relay.
const (
	ClosePolicyViolation = 1008 // auth failure or room at capacity
	CloseNormal          = 1000 // forced close on room expiry
)

// SignalConnection abstracts the messaging transport of one participant.
// Owned by the adapter; the core only sends to it and may ask for a
// close, it never reads.
type SignalConnection interface {
	TrySend(Frame) error
	// Close tears the connection down with a close code and reason.
	// Must be safe to call more than once.
	Close(code int, reason string)
}
