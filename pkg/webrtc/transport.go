package webrtc

// Transport is one peer's underlying connection: it consumes the peer's
// offer, produces the local answer, and exposes the data channel once the
// engine opens it. Implementations must be safe for concurrent use.
type Transport interface {
	// Answer applies the remote offer and returns the local answer SDP.
	// Calling it again renegotiates the existing connection.
	Answer(offerSDP string) (string, error)

	// AddCandidate applies a remote ICE candidate. Candidates received
	// before the remote description are queued and flushed in order once
	// Answer has applied it.
	AddCandidate(candidate string) error

	// Send writes data over the peer's data channel.
	Send(data []byte) error

	// OnOpen registers the callback invoked when the data channel opens.
	OnOpen(fn func())

	// OnClose registers the callback invoked once when the data channel or
	// the connection itself closes.
	OnClose(fn func())

	// OnMessage registers the callback for inbound data channel messages.
	OnMessage(fn func(data []byte))

	// Close tears the connection down.
	Close() error
}

// Factory creates a Transport for a peer.
type Factory func(peerID string) (Transport, error)
